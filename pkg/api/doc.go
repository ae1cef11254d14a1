/*
Package api is the operator HTTP surface.

Routes:

	GET  /health                      liveness + instance count (public)
	GET  /metrics                     Prometheus exposition (public)
	GET  /api/instances               safe records + snapshot status
	POST /api/launch                  create or restart by wallet pubkey
	POST /api/stop                    graceful stop
	POST /api/destroy                 remove container + record
	GET  /api/stats/{id}              live status + resource sample
	GET  /api/logs/{id}?lines=N       bounded log tail
	*    /api/logs/{id}/stream        follow stream (WebSocket or SSE)
	GET  /api/files/{id}              workspace file listing
	GET  /api/files/{id}/{name}       read a workspace file
	PUT  /api/files/{id}/{name}       edit an existing workspace file

Everything under /api/ requires the launcher token when one is configured,
as a bearer header or ?token= query parameter, compared in constant time.
The launch response is the only surface that carries the gateway token.
*/
package api
