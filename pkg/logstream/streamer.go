package logstream

import (
	"bufio"
	"context"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/docker/docker/pkg/stdcopy"

	"github.com/openclaw/launcher/pkg/log"
	"github.com/openclaw/launcher/pkg/manager"
	"github.com/openclaw/launcher/pkg/runtime"
)

// followTail is the number of history lines a new subscriber is primed
// with before live output begins.
const followTail = 50

// Streamer relays a container's follow-log stream to operator
// connections. Each subscriber owns exactly one daemon follow stream;
// whichever side finishes first (subscriber disconnect, container exit,
// runtime error) tears the other down.
type Streamer struct {
	rt       runtime.Runtime
	logger   zerolog.Logger
	upgrader websocket.Upgrader
}

// New creates a streamer over the runtime adapter.
func New(rt runtime.Runtime) *Streamer {
	return &Streamer{
		rt:     rt,
		logger: log.WithComponent("logstream"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			// The operator surface is token-guarded upstream; origins are
			// not a trust boundary here.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// ServeHTTP streams logs for one instance. WebSocket upgrades get one
// frame per chunk; anything else gets a line-oriented SSE push.
func (s *Streamer) ServeHTTP(w http.ResponseWriter, r *http.Request, instanceID string) {
	if websocket.IsWebSocketUpgrade(r) {
		s.serveWebSocket(w, r, instanceID)
		return
	}
	s.serveSSE(w, r, instanceID)
}

// open resolves the instance's follow stream and demultiplexes it into a
// plain byte stream. The returned closer releases the daemon connection
// and must be called from every exit path.
func (s *Streamer) open(ctx context.Context, instanceID string) (io.Reader, func(), error) {
	raw, err := s.rt.FollowLogs(ctx, manager.ContainerName(instanceID), followTail)
	if err != nil {
		return nil, nil, err
	}

	pr, pw := io.Pipe()
	go func() {
		_, err := stdcopy.StdCopy(pw, pw, raw)
		pw.CloseWithError(err)
	}()

	closeFn := func() {
		raw.Close()
		pr.Close()
	}
	return pr, closeFn, nil
}

func errorToken(err error) string {
	if errors.Is(err, runtime.ErrNotFound) {
		return "[error] container not found"
	}
	if errors.Is(err, runtime.ErrUnreachable) {
		return "[error] docker unreachable"
	}
	return "[error] log stream failed"
}

func (s *Streamer) serveWebSocket(w http.ResponseWriter, r *http.Request, instanceID string) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	subscriber := uuid.NewString()
	logger := s.logger.With().
		Str("instance_id", instanceID).
		Str("subscriber", subscriber).
		Logger()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	stream, closeStream, err := s.open(ctx, instanceID)
	if err != nil {
		logger.Debug().Err(err).Msg("follow open failed")
		conn.WriteMessage(websocket.TextMessage, []byte(errorToken(err)))
		return
	}
	defer closeStream()

	// Drain the client side: control frames keep the connection alive and
	// a read error is the disconnect signal.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				cancel()
				closeStream()
				return
			}
		}
	}()

	logger.Debug().Msg("subscriber attached")

	buf := make([]byte, 4096)
	for {
		n, err := stream.Read(buf)
		if n > 0 {
			chunk := strings.ToValidUTF8(string(buf[:n]), "�")
			if werr := conn.WriteMessage(websocket.TextMessage, []byte(chunk)); werr != nil {
				break
			}
		}
		if err != nil {
			break
		}
	}
	logger.Debug().Msg("subscriber detached")
}

func (s *Streamer) serveSSE(w http.ResponseWriter, r *http.Request, instanceID string) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	stream, closeStream, err := s.open(ctx, instanceID)
	if err != nil {
		writeSSELine(w, errorToken(err))
		flusher.Flush()
		return
	}
	defer closeStream()

	// Subscriber disconnect unblocks the daemon read via the close path.
	go func() {
		<-ctx.Done()
		closeStream()
	}()

	scanner := bufio.NewScanner(stream)
	scanner.Buffer(make([]byte, 0, 4096), 1<<20)
	for scanner.Scan() {
		line := strings.ToValidUTF8(scanner.Text(), "�")
		writeSSELine(w, line)
		flusher.Flush()
	}
}

func writeSSELine(w io.Writer, line string) {
	io.WriteString(w, "data: "+line+"\n\n")
}
