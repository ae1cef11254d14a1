package relay

import (
	"context"
	"errors"
	"io"
	"net"
	"time"

	"github.com/rs/zerolog"

	"github.com/openclaw/launcher/pkg/log"
)

const dialTimeout = 10 * time.Second

// Relay is a plain TCP forwarder that exposes a host-only service on the
// Docker bridge address so containers can reach it.
type Relay struct {
	listenAddr string
	targetAddr string
	logger     zerolog.Logger
}

// New creates a relay from listenAddr to targetAddr.
func New(listenAddr, targetAddr string) *Relay {
	return &Relay{
		listenAddr: listenAddr,
		targetAddr: targetAddr,
		logger:     log.WithComponent("relay"),
	}
}

// Run accepts connections until ctx is cancelled.
func (r *Relay) Run(ctx context.Context) error {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", r.listenAddr)
	if err != nil {
		return err
	}

	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	r.logger.Info().
		Str("listen", r.listenAddr).
		Str("target", r.targetAddr).
		Msg("relay started")

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			return err
		}
		go r.handle(conn)
	}
}

func (r *Relay) handle(client net.Conn) {
	upstream, err := net.DialTimeout("tcp", r.targetAddr, dialTimeout)
	if err != nil {
		r.logger.Debug().Err(err).Msg("upstream dial failed")
		client.Close()
		return
	}

	go pipe(client, upstream)
	go pipe(upstream, client)
}

// pipe copies one direction and half-closes the destination when the
// source runs dry, so the peer sees EOF instead of a reset.
func pipe(dst, src net.Conn) {
	io.Copy(dst, src)
	if tc, ok := dst.(*net.TCPConn); ok {
		tc.CloseWrite()
		return
	}
	dst.Close()
}
