package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/repostash/repostash/internal/logging"
)

const shutdownTimeout = 5 * time.Second

// Server serves the websocket command endpoint and a health probe on a
// local listener.
type Server struct {
	addr    string
	handler *Handler
	log     logging.Logger
}

func NewServer(addr string, handler *Handler, log logging.Logger) *Server {
	if log == nil {
		log = logging.NopLogger{}
	}
	return &Server{addr: addr, handler: handler, log: log.With("component", "ws")}
}

// Run serves until ctx is cancelled, then drains with a short timeout.
func (s *Server) Run(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWS)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	srv := &http.Server{
		Addr:    s.addr,
		Handler: mux,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info(ctx, "listening", "addr", s.addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

// handleWS upgrades the connection and runs the one-request-one-reply
// loop until the client goes away.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		// the daemon binds to loopback; browser extensions connect with
		// an extension origin that never matches the host
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		s.log.Warn(r.Context(), "websocket accept failed", "err", err)
		return
	}
	defer conn.Close(websocket.StatusInternalError, "server shutting down")

	ctx := r.Context()
	for {
		var raw json.RawMessage
		if err := wsjson.Read(ctx, conn, &raw); err != nil {
			status := websocket.CloseStatus(err)
			if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway ||
				errors.Is(err, context.Canceled) {
				conn.Close(websocket.StatusNormalClosure, "")
				return
			}
			s.log.Debug(ctx, "read failed", "err", err)
			return
		}

		reply := s.handler.Dispatch(ctx, raw)
		if err := wsjson.Write(ctx, conn, reply); err != nil {
			s.log.Debug(ctx, "write failed", "err", err)
			return
		}
	}
}
