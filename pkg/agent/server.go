package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/taylored/runnerd/pkg/config"
	"github.com/taylored/runnerd/pkg/log"
	"github.com/taylored/runnerd/pkg/types"
)

// Server is the in-container agent: one websocket endpoint that multiplexes
// snippet runs and filesystem requests per connection.
type Server struct {
	cfg      *config.Runner
	executor *Executor
	fs       *FSAccessor
	upgrader websocket.Upgrader
	http     *http.Server
	logger   zerolog.Logger
}

// NewServer wires the agent from its configuration.
func NewServer(cfg *config.Runner) *Server {
	return &Server{
		cfg:      cfg,
		executor: NewExecutor(cfg.TayloredBin),
		fs:       NewFSAccessor(cfg.ContainerRoot),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// The channel is origin-permissive: the editor may be served
			// from anywhere.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		logger: log.WithComponent("agent"),
	}
}

// Start listens on the configured port until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"healthy"}`))
	})
	mux.HandleFunc("/", s.handleWS)

	s.http = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.cfg.Port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Int("port", s.cfg.Port).Msg("runner agent listening")
		errCh <- s.http.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.http.Shutdown(shutdownCtx)
	}
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	c := newConn(ws, s.logger)
	s.logger.Info().Str("remote", ws.RemoteAddr().String()).Msg("client connected")

	go c.writeLoop()
	s.readLoop(r.Context(), c)

	c.close()
	s.logger.Info().Str("remote", ws.RemoteAddr().String()).Msg("client disconnected")
}

// readLoop dispatches each inbound event on its own goroutine so a
// long-running snippet never blocks filesystem requests on the same
// connection.
func (s *Server) readLoop(ctx context.Context, c *conn) {
	for {
		var env envelope
		if err := c.ws.ReadJSON(&env); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Debug().Err(err).Msg("read failed")
			}
			return
		}

		switch env.Event {
		case types.EventTayloredRun:
			var req types.RunRequest
			if err := json.Unmarshal(env.Data, &req); err != nil {
				s.emitRunError(c, 0, "Invalid XML data provided for tayloredRun.")
				continue
			}
			go s.executor.Run(ctx, c, req.Body)

		case types.EventListDirectory:
			var req types.ListDirectoryRequest
			if err := json.Unmarshal(env.Data, &req); err != nil {
				s.emitRunError(c, 0, "Invalid payload for listDirectory.")
				continue
			}
			go s.fs.ListDirectory(c, req.Path)

		case types.EventDownloadFile:
			var req types.DownloadFileRequest
			if err := json.Unmarshal(env.Data, &req); err != nil {
				s.emitRunError(c, 0, "Invalid payload for downloadFile.")
				continue
			}
			go s.fs.DownloadFile(c, req.Path)

		case types.EventDisconnect:
			return

		default:
			s.logger.Warn().Str("event", env.Event).Msg("unknown event")
		}
	}
}

func (s *Server) emitRunError(e Emitter, id int, msg string) {
	if err := e.Emit(types.EventTayloredRunError, types.RunError{ID: id, Error: msg}); err != nil {
		s.logger.Debug().Err(err).Msg("failed to emit run error")
	}
}
