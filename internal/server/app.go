package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/fenggwsx/RoomChat/internal/config"
	"github.com/fenggwsx/RoomChat/internal/protocol"
	"github.com/fenggwsx/RoomChat/internal/storage"
)

// App coordinates the HTTP listener, session lifecycle, and room routing.
type App struct {
	cfg      config.ServerConfig
	messages storage.MessageStore
	presence storage.PresenceStore
	hub      *RoomHub
	typing   *TypingTracker
	logger   *slog.Logger
	upgrader websocket.Upgrader
	server   *http.Server

	ctx    context.Context
	cancel context.CancelFunc

	// mu orders session registration against Shutdown so wg.Add never
	// races wg.Wait.
	mu      sync.Mutex
	closing bool
	wg      sync.WaitGroup
}

// NewApp constructs a server instance using the provided dependencies.
func NewApp(cfg config.ServerConfig, messages storage.MessageStore, presence storage.PresenceStore, logger *slog.Logger) *App {
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	a := &App{
		cfg:      cfg,
		messages: messages,
		presence: presence,
		hub:      NewRoomHub(),
		typing:   NewTypingTracker(),
		logger:   logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(cfg.AllowedOrigins, logger),
		},
		ctx:    ctx,
		cancel: cancel,
	}
	a.server = &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           a.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return a
}

// ListenAndServe blocks until the server stops. A graceful shutdown returns nil.
func (a *App) ListenAndServe() error {
	a.logger.Info("listening", "addr", a.cfg.ListenAddr)
	if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting connections, closes every session and waits for
// their goroutines to finish or ctx to expire.
func (a *App) Shutdown(ctx context.Context) error {
	a.mu.Lock()
	a.closing = true
	a.mu.Unlock()
	a.cancel()
	err := a.server.Shutdown(ctx)
	a.hub.CloseAll()

	finished := make(chan struct{})
	go func() {
		a.wg.Wait()
		close(finished)
	}()
	select {
	case <-finished:
	case <-ctx.Done():
		return errors.Join(err, ctx.Err())
	}
	return err
}

func (a *App) isClosing() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.closing
}

func (a *App) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	if a.isClosing() {
		http.Error(w, "server shutting down", http.StatusServiceUnavailable)
		return
	}
	conn, err := a.upgrader.Upgrade(w, r, nil)
	if err != nil {
		a.logger.Warn("websocket upgrade failed", "remote", r.RemoteAddr, "err", err)
		return
	}

	session := newClientSession(conn, r.RemoteAddr, a.cfg.SendQueueSize, a.logger)

	a.mu.Lock()
	if a.closing {
		a.mu.Unlock()
		session.writeClose(a.cfg.WriteTimeout, websocket.CloseGoingAway)
		_ = conn.Close()
		return
	}
	a.hub.Register(session)
	a.wg.Add(2)
	a.mu.Unlock()
	session.logger.Info("session connected")

	go func() {
		defer a.wg.Done()
		session.writeLoop(a.ctx, a.cfg.WriteTimeout, a.cfg.PingPeriod())
	}()
	go func() {
		defer a.wg.Done()
		a.readLoop(a.ctx, session)
	}()
}

// readLoop runs handlers for one connection in arrival order.
func (a *App) readLoop(ctx context.Context, s *clientSession) {
	defer func() {
		a.handleDisconnect(s)
		s.shutdown()
	}()

	s.conn.SetReadLimit(a.cfg.MaxMessageBytes)
	_ = s.conn.SetReadDeadline(time.Now().Add(a.cfg.ReadTimeout))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(a.cfg.ReadTimeout))
	})

	for {
		_, frame, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) && !isExpectedCloseError(err) {
				s.logger.Warn("websocket read error", "err", err)
			}
			return
		}
		env, err := protocol.Decode(frame)
		if err != nil {
			s.logger.Warn("invalid frame", "err", err)
			continue
		}
		a.dispatch(ctx, s, env)
	}
}
