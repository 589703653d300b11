package websocket

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/wricardo/quizler/game/engine"
)

const defaultAdmitTimeout = 5 * time.Second

// Resolver finds the live game for a join token.
type Resolver interface {
	Resolve(token string) (*engine.Game, error)
}

// Options configures a Hub.
type Options struct {
	AdmitTimeout time.Duration
	// SendBuffer is the number of outbound frames a connection may lag behind.
	SendBuffer int
	// CheckOrigin defaults to allowing every origin.
	CheckOrigin func(r *http.Request) bool
	Logger      *zap.Logger
}

// Hub maintains the set of active gateways
type Hub struct {
	resolver Resolver
	opts     Options
	logger   *zap.Logger
	upgrader websocket.Upgrader

	// Owned by Run.
	gateways map[*Gateway]bool

	// Register requests from gateways
	register chan *Gateway

	// Unregister requests from gateways
	unregister chan *Gateway

	// Count queries
	count chan chan int

	done chan struct{}
}

// NewHub creates a new WebSocket hub
func NewHub(resolver Resolver, opts Options) *Hub {
	if opts.AdmitTimeout <= 0 {
		opts.AdmitTimeout = defaultAdmitTimeout
	}
	if opts.CheckOrigin == nil {
		opts.CheckOrigin = func(r *http.Request) bool { return true }
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Hub{
		resolver: resolver,
		opts:     opts,
		logger:   logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     opts.CheckOrigin,
		},
		gateways:   make(map[*Gateway]bool),
		register:   make(chan *Gateway),
		unregister: make(chan *Gateway),
		count:      make(chan chan int),
		done:       make(chan struct{}),
	}
}

// Run starts the hub's event loop. When ctx is cancelled every connection is
// closed and Run returns.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)

	for {
		select {
		case g := <-h.register:
			h.gateways[g] = true
			h.logger.Debug("connection registered", zap.String("conn", g.id), zap.Int("connections", len(h.gateways)))

		case g := <-h.unregister:
			delete(h.gateways, g)
			h.logger.Debug("connection unregistered", zap.String("conn", g.id), zap.Int("connections", len(h.gateways)))

		case reply := <-h.count:
			reply <- len(h.gateways)

		case <-ctx.Done():
			h.logger.Info("closing websocket connections", zap.Int("connections", len(h.gateways)))
			for g := range h.gateways {
				g.out.close()
			}
			return
		}
	}
}

// Count returns the number of open connections
func (h *Hub) Count() int {
	reply := make(chan int, 1)
	select {
	case h.count <- reply:
		return <-reply
	case <-h.done:
		return 0
	}
}

// ServeWS upgrades the request and starts a gateway for the connection
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	select {
	case <-h.done:
		http.Error(w, "server is shutting down", http.StatusServiceUnavailable)
		return
	default:
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	id := uuid.New().String()
	g := &Gateway{
		hub:    h,
		conn:   conn,
		id:     id,
		logger: h.logger.With(zap.String("conn", id)),
		out:    newQueue(h.opts.SendBuffer),
		inbox:  make(chan inbound, inboxSize),
	}

	select {
	case h.register <- g:
	case <-h.done:
		conn.Close()
		return
	}
	g.logger.Info("connection opened", zap.String("remote", r.RemoteAddr))

	// Start gateway goroutines
	go g.writePump()
	go g.readPump()
	go g.run()
}

func (h *Hub) unregisterGateway(g *Gateway) {
	select {
	case h.unregister <- g:
	case <-h.done:
	}
}
