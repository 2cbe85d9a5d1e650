package server

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/KilimcininKorOglu/obacore/internal/config"
	"github.com/KilimcininKorOglu/obacore/internal/logging"
	"github.com/KilimcininKorOglu/obacore/internal/operation"
)

// ErrServerClosed is returned by Accept after Close.
var ErrServerClosed = errors.New("server: closed")

// Default connection limits.
const (
	DefaultSizeLimit = 1000
	DefaultTimeLimit = 60 * time.Second
)

// Options holds the settings shared by every connection.
type Options struct {
	// SizeLimit and TimeLimit bound searches; zero means unlimited.
	SizeLimit int
	TimeLimit time.Duration
	// RejectReferrals drops search references, as LDAPv2 clients expect.
	RejectReferrals bool
	// OnDisconnect, when set, is called with the ID of every closed
	// connection.
	OnDisconnect func(connID int64)
}

// NewOptions creates Options with default settings.
func NewOptions() *Options {
	return &Options{SizeLimit: DefaultSizeLimit, TimeLimit: DefaultTimeLimit}
}

// ApplySettings copies the limits section of the configuration file.
func (o *Options) ApplySettings(s config.LimitsConfig) {
	o.SizeLimit = s.SizeLimit
	o.TimeLimit = s.TimeLimit
}

// Server owns the client connections and the collaborators they share.
type Server struct {
	engine  *operation.Engine
	group   operation.NetworkGroup
	queue   Submitter
	options Options
	logger  logging.Logger

	nextConnID atomic.Int64

	mu     sync.Mutex
	conns  map[int64]*Connection
	closed bool
}

// New creates a server. A nil queue runs operations on the goroutine that
// submits them.
func New(engine *operation.Engine, group operation.NetworkGroup, queue Submitter, opts *Options, logger logging.Logger) *Server {
	if opts == nil {
		opts = NewOptions()
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Server{
		engine:  engine,
		group:   group,
		queue:   queue,
		options: *opts,
		logger:  logger.Named("server"),
		conns:   make(map[int64]*Connection),
	}
}

// Accept registers a new client connection writing to sink.
func (s *Server) Accept(sink Sink) (*Connection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrServerClosed
	}

	c := newConnection(s.nextConnID.Add(1), s, sink)
	s.conns[c.id] = c
	c.logger.Info("connection established")
	return c, nil
}

// Connection returns the open connection with the given ID, or nil.
func (s *Server) Connection(id int64) *Connection {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conns[id]
}

// Connections returns the number of open connections.
func (s *Server) Connections() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conns)
}

func (s *Server) forget(c *Connection) {
	s.mu.Lock()
	delete(s.conns, c.id)
	s.mu.Unlock()

	if s.options.OnDisconnect != nil {
		s.options.OnDisconnect(c.id)
	}
}

// Close disconnects every client with a notice of disconnection and
// refuses new connections.
func (s *Server) Close(message string) {
	s.mu.Lock()
	s.closed = true
	conns := make([]*Connection, 0, len(s.conns))
	for _, c := range s.conns {
		conns = append(conns, c)
	}
	s.mu.Unlock()

	for _, c := range conns {
		c.Disconnect("server shutdown", true, message)
	}
	s.logger.Info("server closed", "connections", len(conns))
}
