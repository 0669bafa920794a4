package connection

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/hazz-dev/dataprobe/internal/config"
)

// Handle is an open connection to a backend, capable of running a
// query and returning its rows. Callers own the handle and must Close
// it when done.
type Handle interface {
	RunQuery(ctx context.Context, query string) ([][]any, error)
	Close() error
}

// Factory constructs a Handle for a connection of its backend kind.
type Factory func(conn config.Connection) (Handle, error)

// UnsupportedBackendError is returned when a connection's backend kind
// has no registered factory.
type UnsupportedBackendError struct {
	Kind string
}

func (e *UnsupportedBackendError) Error() string {
	return fmt.Sprintf("unsupported backend kind %q", e.Kind)
}

// Resolver maps connection ids to backend handles. Backend kinds are
// dispatched through a factory registry, open for extension via
// Register. Resolve constructs a fresh handle on every call; the
// resolver holds no per-check state.
type Resolver struct {
	conns     map[string]config.Connection
	mu        sync.RWMutex
	factories map[string]Factory
	logger    *slog.Logger
}

// NewResolver creates a Resolver over the given connection definitions
// with the built-in backend kinds registered. Pass nil logger to use
// the default logger.
func NewResolver(conns []config.Connection, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Resolver{
		conns:     make(map[string]config.Connection, len(conns)),
		factories: make(map[string]Factory),
		logger:    logger,
	}
	for _, c := range conns {
		r.conns[c.ID] = c
	}
	for kind, f := range builtinFactories() {
		r.factories[kind] = f
	}
	return r
}

// Register adds a factory for a backend kind. Returns an error if the
// kind is already registered.
func (r *Resolver) Register(kind string, factory Factory) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.factories[kind]; exists {
		return fmt.Errorf("backend kind %q is already registered", kind)
	}
	r.factories[kind] = factory
	return nil
}

// Kinds returns the registered backend kinds.
func (r *Resolver) Kinds() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	kinds := make([]string, 0, len(r.factories))
	for k := range r.factories {
		kinds = append(kinds, k)
	}
	return kinds
}

// Resolve looks up the connection id and constructs a handle for its
// backend kind.
func (r *Resolver) Resolve(connID string) (Handle, error) {
	conn, ok := r.conns[connID]
	if !ok {
		return nil, fmt.Errorf("unknown connection %q", connID)
	}

	r.mu.RLock()
	factory, ok := r.factories[conn.Kind]
	r.mu.RUnlock()
	if !ok {
		return nil, &UnsupportedBackendError{Kind: conn.Kind}
	}

	h, err := factory(conn)
	if err != nil {
		return nil, fmt.Errorf("connection %q: %w", connID, err)
	}
	r.logger.Debug("connection resolved", "connection", connID, "kind", conn.Kind)
	return h, nil
}
