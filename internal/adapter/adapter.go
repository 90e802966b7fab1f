package adapter

import (
	"context"
	"fmt"
	"sort"
)

// Operation names are shared across every protocol; an adapter must
// implement all of them.
const (
	OpGetUser         = "getUser"
	OpListUsers       = "listUsers"
	OpCreateUser      = "createUser"
	OpGetUserOrders   = "getUserOrders"
	OpSearchUsers     = "searchUsers"
	OpBulkCreateUsers = "bulkCreateUsers"
)

// Operations lists every supported operation in canonical order.
var Operations = []string{
	OpGetUser,
	OpListUsers,
	OpCreateUser,
	OpGetUserOrders,
	OpSearchUsers,
	OpBulkCreateUsers,
}

// IsOperation reports whether name is a known operation.
func IsOperation(name string) bool {
	for _, op := range Operations {
		if op == name {
			return true
		}
	}
	return false
}

// ErrorKind classifies a per-call failure.
type ErrorKind string

const (
	KindUnauthorized ErrorKind = "Unauthorized"
	KindNotFound     ErrorKind = "NotFound"
	KindTimeout      ErrorKind = "Timeout"
	KindTransport    ErrorKind = "Transport"
	KindUnknown      ErrorKind = "Unknown"
)

// OperationError is the only error type an adapter returns from Execute.
// It never escapes the runner: the call site converts it into a failed
// RequestResult.
type OperationError struct {
	Kind    ErrorKind
	Message string
}

func (e *OperationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// OpError builds an OperationError.
func OpError(kind ErrorKind, format string, args ...any) *OperationError {
	return &OperationError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Params carries the default arguments for one call. The runner fills
// UserID from the shared per-iteration ID list; the rest are fixed
// defaults matching the operation shapes of the target servers.
type Params struct {
	UserID int64

	// listUsers
	Page int
	Size int

	// searchUsers
	Query string
	Limit int

	// createUser / bulkCreateUsers
	Username  string
	Email     string
	FirstName string
	LastName  string
	BulkCount int
}

// Response is the outcome of a successful call.
type Response struct {
	Body []byte // wire payload as received (JSON for REST/GraphQL, encoded message for gRPC)
	Size int    // payload size in bytes
}

// Adapter wraps one transport behind a uniform capability set. The
// harness never branches on protocol identity beyond picking which
// adapter instance to call. Implementations must be safe for concurrent
// use; connection pooling is the adapter's own business.
type Adapter interface {
	// Protocol returns the adapter's group label, e.g. "REST".
	Protocol() string

	// Execute performs one named operation. On failure it returns a nil
	// response and an *OperationError.
	Execute(ctx context.Context, operation string, p Params) (*Response, error)

	// PayloadSize reports the wire size of a response in bytes.
	PayloadSize(resp *Response) int

	// Check is the pre-flight connectivity probe. An error here aborts
	// the whole run before anything is dispatched.
	Check(ctx context.Context) error

	// Close releases the adapter's connections.
	Close() error
}

// Registry holds the closed set of constructed adapters, keyed by
// protocol name. Selection happens once here, not via scattered string
// switches.
type Registry struct {
	adapters map[string]Adapter
	order    []string
}

func NewRegistry() *Registry {
	return &Registry{adapters: make(map[string]Adapter)}
}

// Register adds an adapter under its protocol name. Registering the
// same protocol twice replaces the earlier instance.
func (r *Registry) Register(a Adapter) {
	name := a.Protocol()
	if _, dup := r.adapters[name]; !dup {
		r.order = append(r.order, name)
	}
	r.adapters[name] = a
}

// Lookup returns the adapter for a protocol name.
func (r *Registry) Lookup(protocol string) (Adapter, error) {
	a, ok := r.adapters[protocol]
	if !ok {
		known := make([]string, 0, len(r.adapters))
		for k := range r.adapters {
			known = append(known, k)
		}
		sort.Strings(known)
		return nil, fmt.Errorf("unknown protocol %q (registered: %v)", protocol, known)
	}
	return a, nil
}

// Protocols returns protocol names in registration order.
func (r *Registry) Protocols() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// All returns the registered adapters in registration order.
func (r *Registry) All() []Adapter {
	out := make([]Adapter, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.adapters[name])
	}
	return out
}

// Close closes every registered adapter, returning the first error.
func (r *Registry) Close() error {
	var first error
	for _, a := range r.adapters {
		if err := a.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
