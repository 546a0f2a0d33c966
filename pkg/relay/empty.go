package relay

import (
	"reflect"
	"sync"
)

// NoContent is the empty-value sentinel shipped by default. Use it as the
// decode target for endpoints that respond with 204 or an empty body.
type NoContent struct{}

var emptyRegistry = struct {
	mu        sync.RWMutex
	factories map[reflect.Type]func() any
}{
	factories: make(map[reflect.Type]func() any),
}

//nolint:gochecknoinits // default sentinel registration
func init() {
	RegisterEmptyValue(func() NoContent { return NoContent{} })
}

// RegisterEmptyValue registers a constructor for T's empty value. The
// pipeline consults the registry whenever a success response carries no body;
// callers can register constructors for their own response types.
func RegisterEmptyValue[T any](factory func() T) {
	target := reflect.TypeOf((*T)(nil)).Elem()

	emptyRegistry.mu.Lock()
	defer emptyRegistry.mu.Unlock()

	emptyRegistry.factories[target] = func() any { return factory() }
}

// emptyValueFor returns the registered empty value for target, if any.
func emptyValueFor(target reflect.Type) (any, bool) {
	emptyRegistry.mu.RLock()
	defer emptyRegistry.mu.RUnlock()

	factory, ok := emptyRegistry.factories[target]
	if !ok {
		return nil, false
	}

	return factory(), true
}
