// Package tools is the closed set of functions the agent may invoke.
package tools

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/HexSleeves/toolloop/internal/errors"
)

// ToolNotFound is returned as the observation text for an unregistered name.
const ToolNotFound = "Tool not found"

// Func executes a tool on a single string argument.
type Func func(ctx context.Context, arg string) (string, error)

// Registry maps tool names to their handler functions. It is filled at
// startup and only read while a run is in progress.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Func
}

func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]Func)}
}

// Register adds a tool. Registering the same name twice is an error.
func (r *Registry) Register(name string, fn Func) error {
	if name == "" {
		return fmt.Errorf("tool name is empty")
	}
	if fn == nil {
		return fmt.Errorf("tool %s: nil handler", name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.handlers[name]; ok {
		return fmt.Errorf("tool %s already registered", name)
	}
	r.handlers[name] = fn
	return nil
}

// Has reports whether name is registered.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.handlers[name]
	return ok
}

// Names returns the registered tool names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.handlers))
	for name := range r.handlers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Dispatch runs the named tool. An unknown name yields ToolNotFound with a
// nil error; a failing or panicking tool yields a *errors.ToolExecutionError.
func (r *Registry) Dispatch(ctx context.Context, name, arg string) (result string, err error) {
	r.mu.RLock()
	fn, ok := r.handlers[name]
	r.mu.RUnlock()
	if !ok {
		return ToolNotFound, nil
	}

	defer func() {
		if rec := errors.RecoverPanic(recover()); rec.Recovered {
			result = ""
			err = &errors.ToolExecutionError{Tool: name, Argument: arg, Err: fmt.Errorf("%s", rec.ErrorMsg)}
		}
	}()

	out, err := fn(ctx, arg)
	if err != nil {
		var te *errors.ToolExecutionError
		if errors.As(err, &te) {
			return "", err
		}
		return "", &errors.ToolExecutionError{Tool: name, Argument: arg, Err: err}
	}
	return out, nil
}
