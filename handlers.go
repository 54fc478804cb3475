package portbus

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/xeipuuv/gojsonschema"
)

// Reserved handler table entries, meaningful only when registered for the
// background context. Each is invoked with (categoryName, tabID) and its
// return value is ignored.
const (
	OnConnect    = "onConnect"
	OnDisconnect = "onDisconnect"
)

// HandlerFunc handles one dispatched command. args are the caller's
// positional arguments as decoded from the wire; respond must be invoked
// exactly once with the handler's result. It may be called synchronously or
// after arbitrary delay; a second invocation is rejected at runtime.
type HandlerFunc func(args []any, respond func(result any))

// HandlerTable maps command names to handlers, one table per context
// instance, supplied at initialization and never mutated afterwards.
type HandlerTable struct {
	handlers map[string]HandlerFunc
	schemas  map[string]*gojsonschema.Schema
}

// NewHandlerTable creates an empty handler table.
func NewHandlerTable() *HandlerTable {
	return &HandlerTable{
		handlers: make(map[string]HandlerFunc),
		schemas:  make(map[string]*gojsonschema.Schema),
	}
}

// Register adds a handler for a command name. Returns the table for chaining.
func (t *HandlerTable) Register(name string, fn HandlerFunc) *HandlerTable {
	t.handlers[name] = fn
	return t
}

// RegisterWithSchema adds a handler whose positional arguments are validated
// against a JSON Schema before dispatch. The schema describes the argument
// array (e.g. {"type":"array","items":...}). Requests failing validation are
// answered with an invalid-result marker, never an error.
func (t *HandlerTable) RegisterWithSchema(name string, argsSchema []byte, fn HandlerFunc) error {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(argsSchema))
	if err != nil {
		return fmt.Errorf("compile args schema for %q: %w", name, err)
	}
	t.handlers[name] = fn
	t.schemas[name] = schema
	return nil
}

func (t *HandlerTable) lookup(name string) (HandlerFunc, bool) {
	if t == nil {
		return nil, false
	}
	fn, ok := t.handlers[name]
	return fn, ok
}

// onceRespond wraps a completion callback so that only the first resolution
// is delivered. A second resolution is dropped and logged.
func onceRespond(logger *slog.Logger, cmdName string, fn func(result any)) func(result any) {
	var mu sync.Mutex
	done := false
	return func(result any) {
		mu.Lock()
		if done {
			mu.Unlock()
			logger.Error("handler resolved twice, dropping second result", "command", cmdName)
			return
		}
		done = true
		mu.Unlock()
		fn(result)
	}
}
