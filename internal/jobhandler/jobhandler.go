// Package jobhandler replaces the original system's dynamic
// `importlib.import_module(f"{parser_module}.job")` with a compile-time
// registry: every job implementation registers itself under the same
// parser_module name a Config names in its job_parameters, and the
// registry resolves that name to a concrete Handler at dispatch time.
package jobhandler

import (
	"context"
	"fmt"
	"sync"

	"github.com/VeRJiL/crawlerd/internal/debugsink"
	"github.com/VeRJiL/crawlerd/internal/orderfeed"
	"github.com/VeRJiL/crawlerd/internal/vaultmodel"
)

// Handler runs one Config's job against a ProcessOrder's decoded input,
// producing the data and status that will become a ServiceFeedback.
type Handler interface {
	Run(ctx context.Context, input map[string]interface{}) (data map[string]interface{}, status orderfeed.Status, err error)
}

// Factory builds a Handler bound to one Config/Metadata/debug sink triple.
// Registered handlers are stateless constructors, not shared instances,
// since config/metadata differ per ProcessOrder.
type Factory func(config vaultmodel.Config, metadata orderfeed.Metadata, dbg debugsink.Sink) Handler

// UnknownParserModuleError is returned when a Config names a
// parser_module with no registered Factory.
type UnknownParserModuleError struct {
	ParserModule string
}

func (e *UnknownParserModuleError) Error() string {
	return fmt.Sprintf("jobhandler: no handler registered for parser_module %q", e.ParserModule)
}

// Registry maps parser_module names to Factories.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry builds an empty Registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Default is a process-wide registry. No package in this module registers
// into it; cmd/crawlerd builds its own Registry and registers each handler
// explicitly at startup.
var Default = NewRegistry()

// Register binds parserModule to factory. Registering the same name twice
// overwrites the previous binding — this only happens at package init
// time, never at runtime, so last-registration-wins is fine.
func (r *Registry) Register(parserModule string, factory Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[parserModule] = factory
}

// Has reports whether parserModule has a registered Factory. cmd/crawlerd
// calls this for every loaded Config at startup so an unknown
// parser_module fails fast instead of surfacing only when a message for
// that Config finally arrives.
func (r *Registry) Has(parserModule string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.factories[parserModule]
	return ok
}

// Build resolves config's parser_module to a Handler.
func (r *Registry) Build(config vaultmodel.Config, metadata orderfeed.Metadata, dbg debugsink.Sink) (Handler, error) {
	parserModule := config.JobParameters.ParserModule

	r.mu.RLock()
	factory, ok := r.factories[parserModule]
	r.mu.RUnlock()
	if !ok {
		return nil, &UnknownParserModuleError{ParserModule: parserModule}
	}
	return factory(config, metadata, dbg), nil
}
