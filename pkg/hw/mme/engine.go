package mme

import (
	"fmt"
	"log/slog"

	"github.com/gpuemu/mme/pkg/utils"
)

// CompiledMacro is the backend-specific artifact cached per method number.
// Executing it with a fresh parameter list reproduces the register writes of
// the uploaded bytecode.
type CompiledMacro interface {
	Execute(parameters []uint32) error
}

// Backend selects the execution strategy of an engine. The choice is made
// once per engine instance, never per macro.
type Backend int

const (
	// BackendCompiled translates each macro once into pre-bound instruction
	// thunks. The default.
	BackendCompiled Backend = iota
	// BackendInterpreted walks the bytecode on every invocation. Reference
	// semantics.
	BackendInterpreted
)

func (b Backend) String() string {
	if b == BackendInterpreted {
		return "interpreted"
	}
	return "compiled"
}

// ParseBackend parses a backend name from configuration.
func ParseBackend(name string) (Backend, error) {
	switch name {
	case "compiled", "":
		return BackendCompiled, nil
	case "interpreted":
		return BackendInterpreted, nil
	default:
		return 0, fmt.Errorf("unknown macro backend %q (want compiled or interpreted)", name)
	}
}

// Engine is the macro engine façade: it accumulates uploaded code words per
// method number and lazily compiles them, through the configured backend, on
// the first invocation of each method.
//
// An Engine instance is single threaded by contract. It is driven
// synchronously from one command stream; embeddings with several streams use
// one engine per stream.
type Engine struct {
	regs    Registers
	backend Backend
	log     *slog.Logger

	uploaded map[uint32][]uint32
	cache    map[uint32]CompiledMacro

	compileHook func(method uint32)
}

// Option configures an Engine.
type Option func(*Engine)

// WithBackend selects the execution backend.
func WithBackend(backend Backend) Option {
	return func(e *Engine) { e.backend = backend }
}

// WithLogger sets the structured logger the engine reports compile events
// and failures to.
func WithLogger(log *slog.Logger) Option {
	return func(e *Engine) { e.log = log }
}

// WithCompileHook registers a callback invoked after every successful
// compilation, with the compiled method number.
func WithCompileHook(hook func(method uint32)) Option {
	return func(e *Engine) { e.compileHook = hook }
}

// NewEngine creates a macro engine writing to the given engine register
// file.
func NewEngine(regs Registers, opts ...Option) *Engine {
	e := &Engine{
		regs:     regs,
		backend:  BackendCompiled,
		log:      slog.Default(),
		uploaded: make(map[uint32][]uint32),
		cache:    make(map[uint32]CompiledMacro),
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// Backend returns the engine's execution backend.
func (e *Engine) Backend() Backend {
	return e.backend
}

// AddCode appends one uploaded code word to the method's upload buffer.
// Uploading to an already compiled method does not invalidate its cache
// entry: the hardware exposes no invalidation, so the stale compiled macro
// keeps serving invocations.
func (e *Engine) AddCode(method uint32, word uint32) {
	e.uploaded[method] = append(e.uploaded[method], word)
}

// UploadedCode returns a copy of the code words uploaded for a method.
func (e *Engine) UploadedCode(method uint32) []uint32 {
	code, ok := e.uploaded[method]
	if !ok {
		return nil
	}
	out := make([]uint32, len(code))
	copy(out, code)
	return out
}

// Methods returns the method numbers with uploaded code, in no particular
// order.
func (e *Engine) Methods() []uint32 {
	return utils.Keys(e.uploaded)
}

// Execute invokes a macro by method number. On the first invocation of a
// method the accumulated upload buffer is compiled and cached; later
// invocations reuse the cached macro. The parameter list must be non-empty.
func (e *Engine) Execute(method uint32, parameters []uint32) error {
	macro, ok := e.cache[method]
	if !ok {
		code, ok := e.uploaded[method]
		if !ok {
			e.log.Error("macro was not uploaded", "method", fmt.Sprintf("0x%X", method))
			return utils.MakeError(ErrMacro, "macro 0x%X was not uploaded", method)
		}

		compiled, err := e.compile(code)
		if err != nil {
			// A failed compilation must never populate the cache.
			e.log.Error("macro compilation failed",
				"method", fmt.Sprintf("0x%X", method), "error", err)
			return utils.MakeError(err, "compiling macro 0x%X", method)
		}

		e.log.Debug("macro compiled",
			"method", fmt.Sprintf("0x%X", method),
			"words", len(code), "backend", e.backend.String())

		e.cache[method] = compiled
		macro = compiled

		if e.compileHook != nil {
			e.compileHook(method)
		}
	}

	if err := macro.Execute(parameters); err != nil {
		e.log.Error("macro execution failed",
			"method", fmt.Sprintf("0x%X", method), "error", err)
		return utils.MakeError(err, "executing macro 0x%X", method)
	}
	return nil
}

func (e *Engine) compile(code []uint32) (CompiledMacro, error) {
	if e.backend == BackendInterpreted {
		return newInterpretedMacro(code, e.regs)
	}
	return compileMacro(code, e.regs)
}
