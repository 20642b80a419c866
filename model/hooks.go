package model

import (
	"context"
	"sync"

	"github.com/kzaag/datastar/collection"
)

// Hook intercepts a phase of an operation. Returning an error stops the
// operation.
type Hook func(ctx context.Context, op *Operation) error

// Operation is what hooks of a phase see and may modify.
type Operation struct {
	Phase string

	Write *WriteOptions
	Find  *FindOptions
	Table *TableOptions

	Statements *collection.Collection
	// Result of a find, after hooks may replace it.
	Result interface{}
}

type hookChain struct {
	mu     sync.RWMutex
	before map[string][]Hook
	after  map[string][]Hook
}

func newHookChain() *hookChain {
	return &hookChain{
		before: make(map[string][]Hook),
		after:  make(map[string][]Hook),
	}
}

func (h *hookChain) add(m map[string][]Hook, phase string, hook Hook) {
	h.mu.Lock()
	defer h.mu.Unlock()
	m[phase] = append(m[phase], hook)
}

func (h *hookChain) get(m map[string][]Hook, phase string) []Hook {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return append([]Hook(nil), m[phase]...)
}

func runHooks(ctx context.Context, hooks []Hook, op *Operation) error {
	for _, hook := range hooks {
		if err := hook(ctx, op); err != nil {
			return err
		}
	}
	return nil
}

// perform runs the before hooks, fn and the after hooks of phase in
// order, stopping at the first error.
func (h *hookChain) perform(ctx context.Context, phase string, op *Operation, fn func() error) error {
	op.Phase = phase
	if err := runHooks(ctx, h.get(h.before, phase), op); err != nil {
		return err
	}
	if err := fn(); err != nil {
		return err
	}
	return runHooks(ctx, h.get(h.after, phase), op)
}
