package engine

import (
	"context"
	"errors"
	"sync"

	"github.com/agentic-research/sitegraph/api"
	"github.com/agentic-research/sitegraph/internal/catalog"
	"github.com/agentic-research/sitegraph/internal/graph"
	"github.com/agentic-research/sitegraph/internal/rules"
)

// ErrClosed is returned by a HotSwap that has no engine left.
var ErrClosed = errors.New("engine: closed")

// slot is one installed engine and the renders still running on it.
type slot struct {
	engine   *Engine
	inflight sync.WaitGroup
}

// HotSwap lets a long-running host replace its engine (for example after the
// settings file changed) while renders are in flight. A replaced engine is
// closed only after every render that started on it has returned.
type HotSwap struct {
	mu      sync.RWMutex
	current *slot
}

// NewHotSwap wraps an initial engine.
func NewHotSwap(initial *Engine) *HotSwap {
	return &HotSwap{current: &slot{engine: initial}}
}

// acquire pins the current engine. The caller must call release.
func (h *HotSwap) acquire() (*slot, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.current == nil || h.current.engine == nil {
		return nil, ErrClosed
	}
	h.current.inflight.Add(1)
	return h.current, nil
}

func (h *HotSwap) swap(next *Engine) *slot {
	h.mu.Lock()
	defer h.mu.Unlock()
	old := h.current
	h.current = nil
	if next != nil {
		h.current = &slot{engine: next}
	}
	return old
}

// Replace installs next, then waits for renders still running on the old
// engine before closing it. If ctx ends first, Replace returns ctx.Err() and
// the old engine is closed in the background once it drains.
func (h *HotSwap) Replace(ctx context.Context, next *Engine) error {
	return retire(ctx, h.swap(next))
}

// Close drains and closes the current engine. Later renders fail with
// ErrClosed.
func (h *HotSwap) Close(ctx context.Context) error {
	return retire(ctx, h.swap(nil))
}

func retire(ctx context.Context, old *slot) error {
	if old == nil || old.engine == nil {
		return nil
	}
	drained := make(chan struct{})
	go func() {
		old.inflight.Wait()
		close(drained)
	}()
	select {
	case <-drained:
		return old.engine.Close()
	case <-ctx.Done():
		go func() {
			<-drained
			_ = old.engine.Close()
		}()
		return ctx.Err()
	}
}

// Render delegates to the current engine.
func (h *HotSwap) Render(ctx context.Context, page api.Page) (*graph.Document, error) {
	s, err := h.acquire()
	if err != nil {
		return nil, err
	}
	defer s.inflight.Done()
	return s.engine.Render(ctx, page)
}

// Types delegates to the current engine.
func (h *HotSwap) Types() []catalog.TypeInfo {
	s, err := h.acquire()
	if err != nil {
		return nil
	}
	defer s.inflight.Done()
	return s.engine.Types()
}

// RuleOptions delegates to the current engine.
func (h *HotSwap) RuleOptions() []rules.OptionGroup {
	s, err := h.acquire()
	if err != nil {
		return nil
	}
	defer s.inflight.Done()
	return s.engine.RuleOptions()
}
