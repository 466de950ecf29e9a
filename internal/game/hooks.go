package game

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Hook points the core engine triggers. Variants may also register private
// points of their own; the pipeline does not care about the name.
const (
	HookGameStart      = "game:start"
	HookRolesAssign    = "roles:assign"
	HookMissionResolve = "mission:resolve"
	HookStateSync      = "state:sync"
	HookGameReset      = "game:reset"
)

// HookContext is the value threaded through every callback registered at a
// point. Each callback receives the context returned by the previous one and
// returns a (possibly replaced) context. Only the fields relevant to the
// triggering point are populated; Room and Point are always set.
type HookContext struct {
	Room  *Room
	Point string

	// mission:resolve: the outcome just recorded and the phase the room will
	// adopt next. Callbacks may overwrite NextPhase to inject a sub-phase.
	NextPhase      Phase
	MissionSuccess bool
	SabotageCount  int

	// state:sync: the viewer and the projection under construction. Callbacks
	// may add, remove, or redact view fields; the room must not be mutated
	// from this point (it is held under a read lock).
	ViewerID uuid.UUID
	View     *StateView

	// Data carries variant-specific values between callbacks of one trigger.
	Data map[string]interface{}

	stopped bool
}

// StopPropagation makes the pipeline return immediately after the current
// callback, skipping any later registrations.
func (hc *HookContext) StopPropagation() { hc.stopped = true }

// HookFunc is one extension-point callback.
type HookFunc func(ctx context.Context, hc *HookContext) (*HookContext, error)

// Hooks is an ordered-callback dispatcher keyed by point name. Each room owns
// its own instance, so variant registrations never leak across sessions.
// Duplicate registration is allowed and runs the callback twice; installers
// must guard against double-install themselves.
type Hooks struct {
	mu     sync.RWMutex
	table  map[string][]HookFunc
	logger *logrus.Logger
}

// NewHooks builds an empty pipeline. A nil logger falls back to the logrus
// standard logger.
func NewHooks(logger *logrus.Logger) *Hooks {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Hooks{
		table:  make(map[string][]HookFunc),
		logger: logger,
	}
}

// Register appends fn to the callbacks for point. Registration order is
// execution order; callbacks are not individually removable.
func (h *Hooks) Register(point string, fn HookFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.table[point] = append(h.table[point], fn)
}

// Trigger runs the callbacks registered for point in order, threading hc
// through them, and returns the final context. A callback error is logged and
// the pipeline continues with the pre-error context, so one misbehaving
// variant cannot block the others or corrupt the session. StopPropagation
// short-circuits the remainder. With no registrations the input context is
// returned untouched.
func (h *Hooks) Trigger(ctx context.Context, point string, hc *HookContext) *HookContext {
	h.mu.RLock()
	fns := h.table[point]
	h.mu.RUnlock()
	if len(fns) == 0 {
		return hc
	}

	hc.Point = point
	if hc.Data == nil {
		hc.Data = make(map[string]interface{})
	}
	for i, fn := range fns {
		next, err := fn(ctx, hc)
		if err != nil {
			h.logger.WithFields(logrus.Fields{
				"point":    point,
				"callback": i,
				"error":    err,
			}).Warn("hook callback failed; continuing pipeline")
			continue
		}
		if next != nil {
			hc = next
		}
		if hc.stopped {
			break
		}
	}
	return hc
}

// Clear removes all callbacks for the named points, or every point when
// called with no arguments.
func (h *Hooks) Clear(points ...string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(points) == 0 {
		h.table = make(map[string][]HookFunc)
		return
	}
	for _, p := range points {
		delete(h.table, p)
	}
}

// CallbackCount reports how many callbacks are registered for point.
func (h *Hooks) CallbackCount(point string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.table[point])
}

// HasCallbacks reports whether any callback is registered for point.
func (h *Hooks) HasCallbacks(point string) bool {
	return h.CallbackCount(point) > 0
}
