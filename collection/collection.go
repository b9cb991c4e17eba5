// Package collection defines the boundary contract between an entity
// definition and the HTTP layer that exposes it as a REST resource. The
// router and hook-invocation chain themselves are external collaborators;
// this package only defines the shapes they need to agree on.
package collection

import (
	"context"
	"fmt"

	"github.com/asaidimu/supersave/entity"
)

// HookType names one of the six points in a request's lifecycle a
// collection may intercept.
type HookType string

const (
	BeforeCreate HookType = "beforeCreate"
	AfterCreate  HookType = "afterCreate"
	BeforeUpdate HookType = "beforeUpdate"
	AfterUpdate  HookType = "afterUpdate"
	BeforeDelete HookType = "beforeDelete"
	AfterDelete  HookType = "afterDelete"
)

// Valid reports whether t is one of the six recognised hook points.
func (t HookType) Valid() bool {
	switch t {
	case BeforeCreate, AfterCreate, BeforeUpdate, AfterUpdate, BeforeDelete, AfterDelete:
		return true
	default:
		return false
	}
}

// HookFunc runs at a HookType point. It receives the entity as it stands at
// that point in the request and returns the entity to carry forward (a
// before-hook may transform it) or a HookError to abort the request with a
// specific status code.
type HookFunc func(ctx context.Context, e entity.Entity) (entity.Entity, error)

// Hook binds a HookFunc to the point in the lifecycle it runs at.
type Hook struct {
	Type HookType
	Fn   HookFunc
}

// HookError lets a hook abort a request with a caller-chosen HTTP status.
// An unset StatusCode defaults to 500 when read through StatusOrDefault, so
// hooks that only care about signalling failure don't have to pick one.
type HookError struct {
	Message    string
	StatusCode int
}

func (e *HookError) Error() string { return e.Message }

// StatusOrDefault returns StatusCode, or 500 if it was left unset.
func (e *HookError) StatusOrDefault() int {
	if e.StatusCode == 0 {
		return 500
	}
	return e.StatusCode
}

// NewHookError builds a HookError with a formatted message.
func NewHookError(statusCode int, format string, args ...any) *HookError {
	return &HookError{Message: fmt.Sprintf(format, args...), StatusCode: statusCode}
}

// Collection is an entity definition plus the metadata and hooks an HTTP
// layer needs to expose it as a REST resource.
type Collection struct {
	entity.Definition

	Description          string
	AdditionalProperties bool
	Hooks                []Hook
}

// HooksFor returns every hook registered at t, in registration order.
func (c Collection) HooksFor(t HookType) []HookFunc {
	var out []HookFunc
	for _, h := range c.Hooks {
		if h.Type == t {
			out = append(out, h.Fn)
		}
	}
	return out
}

// RunHooks threads e through every hook registered at t in order, short
// circuiting on the first error (typically a *HookError carrying the status
// a router should respond with).
func RunHooks(ctx context.Context, c Collection, t HookType, e entity.Entity) (entity.Entity, error) {
	for _, fn := range c.HooksFor(t) {
		next, err := fn(ctx, e)
		if err != nil {
			return nil, err
		}
		e = next
	}
	return e, nil
}
