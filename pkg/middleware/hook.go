// Package middleware intercepts inbound tool calls and runs the
// activation service under a wall-clock deadline, stashing the result
// on the call's context for downstream tools to read. It never
// modifies the call's arguments and never blocks the call beyond its
// deadline.
package middleware

import (
	"context"
	"time"

	"github.com/orneryd/stm/pkg/activation"
	"github.com/orneryd/stm/pkg/index"
	"github.com/orneryd/stm/pkg/logging"
)

// queryFields maps a tool name to the argument field that carries the
// user-facing text to activate on. Tools absent from this map never
// trigger activation.
var queryFields = map[string]string{
	"save_memory":     "content",
	"search_memory":   "query",
	"search_unified":  "query",
	"touch_memory":    "",
	"recall_memory":   "query",
	"discover_memory": "query",
}

// activatedKey is the context key the activation result is stashed
// under.
type activatedKey struct{}

// DefaultDeadline is the wall-clock budget a single middleware
// invocation gets before it silently degrades.
const DefaultDeadline = 50 * time.Millisecond

// Hook wraps the activation service with tool-name dispatch and a
// deadline.
type Hook struct {
	service  *activation.Service
	graph    *index.AtomicGraph
	deadline time.Duration
	log      *logging.Logger
}

// NewHook builds a Hook bound to service and the live activation graph.
func NewHook(service *activation.Service, graph *index.AtomicGraph, deadline time.Duration, log *logging.Logger) *Hook {
	if deadline <= 0 {
		deadline = DefaultDeadline
	}
	if log == nil {
		log = logging.Nop()
	}
	return &Hook{service: service, graph: graph, deadline: deadline, log: log}
}

// ExtractQuery returns the query text for toolName's args, and whether
// that tool carries one at all.
func ExtractQuery(toolName string, args map[string]any) (string, bool) {
	field, ok := queryFields[toolName]
	if !ok || field == "" {
		return "", false
	}
	v, ok := args[field]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	if !ok || s == "" {
		return "", false
	}
	return s, true
}

// Next is the downstream tool call the hook always runs, regardless of
// whether activation succeeded, failed, or timed out.
type Next func(ctx context.Context, args map[string]any) (any, error)

// OnCallTool runs activation (if toolName carries a query) under the
// hook's deadline, stashes the result on ctx, and always invokes next
// with the original, unmodified args.
func (h *Hook) OnCallTool(ctx context.Context, toolName string, args map[string]any, next Next) (any, error) {
	query, ok := ExtractQuery(toolName, args)
	if ok {
		ctx = h.activate(ctx, query)
	}
	return next(ctx, args)
}

func (h *Hook) activate(ctx context.Context, query string) context.Context {
	deadlineCtx, cancel := context.WithTimeout(ctx, h.deadline)
	defer cancel()

	type outcome struct {
		result activation.Result
	}
	done := make(chan outcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				h.log.Warn("activation hook panic recovered", map[string]any{"panic": r})
				done <- outcome{result: activation.Result{FallbackTier: activation.TierError}}
			}
		}()
		res := h.service.Activate(activation.Context{
			Message:             query,
			MaxMemories:         10,
			ActivationThreshold: 0.3,
			EnableSpreading:     true,
		}, h.graph.Load())
		done <- outcome{result: res}
	}()

	select {
	case o := <-done:
		if o.result.FallbackTier != activation.TierFull {
			h.log.Warn("activation degraded", map[string]any{"tier": o.result.FallbackTier})
		}
		return context.WithValue(ctx, activatedKey{}, o.result)
	case <-deadlineCtx.Done():
		h.log.Warn("activation deadline exceeded, proceeding without activation", map[string]any{"deadline_ms": h.deadline.Milliseconds()})
		return ctx
	}
}

// ActivatedMemories reads back the result a prior OnCallTool stashed,
// if any.
func ActivatedMemories(ctx context.Context) (activation.Result, bool) {
	v := ctx.Value(activatedKey{})
	if v == nil {
		return activation.Result{}, false
	}
	res, ok := v.(activation.Result)
	return res, ok
}
