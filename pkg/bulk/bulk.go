// Package bulk executes bulk actions over the current row selection.
//
// An invoked action resolves through three tiers, first match wins:
//
//  1. An inline handler registered programmatically by the embedding
//     code — full control.
//  2. A declarative configuration discovered from the rendered
//     surface's attributes (server-declared id, endpoint, confirmation
//     text, required payload fields) — server-driven menus with no
//     client code changes.
//  3. The legacy named-behavior fallback kept for older callers.
//
// The precedence is a deliberate migration path from tier 3 toward
// tiers 1 and 2, not a long-term design goal.
//
// Per-row outcomes travel inside the action's own result payload; a row
// that fails does not make the HTTP exchange a failure.
package bulk

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/tidwall/gjson"

	"github.com/consoleworks/gridcore/pkg/behavior"
	"github.com/consoleworks/gridcore/pkg/fetch"
)

// Action is a declarative bulk action configuration.
type Action struct {
	ID             string         `json:"id" yaml:"id"`
	Endpoint       string         `json:"endpoint" yaml:"endpoint"`
	Confirm        string         `json:"confirm,omitempty" yaml:"confirm,omitempty"`
	RequiredFields []string       `json:"required_fields,omitempty" yaml:"required_fields,omitempty"`
	Payload        map[string]any `json:"payload,omitempty" yaml:"payload,omitempty"`
}

// Handler is an inline-registered bulk action implementation.
type Handler func(ctx context.Context, ids []string, payload map[string]any) (behavior.BulkResult, error)

// AttributeSource discovers declarative action configurations from the
// rendered surface.
type AttributeSource interface {
	Action(id string) (Action, bool)
}

// Confirmer asks the user to confirm a destructive action. Returning
// false aborts without side effects.
type Confirmer func(message string) bool

// Sentinel outcomes that mean the action never ran. The engine only
// clears selection and re-fetches after an attempted action.
var (
	ErrEmptySelection = errors.New("bulk action requires a selection")
	ErrUnknownAction  = errors.New("bulk action not configured")
	ErrDeclined       = errors.New("bulk action not confirmed")
	ErrMissingField   = errors.New("bulk action payload incomplete")
)

// Attempted reports whether the action was actually dispatched, i.e.
// the optimistic selection clear and re-fetch should happen even if err
// is non-nil.
func Attempted(err error) bool {
	switch {
	case errors.Is(err, ErrEmptySelection),
		errors.Is(err, ErrUnknownAction),
		errors.Is(err, ErrDeclined),
		errors.Is(err, ErrMissingField):
		return false
	}
	return true
}

// Executor resolves and runs bulk actions.
type Executor struct {
	inline  map[string]Handler
	attrs   AttributeSource
	legacy  behavior.BulkStrategy
	client  *fetch.Client
	confirm Confirmer
	logger  *slog.Logger
}

// Option configures an Executor.
type Option func(*Executor)

// WithAttributeSource installs the declarative configuration source.
func WithAttributeSource(s AttributeSource) Option {
	return func(e *Executor) { e.attrs = s }
}

// WithLegacy installs the named-behavior fallback.
func WithLegacy(s behavior.BulkStrategy) Option {
	return func(e *Executor) { e.legacy = s }
}

// WithConfirmer installs the confirmation prompt. Without one, actions
// that declare a confirmation message are declined.
func WithConfirmer(c Confirmer) Option {
	return func(e *Executor) { e.confirm = c }
}

// NewExecutor builds an executor. client is used for declarative
// actions and may be nil when only inline handlers are registered.
func NewExecutor(client *fetch.Client, opts ...Option) *Executor {
	e := &Executor{
		inline: make(map[string]Handler),
		client: client,
		logger: slog.Default().With("component", "bulk"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// RegisterInline installs an inline handler for an action id,
// shadowing any declarative or legacy configuration of the same id.
func (e *Executor) RegisterInline(id string, h Handler) {
	e.inline[id] = h
}

// Execute resolves actionID and runs it against ids. payload carries
// caller-supplied fields merged over the declaration's defaults.
func (e *Executor) Execute(ctx context.Context, actionID string, ids []string, payload map[string]any) (behavior.BulkResult, error) {
	if len(ids) == 0 {
		return behavior.BulkResult{}, ErrEmptySelection
	}

	if h, ok := e.inline[actionID]; ok {
		return h(ctx, ids, payload)
	}
	if e.attrs != nil {
		if action, ok := e.attrs.Action(actionID); ok {
			return e.executeDeclared(ctx, action, ids, payload)
		}
	}
	if e.legacy != nil {
		return e.legacy.Execute(ctx, actionID, ids)
	}
	return behavior.BulkResult{}, fmt.Errorf("%q: %w", actionID, ErrUnknownAction)
}

func (e *Executor) executeDeclared(ctx context.Context, action Action, ids []string, payload map[string]any) (behavior.BulkResult, error) {
	merged := make(map[string]any, len(action.Payload)+len(payload))
	for k, v := range action.Payload {
		merged[k] = v
	}
	for k, v := range payload {
		merged[k] = v
	}
	for _, field := range action.RequiredFields {
		if _, ok := merged[field]; !ok {
			return behavior.BulkResult{}, fmt.Errorf("field %q: %w", field, ErrMissingField)
		}
	}

	if action.Confirm != "" {
		if e.confirm == nil || !e.confirm(action.Confirm) {
			return behavior.BulkResult{}, ErrDeclined
		}
	}

	body := make(map[string]any, len(merged)+1)
	for k, v := range merged {
		body[k] = v
	}
	body["ids"] = ids
	raw, err := json.Marshal(body)
	if err != nil {
		return behavior.BulkResult{}, fmt.Errorf("encode bulk payload: %w", err)
	}

	resp, err := e.client.PostJSON(ctx, action.Endpoint, bytes.NewReader(raw))
	if err != nil {
		return behavior.BulkResult{}, err
	}
	return parseResult(resp, ids), nil
}

// parseResult extracts per-row outcomes. Recognized shapes, in order:
// a "results" or "items" array of {id, status, error}; summary
// "succeeded"/"failed" counts; otherwise a success for every id.
func parseResult(body []byte, ids []string) behavior.BulkResult {
	root := gjson.ParseBytes(body)

	items := root.Get("results")
	if !items.IsArray() {
		items = root.Get("items")
	}
	if items.IsArray() {
		var res behavior.BulkResult
		items.ForEach(func(_, item gjson.Result) bool {
			out := behavior.BulkOutcome{
				ID:    item.Get("id").String(),
				Error: item.Get("error").String(),
			}
			status := item.Get("status").String()
			out.OK = out.Error == "" && (status == "" || status == "ok" || status == "success")
			if out.OK {
				res.Succeeded++
			} else {
				res.Failed++
			}
			res.Items = append(res.Items, out)
			return true
		})
		return res
	}

	if root.Get("succeeded").Exists() || root.Get("failed").Exists() {
		return behavior.BulkResult{
			Succeeded: int(root.Get("succeeded").Int()),
			Failed:    int(root.Get("failed").Int()),
		}
	}

	res := behavior.BulkResult{Succeeded: len(ids)}
	for _, id := range ids {
		res.Items = append(res.Items, behavior.BulkOutcome{ID: id, OK: true})
	}
	return res
}
