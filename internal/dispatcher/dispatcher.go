// Package dispatcher parses inbound command messages, routes them to a
// registered polling handler by name, and wraps results and failures in a
// uniform status-coded envelope.
package dispatcher

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/goccy/go-json"

	"newsfetcher/internal/poll"
)

// Envelope status codes.
const (
	StatusSuccess       = 200
	StatusRequestFailed = 400
	StatusNotFound      = 404
	StatusTimeout       = 408
	StatusRateLimited   = 429
	StatusCanceled      = 499
	StatusNotAllowed    = 500
	StatusInternalError = 503
)

// TargetTask is the only accepted routing target.
const TargetTask = "task"

// FunctionAggregatedPolling is the only accepted task function.
const FunctionAggregatedPolling = "AggregatedPolling"

// TaskRequest is one decoded inbound command. It lives for the duration of
// a single dispatch.
type TaskRequest struct {
	Target string `json:"target"`
	Args   Args   `json:"args"`
}

// Args wraps the task block of a request.
type Args struct {
	ForTask *TaskArgs `json:"for_task"`
}

// TaskArgs names the function to run, the handler to look up, and the
// opaque parameters to hand it.
type TaskArgs struct {
	Function string          `json:"function"`
	LookFor  LookFor         `json:"look_for"`
	Params   json.RawMessage `json:"params"`
}

// LookFor carries the registered handler name.
type LookFor struct {
	Where string `json:"where_"`
}

// Response is the uniform envelope sent back for every request. Exactly one
// of Message and Reason is populated, depending on the status class.
type Response struct {
	Status  int             `json:"status"`
	Message json.RawMessage `json:"message"`
	Reason  *string         `json:"reason"`
}

// Encode serializes the envelope for the wire.
func (r Response) Encode() []byte {
	out, err := json.Marshal(r)
	if err != nil {
		// The envelope is built from values that always marshal; reaching
		// this means a handler produced invalid raw JSON.
		reason := "failed to encode response"
		fallback, _ := json.Marshal(Response{Status: StatusInternalError, Reason: &reason})
		return fallback
	}
	return out
}

func success(message json.RawMessage) Response {
	return Response{Status: StatusSuccess, Message: message}
}

func failure(status int, reason string) Response {
	return Response{Status: status, Reason: &reason}
}

// Handler is one named asynchronous polling operation. Each provider client
// implements it; the dispatcher invokes it with the shared process state and
// the request's opaque parameters.
type Handler interface {
	Name() string
	Poll(ctx context.Context, st *poll.State, params json.RawMessage) (json.RawMessage, error)
}

// Dispatcher routes parsed requests to handlers held in a Registry.
type Dispatcher struct {
	registry *Registry
	state    *poll.State
}

// New creates a dispatcher over the given registry and shared state.
func New(registry *Registry, state *poll.State) *Dispatcher {
	return &Dispatcher{registry: registry, state: state}
}

// Dispatch runs one inbound message through parse, route, lookup, and
// execute, and always produces a terminal envelope. Parse, route, and lookup
// failures short-circuit to a failure envelope and are never retried. A
// handler's own failure is embedded as a description inside a success
// envelope's message: a provider being down is not a dispatch failure.
func (d *Dispatcher) Dispatch(ctx context.Context, raw []byte) Response {
	var req TaskRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		slog.Error("failed to parse request", "error", err)
		return failure(StatusRequestFailed, fmt.Sprintf("failed to parse request: %v", err))
	}

	if req.Target != TargetTask || req.Args.ForTask == nil || req.Args.ForTask.Function != FunctionAggregatedPolling {
		return failure(StatusNotAllowed, "invalid request")
	}

	task := req.Args.ForTask
	if len(task.Params) == 0 {
		return failure(StatusRequestFailed, "invalid task arguments: missing params")
	}

	handler, ok := d.registry.Lookup(task.LookFor.Where)
	if !ok {
		slog.Error("no handler registered", "where", task.LookFor.Where)
		return failure(StatusRequestFailed, fmt.Sprintf("no handler registered for %q", task.LookFor.Where))
	}

	slog.Info("executing task", "handler", handler.Name())
	result, err := handler.Poll(ctx, d.state, task.Params)
	if err != nil {
		// Embedded, not escalated: the envelope reports the dispatch outcome,
		// the message carries the provider outcome.
		slog.Warn("handler failed", "handler", handler.Name(), "error", err)
		desc, _ := json.Marshal(fmt.Sprintf("%s failed: %v", handler.Name(), err))
		return success(desc)
	}
	return success(result)
}
