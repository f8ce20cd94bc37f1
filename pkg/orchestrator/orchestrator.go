// Package orchestrator drives the bounded tool loop: route a model, build the
// run's tool registry, and alternate provider calls with gated tool execution
// until the model answers without tools, the step budget runs out, or a
// pending approval suspends the run.
package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/harun/lea/pkg/agent"
	"github.com/harun/lea/pkg/approval"
	"github.com/harun/lea/pkg/catalog"
	"github.com/harun/lea/pkg/configstore"
	"github.com/harun/lea/pkg/registry"
	"github.com/harun/lea/pkg/routing"
)

// ErrUnauthorized rejects a run with no authenticated user before any
// registry or provider work happens
var ErrUnauthorized = errors.New("unauthorized: user id is required")

// RunNotFoundError reports a resume or discard against an unknown run
type RunNotFoundError struct {
	RunID string
}

func (e *RunNotFoundError) Error() string {
	return fmt.Sprintf("run %s not found", e.RunID)
}

// DefaultStepBudget bounds the tool loop when the config does not
const DefaultStepBudget = 20

const defaultSystemPrompt = "You are a helpful assistant that completes tasks for the user. " +
	"Use the available tools when they help; answer directly when they do not."

// PolicySource supplies the policy snapshot a registry build reads.
// *configstore.Store satisfies it; nil means no overrides.
type PolicySource interface {
	Snapshot(ctx context.Context) (*configstore.PolicySnapshot, error)
}

// Options wires an orchestrator together
type Options struct {
	Factory   *agent.Factory
	Catalog   *catalog.Catalog
	Approvals *approval.Store
	Runs      *RunStore
	Policies  PolicySource

	WorkspacePath string
	StepBudget    int
	SystemPrompt  string
	MaxTokens     int
	Temperature   float64
}

// Orchestrator executes runs. Each Run call is independent; concurrent runs
// share only the policy snapshot machinery and the durable stores.
type Orchestrator struct {
	opts    Options
	builder *registry.Builder
	gate    *approval.Gate
}

// New creates an orchestrator, applying defaults for unset options
func New(opts Options) (*Orchestrator, error) {
	if opts.Factory == nil {
		return nil, errors.New("provider factory is required")
	}
	if opts.Catalog == nil {
		return nil, errors.New("tool catalog is required")
	}
	if opts.Approvals == nil {
		return nil, errors.New("approval store is required")
	}
	if opts.Runs == nil {
		return nil, errors.New("run store is required")
	}

	if opts.StepBudget <= 0 {
		opts.StepBudget = DefaultStepBudget
	}
	if opts.SystemPrompt == "" {
		opts.SystemPrompt = defaultSystemPrompt
	}
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = 4096
	}
	if opts.Temperature <= 0 {
		opts.Temperature = 0.7
	}

	return &Orchestrator{
		opts:    opts,
		builder: registry.NewBuilder(opts.Catalog),
		gate:    approval.NewGate(opts.Approvals, opts.Catalog),
	}, nil
}

// RunRequest describes one orchestration run
type RunRequest struct {
	RunID          string          // generated when empty
	UserID         string          // required
	Mode           catalog.Mode    // default coding
	ModelID        string          // explicit choice or a defer-to-router sentinel
	Messages       []agent.Message // conversation so far, newest last
	HasVisionInput bool
}

// RunStatus is the terminal disposition of a Run or Resume call
type RunStatus string

const (
	StatusCompleted RunStatus = "completed"
	StatusSuspended RunStatus = "suspended"
	StatusMaxSteps  RunStatus = "max_steps"
)

// RunResult is the outcome of a Run or Resume call
type RunResult struct {
	RunID            string              `json:"run_id"`
	Status           RunStatus           `json:"status"`
	Response         string              `json:"response,omitempty"`
	Model            routing.RoutedModel `json:"model"`
	Steps            int                 `json:"steps"`
	PendingApprovals []*approval.Request `json:"pending_approvals,omitempty"`
	Usage            agent.TokenUsage    `json:"usage"`
}

// Run executes a request through the tool loop. A pending approval suspends
// the run durably; the returned result carries the requests to surface.
func (o *Orchestrator) Run(ctx context.Context, req RunRequest) (*RunResult, error) {
	if strings.TrimSpace(req.UserID) == "" {
		return nil, ErrUnauthorized
	}

	mode, err := catalog.ParseMode(string(req.Mode))
	if err != nil {
		return nil, err
	}

	runID := req.RunID
	if runID == "" {
		runID = uuid.NewString()
	}

	routed := routing.Route(req.ModelID, toRoutingMessages(req.Messages), req.HasVisionInput, mode)

	log.Info().
		Str("run_id", runID).
		Str("mode", string(mode)).
		Str("model", routed.ModelID).
		Str("reason", string(routed.Reason)).
		Msg("Run started")

	state := &RunState{
		RunID:     runID,
		UserID:    req.UserID,
		Mode:      mode,
		ModelID:   routed.ModelID,
		Messages:  append([]agent.Message{}, req.Messages...),
		CreatedAt: time.Now(),
	}

	result, err := o.drive(ctx, state)
	if err != nil {
		return nil, err
	}
	result.Model = routed
	return result, nil
}

// Resume applies an approval decision to a suspended run and continues the
// loop to completion or the next suspension
func (o *Orchestrator) Resume(ctx context.Context, runID, approvalID string, approve bool) (*RunResult, error) {
	state, err := o.opts.Runs.Get(runID)
	if err != nil {
		return nil, err
	}
	if state == nil {
		return nil, &RunNotFoundError{RunID: runID}
	}

	pending, ok := state.pendingFor(approvalID)
	if !ok {
		return nil, fmt.Errorf("approval %s is not pending for run %s", approvalID, runID)
	}

	outcome, err := o.gate.Decide(ctx, approvalID, approve)
	if err != nil {
		return nil, err
	}

	o.appendToolResult(state, pending.ToolCallID, *outcome.Result)
	state.removePending(approvalID)

	log.Info().
		Str("run_id", runID).
		Str("approval_id", approvalID).
		Bool("approved", approve).
		Int("still_pending", len(state.Pending)).
		Msg("Run resumed with decision")

	// The step is still suspended until every approval it raised is decided
	if len(state.Pending) > 0 {
		if err := o.opts.Runs.Save(state); err != nil {
			return nil, err
		}
		requests, err := o.pendingRequests(ctx, state)
		if err != nil {
			return nil, err
		}
		return &RunResult{
			RunID:            runID,
			Status:           StatusSuspended,
			Model:            routing.RoutedModel{ModelID: state.ModelID},
			Steps:            state.Step,
			PendingApprovals: requests,
		}, nil
	}

	result, err := o.drive(ctx, state)
	if err != nil {
		return nil, err
	}
	result.Model = routing.RoutedModel{ModelID: state.ModelID}
	return result, nil
}

// Discard abandons a run: every pending approval is denied without execution
// and the persisted state is deleted. Returns the number of denials.
func (o *Orchestrator) Discard(ctx context.Context, runID string) (int, error) {
	denied, err := o.gate.DenyRun(ctx, runID)
	if err != nil {
		return denied, err
	}
	if err := o.opts.Runs.Delete(runID); err != nil {
		return denied, err
	}

	log.Info().Str("run_id", runID).Int("denied", denied).Msg("Run discarded")

	return denied, nil
}

// drive advances the tool loop from the state's current position
func (o *Orchestrator) drive(ctx context.Context, state *RunState) (*RunResult, error) {
	provider, upstream, err := o.opts.Factory.ProviderFor(state.ModelID)
	if err != nil {
		return nil, err
	}

	snap := o.snapshot(ctx)
	reg := o.builder.Build(state.Mode, "", snap)
	tools := toolSpecs(reg)

	var usage agent.TokenUsage
	lastContent := ""

	for state.Step < o.opts.StepBudget {
		state.Step++

		resp, err := o.callProvider(ctx, provider, agent.Request{
			Model:        upstream,
			Messages:     state.Messages,
			Tools:        tools,
			Temperature:  o.opts.Temperature,
			MaxTokens:    o.opts.MaxTokens,
			SystemPrompt: o.opts.SystemPrompt,
		})
		if err != nil {
			return nil, fmt.Errorf("provider call failed at step %d: %w", state.Step, err)
		}
		if resp.Usage != nil {
			usage.InputTokens += resp.Usage.InputTokens
			usage.OutputTokens += resp.Usage.OutputTokens
		}
		lastContent = resp.Content

		state.Messages = append(state.Messages, agent.Message{
			Role:      "assistant",
			Content:   resp.Content,
			ToolCalls: resp.ToolCalls,
		})

		if len(resp.ToolCalls) == 0 {
			o.forgetRun(state.RunID)
			return &RunResult{
				RunID:    state.RunID,
				Status:   StatusCompleted,
				Response: resp.Content,
				Steps:    state.Step,
				Usage:    usage,
			}, nil
		}

		var raised []*approval.Request
		for _, call := range resp.ToolCalls {
			entry, found := reg.Get(call.Name)
			if !found {
				o.appendToolResult(state, call.ID, catalog.Result{
					Error: fmt.Sprintf("tool %s is not available in this mode", call.Name),
				})
				continue
			}

			outcome, err := o.gate.Invoke(
				o.invocationContext(ctx, snap, call.Name, state),
				state.RunID, entry.Tool, entry.NeedsApproval, call.Parameters,
			)
			if err != nil {
				return nil, fmt.Errorf("approval gate failed for tool %s: %w", call.Name, err)
			}

			if outcome.State == approval.StatePendingApproval {
				state.Pending = append(state.Pending, PendingCall{
					ApprovalID: outcome.Request.ID,
					ToolCallID: call.ID,
					ToolID:     call.Name,
				})
				raised = append(raised, outcome.Request)
				continue
			}

			o.appendToolResult(state, call.ID, *outcome.Result)
		}

		if len(raised) > 0 {
			if err := o.opts.Runs.Save(state); err != nil {
				return nil, fmt.Errorf("failed to persist suspended run: %w", err)
			}
			log.Info().
				Str("run_id", state.RunID).
				Int("pending", len(raised)).
				Msg("Run suspended awaiting approval")
			return &RunResult{
				RunID:            state.RunID,
				Status:           StatusSuspended,
				Steps:            state.Step,
				PendingApprovals: raised,
				Usage:            usage,
			}, nil
		}
	}

	o.forgetRun(state.RunID)
	log.Warn().Str("run_id", state.RunID).Int("steps", state.Step).Msg("Step budget exhausted")
	return &RunResult{
		RunID:    state.RunID,
		Status:   StatusMaxSteps,
		Response: lastContent,
		Steps:    state.Step,
		Usage:    usage,
	}, nil
}

// callProvider retries transient provider failures with a linear backoff
func (o *Orchestrator) callProvider(ctx context.Context, provider agent.LLMProvider, req agent.Request) (*agent.Response, error) {
	const maxAttempts = 3

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		resp, err := provider.Call(ctx, req)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		if !agent.IsRetryableError(err) {
			return nil, err
		}

		log.Warn().
			Err(err).
			Int("attempt", attempt).
			Msg("Retryable provider error")

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(time.Duration(attempt) * 500 * time.Millisecond):
		}
	}
	return nil, lastErr
}

// snapshot reads the policy snapshot, degrading to defaults when the store
// is unreadable
func (o *Orchestrator) snapshot(ctx context.Context) *configstore.PolicySnapshot {
	if o.opts.Policies == nil {
		return nil
	}
	snap, err := o.opts.Policies.Snapshot(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("Policy store unreadable, using catalog defaults")
		return nil
	}
	return snap
}

// invocationContext attaches per-tool settings and the workspace to the
// context a tool handler sees
func (o *Orchestrator) invocationContext(ctx context.Context, snap *configstore.PolicySnapshot, toolID string, state *RunState) context.Context {
	inv := &catalog.Invocation{
		Workdir:    o.opts.WorkspacePath,
		SessionKey: state.RunID,
	}
	if policy, ok := snap.Get(toolID); ok {
		inv.Settings = policy.Settings
	}
	return catalog.ContextWithInvocation(ctx, inv)
}

func (o *Orchestrator) appendToolResult(state *RunState, toolCallID string, res catalog.Result) {
	payload, err := json.Marshal(res)
	if err != nil {
		payload = []byte(fmt.Sprintf(`{"error":"failed to encode tool result: %v"}`, err))
	}
	state.Messages = append(state.Messages, agent.Message{
		Role:       "tool",
		Content:    string(payload),
		ToolCallID: toolCallID,
	})
}

// pendingRequests loads the approval records a suspended run waits on
func (o *Orchestrator) pendingRequests(ctx context.Context, state *RunState) ([]*approval.Request, error) {
	requests := make([]*approval.Request, 0, len(state.Pending))
	for _, p := range state.Pending {
		req, err := o.opts.Approvals.Get(ctx, p.ApprovalID)
		if err != nil {
			return nil, err
		}
		if req != nil {
			requests = append(requests, req)
		}
	}
	return requests, nil
}

// forgetRun deletes persisted state for a finished run
func (o *Orchestrator) forgetRun(runID string) {
	if err := o.opts.Runs.Delete(runID); err != nil {
		log.Warn().Err(err).Str("run_id", runID).Msg("Failed to delete run state")
	}
}

// toolSpecs renders registry entries in the provider tool format
func toolSpecs(reg *registry.Registry) []interface{} {
	specs := make([]interface{}, 0, reg.Len())
	for _, entry := range reg.Entries() {
		specs = append(specs, map[string]interface{}{
			"name":         entry.Tool.ID,
			"description":  entry.Tool.Description,
			"input_schema": entry.Tool.InputSchema(),
		})
	}
	return specs
}

// toRoutingMessages projects conversation messages into the router's shape
func toRoutingMessages(messages []agent.Message) []routing.Message {
	out := make([]routing.Message, 0, len(messages))
	for _, m := range messages {
		out = append(out, routing.Message{
			Role:  m.Role,
			Parts: []routing.Part{{Type: "text", Text: m.Content}},
		})
	}
	return out
}
