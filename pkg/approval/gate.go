package approval

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/harun/lea/pkg/catalog"
)

// Outcome is the gate's answer for one tool invocation
type Outcome struct {
	State State
	// Result is set for every terminal state: the tool's output when it ran,
	// a structured denial when it did not
	Result *catalog.Result
	// Request is set while the invocation waits for a decision
	Request *Request
	// ApprovalID tags results that went through a decision, for audit
	ApprovalID string
}

// Gate wraps tool execution with the approval state machine. Tools whose
// effective policy needs no approval run immediately; everything else is
// recorded as pending and deferred until Decide.
type Gate struct {
	store   *Store
	catalog *catalog.Catalog
}

// NewGate creates a gate over the given approval store and tool catalog
func NewGate(store *Store, c *catalog.Catalog) *Gate {
	return &Gate{store: store, catalog: c}
}

// Invoke runs a tool through the gate. When needsApproval is false the tool
// executes immediately. Otherwise a pending request is recorded and returned;
// the caller must suspend and surface it.
func (g *Gate) Invoke(ctx context.Context, runID string, tool *catalog.Tool, needsApproval bool, input map[string]interface{}) (*Outcome, error) {
	if !needsApproval {
		res := tool.Invoke(ctx, input)
		return &Outcome{State: StateNotRequired, Result: &res}, nil
	}

	req, err := g.store.Create(ctx, runID, tool.ID, input)
	if err != nil {
		return nil, err
	}

	return &Outcome{State: StatePendingApproval, Request: req}, nil
}

// Decide applies an external approve/deny decision to a pending request.
// Approval executes the recorded invocation exactly once; denial returns a
// structured result with no side effects. Deciding a decided request fails
// with AlreadyDecidedError.
func (g *Gate) Decide(ctx context.Context, approvalID string, approve bool) (*Outcome, error) {
	target := StateDenied
	if approve {
		target = StateApproved
	}

	// The monotonic transition is the exactly-once guard: a concurrent or
	// repeated decision loses the UPDATE race and errors here.
	req, err := g.store.transition(ctx, approvalID, target)
	if err != nil {
		return nil, err
	}

	if !approve {
		log.Warn().
			Str("approval_id", approvalID).
			Str("tool", req.ToolID).
			Msg("Tool invocation denied")
		return &Outcome{
			State:      StateDenied,
			ApprovalID: approvalID,
			Result: &catalog.Result{
				Error: fmt.Sprintf("user denied approval for tool %s; the invocation was not executed", req.ToolID),
			},
		}, nil
	}

	tool, found := g.catalog.Get(req.ToolID)
	if !found {
		return nil, fmt.Errorf("approved tool %s is no longer in the catalog", req.ToolID)
	}

	log.Info().
		Str("approval_id", approvalID).
		Str("tool", req.ToolID).
		Msg("Tool invocation approved, executing")

	res := tool.Invoke(ctx, req.Input)
	if res.Output == nil {
		res.Output = map[string]interface{}{}
	}
	// Tag failed invocations too: the audit trail must show which decision
	// triggered the attempt.
	res.Output["approval_id"] = approvalID

	return &Outcome{State: StateApproved, ApprovalID: approvalID, Result: &res}, nil
}

// DenyRun marks every pending request for a run denied without execution.
// Used when a run is discarded.
func (g *Gate) DenyRun(ctx context.Context, runID string) (int, error) {
	pending, err := g.store.ListByRun(ctx, runID)
	if err != nil {
		return 0, err
	}

	denied := 0
	for _, req := range pending {
		if req.State != StatePendingApproval {
			continue
		}
		if _, err := g.store.transition(ctx, req.ID, StateDenied); err != nil {
			return denied, err
		}
		denied++
	}
	return denied, nil
}
