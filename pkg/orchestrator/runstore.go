package orchestrator

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/harun/lea/pkg/agent"
	"github.com/harun/lea/pkg/catalog"
)

// PendingCall links a suspended tool call to its approval request so the
// eventual decision can be fed back as the right tool result
type PendingCall struct {
	ApprovalID string `json:"approval_id"`
	ToolCallID string `json:"tool_call_id"`
	ToolID     string `json:"tool_id"`
}

// RunState is the durable snapshot of a suspended run. It carries everything
// needed to resume in another process: the conversation so far, the step
// counter, and the approvals the run is waiting on.
type RunState struct {
	RunID     string          `json:"run_id"`
	UserID    string          `json:"user_id"`
	Mode      catalog.Mode    `json:"mode"`
	ModelID   string          `json:"model_id"`
	Messages  []agent.Message `json:"messages"`
	Step      int             `json:"step"`
	Pending   []PendingCall   `json:"pending"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// pendingFor returns the pending call for an approval id
func (s *RunState) pendingFor(approvalID string) (PendingCall, bool) {
	for _, p := range s.Pending {
		if p.ApprovalID == approvalID {
			return p, true
		}
	}
	return PendingCall{}, false
}

// removePending drops the pending call for an approval id
func (s *RunState) removePending(approvalID string) {
	kept := s.Pending[:0]
	for _, p := range s.Pending {
		if p.ApprovalID != approvalID {
			kept = append(kept, p)
		}
	}
	s.Pending = kept
}

// RunStore persists run state as one JSON file per run
type RunStore struct {
	baseDir string
	mu      sync.RWMutex
}

// NewRunStore creates a file-based run store rooted at baseDir
func NewRunStore(baseDir string) (*RunStore, error) {
	if err := os.MkdirAll(baseDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create run store directory: %w", err)
	}
	return &RunStore{baseDir: baseDir}, nil
}

// validateRunID rejects ids that would escape the runs directory. Run ids
// are caller-supplied (the --run-id flag), so they cannot be trusted as
// filename material.
func validateRunID(runID string) error {
	if runID == "" {
		return fmt.Errorf("run id is required")
	}
	if strings.ContainsAny(runID, `/\`) || strings.Contains(runID, "..") {
		return fmt.Errorf("invalid run id: %q", runID)
	}
	return nil
}

// Save persists a run state to disk
func (s *RunStore) Save(state *RunState) error {
	if err := validateRunID(state.RunID); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	state.UpdatedAt = time.Now()

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal run state: %w", err)
	}

	if err := os.WriteFile(s.path(state.RunID), data, 0600); err != nil {
		return fmt.Errorf("failed to write run state: %w", err)
	}
	return nil
}

// Get retrieves a run state, or nil when the run is unknown
func (s *RunStore) Get(runID string) (*RunState, error) {
	if err := validateRunID(runID); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	data, err := os.ReadFile(s.path(runID))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read run state: %w", err)
	}

	var state RunState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("failed to unmarshal run state: %w", err)
	}
	return &state, nil
}

// Delete removes a run state from disk
func (s *RunStore) Delete(runID string) error {
	if err := validateRunID(runID); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path(runID)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove run state: %w", err)
	}
	return nil
}

// List returns all persisted run states
func (s *RunStore) List() ([]*RunState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read run store directory: %w", err)
	}

	var states []*RunState
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(s.baseDir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("failed to read run state %s: %w", entry.Name(), err)
		}
		var state RunState
		if err := json.Unmarshal(data, &state); err != nil {
			return nil, fmt.Errorf("failed to unmarshal run state %s: %w", entry.Name(), err)
		}
		states = append(states, &state)
	}
	return states, nil
}

func (s *RunStore) path(runID string) string {
	return filepath.Join(s.baseDir, runID+".json")
}
