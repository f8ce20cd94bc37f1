// Package approval implements the per-invocation approval state machine the
// orchestrator suspends on, backed by a durable sqlite store so decisions can
// arrive from another process long after the original call stack is gone.
package approval

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog/log"
)

// State of an approval request. PendingApproval is the only non-terminal
// state; transitions out of a terminal state never happen.
type State string

const (
	StateNotRequired     State = "not_required"
	StatePendingApproval State = "pending_approval"
	StateApproved        State = "approved"
	StateDenied          State = "denied"
	StateExpired         State = "expired"
)

// Terminal reports whether the state admits no further transitions
func (s State) Terminal() bool {
	return s != StatePendingApproval
}

// Request is one recorded approval request
type Request struct {
	ID        string                 `json:"id"`
	RunID     string                 `json:"run_id"`
	ToolID    string                 `json:"tool_id"`
	Input     map[string]interface{} `json:"input"`
	State     State                  `json:"state"`
	CreatedAt time.Time              `json:"created_at"`
	DecidedAt *time.Time             `json:"decided_at,omitempty"`
}

// Store persists approval requests in sqlite
type Store struct {
	db *sql.DB
}

// OpenStore opens (creating if needed) the approval store at the given path
func OpenStore(path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("store path is required")
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	s := &Store{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, err
	}

	log.Info().Str("path", path).Msg("Approval store opened")

	return s, nil
}

func (s *Store) initSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS approvals (
			id TEXT PRIMARY KEY,
			run_id TEXT NOT NULL,
			tool_id TEXT NOT NULL,
			input TEXT NOT NULL,
			state TEXT NOT NULL,
			created_at INTEGER NOT NULL,
			decided_at INTEGER
		);
		CREATE INDEX IF NOT EXISTS idx_approvals_run ON approvals(run_id);
		CREATE INDEX IF NOT EXISTS idx_approvals_state ON approvals(state);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// Close closes the underlying database
func (s *Store) Close() error {
	return s.db.Close()
}

// Create records a new pending approval request and returns it with a
// generated id
func (s *Store) Create(ctx context.Context, runID, toolID string, input map[string]interface{}) (*Request, error) {
	if runID == "" || toolID == "" {
		return nil, fmt.Errorf("run id and tool id are required")
	}

	id, err := gonanoid.New()
	if err != nil {
		return nil, fmt.Errorf("failed to generate approval id: %w", err)
	}

	if input == nil {
		input = map[string]interface{}{}
	}
	payload, err := json.Marshal(input)
	if err != nil {
		return nil, fmt.Errorf("failed to encode input: %w", err)
	}

	now := time.Now()
	_, err = s.db.ExecContext(ctx,
		"INSERT INTO approvals (id, run_id, tool_id, input, state, created_at) VALUES (?, ?, ?, ?, ?, ?)",
		id, runID, toolID, string(payload), string(StatePendingApproval), now.UnixMilli(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert approval: %w", err)
	}

	log.Info().
		Str("approval_id", id).
		Str("run_id", runID).
		Str("tool", toolID).
		Msg("Approval requested")

	return &Request{
		ID:        id,
		RunID:     runID,
		ToolID:    toolID,
		Input:     input,
		State:     StatePendingApproval,
		CreatedAt: now,
	}, nil
}

// Get returns an approval request by id, or nil when unknown
func (s *Store) Get(ctx context.Context, id string) (*Request, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT id, run_id, tool_id, input, state, created_at, decided_at FROM approvals WHERE id = ?", id)
	return scanRequest(row)
}

// ListByRun returns all approval requests for a run, oldest first
func (s *Store) ListByRun(ctx context.Context, runID string) ([]*Request, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, run_id, tool_id, input, state, created_at, decided_at FROM approvals WHERE run_id = ? ORDER BY created_at", runID)
	if err != nil {
		return nil, fmt.Errorf("failed to list approvals: %w", err)
	}
	defer rows.Close()
	return collectRequests(rows)
}

// ListPending returns all pending approval requests, oldest first
func (s *Store) ListPending(ctx context.Context) ([]*Request, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, run_id, tool_id, input, state, created_at, decided_at FROM approvals WHERE state = ? ORDER BY created_at",
		string(StatePendingApproval))
	if err != nil {
		return nil, fmt.Errorf("failed to list pending approvals: %w", err)
	}
	defer rows.Close()
	return collectRequests(rows)
}

// transition moves a pending request into a terminal state. The WHERE clause
// enforces monotonicity: a race that finds the row already decided updates
// nothing.
func (s *Store) transition(ctx context.Context, id string, to State) (*Request, error) {
	if !to.Terminal() {
		return nil, fmt.Errorf("cannot transition to non-terminal state %s", to)
	}

	res, err := s.db.ExecContext(ctx,
		"UPDATE approvals SET state = ?, decided_at = ? WHERE id = ? AND state = ?",
		string(to), time.Now().UnixMilli(), id, string(StatePendingApproval),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to update approval: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		existing, err := s.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		if existing == nil {
			return nil, &NotFoundError{ApprovalID: id}
		}
		return nil, &AlreadyDecidedError{ApprovalID: id, State: existing.State}
	}

	return s.Get(ctx, id)
}

// ExpireOlderThan moves every pending request created before the cutoff into
// Expired. Returns the expired requests.
func (s *Store) ExpireOlderThan(ctx context.Context, cutoff time.Time) ([]*Request, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, run_id, tool_id, input, state, created_at, decided_at FROM approvals WHERE state = ? AND created_at < ?",
		string(StatePendingApproval), cutoff.UnixMilli())
	if err != nil {
		return nil, fmt.Errorf("failed to query stale approvals: %w", err)
	}
	stale, err := collectRequests(rows)
	rows.Close()
	if err != nil {
		return nil, err
	}

	expired := make([]*Request, 0, len(stale))
	for _, req := range stale {
		updated, err := s.transition(ctx, req.ID, StateExpired)
		if err != nil {
			// Decided concurrently between the query and the update
			var decided *AlreadyDecidedError
			if errors.As(err, &decided) {
				continue
			}
			return expired, err
		}
		expired = append(expired, updated)
	}
	return expired, nil
}

func scanRequest(row *sql.Row) (*Request, error) {
	var (
		req       Request
		input     string
		state     string
		createdAt int64
		decidedAt sql.NullInt64
	)
	err := row.Scan(&req.ID, &req.RunID, &req.ToolID, &input, &state, &createdAt, &decidedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan approval: %w", err)
	}
	return finishRequest(&req, input, state, createdAt, decidedAt)
}

func collectRequests(rows *sql.Rows) ([]*Request, error) {
	var out []*Request
	for rows.Next() {
		var (
			req       Request
			input     string
			state     string
			createdAt int64
			decidedAt sql.NullInt64
		)
		if err := rows.Scan(&req.ID, &req.RunID, &req.ToolID, &input, &state, &createdAt, &decidedAt); err != nil {
			return nil, fmt.Errorf("failed to scan approval: %w", err)
		}
		r, err := finishRequest(&req, input, state, createdAt, decidedAt)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func finishRequest(req *Request, input, state string, createdAt int64, decidedAt sql.NullInt64) (*Request, error) {
	if err := json.Unmarshal([]byte(input), &req.Input); err != nil {
		return nil, fmt.Errorf("failed to decode approval input: %w", err)
	}
	req.State = State(state)
	req.CreatedAt = time.UnixMilli(createdAt)
	if decidedAt.Valid {
		t := time.UnixMilli(decidedAt.Int64)
		req.DecidedAt = &t
	}
	return req, nil
}
