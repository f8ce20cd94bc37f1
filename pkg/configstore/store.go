package configstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog/log"
)

// ToolPolicy is the persisted per-tool configuration
type ToolPolicy struct {
	ToolID        string            `json:"tool_id"`
	Enabled       bool              `json:"enabled"`
	NeedsApproval *bool             `json:"needs_approval,omitempty"` // nil means "use tool default"
	Settings      map[string]string `json:"settings,omitempty"`
}

// Credential is a stored secret keyed by name
type Credential struct {
	Key    string `json:"key"`
	Value  string `json:"value"`
	Active bool   `json:"active"`
}

// Store persists tool policies and credentials in sqlite
type Store struct {
	db *sql.DB

	snapMu   sync.RWMutex
	snapshot *PolicySnapshot
}

// Open opens (creating if needed) the store at the given path
func Open(path string) (*Store, error) {
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

	// WAL mode for concurrent admin writes and orchestration reads
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	s := &Store{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, err
	}

	log.Info().Str("path", path).Msg("Config store opened")

	return s, nil
}

// initSchema creates database tables
func (s *Store) initSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS tool_policies (
			tool_id TEXT PRIMARY KEY,
			enabled INTEGER NOT NULL DEFAULT 1,
			needs_approval INTEGER,
			settings TEXT,
			updated_at INTEGER NOT NULL
		);

		CREATE TABLE IF NOT EXISTS credentials (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL,
			active INTEGER NOT NULL DEFAULT 1,
			updated_at INTEGER NOT NULL
		);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}
	return nil
}

// Close closes the underlying database
func (s *Store) Close() error {
	return s.db.Close()
}

// GetAllToolPolicies returns every persisted tool policy
func (s *Store) GetAllToolPolicies(ctx context.Context) ([]ToolPolicy, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT tool_id, enabled, needs_approval, settings FROM tool_policies")
	if err != nil {
		return nil, fmt.Errorf("failed to query tool policies: %w", err)
	}
	defer rows.Close()

	var policies []ToolPolicy
	for rows.Next() {
		p, err := scanPolicy(rows)
		if err != nil {
			return nil, err
		}
		policies = append(policies, p)
	}
	return policies, rows.Err()
}

// GetToolPolicy returns the policy for a single tool, or nil when unconfigured
func (s *Store) GetToolPolicy(ctx context.Context, toolID string) (*ToolPolicy, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT tool_id, enabled, needs_approval, settings FROM tool_policies WHERE tool_id = ?", toolID)

	p, err := scanPolicy(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanPolicy(row rowScanner) (ToolPolicy, error) {
	var p ToolPolicy
	var enabled int
	var needsApproval sql.NullInt64
	var settings sql.NullString

	if err := row.Scan(&p.ToolID, &enabled, &needsApproval, &settings); err != nil {
		if err == sql.ErrNoRows {
			return p, err
		}
		return p, fmt.Errorf("failed to scan tool policy: %w", err)
	}

	p.Enabled = enabled != 0
	if needsApproval.Valid {
		v := needsApproval.Int64 != 0
		p.NeedsApproval = &v
	}
	if settings.Valid && settings.String != "" {
		if err := json.Unmarshal([]byte(settings.String), &p.Settings); err != nil {
			return p, fmt.Errorf("failed to parse settings for %s: %w", p.ToolID, err)
		}
	}
	return p, nil
}

// UpsertToolPolicy inserts or updates a tool policy.
// Settings are validated against the tool's declared settings keys.
func (s *Store) UpsertToolPolicy(ctx context.Context, policy ToolPolicy) error {
	if policy.ToolID == "" {
		return fmt.Errorf("tool id is required")
	}
	if err := ValidateSettings(policy.ToolID, policy.Settings); err != nil {
		return err
	}

	var settingsJSON interface{}
	if len(policy.Settings) > 0 {
		data, err := json.Marshal(policy.Settings)
		if err != nil {
			return fmt.Errorf("failed to marshal settings: %w", err)
		}
		settingsJSON = string(data)
	}

	var needsApproval interface{}
	if policy.NeedsApproval != nil {
		needsApproval = boolToInt(*policy.NeedsApproval)
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tool_policies (tool_id, enabled, needs_approval, settings, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(tool_id) DO UPDATE SET
			enabled = excluded.enabled,
			needs_approval = excluded.needs_approval,
			settings = excluded.settings,
			updated_at = excluded.updated_at`,
		policy.ToolID, boolToInt(policy.Enabled), needsApproval, settingsJSON, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("failed to upsert tool policy: %w", err)
	}

	s.invalidateSnapshot()

	log.Info().
		Str("tool", policy.ToolID).
		Bool("enabled", policy.Enabled).
		Msg("Tool policy updated")

	return nil
}

// GetCredential returns the active credential for a key, or nil when absent
func (s *Store) GetCredential(ctx context.Context, key string) (*Credential, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT key, value, active FROM credentials WHERE key = ?", key)

	var c Credential
	var active int
	if err := row.Scan(&c.Key, &c.Value, &active); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query credential: %w", err)
	}
	c.Active = active != 0
	if !c.Active {
		return nil, nil
	}
	return &c, nil
}

// UpsertCredential inserts or updates a stored credential
func (s *Store) UpsertCredential(ctx context.Context, key, value string, active bool) error {
	if key == "" {
		return fmt.Errorf("credential key is required")
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO credentials (key, value, active, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			value = excluded.value,
			active = excluded.active,
			updated_at = excluded.updated_at`,
		key, value, boolToInt(active), time.Now().Unix())
	if err != nil {
		return fmt.Errorf("failed to upsert credential: %w", err)
	}

	log.Info().Str("key", key).Bool("active", active).Msg("Credential updated")

	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
