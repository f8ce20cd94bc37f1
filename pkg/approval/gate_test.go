package approval

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harun/lea/pkg/catalog"
)

func newTestGate(t *testing.T) (*Gate, *Store, string) {
	t.Helper()

	workspace := t.TempDir()
	c, err := catalog.New(catalog.Options{WorkspaceRoot: workspace})
	require.NoError(t, err)

	store, err := OpenStore(filepath.Join(t.TempDir(), "approvals.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	return NewGate(store, c), store, workspace
}

func writeInput(path, content string) map[string]interface{} {
	return map[string]interface{}{
		"operation": "write",
		"path":      path,
		"content":   content,
	}
}

func TestGateNotRequiredExecutesImmediately(t *testing.T) {
	gate, store, _ := newTestGate(t)
	ctx := context.Background()

	tool, _ := gateTool(t, gate, catalog.ToolGetWeather)
	out, err := gate.Invoke(ctx, "run-1", tool, false, map[string]interface{}{"city": "Oslo"})
	require.NoError(t, err)

	assert.Equal(t, StateNotRequired, out.State)
	require.NotNil(t, out.Result)
	assert.True(t, out.Result.OK())
	assert.Equal(t, "Oslo", out.Result.Output["city"])

	// nothing recorded
	pending, err := store.ListPending(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestGateRequiredDefersExecution(t *testing.T) {
	gate, store, workspace := newTestGate(t)
	ctx := context.Background()

	tool, _ := gateTool(t, gate, catalog.ToolFilesystem)
	out, err := gate.Invoke(ctx, "run-1", tool, true, writeInput("pending.txt", "hold"))
	require.NoError(t, err)

	assert.Equal(t, StatePendingApproval, out.State)
	assert.Nil(t, out.Result)
	require.NotNil(t, out.Request)
	assert.NotEmpty(t, out.Request.ID)

	// the underlying capability must not have run
	_, statErr := os.Stat(filepath.Join(workspace, "pending.txt"))
	assert.True(t, os.IsNotExist(statErr))

	stored, err := store.Get(ctx, out.Request.ID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, StatePendingApproval, stored.State)
	assert.Equal(t, catalog.ToolFilesystem, stored.ToolID)
}

func TestGateApproveExecutesExactlyOnce(t *testing.T) {
	gate, _, workspace := newTestGate(t)
	ctx := context.Background()

	tool, _ := gateTool(t, gate, catalog.ToolFilesystem)
	out, err := gate.Invoke(ctx, "run-1", tool, true, writeInput("approved.txt", "go"))
	require.NoError(t, err)
	approvalID := out.Request.ID

	decided, err := gate.Decide(ctx, approvalID, true)
	require.NoError(t, err)
	assert.Equal(t, StateApproved, decided.State)
	require.NotNil(t, decided.Result)
	assert.True(t, decided.Result.OK())
	assert.Equal(t, approvalID, decided.Result.Output["approval_id"])

	data, err := os.ReadFile(filepath.Join(workspace, "approved.txt"))
	require.NoError(t, err)
	assert.Equal(t, "go", string(data))

	// re-deciding a terminal request errors and does not execute again
	_, err = gate.Decide(ctx, approvalID, true)
	var already *AlreadyDecidedError
	require.ErrorAs(t, err, &already)
	assert.Equal(t, StateApproved, already.State)
}

func TestGateApproveTagsFailedInvocation(t *testing.T) {
	gate, _, _ := newTestGate(t)
	ctx := context.Background()

	tool, _ := gateTool(t, gate, catalog.ToolShellTask)
	out, err := gate.Invoke(ctx, "run-1", tool, true, map[string]interface{}{"command": "rm -rf /tmp/x"})
	require.NoError(t, err)

	decided, err := gate.Decide(ctx, out.Request.ID, true)
	require.NoError(t, err)
	assert.Equal(t, StateApproved, decided.State)
	require.NotNil(t, decided.Result)
	assert.False(t, decided.Result.OK())
	assert.Contains(t, decided.Result.Error, "not allowed")

	// the failure still carries the decision that triggered it
	assert.Equal(t, out.Request.ID, decided.Result.Output["approval_id"])
}

func TestGateDenyHasNoSideEffects(t *testing.T) {
	gate, store, workspace := newTestGate(t)
	ctx := context.Background()

	tool, _ := gateTool(t, gate, catalog.ToolFilesystem)
	out, err := gate.Invoke(ctx, "run-1", tool, true, writeInput("denied.txt", "no"))
	require.NoError(t, err)

	decided, err := gate.Decide(ctx, out.Request.ID, false)
	require.NoError(t, err)
	assert.Equal(t, StateDenied, decided.State)
	require.NotNil(t, decided.Result)
	assert.False(t, decided.Result.OK())
	assert.Contains(t, decided.Result.Error, "denied")

	_, statErr := os.Stat(filepath.Join(workspace, "denied.txt"))
	assert.True(t, os.IsNotExist(statErr))

	stored, err := store.Get(ctx, out.Request.ID)
	require.NoError(t, err)
	assert.Equal(t, StateDenied, stored.State)
	assert.NotNil(t, stored.DecidedAt)
}

func TestGateDecideUnknownApproval(t *testing.T) {
	gate, _, _ := newTestGate(t)

	_, err := gate.Decide(context.Background(), "no-such-approval", true)
	var notFound *NotFoundError
	assert.ErrorAs(t, err, &notFound)
}

func TestGateDenyRun(t *testing.T) {
	gate, store, _ := newTestGate(t)
	ctx := context.Background()

	tool, _ := gateTool(t, gate, catalog.ToolFilesystem)
	first, err := gate.Invoke(ctx, "run-9", tool, true, writeInput("a.txt", "1"))
	require.NoError(t, err)
	second, err := gate.Invoke(ctx, "run-9", tool, true, writeInput("b.txt", "2"))
	require.NoError(t, err)

	// a request for another run stays untouched
	other, err := gate.Invoke(ctx, "run-10", tool, true, writeInput("c.txt", "3"))
	require.NoError(t, err)

	denied, err := gate.DenyRun(ctx, "run-9")
	require.NoError(t, err)
	assert.Equal(t, 2, denied)

	for _, id := range []string{first.Request.ID, second.Request.ID} {
		stored, err := store.Get(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, StateDenied, stored.State)
	}

	stored, err := store.Get(ctx, other.Request.ID)
	require.NoError(t, err)
	assert.Equal(t, StatePendingApproval, stored.State)
}

func TestSweeperExpiresStalePending(t *testing.T) {
	gate, store, _ := newTestGate(t)
	ctx := context.Background()

	tool, _ := gateTool(t, gate, catalog.ToolFilesystem)
	out, err := gate.Invoke(ctx, "run-old", tool, true, writeInput("stale.txt", "x"))
	require.NoError(t, err)

	time.Sleep(5 * time.Millisecond)

	sweeper := NewSweeper(store, time.Millisecond)
	require.NoError(t, sweeper.Sweep(ctx))

	stored, err := store.Get(ctx, out.Request.ID)
	require.NoError(t, err)
	assert.Equal(t, StateExpired, stored.State)

	// expiry is terminal: a late decision errors and never executes
	_, err = gate.Decide(ctx, out.Request.ID, true)
	var already *AlreadyDecidedError
	require.ErrorAs(t, err, &already)
	assert.Equal(t, StateExpired, already.State)
}

func TestSweeperDisabledTTL(t *testing.T) {
	gate, store, _ := newTestGate(t)
	ctx := context.Background()

	tool, _ := gateTool(t, gate, catalog.ToolFilesystem)
	_, err := gate.Invoke(ctx, "run-keep", tool, true, writeInput("keep.txt", "x"))
	require.NoError(t, err)

	sweeper := NewSweeper(store, 0)
	require.NoError(t, sweeper.Sweep(ctx))

	pending, err := store.ListPending(ctx)
	require.NoError(t, err)
	assert.Len(t, pending, 1)
}

func TestStoreListByRunOrder(t *testing.T) {
	gate, store, _ := newTestGate(t)
	ctx := context.Background()

	tool, _ := gateTool(t, gate, catalog.ToolFilesystem)
	first, err := gate.Invoke(ctx, "run-seq", tool, true, writeInput("1.txt", "a"))
	require.NoError(t, err)
	time.Sleep(2 * time.Millisecond)
	second, err := gate.Invoke(ctx, "run-seq", tool, true, writeInput("2.txt", "b"))
	require.NoError(t, err)

	list, err := store.ListByRun(ctx, "run-seq")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, first.Request.ID, list[0].ID)
	assert.Equal(t, second.Request.ID, list[1].ID)
}

func gateTool(t *testing.T, gate *Gate, id string) (*catalog.Tool, bool) {
	t.Helper()
	tool, ok := gate.catalog.Get(id)
	require.True(t, ok, id)
	return tool, ok
}
