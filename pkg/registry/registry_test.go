package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harun/lea/pkg/catalog"
	"github.com/harun/lea/pkg/configstore"
)

func boolPtr(b bool) *bool { return &b }

func newTestBuilder(t *testing.T) *Builder {
	t.Helper()
	c, err := catalog.New(catalog.Options{})
	require.NoError(t, err)
	return NewBuilder(c)
}

func TestBuildCodingModeBaseSet(t *testing.T) {
	b := newTestBuilder(t)
	reg := b.Build(catalog.ModeCoding, "", nil)

	for _, id := range []string{
		catalog.ToolSearch, catalog.ToolFilesystem, catalog.ToolCodeExecution,
		catalog.ToolAnalysis, catalog.ToolAdapterCall, catalog.ToolGetWeather,
	} {
		assert.True(t, reg.Has(id), id)
	}
	assert.False(t, reg.Has(catalog.ToolShellTask))
	assert.False(t, reg.Has(catalog.ToolBrowserAction))
}

func TestBuildBrowserModeBaseSet(t *testing.T) {
	b := newTestBuilder(t)
	reg := b.Build(catalog.ModeBrowser, "", nil)

	for _, id := range []string{
		catalog.ToolSearch, catalog.ToolBrowserAction, catalog.ToolBrowserUseTask,
		catalog.ToolAdapterCall,
	} {
		assert.True(t, reg.Has(id), id)
	}
	assert.False(t, reg.Has(catalog.ToolFilesystem))
	assert.False(t, reg.Has(catalog.ToolCodeExecution))
}

func TestBuildCLIModeBaseSet(t *testing.T) {
	b := newTestBuilder(t)
	reg := b.Build(catalog.ModeCLI, "", nil)

	for _, id := range []string{
		catalog.ToolSearch, catalog.ToolShellTask, catalog.ToolFilesystem,
		catalog.ToolAdapterCall,
	} {
		assert.True(t, reg.Has(id), id)
	}
	assert.False(t, reg.Has(catalog.ToolBrowserUseTask))
}

func TestBuildAutoModeResolution(t *testing.T) {
	b := newTestBuilder(t)

	// auto + forced browser -> browser set
	reg := b.Build(catalog.ModeAuto, catalog.ModeBrowser, nil)
	assert.True(t, reg.Has(catalog.ToolBrowserAction))
	assert.False(t, reg.Has(catalog.ToolCodeExecution))

	// auto with no forced mode -> coding set
	reg = b.Build(catalog.ModeAuto, "", nil)
	assert.True(t, reg.Has(catalog.ToolCodeExecution))
	assert.False(t, reg.Has(catalog.ToolBrowserAction))
}

func TestBuildDisabledPolicyDropsTool(t *testing.T) {
	b := newTestBuilder(t)
	snap := configstore.SnapshotFromPolicies([]configstore.ToolPolicy{
		{ToolID: catalog.ToolFilesystem, Enabled: false},
	})

	reg := b.Build(catalog.ModeCoding, "", snap)
	assert.False(t, reg.Has(catalog.ToolFilesystem))
	assert.True(t, reg.Has(catalog.ToolSearch), "unconfigured tools stay enabled")
}

func TestBuildApprovalOverrides(t *testing.T) {
	b := newTestBuilder(t)
	snap := configstore.SnapshotFromPolicies([]configstore.ToolPolicy{
		// explicit false beats the sensitive catalog default
		{ToolID: catalog.ToolFilesystem, Enabled: true, NeedsApproval: boolPtr(false)},
		// explicit true beats the safe catalog default
		{ToolID: catalog.ToolSearch, Enabled: true, NeedsApproval: boolPtr(true)},
		// absent override keeps the catalog default
		{ToolID: catalog.ToolCodeExecution, Enabled: true},
	})

	reg := b.Build(catalog.ModeCoding, "", snap)

	fs, ok := reg.Get(catalog.ToolFilesystem)
	require.True(t, ok)
	assert.False(t, fs.NeedsApproval)

	search, ok := reg.Get(catalog.ToolSearch)
	require.True(t, ok)
	assert.True(t, search.NeedsApproval)

	code, ok := reg.Get(catalog.ToolCodeExecution)
	require.True(t, ok)
	assert.True(t, code.NeedsApproval)
}

func TestBuildGetWeatherAlwaysPresent(t *testing.T) {
	b := newTestBuilder(t)
	for _, mode := range []catalog.Mode{catalog.ModeCoding, catalog.ModeBrowser, catalog.ModeCLI} {
		reg := b.Build(mode, "", nil)
		entry, ok := reg.Get(catalog.ToolGetWeather)
		require.True(t, ok, string(mode))
		assert.False(t, entry.NeedsApproval)
	}
}

func TestBuildStubsMergedWithoutOverwrite(t *testing.T) {
	b := newTestBuilder(t)
	reg := b.Build(catalog.ModeCoding, "", nil)

	// stubs present with their declared approval defaults
	fw, ok := reg.Get("file_write")
	require.True(t, ok)
	assert.True(t, fw.NeedsApproval)

	notify, ok := reg.Get("message_notify_user")
	require.True(t, ok)
	assert.False(t, notify.NeedsApproval)

	// mapped tools keep their real handler, not a stub
	search, ok := reg.Get(catalog.ToolSearch)
	require.True(t, ok)
	assert.Equal(t, catalog.ToolSearch, search.Tool.ID)
}

func TestBuildDisabledStubDropped(t *testing.T) {
	b := newTestBuilder(t)
	snap := configstore.SnapshotFromPolicies([]configstore.ToolPolicy{
		{ToolID: "deploy_expose_port", Enabled: false},
	})
	reg := b.Build(catalog.ModeCoding, "", snap)
	assert.False(t, reg.Has("deploy_expose_port"))
}

func TestBuildNilSnapshotUsesDefaults(t *testing.T) {
	b := newTestBuilder(t)
	reg := b.Build(catalog.ModeCoding, "", nil)

	fs, ok := reg.Get(catalog.ToolFilesystem)
	require.True(t, ok)
	assert.True(t, fs.NeedsApproval, "catalog default applies with no policy store")
	assert.Greater(t, reg.Len(), 5)
}

func TestRegistryIDsSorted(t *testing.T) {
	b := newTestBuilder(t)
	reg := b.Build(catalog.ModeCoding, "", nil)

	ids := reg.IDs()
	require.NotEmpty(t, ids)
	for i := 1; i < len(ids); i++ {
		assert.Less(t, ids[i-1], ids[i])
	}
}
