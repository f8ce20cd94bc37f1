// Package registry assembles the concrete tool set for a single run: the
// mode's base tools, filtered and overridden by persisted policy, plus the
// always-available utilities and the inert capability stubs.
package registry

import (
	"sort"

	"github.com/rs/zerolog/log"

	"github.com/harun/lea/pkg/catalog"
	"github.com/harun/lea/pkg/configstore"
)

// Entry is one tool admitted to a run, with its effective approval flag
type Entry struct {
	Tool          *catalog.Tool
	NeedsApproval bool
}

// Registry is the tool set for one run. Build never mutates it afterwards.
type Registry struct {
	entries map[string]Entry
}

// Builder assembles registries from a fixed catalog
type Builder struct {
	catalog *catalog.Catalog
}

// NewBuilder creates a builder over the given catalog
func NewBuilder(c *catalog.Catalog) *Builder {
	return &Builder{catalog: c}
}

// modeBaseSets maps each execution mode to its eligible catalog entries.
// adapter_call rides along in every mode.
var modeBaseSets = map[catalog.Mode][]string{
	catalog.ModeBrowser: {
		catalog.ToolSearch,
		catalog.ToolBrowserAction,
		catalog.ToolBrowserUseTask,
	},
	catalog.ModeCLI: {
		catalog.ToolSearch,
		catalog.ToolShellTask,
		catalog.ToolFilesystem,
	},
	catalog.ModeCoding: {
		catalog.ToolSearch,
		catalog.ToolFilesystem,
		catalog.ToolCodeExecution,
		catalog.ToolAnalysis,
	},
}

// Build assembles the run's tool set for a mode under a policy snapshot.
// Auto mode resolves through forcedMode, falling back to coding. A nil
// snapshot means no overrides: every tool enabled with catalog defaults.
func (b *Builder) Build(mode catalog.Mode, forcedMode catalog.Mode, snap *configstore.PolicySnapshot) *Registry {
	effective := mode
	if mode == catalog.ModeAuto {
		if forcedMode != "" && forcedMode != catalog.ModeAuto {
			effective = forcedMode
		} else {
			effective = catalog.ModeCoding
		}
	}

	base, ok := modeBaseSets[effective]
	if !ok {
		base = modeBaseSets[catalog.ModeCoding]
	}

	ids := append([]string{}, base...)
	ids = append(ids, catalog.ToolAdapterCall)

	reg := &Registry{entries: make(map[string]Entry)}

	for _, id := range ids {
		tool, found := b.catalog.Get(id)
		if !found {
			log.Warn().Str("tool", id).Msg("Mode base set references unknown tool")
			continue
		}
		policy, configured := snap.Get(id)
		if configured && !policy.Enabled {
			continue
		}
		reg.entries[id] = Entry{Tool: tool, NeedsApproval: effectiveApproval(tool, policy, configured)}
	}

	// Diagnostic utility, available regardless of mode and policy filtering
	if weather, found := b.catalog.Get(catalog.ToolGetWeather); found {
		if _, present := reg.entries[weather.ID]; !present {
			reg.entries[weather.ID] = Entry{Tool: weather}
		}
	}

	// Remaining manifest stubs join as inert placeholders. They never
	// overwrite a tool that is already mapped.
	for _, id := range b.catalog.StubIDs() {
		if _, present := reg.entries[id]; present {
			continue
		}
		tool, found := b.catalog.Get(id)
		if !found {
			continue
		}
		policy, configured := snap.Get(id)
		if configured && !policy.Enabled {
			continue
		}
		reg.entries[id] = Entry{Tool: tool, NeedsApproval: effectiveApproval(tool, policy, configured)}
	}

	log.Debug().
		Str("mode", string(effective)).
		Int("tools", len(reg.entries)).
		Msg("Tool registry built")

	return reg
}

// effectiveApproval applies the override rule: an explicit policy value wins
// over the catalog default, absent means the default
func effectiveApproval(tool *catalog.Tool, policy configstore.ToolPolicy, configured bool) bool {
	if configured && policy.NeedsApproval != nil {
		return *policy.NeedsApproval
	}
	return tool.DefaultNeedsApproval
}

// Get returns the entry for a tool id
func (r *Registry) Get(id string) (Entry, bool) {
	e, ok := r.entries[id]
	return e, ok
}

// Has reports whether a tool id is in the registry
func (r *Registry) Has(id string) bool {
	_, ok := r.entries[id]
	return ok
}

// Len returns the number of tools in the registry
func (r *Registry) Len() int {
	return len(r.entries)
}

// IDs returns the registry's tool ids, sorted
func (r *Registry) IDs() []string {
	ids := make([]string, 0, len(r.entries))
	for id := range r.entries {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Entries returns the registry entries sorted by tool id
func (r *Registry) Entries() []Entry {
	out := make([]Entry, 0, len(r.entries))
	for _, id := range r.IDs() {
		out = append(out, r.entries[id])
	}
	return out
}
