// Package catalog defines the fixed set of capabilities the orchestrator can
// hand to a model. Entries are immutable; enablement and approval overrides
// come from the policy store at registry-build time.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/harun/lea/pkg/adapters"
	"github.com/harun/lea/pkg/credentials"
	"github.com/harun/lea/pkg/guard"
)

// Well-known tool ids
const (
	ToolGetWeather     = "get_weather"
	ToolSearch         = "search"
	ToolFilesystem     = "filesystem"
	ToolCodeExecution  = "code_execution"
	ToolAnalysis       = "analysis"
	ToolBrowserAction  = "browser_action"
	ToolBrowserUseTask = "browser_use_task"
	ToolShellTask      = "shell_task"
	ToolAdapterCall    = "adapter_call"
)

// adapterEnvVars maps adapter ids to their environment override variable
var adapterEnvVars = map[string]string{
	"github":       "GITHUB_TOKEN",
	"notion":       "NOTION_TOKEN",
	"google-drive": "GOOGLE_DRIVE_TOKEN",
	"figma":        "FIGMA_TOKEN",
	"vercel":       "VERCEL_TOKEN",
	"canva":        "CANVA_TOKEN",
}

// Options configures catalog construction
type Options struct {
	WorkspaceRoot string
	Resolver      *credentials.Resolver
	Adapters      *adapters.Registry
}

// Catalog is the full capability manifest
type Catalog struct {
	tools map[string]*Tool
	stubs []string
}

// New builds the catalog with all capability entries compiled and ready
func New(opts Options) (*Catalog, error) {
	if opts.Adapters == nil {
		opts.Adapters = adapters.NewRegistry()
	}

	c := &Catalog{tools: make(map[string]*Tool)}

	entries := []*Tool{
		getWeatherTool(),
		searchTool(),
		filesystemTool(opts),
		codeExecutionTool(),
		analysisTool(),
		browserActionTool(),
		browserUseTaskTool(opts),
		shellTaskTool(opts),
		adapterCallTool(opts),
	}

	for _, stub := range capabilityStubs {
		entries = append(entries, stubTool(stub))
		c.stubs = append(c.stubs, stub.ID)
	}

	for _, tool := range entries {
		if err := c.register(tool); err != nil {
			return nil, err
		}
	}

	log.Info().Int("tools", len(c.tools)).Msg("Tool catalog built")

	return c, nil
}

func (c *Catalog) register(tool *Tool) error {
	if tool.ID == "" {
		return errors.New("tool id cannot be empty")
	}
	if _, exists := c.tools[tool.ID]; exists {
		return fmt.Errorf("duplicate tool id: %s", tool.ID)
	}
	if err := tool.compileSchema(); err != nil {
		return err
	}
	c.tools[tool.ID] = tool
	return nil
}

// Get returns a catalog entry by id
func (c *Catalog) Get(id string) (*Tool, bool) {
	t, ok := c.tools[id]
	return t, ok
}

// IDs returns all catalog entry ids, sorted
func (c *Catalog) IDs() []string {
	ids := make([]string, 0, len(c.tools))
	for id := range c.tools {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// StubIDs returns the ids of the inert capability stubs
func (c *Catalog) StubIDs() []string {
	out := make([]string, len(c.stubs))
	copy(out, c.stubs)
	return out
}

// sensitiveKeywords classifies capability names that touch something
// irreversible. Used to seed stub approval defaults, which stay explicit
// and reviewable in the stub table below.
var sensitiveKeywords = []string{"write", "exec", "shell", "kill", "browser_", "deploy", "delete"}

// IsSensitiveName reports whether a capability name matches the
// sensitive-action keyword list
func IsSensitiveName(name string) bool {
	for _, kw := range sensitiveKeywords {
		if strings.Contains(name, kw) {
			return true
		}
	}
	return false
}

func getWeatherTool() *Tool {
	return &Tool{
		ID:          ToolGetWeather,
		Description: "Get the current weather for a location. Diagnostic utility, always available.",
		Parameters: []Parameter{
			{Name: "city", Type: "string", Description: "City name", Required: false},
		},
		Handler: func(_ context.Context, input map[string]interface{}) (map[string]interface{}, error) {
			city, _ := input["city"].(string)
			if city == "" {
				city = "San Francisco"
			}
			return map[string]interface{}{
				"city":        city,
				"temperature": 17,
				"unit":        "celsius",
				"conditions":  "partly cloudy",
				"note":        "Sample weather data. Connect a weather API for live conditions.",
			}, nil
		},
	}
}

func searchTool() *Tool {
	return &Tool{
		ID:          ToolSearch,
		Description: "Search the web for information. Use this to research topics or gather current data.",
		Parameters: []Parameter{
			{Name: "query", Type: "string", Description: "The search query to look up", Required: true},
			{Name: "max_results", Type: "number", Description: "Maximum number of results (default 5)", Required: false, Default: 5},
		},
		Handler: func(ctx context.Context, input map[string]interface{}) (map[string]interface{}, error) {
			query, _ := input["query"].(string)
			maxResults := 5
			if raw, ok := input["max_results"].(float64); ok && raw > 0 {
				maxResults = int(raw)
			}
			if maxResults > 5 {
				maxResults = 5
			}

			apiKey := settingFromContext(ctx, "api_key")
			if apiKey == "" {
				apiKey = os.Getenv("TAVILY_API_KEY")
			}
			if apiKey == "" {
				apiKey = os.Getenv("SEARCH_API_KEY")
			}

			results := make([]map[string]interface{}, 0, maxResults)
			for i := 1; i <= maxResults; i++ {
				results = append(results, map[string]interface{}{
					"title":   fmt.Sprintf("Search Result %d for %q", i, query),
					"url":     fmt.Sprintf("https://example.com/result-%d", i),
					"snippet": fmt.Sprintf("Sample search result snippet for the query %q.", query),
				})
			}

			out := map[string]interface{}{
				"query":         query,
				"results":       results,
				"total_results": len(results),
			}
			if apiKey == "" {
				out["note"] = "This is a mock search. Configure a search API key in the admin panel."
			}
			return out, nil
		},
	}
}

func filesystemTool(opts Options) *Tool {
	return &Tool{
		ID:                   ToolFilesystem,
		Description:          "Read, write, or list files in the workspace. Paths are relative to the workspace root.",
		DefaultNeedsApproval: true,
		Parameters: []Parameter{
			{Name: "operation", Type: "string", Description: "One of: read, write, list", Required: true},
			{Name: "path", Type: "string", Description: "Relative file path", Required: true},
			{Name: "content", Type: "string", Description: "File content for write", Required: false},
		},
		Handler: func(ctx context.Context, input map[string]interface{}) (map[string]interface{}, error) {
			root := workspaceRoot(ctx, opts)
			if root == "" {
				return nil, errors.New("workspace root is not configured")
			}

			operation, _ := input["operation"].(string)
			pathValue, _ := input["path"].(string)

			target, err := resolveWorkspacePath(root, pathValue)
			if err != nil {
				return nil, err
			}

			switch operation {
			case "read":
				data, err := os.ReadFile(target)
				if err != nil {
					return nil, err
				}
				return map[string]interface{}{
					"path":    pathValue,
					"content": string(data),
					"bytes":   len(data),
				}, nil

			case "write":
				content, _ := input["content"].(string)
				if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
					return nil, err
				}
				if err := os.WriteFile(target, []byte(content), 0644); err != nil {
					return nil, err
				}
				return map[string]interface{}{
					"path":  pathValue,
					"bytes": len(content),
				}, nil

			case "list":
				entries, err := os.ReadDir(target)
				if err != nil {
					return nil, err
				}
				names := make([]string, 0, len(entries))
				for _, e := range entries {
					name := e.Name()
					if e.IsDir() {
						name += "/"
					}
					names = append(names, name)
				}
				return map[string]interface{}{
					"path":    pathValue,
					"entries": names,
				}, nil

			default:
				return nil, fmt.Errorf("unknown operation: %s", operation)
			}
		},
	}
}

func codeExecutionTool() *Tool {
	return &Tool{
		ID:                   ToolCodeExecution,
		Description:          "Execute a code snippet in an isolated runtime. Runtime is not attached in this build.",
		DefaultNeedsApproval: true,
		Parameters: []Parameter{
			{Name: "language", Type: "string", Description: "Language of the snippet", Required: true},
			{Name: "code", Type: "string", Description: "Code to execute", Required: true},
		},
		Handler: func(_ context.Context, input map[string]interface{}) (map[string]interface{}, error) {
			language, _ := input["language"].(string)
			code, _ := input["code"].(string)
			return map[string]interface{}{
				"language": language,
				"code":     code,
				"message":  "Code execution runtime not connected. Attach a sandbox runtime to enable execution.",
			}, nil
		},
	}
}

func analysisTool() *Tool {
	return &Tool{
		ID:          ToolAnalysis,
		Description: "Analyze provided content and summarize findings against an optional focus.",
		Parameters: []Parameter{
			{Name: "content", Type: "string", Description: "Content to analyze", Required: true},
			{Name: "focus", Type: "string", Description: "Optional analysis focus", Required: false},
		},
		Handler: func(_ context.Context, input map[string]interface{}) (map[string]interface{}, error) {
			content, _ := input["content"].(string)
			focus, _ := input["focus"].(string)
			return map[string]interface{}{
				"focus":      focus,
				"characters": len(content),
				"summary":    "Analysis runtime not connected. Returning structural metadata only.",
			}, nil
		},
	}
}

func browserActionTool() *Tool {
	return &Tool{
		ID:          ToolBrowserAction,
		Description: "Perform high-level browser actions (navigate, click, extract) in guided mode.",
		Parameters: []Parameter{
			{Name: "goal", Type: "string", Description: "What to do in the browser", Required: true},
			{Name: "url", Type: "string", Description: "Target URL if applicable", Required: false},
			{Name: "notes", Type: "string", Description: "Extra guidance or selectors", Required: false},
		},
		Handler: func(_ context.Context, input map[string]interface{}) (map[string]interface{}, error) {
			return map[string]interface{}{
				"goal":    input["goal"],
				"url":     input["url"],
				"notes":   input["notes"],
				"message": "Browser runtime not connected. Provide steps and selectors so a human can execute if needed.",
			}, nil
		},
	}
}

func browserUseTaskTool(opts Options) *Tool {
	return &Tool{
		ID:                   ToolBrowserUseTask,
		Description:          "Run a cloud browser automation task. Provide a clear goal and optional starting URL.",
		DefaultNeedsApproval: true,
		Parameters: []Parameter{
			{Name: "task", Type: "string", Description: "High-level task, e.g. 'Open X, search Y, return titles'", Required: true},
			{Name: "url", Type: "string", Description: "Optional starting URL", Required: false},
			{Name: "notes", Type: "string", Description: "Extra guidance or constraints", Required: false},
		},
		Handler: func(ctx context.Context, input map[string]interface{}) (map[string]interface{}, error) {
			apiKey := settingFromContext(ctx, "api_key")
			if apiKey == "" && opts.Resolver != nil {
				cred, err := opts.Resolver.Resolve(ctx, "browser-use", "BROWSER_USE_API_KEY")
				if err != nil {
					return nil, err
				}
				if cred != nil {
					apiKey = cred.Token
				}
			}
			if apiKey == "" {
				return nil, errors.New("BROWSER_USE_API_KEY is not set. Add it to your environment to enable cloud browser tasks")
			}

			return map[string]interface{}{
				"task":   input["task"],
				"url":    input["url"],
				"notes":  input["notes"],
				"status": "accepted",
				"note":   "Cloud browser runtime is stubbed in this build; the task was validated but not dispatched.",
			}, nil
		},
	}
}

func shellTaskTool(opts Options) *Tool {
	return &Tool{
		ID:                   ToolShellTask,
		Description:          "Run a shell task in the workspace. Uses an allowlist; write/install/network commands are blocked.",
		DefaultNeedsApproval: true,
		Parameters: []Parameter{
			{Name: "command", Type: "string", Description: "Command to run (e.g. ls -la src)", Required: true},
			{Name: "workdir", Type: "string", Description: "Working directory (default: workspace root)", Required: false},
			{Name: "intent", Type: "string", Description: "Short reason for this command", Required: false},
		},
		Handler: func(ctx context.Context, input map[string]interface{}) (map[string]interface{}, error) {
			command, _ := input["command"].(string)
			workdir, _ := input["workdir"].(string)
			intent, _ := input["intent"].(string)

			if workdir == "" {
				workdir = workspaceRoot(ctx, opts)
			}

			res, err := guard.Run(ctx, guard.Request{Command: command, Workdir: workdir})
			if err != nil {
				return nil, err
			}

			return map[string]interface{}{
				"intent":    intent,
				"workdir":   res.Workdir,
				"command":   res.Command,
				"exit_code": res.ExitCode,
				"stdout":    res.Stdout,
				"stderr":    res.Stderr,
			}, nil
		},
	}
}

func adapterCallTool(opts Options) *Tool {
	return &Tool{
		ID:                   ToolAdapterCall,
		Description:          "Call an external adapter (source-control host, document store) through its uniform interface.",
		DefaultNeedsApproval: true,
		Parameters: []Parameter{
			{Name: "adapter_id", Type: "string", Description: "Adapter identifier", Required: true},
			{Name: "action", Type: "string", Description: "Action to perform", Required: true},
			{Name: "payload", Type: "object", Description: "Parameters for the action", Required: false},
		},
		Handler: func(ctx context.Context, input map[string]interface{}) (map[string]interface{}, error) {
			adapterID, _ := input["adapter_id"].(string)
			action, _ := input["action"].(string)
			payload, _ := input["payload"].(map[string]interface{})

			adapter, ok := opts.Adapters.Get(adapterID)
			if !ok {
				return nil, fmt.Errorf("adapter %s not found or disabled", adapterID)
			}

			if opts.Resolver == nil {
				return nil, fmt.Errorf("adapter %s is not connected: no credential resolver configured", adapterID)
			}

			cred, err := opts.Resolver.Resolve(ctx, adapterID, adapterEnvVars[adapterID])
			if err != nil {
				return nil, err
			}
			if cred == nil {
				return nil, fmt.Errorf("adapter %s is not connected. Connect it from the admin panel or set %s",
					adapterID, adapterEnvVars[adapterID])
			}

			return adapter.Call(ctx, cred.Token, action, payload)
		},
	}
}

func workspaceRoot(ctx context.Context, opts Options) string {
	if inv := InvocationFromContext(ctx); inv != nil && strings.TrimSpace(inv.Workdir) != "" {
		return filepath.Clean(inv.Workdir)
	}
	if strings.TrimSpace(opts.WorkspaceRoot) != "" {
		return filepath.Clean(opts.WorkspaceRoot)
	}
	return ""
}

// resolveWorkspacePath confines a relative path to the workspace root
func resolveWorkspacePath(root, pathValue string) (string, error) {
	pathValue = strings.TrimSpace(pathValue)
	if pathValue == "" {
		return "", errors.New("path is required")
	}

	candidate := pathValue
	if !filepath.IsAbs(candidate) {
		candidate = filepath.Join(root, candidate)
	}
	candidate = filepath.Clean(candidate)

	rel, err := filepath.Rel(root, candidate)
	if err != nil {
		return "", err
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("path %q is outside the workspace root", pathValue)
	}
	return candidate, nil
}
