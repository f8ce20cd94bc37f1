package catalog

import (
	"context"
	"fmt"
)

// capabilityStub describes an inert capability entry. Stubs respond with a
// stable explanation instead of performing their action; the approval default
// is declared explicitly per entry rather than inferred from the name at
// runtime. IsSensitiveName documents where those defaults came from.
type capabilityStub struct {
	ID               string
	Description      string
	RequiresApproval bool
}

var capabilityStubs = []capabilityStub{
	{
		ID:          "message_notify_user",
		Description: "Send a one-way notification message to the user.",
	},
	{
		ID:          "message_ask_user",
		Description: "Ask the user a question and wait for a reply.",
	},
	{
		ID:          "file_read",
		Description: "Read a file from the execution sandbox.",
	},
	{
		ID:               "file_write",
		Description:      "Write a file in the execution sandbox.",
		RequiresApproval: true,
	},
	{
		ID:               "shell_exec",
		Description:      "Execute a command in the sandbox shell.",
		RequiresApproval: true,
	},
	{
		ID:               "shell_view",
		Description:      "View the output of a sandbox shell session.",
		RequiresApproval: true,
	},
	{
		ID:               "browser_navigate",
		Description:      "Navigate the sandbox browser to a URL.",
		RequiresApproval: true,
	},
	{
		ID:               "browser_click",
		Description:      "Click an element in the sandbox browser.",
		RequiresApproval: true,
	},
	{
		ID:          "info_search_web",
		Description: "Search the web from the execution sandbox.",
	},
	{
		ID:               "deploy_expose_port",
		Description:      "Expose a sandbox port to a public URL.",
		RequiresApproval: true,
	},
}

func stubTool(stub capabilityStub) *Tool {
	id := stub.ID
	return &Tool{
		ID:                   id,
		Description:          stub.Description + " (Not available in this build.)",
		DefaultNeedsApproval: stub.RequiresApproval,
		Parameters: []Parameter{
			{Name: "request", Type: "string", Description: "What you want this capability to do", Required: false},
		},
		Handler: func(_ context.Context, input map[string]interface{}) (map[string]interface{}, error) {
			return map[string]interface{}{
				"capability": id,
				"input":      input,
				"message":    fmt.Sprintf("Capability %s requires an execution sandbox, which is not attached in this build.", id),
			}, nil
		},
	}
}
