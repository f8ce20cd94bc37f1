package catalog

import "context"

// Invocation carries per-run information tool handlers may need
type Invocation struct {
	// Settings from the tool's policy record, validated at the config boundary
	Settings map[string]string
	// Workdir for filesystem and shell tools
	Workdir string
	// SessionKey identifies the owning conversation
	SessionKey string
}

type invocationKey struct{}

// ContextWithInvocation attaches invocation details for tool handlers
func ContextWithInvocation(ctx context.Context, inv *Invocation) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	if inv == nil {
		return ctx
	}
	return context.WithValue(ctx, invocationKey{}, inv)
}

// InvocationFromContext extracts invocation details, if present
func InvocationFromContext(ctx context.Context) *Invocation {
	if ctx == nil {
		return nil
	}
	if v := ctx.Value(invocationKey{}); v != nil {
		if inv, ok := v.(*Invocation); ok {
			return inv
		}
	}
	return nil
}

// settingFromContext returns a named setting for the current invocation
func settingFromContext(ctx context.Context, key string) string {
	inv := InvocationFromContext(ctx)
	if inv == nil {
		return ""
	}
	return inv.Settings[key]
}
