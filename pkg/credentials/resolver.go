// Package credentials resolves bearer credentials for external adapters.
package credentials

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/rs/zerolog/log"

	"github.com/harun/lea/pkg/configstore"
)

// Source identifies where a credential came from
type Source string

const (
	SourceEnv    Source = "env"
	SourceStored Source = "stored"
)

// AdapterCredential is a resolved bearer credential for one adapter
type AdapterCredential struct {
	AdapterID string                 `json:"adapter_id"`
	Token     string                 `json:"-"`
	Source    Source                 `json:"source"`
	Raw       map[string]interface{} `json:"-"`
}

// CredentialStore is the narrow store surface the resolver needs
type CredentialStore interface {
	GetCredential(ctx context.Context, key string) (*configstore.Credential, error)
}

// Resolver resolves adapter credentials with env-override-first precedence
type Resolver struct {
	store CredentialStore
}

// NewResolver creates a resolver backed by the given credential store
func NewResolver(store CredentialStore) *Resolver {
	return &Resolver{store: store}
}

// Resolve returns the credential for an adapter, or nil when the adapter is
// not connected. Precedence: non-empty environment override first, then the
// stored `adapter-{id}` record. Stored values that parse as JSON use their
// accessToken/token field; anything else is treated as a raw bearer token.
// No caching: a later env change is seen by the next resolution.
func (r *Resolver) Resolve(ctx context.Context, adapterID, envVar string) (*AdapterCredential, error) {
	if adapterID == "" {
		return nil, fmt.Errorf("adapter id is required")
	}

	if envVar != "" {
		if value := os.Getenv(envVar); value != "" {
			log.Debug().Str("adapter", adapterID).Msg("Credential resolved from environment")
			return &AdapterCredential{
				AdapterID: adapterID,
				Token:     value,
				Source:    SourceEnv,
			}, nil
		}
	}

	if r.store == nil {
		return nil, nil
	}

	stored, err := r.store.GetCredential(ctx, "adapter-"+adapterID)
	if err != nil {
		return nil, fmt.Errorf("failed to read stored credential for %s: %w", adapterID, err)
	}
	if stored == nil {
		return nil, nil
	}

	cred := &AdapterCredential{
		AdapterID: adapterID,
		Source:    SourceStored,
	}

	var parsed map[string]interface{}
	if err := json.Unmarshal([]byte(stored.Value), &parsed); err == nil {
		cred.Raw = parsed
		if token, ok := parsed["accessToken"].(string); ok && token != "" {
			cred.Token = token
		} else if token, ok := parsed["token"].(string); ok && token != "" {
			cred.Token = token
		}
		if cred.Token == "" {
			return nil, nil
		}
		log.Debug().Str("adapter", adapterID).Msg("Credential resolved from stored record")
		return cred, nil
	}

	// Not JSON: the raw stored string is the bearer token itself
	cred.Token = stored.Value
	log.Debug().Str("adapter", adapterID).Msg("Credential resolved from raw stored value")
	return cred, nil
}
