// internal/runtime/auth.go
package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/AzureAD/microsoft-authentication-library-for-go/apps/cache"
	"github.com/AzureAD/microsoft-authentication-library-for-go/apps/public"

	"github.com/nholloway/teams-export/internal/config"
	"github.com/nholloway/teams-export/internal/fsio"
	"github.com/nholloway/teams-export/internal/graph"
)

// expirySlack renews tokens slightly before they actually expire.
const expirySlack = 2 * time.Minute

// fileTokenCache persists the MSAL token cache at a fixed path so repeat
// runs skip the device flow.
type fileTokenCache struct {
	path string
}

func (f *fileTokenCache) Replace(_ context.Context, c cache.Unmarshaler, _ cache.ReplaceHints) error {
	data, err := os.ReadFile(f.path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	return c.Unmarshal(data)
}

func (f *fileTokenCache) Export(_ context.Context, c cache.Marshaler, _ cache.ExportHints) error {
	data, err := c.Marshal()
	if err != nil {
		return err
	}
	return fsio.WriteFileAtomic(f.path, data, 0o600)
}

// TokenProvider acquires Graph access tokens via the device-code flow,
// reusing cached credentials when it can.
type TokenProvider struct {
	client public.Client
	scopes []string
	log    *slog.Logger
	// Prompt shows the device-code instruction to the user.
	Prompt func(string)
	// ForceLogin skips cached accounts for the first acquisition.
	ForceLogin bool

	mu      sync.Mutex
	token   string
	expires time.Time
}

// NewTokenProvider builds a TokenProvider for the configured app registration.
func NewTokenProvider(cfg config.App, logger *slog.Logger) (*TokenProvider, error) {
	client, err := public.New(cfg.ClientID,
		public.WithAuthority(cfg.Authority),
		public.WithCache(&fileTokenCache{path: cfg.TokenCachePath}),
	)
	if err != nil {
		return nil, fmt.Errorf("create auth client: %w", err)
	}
	return &TokenProvider{
		client: client,
		scopes: cfg.Scopes,
		log:    logger,
		Prompt: func(msg string) { fmt.Fprintln(os.Stderr, msg) },
	}, nil
}

// Token implements TokenSource. It tries cached accounts first, then falls
// back to an interactive device-code sign-in.
func (p *TokenProvider) Token(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.token != "" && time.Until(p.expires) > expirySlack {
		return p.token, nil
	}

	if !p.ForceLogin {
		accounts, err := p.client.Accounts(ctx)
		if err != nil {
			p.log.Debug("listing cached accounts failed", "error", err)
		}
		for _, account := range accounts {
			result, err := p.client.AcquireTokenSilent(ctx, p.scopes, public.WithSilentAccount(account))
			if err != nil {
				continue
			}
			p.store(result)
			return p.token, nil
		}
	}

	flow, err := p.client.AcquireTokenByDeviceCode(ctx, p.scopes)
	if err != nil {
		return "", fmt.Errorf("initiate device flow: %v: %w", err, graph.ErrAuth)
	}
	if p.Prompt != nil {
		p.Prompt(flow.Result.Message)
	}
	result, err := flow.AuthenticationResult(ctx)
	if err != nil {
		return "", fmt.Errorf("device flow sign-in: %v: %w", err, graph.ErrAuth)
	}
	p.store(result)
	p.ForceLogin = false
	return p.token, nil
}

func (p *TokenProvider) store(result public.AuthResult) {
	p.token = result.AccessToken
	p.expires = result.ExpiresOn
}

// DefaultLogger returns the process-wide logger used by the CLI.
func DefaultLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
}
