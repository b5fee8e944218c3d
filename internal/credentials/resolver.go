// Package credentials resolves the Graph API credentials of a tenant.
package credentials

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"whatsapp-templates/internal/cache"
	"whatsapp-templates/internal/config"
	apperrors "whatsapp-templates/internal/errors"
	"whatsapp-templates/internal/store"

	"go.uber.org/zap"
)

// Resolver looks a tenant up in the cache, then in its stored account, then falls back to env defaults.
// The shared cache never holds the access token; tokens stay in process memory.
type Resolver struct {
	accounts store.AccountStore
	cache    cache.Cache
	tokens   *cache.MemoryCache
	defaults config.Credentials
	ttl      time.Duration
	log      *zap.Logger
}

func NewResolver(accounts store.AccountStore, c cache.Cache, cfg *config.Config, log *zap.Logger) *Resolver {
	return &Resolver{
		accounts: accounts,
		cache:    c,
		tokens:   cache.NewMemoryCache(),
		defaults: cfg.DefaultCredentials(),
		ttl:      cfg.CredentialCacheTTL,
		log:      log,
	}
}

func cacheKey(tenantID string) string {
	return "creds:" + tenantID
}

// Resolve returns a ConfigurationError when the access token or WABA id cannot be found.
// Upload-only fields (app id, phone number id) are checked by the client that needs them.
func (r *Resolver) Resolve(ctx context.Context, tenantID string) (config.Credentials, error) {
	if creds, ok := r.cached(ctx, tenantID); ok {
		return creds, nil
	}

	creds := r.defaults
	account, err := r.accounts.GetByTenant(ctx, tenantID)
	switch {
	case err == nil:
		creds = merge(account.AccessToken, account.GraphBaseURL, account.GraphVersion,
			account.WabaID, account.PhoneNumberID, account.AppID, r.defaults)
	case errors.Is(err, apperrors.ErrNotFound):
		r.log.Debug("no stored account, using default credentials", zap.String("tenant_id", tenantID))
	default:
		return config.Credentials{}, &apperrors.ConfigurationError{TenantID: tenantID, Cause: err}
	}

	if missing := missingFields(creds); len(missing) > 0 {
		return config.Credentials{}, &apperrors.ConfigurationError{TenantID: tenantID, Missing: missing}
	}

	r.remember(ctx, tenantID, creds)
	return creds, nil
}

func (r *Resolver) cached(ctx context.Context, tenantID string) (config.Credentials, bool) {
	token, ok := r.tokens.Get(ctx, cacheKey(tenantID))
	if !ok {
		return config.Credentials{}, false
	}
	raw, ok := r.cache.Get(ctx, cacheKey(tenantID))
	if !ok {
		return config.Credentials{}, false
	}
	var creds config.Credentials
	if err := json.Unmarshal(raw, &creds); err != nil {
		r.cache.Delete(ctx, cacheKey(tenantID))
		return config.Credentials{}, false
	}
	creds.AccessToken = string(token)
	return creds, true
}

func (r *Resolver) remember(ctx context.Context, tenantID string, creds config.Credentials) {
	shared := creds
	shared.AccessToken = ""
	raw, err := json.Marshal(shared)
	if err != nil {
		return
	}
	r.cache.Set(ctx, cacheKey(tenantID), raw, r.ttl)
	r.tokens.Set(ctx, cacheKey(tenantID), []byte(creds.AccessToken), r.ttl)
}

// TenantForWaba maps a webhook's WABA id back to a tenant.
func (r *Resolver) TenantForWaba(ctx context.Context, wabaID string) (string, error) {
	account, err := r.accounts.GetByWabaID(ctx, wabaID)
	if err != nil {
		return "", err
	}
	return account.TenantID, nil
}

// Invalidate drops the cached credentials of a tenant.
func (r *Resolver) Invalidate(ctx context.Context, tenantID string) {
	r.cache.Delete(ctx, cacheKey(tenantID))
	r.tokens.Delete(ctx, cacheKey(tenantID))
}

func merge(token, baseURL, version, waba, phone, app string, d config.Credentials) config.Credentials {
	return config.Credentials{
		AccessToken:   firstNonEmpty(token, d.AccessToken),
		GraphBaseURL:  firstNonEmpty(baseURL, d.GraphBaseURL),
		GraphVersion:  firstNonEmpty(version, d.GraphVersion),
		WabaID:        firstNonEmpty(waba, d.WabaID),
		PhoneNumberID: firstNonEmpty(phone, d.PhoneNumberID),
		AppID:         firstNonEmpty(app, d.AppID),
	}
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func missingFields(c config.Credentials) []string {
	var missing []string
	if c.AccessToken == "" {
		missing = append(missing, "access_token")
	}
	if c.WabaID == "" {
		missing = append(missing, "waba_id")
	}
	if c.GraphBaseURL == "" {
		missing = append(missing, "graph_base_url")
	}
	if c.GraphVersion == "" {
		missing = append(missing, "graph_version")
	}
	return missing
}
