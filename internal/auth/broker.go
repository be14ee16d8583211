// Package auth turns cached account tokens into usable bearer credentials,
// refreshing them silently through OAuth2 when they have expired.
package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"
	"golang.org/x/sync/singleflight"

	"github.com/rockfordlhotka/calendar-mcp/internal/model"
	"github.com/rockfordlhotka/calendar-mcp/internal/provider"
)

// TokenStore persists tokens per account.
type TokenStore interface {
	LoadToken(accountID string) (*oauth2.Token, error)
	SaveToken(accountID string, tok *oauth2.Token) error
}

// EndpointFunc returns the OAuth2 endpoint that refreshes tokens for acct.
// It reports false for accounts that cannot be refreshed.
type EndpointFunc func(kind model.ProviderKind, acct model.Account) (oauth2.Endpoint, bool)

// DefaultEndpoint maps organizational accounts to their tenant (or the
// multi-tenant "organizations" authority), personal accounts to the
// consumer authority, and workspace accounts to Google.
func DefaultEndpoint(kind model.ProviderKind, acct model.Account) (oauth2.Endpoint, bool) {
	switch kind {
	case model.ProviderOrganizational:
		return endpoints.AzureAD(acct.Setting("tenant_id", "organizations")), true
	case model.ProviderPersonal:
		return endpoints.AzureAD("consumers"), true
	case model.ProviderWorkspace:
		return endpoints.Google, true
	}
	return oauth2.Endpoint{}, false
}

// refreshTimeout bounds one token refresh round trip.
const refreshTimeout = 30 * time.Second

// Broker implements provider.Authenticator on top of a TokenStore.
// Concurrent refreshes for the same account collapse into one.
type Broker struct {
	store    TokenStore
	log      *zap.Logger
	endpoint EndpointFunc
	refresh  singleflight.Group
}

// Option customises a Broker.
type Option func(*Broker)

// WithEndpoint overrides how refresh endpoints are chosen.
func WithEndpoint(fn EndpointFunc) Option {
	return func(b *Broker) { b.endpoint = fn }
}

// NewBroker creates a broker reading from store.
func NewBroker(store TokenStore, log *zap.Logger, opts ...Option) *Broker {
	b := &Broker{
		store:    store,
		log:      log.Named("auth"),
		endpoint: DefaultEndpoint,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// GetCredential implements provider.Authenticator. It returns (nil, nil)
// when nothing is cached, when an expired token has no refresh token, or
// when the identity provider rejects the refresh; each of these needs a
// new enrollment rather than a retry.
func (b *Broker) GetCredential(ctx context.Context, acct model.Account, scopes []string) (*provider.Credential, error) {
	tok, err := b.store.LoadToken(acct.ID)
	if err != nil {
		return nil, err
	}
	if tok == nil {
		return nil, nil
	}
	if tok.Valid() {
		return toCredential(tok), nil
	}
	if tok.RefreshToken == "" {
		b.log.Info("cached token expired without refresh token", zap.String("account", acct.ID))
		return nil, nil
	}

	// The shared refresh outlives any single caller; each caller waits
	// only as long as its own context allows.
	ch := b.refresh.DoChan(acct.ID, func() (any, error) {
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), refreshTimeout)
		defer cancel()
		return b.refreshToken(rctx, acct, tok, scopes)
	})
	var res singleflight.Result
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res = <-ch:
	}
	if res.Err != nil {
		return nil, res.Err
	}
	if res.Shared {
		b.log.Debug("joined in-flight refresh", zap.String("account", acct.ID))
	}
	refreshed, _ := res.Val.(*oauth2.Token)
	if refreshed == nil {
		return nil, nil
	}
	return toCredential(refreshed), nil
}

func (b *Broker) refreshToken(ctx context.Context, acct model.Account, tok *oauth2.Token, scopes []string) (*oauth2.Token, error) {
	kind, ok := acct.Kind()
	if !ok {
		return nil, fmt.Errorf("account %s: %w", acct.ID, provider.ErrUnknownProvider)
	}
	endpoint, ok := b.endpoint(kind, acct)
	clientID := acct.Setting("client_id", "")
	if !ok || clientID == "" {
		b.log.Warn("token expired and account has no refresh configuration",
			zap.String("account", acct.ID))
		return nil, nil
	}

	cfg := &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: acct.Setting("client_secret", ""),
		Endpoint:     endpoint,
		Scopes:       scopes,
	}

	start := time.Now()
	fresh, err := cfg.TokenSource(ctx, tok).Token()
	if err != nil {
		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) {
			b.log.Warn("refresh rejected; account needs enrollment",
				zap.String("account", acct.ID),
				zap.String("error_code", retrieveErr.ErrorCode),
			)
			return nil, nil
		}
		return nil, fmt.Errorf("refreshing token for %s: %w", acct.ID, err)
	}

	if err := b.store.SaveToken(acct.ID, fresh); err != nil {
		// The fresh token is still usable for this call.
		b.log.Error("caching refreshed token", zap.String("account", acct.ID), zap.Error(err))
	}
	b.log.Debug("token refreshed",
		zap.String("account", acct.ID),
		zap.Duration("took", time.Since(start)),
		zap.Time("expiry", fresh.Expiry),
	)
	return fresh, nil
}

// Enroll stores a token obtained out of band (an interactive sign-in or an
// IMAP app password) for an account.
func (b *Broker) Enroll(accountID string, tok *oauth2.Token) error {
	if tok == nil || tok.AccessToken == "" {
		return errors.New("empty token")
	}
	return b.store.SaveToken(accountID, tok)
}

func toCredential(tok *oauth2.Token) *provider.Credential {
	return &provider.Credential{
		AccessToken: tok.AccessToken,
		TokenType:   tok.Type(),
		Expiry:      tok.Expiry,
	}
}
