package auth

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/tidwall/gjson"

	"github.com/mkb69/aaxconnect/internal/api"
	"github.com/mkb69/aaxconnect/internal/domain"
	aaxerrors "github.com/mkb69/aaxconnect/internal/errors"
	"github.com/mkb69/aaxconnect/internal/metrics"
)

// TokenSource guards a credential set's bearer token. Every authenticated
// call asks it for the access token; if the token is stale it exchanges the
// refresh token for a new one first. Refresh-then-use is sequential: the
// dependent call proceeds only after the refresh has committed. On refresh
// failure the credential set is left untouched so the caller may retry.
type TokenSource struct {
	api    *api.Client
	logger *slog.Logger
	now    func() time.Time

	mu    sync.Mutex
	creds *domain.DeviceCredentials
}

// TokenSourceOption configures the TokenSource.
type TokenSourceOption func(*TokenSource)

// WithTokenLogger sets the logger.
func WithTokenLogger(logger *slog.Logger) TokenSourceOption {
	return func(ts *TokenSource) { ts.logger = logger }
}

// WithTokenClock overrides the clock. Used by tests.
func WithTokenClock(now func() time.Time) TokenSourceOption {
	return func(ts *TokenSource) { ts.now = now }
}

// NewTokenSource takes ownership of the credential set. Only the TokenSource
// mutates it afterwards, and only AccessToken together with ExpiresAt.
func NewTokenSource(apiClient *api.Client, creds *domain.DeviceCredentials, opts ...TokenSourceOption) *TokenSource {
	ts := &TokenSource{
		api:    apiClient,
		logger: slog.Default(),
		now:    time.Now,
		creds:  creds,
	}
	for _, opt := range opts {
		opt(ts)
	}
	return ts
}

// AccessToken returns a fresh bearer token, refreshing first if the current
// one has expired.
func (ts *TokenSource) AccessToken(ctx context.Context) (string, error) {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	if ts.creds.IsExpired(ts.now()) {
		if err := ts.refreshLocked(ctx); err != nil {
			return "", err
		}
	}
	return ts.creds.AccessToken, nil
}

// Credentials returns a snapshot of the credential set, token and expiry
// taken together.
func (ts *TokenSource) Credentials() domain.DeviceCredentials {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	return *ts.creds
}

// Refresh forces a token exchange regardless of expiry state.
func (ts *TokenSource) Refresh(ctx context.Context) error {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	return ts.refreshLocked(ctx)
}

func (ts *TokenSource) refreshLocked(ctx context.Context) error {
	form := url.Values{}
	form.Set("app_name", appName)
	form.Set("app_version", appVersion)
	form.Set("source_token", ts.creds.RefreshToken)
	form.Set("source_token_type", "refresh_token")
	form.Set("requested_token_type", "access_token")

	status, body, err := ts.api.PostForm(ctx, ts.api.AmazonURL("/auth/token"), form, nil)
	if err != nil {
		metrics.RecordTokenRefresh("error")
		return err
	}
	if status != 200 {
		metrics.RecordTokenRefresh("rejected")
		return aaxerrors.Network(fmt.Sprintf("token refresh returned %d: %s", status, body), nil)
	}

	accessToken := gjson.GetBytes(body, "access_token")
	expiresIn := gjson.GetBytes(body, "expires_in")
	if !accessToken.Exists() || accessToken.String() == "" || !expiresIn.Exists() {
		metrics.RecordTokenRefresh("bad_response")
		return aaxerrors.Decoding("token refresh response missing access_token or expires_in", nil)
	}

	// Commit token and expiry as one replacement; nothing else changes.
	ts.creds.AccessToken = accessToken.String()
	ts.creds.ExpiresAt = float64(ts.now().Unix()) + expiresIn.Float()

	metrics.RecordTokenRefresh("success")
	ts.logger.Debug("access token refreshed", "expires_at", ts.creds.ExpiresAt)
	return nil
}
