// Package auth exchanges Google service account keys for short-lived bearer
// tokens.
package auth

import (
	"context"
	"crypto/x509"
	"encoding/pem"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/ajitpratap0/nebula-sheets/pkg/errors"
)

// SpreadsheetsReadOnlyScope grants read access to spreadsheets.
const SpreadsheetsReadOnlyScope = "https://www.googleapis.com/auth/spreadsheets.readonly"

// AccessToken is a bearer token issued for one scan. It is not refreshed:
// a scan fetches once and the token only has to outlive that fetch.
type AccessToken struct {
	Value  string
	Type   string
	Expiry time.Time
}

// String redacts the token value so it never ends up in logs.
func (t *AccessToken) String() string {
	if t == nil {
		return "<nil>"
	}
	return "Bearer [redacted]"
}

// Header returns the Authorization header value.
func (t *AccessToken) Header() string {
	return "Bearer " + t.Value
}

// TokenSource exposes the token to clients built on oauth2, such as the
// Sheets API client.
func (t *AccessToken) TokenSource() oauth2.TokenSource {
	return oauth2.StaticTokenSource(&oauth2.Token{
		AccessToken: t.Value,
		TokenType:   t.Type,
		Expiry:      t.Expiry,
	})
}

// Acquirer turns key material into an AccessToken.
type Acquirer interface {
	Acquire(ctx context.Context, key []byte) (*AccessToken, error)
}

// ServiceAccountAcquirer performs the JWT bearer grant for a service account.
type ServiceAccountAcquirer struct {
	scopes     []string
	tokenURL   string
	httpClient *http.Client
	logger     *zap.Logger
}

// Option configures a ServiceAccountAcquirer.
type Option func(*ServiceAccountAcquirer)

// WithScopes replaces the default read-only spreadsheet scope.
func WithScopes(scopes ...string) Option {
	return func(a *ServiceAccountAcquirer) {
		a.scopes = append([]string(nil), scopes...)
	}
}

// WithTokenURL overrides the token endpoint named in the key's token_uri.
func WithTokenURL(tokenURL string) Option {
	return func(a *ServiceAccountAcquirer) {
		a.tokenURL = tokenURL
	}
}

// WithHTTPClient sets the client used for the token exchange.
func WithHTTPClient(client *http.Client) Option {
	return func(a *ServiceAccountAcquirer) {
		a.httpClient = client
	}
}

// NewServiceAccountAcquirer creates an acquirer bound to the read-only
// spreadsheet scope unless WithScopes says otherwise.
func NewServiceAccountAcquirer(logger *zap.Logger, opts ...Option) *ServiceAccountAcquirer {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &ServiceAccountAcquirer{
		scopes: []string{SpreadsheetsReadOnlyScope},
		logger: logger.With(zap.String("component", "credential_acquirer")),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Acquire parses the service account key and performs a blocking token
// exchange. There is no retry here; a failure aborts the scan.
func (a *ServiceAccountAcquirer) Acquire(ctx context.Context, key []byte) (*AccessToken, error) {
	cfg, err := google.JWTConfigFromJSON(key, a.scopes...)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeMalformedKey, "cannot parse service account key")
	}
	if err := validatePrivateKey(cfg.PrivateKey); err != nil {
		return nil, err
	}
	if a.tokenURL != "" {
		cfg.TokenURL = a.tokenURL
	}

	if a.httpClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, a.httpClient)
	}

	start := time.Now()
	tok, err := cfg.TokenSource(ctx).Token()
	if err != nil {
		a.logger.Warn("token exchange failed",
			zap.String("client_email", cfg.Email),
			zap.Error(err))
		return nil, errors.Wrap(err, errors.CodeTokenExchangeFailed, "service account token exchange failed")
	}
	if tok == nil || tok.AccessToken == "" {
		return nil, errors.New(errors.CodeEmptyToken, "token response holds no access token").
			WithDetail("client_email", cfg.Email)
	}

	tokenType := tok.TokenType
	if tokenType == "" {
		tokenType = "Bearer"
	}

	a.logger.Debug("token acquired",
		zap.String("client_email", cfg.Email),
		zap.Time("expires_at", tok.Expiry),
		zap.Duration("duration", time.Since(start)))

	return &AccessToken{
		Value:  tok.AccessToken,
		Type:   tokenType,
		Expiry: tok.Expiry,
	}, nil
}

// validatePrivateKey rejects keys the JWT signer would fail on, so that a
// broken key is reported as malformed rather than as an exchange failure.
func validatePrivateKey(key []byte) error {
	if len(key) == 0 {
		return errors.New(errors.CodeMalformedKey, "service account key has no private_key")
	}
	block, _ := pem.Decode(key)
	if block == nil {
		return errors.New(errors.CodeMalformedKey, "private_key is not PEM encoded")
	}
	if _, err := x509.ParsePKCS8PrivateKey(block.Bytes); err == nil {
		return nil
	}
	if _, err := x509.ParsePKCS1PrivateKey(block.Bytes); err != nil {
		return errors.Wrap(err, errors.CodeMalformedKey, "private_key is neither PKCS#8 nor PKCS#1")
	}
	return nil
}
