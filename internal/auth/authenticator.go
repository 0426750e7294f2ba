// Package auth turns the configured cluster credentials into a request
// authenticator shared by the version probe and every client implementation.
package auth

import (
	"fmt"
	"net/http"

	"github.com/IBM/go-sdk-core/v5/core"
	"go.uber.org/zap"
)

// Authentication modes
const (
	ModeAPIKey = "api_key"
	ModeBasic  = "basic"
	ModeNone   = "none"
)

// Credentials are the credential forms accepted by the server. APIKey is
// mutually exclusive with Username/Password; config validation enforces it.
type Credentials struct {
	APIKey   string
	Username string
	Password string
}

// Authenticator decorates outgoing cluster requests with credentials
type Authenticator struct {
	authenticator core.Authenticator
	mode          string
	logger        *zap.Logger
}

// New creates an authenticator for the given credentials
func New(creds Credentials, logger *zap.Logger) (*Authenticator, error) {
	var (
		authenticator core.Authenticator
		mode          string
		err           error
	)

	switch {
	case creds.APIKey != "":
		authenticator = &apiKeyAuthenticator{apiKey: creds.APIKey}
		mode = ModeAPIKey
	case creds.Username != "" || creds.Password != "":
		authenticator, err = core.NewBasicAuthenticator(creds.Username, creds.Password)
		mode = ModeBasic
	default:
		authenticator, err = core.NewNoAuthAuthenticator()
		mode = ModeNone
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create %s authenticator: %w", mode, err)
	}

	if err := authenticator.Validate(); err != nil {
		return nil, fmt.Errorf("failed to validate authenticator: %w", err)
	}

	logger.Info("Cluster authenticator initialized", zap.String("mode", mode))

	return &Authenticator{
		authenticator: authenticator,
		mode:          mode,
		logger:        logger,
	}, nil
}

// Mode returns the authentication mode in use
func (a *Authenticator) Mode() string {
	return a.mode
}

// Authenticate adds authentication to an HTTP request
func (a *Authenticator) Authenticate(req *http.Request) error {
	if req == nil {
		return fmt.Errorf("request cannot be nil")
	}

	if err := a.authenticator.Authenticate(req); err != nil {
		a.logger.Error("Authentication failed", zap.Error(err))
		return fmt.Errorf("authentication failed: %w", err)
	}

	return nil
}

// RoundTripper returns a transport that authenticates every request before
// handing it to next. The caller's request is never mutated.
func (a *Authenticator) RoundTripper(next http.RoundTripper) http.RoundTripper {
	if next == nil {
		next = http.DefaultTransport
	}
	return &authTransport{auth: a, next: next}
}

type authTransport struct {
	auth *Authenticator
	next http.RoundTripper
}

func (t *authTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	clone := req.Clone(req.Context())
	if err := t.auth.Authenticate(clone); err != nil {
		return nil, err
	}
	return t.next.RoundTrip(clone)
}

// apiKeyAuthenticator sends "Authorization: ApiKey <key>", the form
// Elasticsearch expects for encoded API keys.
type apiKeyAuthenticator struct {
	apiKey string
}

func (a *apiKeyAuthenticator) AuthenticationType() string {
	return "apiKey"
}

func (a *apiKeyAuthenticator) Authenticate(req *http.Request) error {
	req.Header.Set("Authorization", "ApiKey "+a.apiKey)
	return nil
}

func (a *apiKeyAuthenticator) Validate() error {
	if a.apiKey == "" {
		return fmt.Errorf("API key is required")
	}
	return nil
}
