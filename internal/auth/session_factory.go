package auth

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/dl-alexandre/gdsync/internal/api"
	"github.com/dl-alexandre/gdsync/internal/logging"
	"github.com/dl-alexandre/gdsync/internal/types"
	"github.com/dl-alexandre/gdsync/internal/utils"
	"github.com/dl-alexandre/gdsync/pkg/version"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/drive/v2"
	"google.golang.org/api/option"
)

// SessionFactory exchanges a credential triple for an authenticated Drive
// client. It holds configuration only; every NewSession call builds a fresh
// token source and service.
type SessionFactory struct {
	transport http.RoundTripper
	timeout   time.Duration
	endpoint  string
	tokenURL  string
	logger    logging.Logger
}

// SessionOption configures a SessionFactory
type SessionOption func(*SessionFactory)

// WithTransport sets the base transport under the OAuth layer
func WithTransport(rt http.RoundTripper) SessionOption {
	return func(f *SessionFactory) { f.transport = rt }
}

// WithTimeout bounds every HTTP request a session makes
func WithTimeout(d time.Duration) SessionOption {
	return func(f *SessionFactory) { f.timeout = d }
}

// WithEndpoint overrides the Drive API base URL
func WithEndpoint(endpoint string) SessionOption {
	return func(f *SessionFactory) { f.endpoint = endpoint }
}

// WithTokenURL overrides the OAuth token endpoint
func WithTokenURL(tokenURL string) SessionOption {
	return func(f *SessionFactory) { f.tokenURL = tokenURL }
}

// NewSessionFactory creates a new session factory
func NewSessionFactory(logger logging.Logger, opts ...SessionOption) *SessionFactory {
	if logger == nil {
		logger = logging.NewNoOpLogger()
	}
	f := &SessionFactory{
		timeout: time.Duration(utils.DefaultRequestTimeoutSec) * time.Second,
		logger:  logger,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// OAuthConfig returns the OAuth2 client configuration for the given client
// credentials with the full Drive scope.
func (f *SessionFactory) OAuthConfig(clientID, clientSecret string) *oauth2.Config {
	endpoint := google.Endpoint
	if f.tokenURL != "" {
		endpoint.TokenURL = f.tokenURL
	}
	return &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		Endpoint:     endpoint,
		Scopes:       []string{utils.ScopeFull},
	}
}

// NewSession validates creds and returns a store backed by a new Drive
// service. No network call is made until the store is used.
func (f *SessionFactory) NewSession(ctx context.Context, creds types.Credentials) (api.RemoteStore, error) {
	if err := ValidateCredentials(creds); err != nil {
		return nil, err
	}

	base := &http.Client{Timeout: f.timeout}
	if f.transport != nil {
		base.Transport = f.transport
	}
	tokenCtx := context.WithValue(context.Background(), oauth2.HTTPClient, base)

	conf := f.OAuthConfig(creds.ClientID, creds.ClientSecret)
	tokens := conf.TokenSource(tokenCtx, &oauth2.Token{RefreshToken: creds.RefreshToken})

	httpClient := oauth2.NewClient(tokenCtx, tokens)
	httpClient.Timeout = f.timeout

	opts := []option.ClientOption{option.WithHTTPClient(httpClient)}
	if f.endpoint != "" {
		opts = append(opts, option.WithEndpoint(f.endpoint))
	}
	svc, err := drive.NewService(ctx, opts...)
	if err != nil {
		return nil, utils.WrapAppError(err, utils.NewCLIError(utils.ErrCodeInternalError,
			"failed to create drive service").Build())
	}
	svc.UserAgent = version.UserAgent()

	f.logger.Debug("Drive session created", logging.F("clientId", creds.ClientID))
	return api.NewClient(svc, tokens, f.logger), nil
}

// ValidateCredentials rejects a triple with any blank field
func ValidateCredentials(creds types.Credentials) error {
	switch {
	case strings.TrimSpace(creds.ClientID) == "":
		return utils.InvalidArgument("clientId", "client id must not be blank")
	case strings.TrimSpace(creds.ClientSecret) == "":
		return utils.InvalidArgument("clientSecret", "client secret must not be blank")
	case strings.TrimSpace(creds.RefreshToken) == "":
		return utils.NewAppError(utils.NewCLIError(utils.ErrCodeAuthRequired,
			"refresh token is missing").Build())
	}
	return nil
}
