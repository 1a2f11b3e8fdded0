package idealista

import (
	"context"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"idealista-go/pkg/config"
	"idealista-go/pkg/logger"
)

// BaseURL is the versioned root of the search API.
const BaseURL = "https://api.idealista.com/3.5"

// Client is an authenticated idealista client. It is immutable once created and safe
// for concurrent use. The token is never refreshed; authenticate again for a new one.
type Client struct {
	clientID   string
	token      Token
	baseURL    string
	httpClient *http.Client
	log        *logger.Logger
}

type settings struct {
	baseURL    string
	httpClient *http.Client
	tokens     *TokenCache
	log        *logger.Logger
}

// Option customizes Authenticate.
type Option func(*settings)

// WithBaseURL overrides the API root (default BaseURL).
func WithBaseURL(u string) Option {
	return func(s *settings) { s.baseURL = strings.TrimRight(u, "/") }
}

// WithHTTPClient sets the client used for search requests.
func WithHTTPClient(c *http.Client) Option {
	return func(s *settings) { s.httpClient = c }
}

// WithTokenCache sets the token memoization used by Authenticate (default DefaultTokenCache).
func WithTokenCache(c *TokenCache) Option {
	return func(s *settings) { s.tokens = c }
}

// WithLogger sets the client logger (default logger.Default).
func WithLogger(l *logger.Logger) Option {
	return func(s *settings) { s.log = l }
}

// Authenticate obtains a token for the credential pair and returns a client holding it.
// Tokens are memoized per exact pair, so repeated calls do not reach the token endpoint.
func Authenticate(ctx context.Context, clientID, clientSecret string, opts ...Option) (*Client, error) {
	s := settings{
		baseURL:    BaseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		tokens:     DefaultTokenCache(),
		log:        logger.Default(),
	}
	for _, opt := range opts {
		opt(&s)
	}
	if s.httpClient == nil {
		s.httpClient = http.DefaultClient
	}
	if s.tokens == nil {
		s.tokens = DefaultTokenCache()
	}
	if s.log == nil {
		s.log = logger.Discard()
	}

	token, err := s.tokens.Token(ctx, clientID, clientSecret)
	if err != nil {
		return nil, &AuthenticationError{ClientID: clientID, Err: err}
	}
	s.log.Debugf("Authenticated idealista client: client_id=%s, token_type=%s", clientID, token.TokenType())

	return &Client{
		clientID:   clientID,
		token:      token,
		baseURL:    s.baseURL,
		httpClient: authorize(s.httpClient, token),
		log:        s.log,
	}, nil
}

// token caches for AuthenticateFromConfig, one per token endpoint, timeout and log level
var configTokenCaches sync.Map

type configCacheKey struct {
	tokenURL string
	timeout  time.Duration
	logLevel string
}

// AuthenticateFromConfig authenticates with the credentials and endpoints in cfg.
// opts are applied after the config-derived options.
func AuthenticateFromConfig(ctx context.Context, cfg *config.Config, opts ...Option) (*Client, error) {
	httpClient := &http.Client{Timeout: cfg.Idealista.Timeout}
	log := logger.New(os.Stderr, cfg.Log.Level)

	key := configCacheKey{
		tokenURL: cfg.Idealista.TokenURL,
		timeout:  cfg.Idealista.Timeout,
		logLevel: strings.ToUpper(cfg.Log.Level),
	}
	cached, ok := configTokenCaches.Load(key)
	if !ok {
		fresh := NewTokenCache(NewOAuth2Fetcher(cfg.Idealista.TokenURL, httpClient)).WithLogger(log)
		cached, _ = configTokenCaches.LoadOrStore(key, fresh)
	}
	tokens := cached.(*TokenCache)

	base := []Option{
		WithBaseURL(cfg.Idealista.BaseURL),
		WithHTTPClient(httpClient),
		WithTokenCache(tokens),
		WithLogger(log),
	}
	return Authenticate(ctx, cfg.Idealista.ClientID, cfg.Idealista.ClientSecret, append(base, opts...)...)
}

// ClientID returns the client identifier.
func (c *Client) ClientID() string {
	return c.clientID
}

// Token returns a copy of the held token.
func (c *Client) Token() Token {
	return c.token.clone()
}
