package idealista

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"idealista-go/pkg/logger"
	"idealista-go/pkg/metrics"

	"golang.org/x/crypto/blake2b"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
	"golang.org/x/sync/singleflight"
)

// TokenURL is the idealista OAuth2 token endpoint.
const TokenURL = "https://api.idealista.com/oauth/token"

// Token is the decoded token endpoint response, kept opaque. Every field of a JSON
// response is kept; access_token, token_type, refresh_token, expires_in and expiry
// (RFC 3339, UTC) are filled from the parsed token when available.
type Token map[string]interface{}

// AccessToken returns the access_token entry, or "".
func (t Token) AccessToken() string {
	s, _ := t["access_token"].(string)
	return s
}

// TokenType returns the token_type entry, or "".
func (t Token) TokenType() string {
	s, _ := t["token_type"].(string)
	return s
}

func (t Token) clone() Token {
	if t == nil {
		return nil
	}
	out := make(Token, len(t))
	for k, v := range t {
		out[k] = v
	}
	return out
}

// TokenFetcher obtains a token for a client credential pair.
type TokenFetcher interface {
	FetchToken(ctx context.Context, clientID, clientSecret string) (Token, error)
}

// TokenFetcherFunc adapts a function to TokenFetcher.
type TokenFetcherFunc func(ctx context.Context, clientID, clientSecret string) (Token, error)

func (f TokenFetcherFunc) FetchToken(ctx context.Context, clientID, clientSecret string) (Token, error) {
	return f(ctx, clientID, clientSecret)
}

// OAuth2Fetcher runs the client-credentials grant against a token endpoint,
// sending the credentials with HTTP Basic auth.
type OAuth2Fetcher struct {
	TokenURL   string
	HTTPClient *http.Client
}

// NewOAuth2Fetcher creates a fetcher. A nil httpClient uses a client with a 30s timeout.
func NewOAuth2Fetcher(tokenURL string, httpClient *http.Client) *OAuth2Fetcher {
	if tokenURL == "" {
		tokenURL = TokenURL
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &OAuth2Fetcher{TokenURL: tokenURL, HTTPClient: httpClient}
}

func (f *OAuth2Fetcher) FetchToken(ctx context.Context, clientID, clientSecret string) (Token, error) {
	cfg := clientcredentials.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		TokenURL:     f.TokenURL,
		AuthStyle:    oauth2.AuthStyleInHeader,
	}

	base := f.HTTPClient
	if base == nil {
		base = http.DefaultClient
	}
	capture := &bodyRecorder{base: base.Transport}
	httpClient := *base
	httpClient.Transport = capture
	ctx = context.WithValue(ctx, oauth2.HTTPClient, &httpClient)

	tok, err := cfg.Token(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch token from %s: %w", f.TokenURL, err)
	}

	out := decodeTokenBody(capture.bytes())
	out["access_token"] = tok.AccessToken
	out["token_type"] = tok.TokenType
	if tok.RefreshToken != "" {
		out["refresh_token"] = tok.RefreshToken
	}
	if _, ok := out["expires_in"]; !ok {
		switch {
		case tok.ExpiresIn > 0:
			out["expires_in"] = int(tok.ExpiresIn)
		case !tok.Expiry.IsZero():
			out["expires_in"] = int(time.Until(tok.Expiry).Round(time.Second) / time.Second)
		}
	}
	if !tok.Expiry.IsZero() {
		out["expiry"] = tok.Expiry.UTC().Format(time.RFC3339)
	}
	for _, key := range []string{"scope", "jti"} {
		if _, ok := out[key]; ok {
			continue
		}
		if v := tok.Extra(key); v != nil {
			out[key] = v
		}
	}
	return out, nil
}

// decodeTokenBody returns every field of a JSON token response. Integral numbers become
// int. A body that is not a JSON object yields an empty token.
func decodeTokenBody(body []byte) Token {
	out := Token{}
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	if err := dec.Decode(&out); err != nil || out == nil {
		return Token{}
	}
	for k, v := range out {
		n, ok := v.(json.Number)
		if !ok {
			continue
		}
		if i, err := n.Int64(); err == nil {
			out[k] = int(i)
		} else if f, err := n.Float64(); err == nil {
			out[k] = f
		}
	}
	return out
}

// bodyRecorder keeps a copy of the response body read through it.
type bodyRecorder struct {
	base http.RoundTripper
	mu   sync.Mutex
	body []byte
}

func (r *bodyRecorder) RoundTrip(req *http.Request) (*http.Response, error) {
	base := r.base
	if base == nil {
		base = http.DefaultTransport
	}
	resp, err := base.RoundTrip(req)
	if err != nil {
		return nil, err
	}
	data, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return nil, err
	}
	r.mu.Lock()
	r.body = data
	r.mu.Unlock()
	resp.Body = io.NopCloser(bytes.NewReader(data))
	return resp, nil
}

func (r *bodyRecorder) bytes() []byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.body
}

// TokenCache memoizes tokens by exact credential pair for its own lifetime.
// Concurrent first use of a pair triggers a single fetch; failed fetches are not cached.
// The zero value fetches from TokenURL and logs to logger.Default.
type TokenCache struct {
	fetcher TokenFetcher
	log     *logger.Logger
	once    sync.Once
	mu      sync.RWMutex
	tokens  map[string]Token
	group   singleflight.Group
}

// NewTokenCache creates an empty cache over fetcher.
func NewTokenCache(fetcher TokenFetcher) *TokenCache {
	return &TokenCache{
		fetcher: fetcher,
		log:     logger.Default(),
		tokens:  make(map[string]Token),
	}
}

func (c *TokenCache) init() {
	c.once.Do(func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.tokens == nil {
			c.tokens = make(map[string]Token)
		}
		if c.fetcher == nil {
			c.fetcher = NewOAuth2Fetcher(TokenURL, nil)
		}
		if c.log == nil {
			c.log = logger.Default()
		}
	})
}

// WithLogger sets the logger used for fetch diagnostics and returns the cache.
func (c *TokenCache) WithLogger(l *logger.Logger) *TokenCache {
	if l != nil {
		c.log = l
	}
	return c
}

var defaultTokenCache = NewTokenCache(NewOAuth2Fetcher(TokenURL, nil))

// DefaultTokenCache is the process-wide cache used by Authenticate when none is given.
func DefaultTokenCache() *TokenCache {
	return defaultTokenCache
}

// cacheKey digests the pair so secrets are not kept as map keys.
func cacheKey(clientID, clientSecret string) string {
	h, _ := blake2b.New256(nil)
	var n [8]byte
	binary.BigEndian.PutUint64(n[:], uint64(len(clientID)))
	h.Write(n[:])
	h.Write([]byte(clientID))
	h.Write([]byte(clientSecret))
	return hex.EncodeToString(h.Sum(nil))
}

// Token returns the memoized token for the pair, fetching it on first use.
// The shared fetch is not cancelled by any single caller; a caller whose ctx ends
// stops waiting and gets ctx.Err().
func (c *TokenCache) Token(ctx context.Context, clientID, clientSecret string) (Token, error) {
	c.init()
	key := cacheKey(clientID, clientSecret)

	c.mu.RLock()
	tok, ok := c.tokens[key]
	c.mu.RUnlock()
	if ok {
		metrics.TokenCacheHitsTotal.Inc()
		return tok.clone(), nil
	}

	fetchCtx := context.WithoutCancel(ctx)
	ch := c.group.DoChan(key, func() (interface{}, error) {
		c.mu.RLock()
		tok, ok := c.tokens[key]
		c.mu.RUnlock()
		if ok {
			return tok, nil
		}

		c.log.Debugf("Requesting token: client_id=%s", clientID)
		tok, err := c.fetcher.FetchToken(fetchCtx, clientID, clientSecret)
		if err != nil {
			metrics.TokenFetchesTotal.WithLabelValues("error").Inc()
			c.log.Errorf("Token request failed: client_id=%s, error=%v", clientID, err)
			return nil, err
		}
		metrics.TokenFetchesTotal.WithLabelValues("success").Inc()
		c.log.Debugf("Token retrieved: client_id=%s, token_type=%s, expires_in=%v", clientID, tok.TokenType(), tok["expires_in"])

		c.mu.Lock()
		c.tokens[key] = tok
		c.mu.Unlock()
		return tok, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(Token).clone(), nil
	}
}

// Forget drops the memoized token for the pair so the next call fetches a new one.
func (c *TokenCache) Forget(clientID, clientSecret string) {
	key := cacheKey(clientID, clientSecret)
	c.mu.Lock()
	delete(c.tokens, key)
	c.mu.Unlock()
}

// Len reports the number of memoized tokens.
func (c *TokenCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.tokens)
}
