package esign

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/time/rate"
)

// Client is the provider surface the reconciliation pipeline consumes.
type Client interface {
	ListAuditEvents(ctx context.Context, envelopeID string) ([]RawAuditEvent, error)
	GetEnvelope(ctx context.Context, envelopeID string, include ...string) (*Envelope, error)
	GetCombinedDocuments(ctx context.Context, envelopeID string) (io.ReadCloser, error)
}

// RESTConfig carries the credentials for the provider's JWT grant flow.
type RESTConfig struct {
	BaseURL        string
	OAuthBaseURL   string
	AccountID      string
	IntegrationKey string
	UserID         string
	PrivateKeyPEM  []byte
	// RequestsPerSecond bounds outgoing calls; the provider throttles
	// aggressive polling. Zero means 5 rps.
	RequestsPerSecond float64
}

// RESTClient talks to the provider's REST API, authenticating with a JWT
// grant and caching the access token until shortly before expiry.
type RESTClient struct {
	cfg     RESTConfig
	http    *http.Client
	limiter *rate.Limiter

	mu          sync.Mutex
	accessToken string
	tokenExpiry time.Time
}

func NewRESTClient(cfg RESTConfig) (*RESTClient, error) {
	if cfg.BaseURL == "" || cfg.AccountID == "" {
		return nil, fmt.Errorf("esign: base url and account id required")
	}
	if cfg.IntegrationKey == "" || cfg.UserID == "" || len(cfg.PrivateKeyPEM) == 0 {
		return nil, fmt.Errorf("esign: jwt grant credentials incomplete")
	}
	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = 5
	}
	return &RESTClient{
		cfg:     cfg,
		http:    &http.Client{Timeout: 30 * time.Second},
		limiter: rate.NewLimiter(rate.Limit(rps), 1),
	}, nil
}

func (c *RESTClient) ListAuditEvents(ctx context.Context, envelopeID string) ([]RawAuditEvent, error) {
	if envelopeID == "" {
		return nil, fmt.Errorf("esign: missing envelope id")
	}
	var out struct {
		AuditEvents []RawAuditEvent `json:"auditEvents"`
	}
	path := fmt.Sprintf("/v2.1/accounts/%s/envelopes/%s/audit_events", c.cfg.AccountID, envelopeID)
	if err := c.getJSON(ctx, path, nil, &out); err != nil {
		return nil, fmt.Errorf("esign: list audit events for %s: %w", envelopeID, err)
	}
	return out.AuditEvents, nil
}

func (c *RESTClient) GetEnvelope(ctx context.Context, envelopeID string, include ...string) (*Envelope, error) {
	if envelopeID == "" {
		return nil, fmt.Errorf("esign: missing envelope id")
	}
	query := url.Values{}
	if len(include) > 0 {
		query.Set("include", strings.Join(include, ","))
	}
	var env Envelope
	path := fmt.Sprintf("/v2.1/accounts/%s/envelopes/%s", c.cfg.AccountID, envelopeID)
	if err := c.getJSON(ctx, path, query, &env); err != nil {
		return nil, fmt.Errorf("esign: get envelope %s: %w", envelopeID, err)
	}
	return &env, nil
}

// GetCombinedDocuments streams the envelope's combined PDF (document body plus
// certificate). The caller owns the returned reader.
func (c *RESTClient) GetCombinedDocuments(ctx context.Context, envelopeID string) (io.ReadCloser, error) {
	if envelopeID == "" {
		return nil, fmt.Errorf("esign: missing envelope id")
	}
	path := fmt.Sprintf("/v2.1/accounts/%s/envelopes/%s/documents/combined", c.cfg.AccountID, envelopeID)
	resp, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, fmt.Errorf("esign: get combined documents for %s: %w", envelopeID, err)
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		return nil, readAPIError(resp)
	}
	return resp.Body, nil
}

func (c *RESTClient) getJSON(ctx context.Context, path string, query url.Values, out any) error {
	full := path
	if len(query) > 0 {
		full = path + "?" + query.Encode()
	}
	resp, err := c.do(ctx, http.MethodGet, full, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return readAPIError(resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (c *RESTClient) do(ctx context.Context, method, path string, body io.Reader) (*http.Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	token, err := c.token(ctx)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, method, strings.TrimRight(c.cfg.BaseURL, "/")+path, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	return c.http.Do(req)
}

// token returns a cached access token, running the JWT grant exchange when the
// cached one is absent or within a minute of expiring.
func (c *RESTClient) token(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.accessToken != "" && time.Until(c.tokenExpiry) > time.Minute {
		return c.accessToken, nil
	}

	key, err := jwt.ParseRSAPrivateKeyFromPEM(c.cfg.PrivateKeyPEM)
	if err != nil {
		return "", fmt.Errorf("esign: parse private key: %w", err)
	}

	oauthHost := c.cfg.OAuthBaseURL
	if oauthHost == "" {
		oauthHost = "https://account.docusign.com"
	}
	aud := strings.TrimPrefix(strings.TrimPrefix(oauthHost, "https://"), "http://")

	now := time.Now()
	claims := jwt.MapClaims{
		"iss":   c.cfg.IntegrationKey,
		"sub":   c.cfg.UserID,
		"aud":   aud,
		"iat":   now.Unix(),
		"exp":   now.Add(time.Hour).Unix(),
		"scope": "signature impersonation",
	}
	assertion, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(key)
	if err != nil {
		return "", fmt.Errorf("esign: sign jwt assertion: %w", err)
	}

	form := url.Values{
		"grant_type": {"urn:ietf:params:oauth:grant-type:jwt-bearer"},
		"assertion":  {assertion},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, oauthHost+"/oauth/token", strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("esign: token exchange: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", readAPIError(resp)
	}

	var tok struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int64  `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tok); err != nil {
		return "", fmt.Errorf("esign: decode token response: %w", err)
	}
	if tok.AccessToken == "" {
		return "", fmt.Errorf("esign: token response missing access_token")
	}

	c.accessToken = tok.AccessToken
	c.tokenExpiry = now.Add(time.Duration(tok.ExpiresIn) * time.Second)
	return c.accessToken, nil
}

func readAPIError(resp *http.Response) error {
	b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	return fmt.Errorf("esign: provider returned %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
}
