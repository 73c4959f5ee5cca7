package credentials

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"lexia/models"
)

// Fixed OAuth state sent with the consent URL; the callback is completed
// manually, so there is no per-request state to match.
const OAuthState = "random_state_string"

var (
	ErrAuthExchange   = errors.New("kommo rejected the authorization code")
	ErrAuthRefresh    = errors.New("kommo rejected the token refresh")
	ErrNoRefreshToken = errors.New("refresh token não disponível: autenticação OAuth manual necessária")
)

// ProviderError carries what the OAuth server answered on a rejected grant.
type ProviderError struct {
	StatusCode int
	Body       string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("oauth status=%d body=%s", e.StatusCode, e.Body)
}

// State of the token lifecycle as last observed by the manager.
type State string

const (
	StateNoToken    State = "no_token"
	StateAuthorized State = "authorized"
	StateInvalid    State = "invalid"
)

// TokenValidator probes whether the current access token is accepted.
type TokenValidator interface {
	ValidateToken(ctx context.Context) bool
}

type ManagerConfig struct {
	BaseURL      string // https://{subdomain}.kommo.com
	ClientID     string
	ClientSecret string
	RedirectURI  string

	Store      TokenStore
	Cell       *TokenCell
	Validator  TokenValidator
	HTTPClient *http.Client
	Logger     *slog.Logger
	Now        func() time.Time
}

// Manager owns the Kommo OAuth lifecycle: consent URL, code exchange,
// refresh and validation. Every successful grant is persisted before the
// new access token is published to the cell.
type Manager struct {
	baseURL      string
	clientID     string
	clientSecret string
	redirectURI  string

	store     TokenStore
	cell      *TokenCell
	validator TokenValidator
	client    *http.Client
	logger    *slog.Logger
	now       func() time.Time

	mu    sync.Mutex
	state State
}

func NewManager(cfg ManagerConfig) *Manager {
	if cfg.Cell == nil {
		cfg.Cell = NewTokenCell("")
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	state := StateNoToken
	if cfg.Cell.AccessToken() != "" {
		state = StateAuthorized
	}
	return &Manager{
		baseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		clientID:     cfg.ClientID,
		clientSecret: cfg.ClientSecret,
		redirectURI:  cfg.RedirectURI,
		store:        cfg.Store,
		cell:         cfg.Cell,
		validator:    cfg.Validator,
		client:       cfg.HTTPClient,
		logger:       cfg.Logger.With("component", "kommo_auth"),
		now:          cfg.Now,
		state:        state,
	}
}

// AuthorizationURL is a pure function of the configuration.
func (m *Manager) AuthorizationURL() string {
	q := url.Values{}
	q.Set("client_id", m.clientID)
	q.Set("redirect_uri", m.redirectURI)
	q.Set("response_type", "code")
	q.Set("state", OAuthState)
	return m.baseURL + "/oauth?" + q.Encode()
}

func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// MarkInvalid records that Kommo rejected the current access token on a
// regular API call.
func (m *Manager) MarkInvalid() {
	m.logger.Warn("access token rejected by kommo")
	m.setState(StateInvalid)
}

func (m *Manager) setState(s State) {
	m.mu.Lock()
	m.state = s
	m.mu.Unlock()
}

// Restore adopts the access token of a previously persisted TokenSet, so a
// refreshed token survives restarts even when the environment still holds
// the original one.
func (m *Manager) Restore(ctx context.Context) (bool, error) {
	ts, err := m.store.Load(ctx)
	if err != nil {
		return false, err
	}
	if ts == nil || ts.AccessToken == "" {
		return false, nil
	}
	m.cell.SetAccessToken(ts.AccessToken)
	m.setState(StateAuthorized)
	m.logger.Info("access token restored from store", "updated_at", ts.UpdatedAt)
	return true, nil
}

// ExchangeCode performs the authorization-code grant. Not retried.
func (m *Manager) ExchangeCode(ctx context.Context, code string) (models.TokenSet, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return models.TokenSet{}, fmt.Errorf("%w: empty code", ErrAuthExchange)
	}
	m.logger.Info("exchanging authorization code", "code_prefix", prefix(code, 10))

	ts, err := m.grant(ctx, grantRequest{
		GrantType: "authorization_code",
		Code:      code,
	})
	if err != nil {
		m.logger.Error("code exchange failed", "err", err)
		return models.TokenSet{}, fmt.Errorf("%w: %w", ErrAuthExchange, err)
	}

	if err := m.store.Save(ctx, ts); err != nil {
		m.logger.Error("cannot persist exchanged tokens", "err", err)
		return models.TokenSet{}, fmt.Errorf("%w: persist tokens: %w", ErrAuthExchange, err)
	}
	m.cell.SetAccessToken(ts.AccessToken)
	m.setState(StateAuthorized)

	m.logger.Info("tokens obtained", "expires_in", ts.ExpiresIn)
	return ts, nil
}

// RefreshAccessToken performs the refresh-token grant with the stored refresh
// token. On any failure the stored set and the cell are left untouched.
func (m *Manager) RefreshAccessToken(ctx context.Context) (string, error) {
	m.logger.Info("refreshing access token")

	stored, err := m.store.Load(ctx)
	if err != nil {
		m.logger.Error("cannot load stored tokens", "err", err)
		return "", fmt.Errorf("%w: %v", ErrNoRefreshToken, err)
	}
	if stored == nil || !stored.CanRefresh() {
		m.logger.Warn("refresh token not found, manual OAuth authorization required")
		return "", ErrNoRefreshToken
	}

	ts, err := m.grant(ctx, grantRequest{
		GrantType:    "refresh_token",
		RefreshToken: stored.RefreshToken,
	})
	if err != nil {
		m.logger.Error("token refresh failed", "err", err)
		m.setState(StateInvalid)
		return "", fmt.Errorf("%w: %w", ErrAuthRefresh, err)
	}
	if ts.RefreshToken == "" {
		ts.RefreshToken = stored.RefreshToken
	}

	// the stored refresh token is spent once Kommo answered the grant
	if err := m.store.Save(ctx, ts); err != nil {
		m.logger.Error("cannot persist refreshed tokens", "err", err)
		m.setState(StateInvalid)
		return "", fmt.Errorf("%w: persist tokens: %w", ErrAuthRefresh, err)
	}
	m.cell.SetAccessToken(ts.AccessToken)
	m.setState(StateAuthorized)

	m.logger.Info("access token refreshed", "expires_in", ts.ExpiresIn, "expires_in_hours", float64(ts.ExpiresIn)/3600)
	return ts.AccessToken, nil
}

// EnsureValidToken validates the current token and, when it is rejected,
// tries exactly one refresh. Best effort: the outcome is a bool, never an error.
func (m *Manager) EnsureValidToken(ctx context.Context) bool {
	if m.validator == nil {
		m.logger.Warn("no token validator configured")
		return false
	}
	if m.validator.ValidateToken(ctx) {
		m.setState(StateAuthorized)
		m.logger.Info("access token valid")
		return true
	}

	m.setState(StateInvalid)
	m.logger.Warn("access token invalid, trying to refresh")
	if _, err := m.RefreshAccessToken(ctx); err != nil {
		m.logger.Error("could not validate or refresh token", "err", err)
		return false
	}
	return true
}

type grantRequest struct {
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
	GrantType    string `json:"grant_type"`
	Code         string `json:"code,omitempty"`
	RefreshToken string `json:"refresh_token,omitempty"`
	RedirectURI  string `json:"redirect_uri"`
}

type grantResponse struct {
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

func (m *Manager) grant(ctx context.Context, gr grantRequest) (models.TokenSet, error) {
	gr.ClientID = m.clientID
	gr.ClientSecret = m.clientSecret
	gr.RedirectURI = m.redirectURI

	b, err := json.Marshal(gr)
	if err != nil {
		return models.TokenSet{}, fmt.Errorf("marshal: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.baseURL+"/oauth2/access_token", bytes.NewReader(b))
	if err != nil {
		return models.TokenSet{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.client.Do(req)
	if err != nil {
		return models.TokenSet{}, fmt.Errorf("oauth request: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return models.TokenSet{}, &ProviderError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	var parsed grantResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return models.TokenSet{}, fmt.Errorf("decode oauth response: %w", err)
	}
	if parsed.AccessToken == "" {
		return models.TokenSet{}, &ProviderError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	return models.TokenSet{
		AccessToken:  parsed.AccessToken,
		RefreshToken: parsed.RefreshToken,
		ExpiresIn:    parsed.ExpiresIn,
		UpdatedAt:    m.now().UTC(),
	}, nil
}

func prefix(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
