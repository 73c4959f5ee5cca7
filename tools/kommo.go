package tools

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
	"strconv"
	"strings"
	"time"
)

var (
	ErrSend = errors.New("falha ao enviar mensagem ao Kommo")
	ErrNote = errors.New("falha ao adicionar nota ao lead")
)

// KommoAPIError is returned when Kommo answers a call with a non-2xx status.
// Op is "send" or "note", so errors.Is(err, ErrSend) and errors.Is(err, ErrNote)
// work on it directly.
type KommoAPIError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *KommoAPIError) Error() string {
	return fmt.Sprintf("kommo api error: op=%s status=%d body=%s", e.Op, e.StatusCode, e.Body)
}

func (e *KommoAPIError) Is(target error) bool {
	switch target {
	case ErrSend:
		return e.Op == "send"
	case ErrNote:
		return e.Op == "note"
	}
	return false
}

// IsUnauthorized reports whether Kommo rejected the bearer token.
func IsUnauthorized(err error) bool {
	var apiErr *KommoAPIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusUnauthorized
}

// KommoResponse is the decoded JSON body Kommo returns for a write.
type KommoResponse map[string]any

// TokenSource yields the access token to use for the next call.
type TokenSource interface {
	AccessToken() string
}

type KommoClientConfig struct {
	BaseURL string // https://{subdomain}.kommo.com
	Token   TokenSource
	HTTP    *http.Client
	Logger  *slog.Logger
}

// KommoClient is a thin client for the Kommo v4 API. The bearer token is read
// from the TokenSource on every call and never refreshed here.
type KommoClient struct {
	baseURL string
	token   TokenSource
	http    *http.Client
	logger  *slog.Logger
}

func NewKommoClient(cfg KommoClientConfig) *KommoClient {
	if cfg.HTTP == nil {
		cfg.HTTP = &http.Client{Timeout: 30 * time.Second}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &KommoClient{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		token:   cfg.Token,
		http:    cfg.HTTP,
		logger:  cfg.Logger.With("component", "kommo"),
	}
}

// SendMessage posts a text message into the chat identified by chatID.
func (c *KommoClient) SendMessage(ctx context.Context, chatID, text string) (KommoResponse, error) {
	token := c.token.AccessToken()
	if token == "" {
		return nil, fmt.Errorf("%w: access token não configurado", ErrSend)
	}

	c.logger.Info("sending message", "chat_id", chatID)

	body := map[string]any{
		"talk_id": idValue(chatID),
		"message": map[string]any{
			"type": "text",
			"text": text,
		},
	}
	out, err := c.post(ctx, "send", "/api/v4/talks/messages", token, body)
	if err != nil {
		c.logger.Error("send message failed", "chat_id", chatID, "err", err)
		return nil, err
	}

	c.logger.Info("message sent", "chat_id", chatID)
	return out, nil
}

// AddNote attaches a common note to the lead.
func (c *KommoClient) AddNote(ctx context.Context, leadID, text string) (KommoResponse, error) {
	token := c.token.AccessToken()
	if token == "" {
		return nil, fmt.Errorf("%w: access token não configurado", ErrNote)
	}

	c.logger.Info("adding note", "lead_id", leadID)

	body := map[string]any{
		"note_type": "common",
		"params": map[string]any{
			"text": text,
		},
	}
	out, err := c.post(ctx, "note", "/api/v4/leads/"+url.PathEscape(leadID)+"/notes", token, body)
	if err != nil {
		c.logger.Error("add note failed", "lead_id", leadID, "err", err)
		return nil, err
	}

	c.logger.Info("note added", "lead_id", leadID)
	return out, nil
}

// ValidateToken probes GET /api/v4/account. Any failure means "not valid".
func (c *KommoClient) ValidateToken(ctx context.Context) bool {
	token := c.token.AccessToken()
	if token == "" {
		c.logger.Warn("no access token to validate")
		return false
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/v4/account", nil)
	if err != nil {
		return false
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Error("token validation request failed", "err", err)
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Warn("token invalid or expired", "status", resp.StatusCode)
		return false
	}

	var account struct {
		Name string `json:"name"`
	}
	_ = json.NewDecoder(resp.Body).Decode(&account)
	c.logger.Info("token valid", "account", account.Name)
	return true
}

func (c *KommoClient) post(ctx context.Context, op, path, token string, body any) (KommoResponse, error) {
	sentinel := ErrSend
	if op == "note" {
		sentinel = ErrNote
	}

	b, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("%w: marshal: %w", sentinel, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(b))
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %w", sentinel, err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", sentinel, err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &KommoAPIError{Op: op, StatusCode: resp.StatusCode, Body: string(raw)}
	}

	out := KommoResponse{}
	if len(bytes.TrimSpace(raw)) > 0 {
		// a 2xx with a non-object body still counts as delivered
		_ = json.Unmarshal(raw, &out)
	}
	return out, nil
}

// idValue sends numeric identifiers as JSON numbers, anything else verbatim.
func idValue(id string) any {
	if _, err := strconv.ParseInt(id, 10, 64); err == nil {
		return json.Number(id)
	}
	return id
}
