package tools

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
)

type staticToken string

func (s staticToken) AccessToken() string { return string(s) }

type recorded struct {
	method string
	path   string
	auth   string
	body   map[string]any
}

func kommoServer(t *testing.T, status int, reply string) (*httptest.Server, *[]recorded) {
	t.Helper()
	var calls []recorded
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		var body map[string]any
		_ = json.Unmarshal(raw, &body)
		calls = append(calls, recorded{method: r.Method, path: r.URL.Path, auth: r.Header.Get("Authorization"), body: body})
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, reply)
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func newTestKommo(baseURL string, token string) *KommoClient {
	return NewKommoClient(KommoClientConfig{
		BaseURL: baseURL,
		Token:   staticToken(token),
		Logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
}

func TestKommoClient_SendMessage(t *testing.T) {
	srv, calls := kommoServer(t, http.StatusOK, `{"id":"msg-1"}`)
	c := newTestKommo(srv.URL, "tok")

	out, err := c.SendMessage(context.Background(), "99", "Olá!")
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if out["id"] != "msg-1" {
		t.Errorf("unexpected response %v", out)
	}

	if len(*calls) != 1 {
		t.Fatalf("expected 1 call, got %d", len(*calls))
	}
	got := (*calls)[0]
	if got.method != http.MethodPost || got.path != "/api/v4/talks/messages" {
		t.Errorf("unexpected request %s %s", got.method, got.path)
	}
	if got.auth != "Bearer tok" {
		t.Errorf("unexpected auth header %q", got.auth)
	}
	// numeric ids travel as JSON numbers
	if got.body["talk_id"] != float64(99) {
		t.Errorf("talk_id should be numeric 99, got %#v", got.body["talk_id"])
	}
	msg, _ := got.body["message"].(map[string]any)
	if msg["type"] != "text" || msg["text"] != "Olá!" {
		t.Errorf("unexpected message body %v", msg)
	}
}

func TestKommoClient_SendMessage_NonNumericID(t *testing.T) {
	srv, calls := kommoServer(t, http.StatusOK, `{}`)
	c := newTestKommo(srv.URL, "tok")

	if _, err := c.SendMessage(context.Background(), "abc-1", "oi"); err != nil {
		t.Fatal(err)
	}
	if (*calls)[0].body["talk_id"] != "abc-1" {
		t.Errorf("expected string talk_id, got %#v", (*calls)[0].body["talk_id"])
	}
}

func TestKommoClient_SendMessage_Rejected(t *testing.T) {
	srv, _ := kommoServer(t, http.StatusUnauthorized, `{"title":"Unauthorized"}`)
	c := newTestKommo(srv.URL, "expired")

	_, err := c.SendMessage(context.Background(), "1", "oi")
	if !errors.Is(err, ErrSend) {
		t.Fatalf("expected ErrSend, got %v", err)
	}
	if errors.Is(err, ErrNote) {
		t.Error("send failure must not match ErrNote")
	}
	var apiErr *KommoAPIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusUnauthorized || apiErr.Body != `{"title":"Unauthorized"}` {
		t.Errorf("unexpected error detail %v", err)
	}
	if !IsUnauthorized(err) {
		t.Error("expected IsUnauthorized")
	}
}

func TestKommoClient_EmptyTokenSkipsNetwork(t *testing.T) {
	srv, calls := kommoServer(t, http.StatusOK, `{}`)
	c := newTestKommo(srv.URL, "")

	if _, err := c.SendMessage(context.Background(), "1", "oi"); !errors.Is(err, ErrSend) {
		t.Fatalf("expected ErrSend, got %v", err)
	}
	if len(*calls) != 0 {
		t.Errorf("no call expected, got %d", len(*calls))
	}
}

func TestKommoClient_AddNote(t *testing.T) {
	srv, calls := kommoServer(t, http.StatusOK, `{"_embedded":{"notes":[{"id":5}]}}`)
	c := newTestKommo(srv.URL, "tok")

	if _, err := c.AddNote(context.Background(), "777", "🤖 IA respondeu:\nCliente: oi\nResposta: olá"); err != nil {
		t.Fatalf("note: %v", err)
	}
	got := (*calls)[0]
	if got.path != "/api/v4/leads/777/notes" {
		t.Errorf("unexpected path %s", got.path)
	}
	if got.body["note_type"] != "common" {
		t.Errorf("unexpected note_type %v", got.body["note_type"])
	}
	params, _ := got.body["params"].(map[string]any)
	if params["text"] != "🤖 IA respondeu:\nCliente: oi\nResposta: olá" {
		t.Errorf("unexpected note text %v", params["text"])
	}
}

func TestKommoClient_AddNote_Rejected(t *testing.T) {
	srv, _ := kommoServer(t, http.StatusBadRequest, `{"detail":"bad"}`)
	c := newTestKommo(srv.URL, "tok")

	_, err := c.AddNote(context.Background(), "1", "x")
	if !errors.Is(err, ErrNote) || errors.Is(err, ErrSend) {
		t.Fatalf("expected only ErrNote, got %v", err)
	}
	if IsUnauthorized(err) {
		t.Error("400 is not unauthorized")
	}
}

func TestKommoClient_ValidateToken(t *testing.T) {
	ok, calls := kommoServer(t, http.StatusOK, `{"id":1,"name":"Léxia Veículos"}`)
	if !newTestKommo(ok.URL, "tok").ValidateToken(context.Background()) {
		t.Error("expected valid token")
	}
	if (*calls)[0].method != http.MethodGet || (*calls)[0].path != "/api/v4/account" {
		t.Errorf("unexpected probe %s %s", (*calls)[0].method, (*calls)[0].path)
	}

	denied, _ := kommoServer(t, http.StatusUnauthorized, `{}`)
	if newTestKommo(denied.URL, "tok").ValidateToken(context.Background()) {
		t.Error("expected invalid token")
	}

	if newTestKommo("http://127.0.0.1:1", "tok").ValidateToken(context.Background()) {
		t.Error("unreachable host must be invalid")
	}

	empty, emptyCalls := kommoServer(t, http.StatusOK, `{}`)
	if newTestKommo(empty.URL, "").ValidateToken(context.Background()) {
		t.Error("empty token must be invalid")
	}
	if len(*emptyCalls) != 0 {
		t.Errorf("empty token must not reach Kommo, got %d calls", len(*emptyCalls))
	}
}
