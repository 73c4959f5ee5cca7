package relay

import (
	"context"
	"fmt"
	"log/slog"

	"lexia/tools"
)

// Replier produces the answer to a customer message. It never fails.
type Replier interface {
	Reply(ctx context.Context, text, leadID string) string
}

// Gateway delivers replies and notes to Kommo.
type Gateway interface {
	SendMessage(ctx context.Context, chatID, text string) (tools.KommoResponse, error)
	AddNote(ctx context.Context, leadID, text string) (tools.KommoResponse, error)
}

// Refresher owns the access token: it is told when Kommo rejects it and can
// obtain a new one.
type Refresher interface {
	RefreshAccessToken(ctx context.Context) (string, error)
	MarkInvalid()
}

// Relay runs one inbound webhook through normalize, reply, send and note.
type Relay struct {
	Replier Replier
	Gateway Gateway

	// Every 401 is reported to Refresher. With RetryOnUnauthorized set it also
	// triggers one refresh and one retry of that request.
	Refresher           Refresher
	RetryOnUnauthorized bool

	Logger *slog.Logger
}

// NoteText is the annotation posted on the lead after a reply was sent.
func NoteText(clientText, reply string) string {
	return fmt.Sprintf("🤖 IA respondeu:\nCliente: %s\nResposta: %s", clientText, reply)
}

// HandleInbound returns nil when the payload is not something to answer.
// The only error is a failed send; a failed note is logged and dropped.
func (r *Relay) HandleInbound(ctx context.Context, payload map[string]any) error {
	log := r.logger()

	msg := ExtractMessageData(payload)
	if msg == nil {
		log.Info("payload has no processable message")
		return nil
	}

	log.Info("message extracted",
		"lead_id", msg.LeadID,
		"chat_id", msg.ChatID,
		"text", truncate(msg.Text, 50),
		"sender", msg.SenderKind,
	)

	if msg.SenderKind.IsAutomated() {
		log.Info("message ignored, sent by bot or manager", "sender", msg.SenderKind)
		return nil
	}
	if !msg.Actionable() {
		log.Warn("chat id or text missing", "chat_id", msg.ChatID)
		return nil
	}

	reply := r.Replier.Reply(ctx, msg.Text, msg.LeadID)

	err := r.withRefresh(ctx, "send", func() error {
		_, err := r.Gateway.SendMessage(ctx, msg.ChatID, reply)
		return err
	})
	if err != nil {
		return fmt.Errorf("send reply to chat %s: %w", msg.ChatID, err)
	}

	if msg.LeadID != "" {
		note := NoteText(msg.Text, reply)
		err := r.withRefresh(ctx, "note", func() error {
			_, err := r.Gateway.AddNote(ctx, msg.LeadID, note)
			return err
		})
		if err != nil {
			log.Warn("could not add note to lead", "lead_id", msg.LeadID, "err", err)
		}
	}

	log.Info("message relayed", "chat_id", msg.ChatID, "lead_id", msg.LeadID)
	return nil
}

func (r *Relay) withRefresh(ctx context.Context, op string, call func() error) error {
	err := r.reported(call())
	if err == nil || !r.RetryOnUnauthorized || r.Refresher == nil || !tools.IsUnauthorized(err) {
		return err
	}

	log := r.logger()
	log.Warn("kommo rejected the access token, refreshing", "op", op)
	if _, rerr := r.Refresher.RefreshAccessToken(ctx); rerr != nil {
		log.Error("refresh after 401 failed", "op", op, "err", rerr)
		return err
	}
	return r.reported(call())
}

// reported passes err through, telling the Refresher when it is a 401.
func (r *Relay) reported(err error) error {
	if r.Refresher != nil && tools.IsUnauthorized(err) {
		r.Refresher.MarkInvalid()
	}
	return err
}

func (r *Relay) logger() *slog.Logger {
	if r.Logger == nil {
		return slog.Default().With("component", "relay")
	}
	return r.Logger
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
