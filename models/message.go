package models

/************************************************
/**** MARK: SENDER KIND ****/
/************************************************/
type SenderKind string

const (
	SENDER_CLIENT  SenderKind = "client"
	SENDER_BOT     SenderKind = "bot"
	SENDER_MANAGER SenderKind = "manager"
	SENDER_SYSTEM  SenderKind = "system"
)

// IsAutomated is true for messages the relay must never answer:
// its own replies (bot) and replies typed by an agent (manager).
func (k SenderKind) IsAutomated() bool {
	return k == SENDER_BOT || k == SENDER_MANAGER
}

// InboundMessage is the canonical record produced from a Kommo webhook payload.
// Identifiers are kept as strings regardless of how the payload encoded them.
type InboundMessage struct {
	LeadID     string     `json:"lead_id,omitempty"`
	ChatID     string     `json:"chat_id"`
	Text       string     `json:"text"`
	SenderKind SenderKind `json:"sender_kind"`
}

// Actionable reports whether the message carries everything needed to reply.
func (m InboundMessage) Actionable() bool {
	return m.ChatID != "" && m.Text != ""
}
