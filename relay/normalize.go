package relay

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"

	"lexia/models"
)

// NewLeadText stands in for the text of a lead-creation event without a name.
const NewLeadText = "Novo lead criado"

// ExtractMessageData maps a raw Kommo webhook to an InboundMessage. It tries
// three shapes in a fixed order and returns nil for anything else:
//
//  1. direct message: {"message": {...}}
//  2. talk-wrapped message: {"talk": {"message": {...}}}
//  3. lead creation: {"leads": {"add": [{...}]}}
//
// It never panics; an unexpected tree yields nil.
func ExtractMessageData(payload map[string]any) (msg *models.InboundMessage) {
	defer func() {
		if r := recover(); r != nil {
			msg = nil
		}
	}()

	if payload == nil {
		return nil
	}

	if message, ok := payload["message"].(map[string]any); ok {
		return &models.InboundMessage{
			LeadID:     firstTruthy(payload["lead_id"], message["lead_id"]),
			ChatID:     firstTruthy(message["talk_id"], payload["talk_id"]),
			Text:       str(message["text"]),
			SenderKind: senderKind(message),
		}
	}

	if talk, ok := payload["talk"].(map[string]any); ok {
		if message, ok := talk["message"].(map[string]any); ok {
			return &models.InboundMessage{
				LeadID:     firstTruthy(talk["lead_id"]),
				ChatID:     firstTruthy(talk["id"]),
				Text:       str(message["text"]),
				SenderKind: senderKind(message),
			}
		}
	}

	if leads, ok := payload["leads"].(map[string]any); ok {
		if added, ok := leads["add"].([]any); ok && len(added) > 0 {
			lead, ok := added[0].(map[string]any)
			if !ok {
				return nil
			}
			text := firstTruthy(lead["name"])
			if text == "" {
				text = NewLeadText
			}
			return &models.InboundMessage{
				LeadID:     firstTruthy(lead["id"]),
				Text:       text,
				SenderKind: models.SENDER_SYSTEM,
			}
		}
	}

	return nil
}

func senderKind(message map[string]any) models.SenderKind {
	if sender, ok := message["sender"].(map[string]any); ok {
		if kind := firstTruthy(sender["type"]); kind != "" {
			return models.SenderKind(kind)
		}
	}
	return models.SENDER_CLIENT
}

// firstTruthy returns the first value that is neither empty, zero, false nor
// null, rendered as a string.
func firstTruthy(values ...any) string {
	for _, v := range values {
		if truthy(v) {
			return str(v)
		}
	}
	return ""
}

func truthy(v any) bool {
	switch x := v.(type) {
	case nil:
		return false
	case string:
		return x != ""
	case bool:
		return x
	case json.Number:
		f, err := x.Float64()
		return err == nil && f != 0 && !math.IsNaN(f)
	case float64:
		return x != 0 && !math.IsNaN(x)
	case int:
		return x != 0
	case int64:
		return x != 0
	default:
		return true
	}
}

func str(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case json.Number:
		return x.String()
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case bool:
		return strconv.FormatBool(x)
	case map[string]any, []any:
		return ""
	default:
		return fmt.Sprint(x)
	}
}
