package controllers

import (
	"context"
	"errors"
	"net/http"

	"lexia/archive"
	"lexia/relay"

	"github.com/gin-gonic/gin"
)

// TestLeadID is the lead id used for replies generated by POST /webhook/test.
const TestLeadID = "TEST_LEAD"

// MaxWebhookBody caps the size of an inbound webhook body.
const MaxWebhookBody = 1 << 20

// POST /webhook/kommo
// Answers 200 as soon as the body is decoded; the relay runs detached.
func (ctl *Controller) KommoWebhook(c *gin.Context) {
	log := ctl.logger()

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, MaxWebhookBody)
	raw, err := c.GetRawData()
	if err != nil {
		log.Error("cannot read webhook body", "err", err)
		status := http.StatusInternalServerError
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			status = http.StatusRequestEntityTooLarge
		}
		c.JSON(status, gin.H{"status": "error", "message": err.Error()})
		return
	}

	contentType := c.GetHeader("Content-Type")
	payload, err := relay.DecodeBody(contentType, raw)
	if err != nil {
		log.Error("cannot decode webhook body", "content_type", contentType, "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"status": "error", "message": err.Error()})
		return
	}

	log.Info("webhook received", "content_type", contentType, "bytes", len(raw))
	log.Debug("webhook body", "headers", c.Request.Header, "body", string(raw))

	if ctl.Archive != nil {
		entry := archive.Entry{ContentType: contentType, Raw: raw, Payload: payload, ReceivedAt: ctl.now()}
		if err := ctl.Archive.Archive(c.Request.Context(), entry); err != nil {
			log.Warn("webhook payload not archived", "err", err)
		}
	}

	c.JSON(http.StatusOK, gin.H{"status": "received"})

	ctl.Runner.Go("webhook", func(ctx context.Context) error {
		return ctl.Relay.HandleInbound(ctx, payload)
	})
}

// GET /webhook/test
func (ctl *Controller) WebhookTestGet(c *gin.Context) {
	RespondSuccess(c, gin.H{
		"status":    "online",
		"message":   "Servidor Léxia Bot funcionando corretamente",
		"timestamp": timestamp(ctl.now()),
		"endpoints": gin.H{
			"webhook": "POST /webhook/kommo",
			"test":    "GET /webhook/test",
		},
	})
}

// POST /webhook/test
// Goes straight to the reply generator, bypassing Kommo.
func (ctl *Controller) WebhookTestPost(c *gin.Context) {
	raw, err := c.GetRawData()
	if err != nil {
		RespondError(c, err.Error(), http.StatusBadRequest)
		return
	}
	payload, err := relay.DecodeBody(c.GetHeader("Content-Type"), raw)
	if err != nil {
		RespondError(c, err.Error(), http.StatusBadRequest)
		return
	}

	message, _ := payload["message"].(string)
	if message == "" {
		RespondError(c, `Campo "message" é obrigatório`, http.StatusBadRequest)
		return
	}

	ctl.logger().Info("simulating message", "text", message)
	output := ctl.Replier.Reply(c.Request.Context(), message, TestLeadID)

	RespondSuccess(c, gin.H{
		"status":    "success",
		"input":     message,
		"output":    output,
		"timestamp": timestamp(ctl.now()),
	})
}
