package controllers

import (
	"context"
	"log/slog"
	"time"

	"lexia/archive"
	"lexia/credentials"
	"lexia/models"

	"github.com/gin-gonic/gin"
)

func RespondError(c *gin.Context, msg string, code int) {
	c.JSON(code, gin.H{"error": msg})
}

func RespondSuccess(c *gin.Context, payload any) {
	c.JSON(200, payload)
}

// Credentials is the part of the OAuth manager the HTTP layer drives.
type Credentials interface {
	AuthorizationURL() string
	ExchangeCode(ctx context.Context, code string) (models.TokenSet, error)
	RefreshAccessToken(ctx context.Context) (string, error)
	State() credentials.State
}

type Replier interface {
	Reply(ctx context.Context, text, leadID string) string
}

type InboundHandler interface {
	HandleInbound(ctx context.Context, payload map[string]any) error
}

type TaskRunner interface {
	Go(name string, fn func(ctx context.Context) error)
}

// Controller holds what the handlers need. Archive may be nil.
type Controller struct {
	Credentials Credentials
	Replier     Replier
	Relay       InboundHandler
	Archive     archive.Archive
	Runner      TaskRunner

	RedirectURI string
	Version     string
	Started     time.Time
	Now         func() time.Time
	Logger      *slog.Logger
}

func (ctl *Controller) now() time.Time {
	if ctl.Now != nil {
		return ctl.Now()
	}
	return time.Now()
}

func (ctl *Controller) logger() *slog.Logger {
	if ctl.Logger != nil {
		return ctl.Logger
	}
	return slog.Default()
}

// timestamp renders t the way the service always has: UTC, milliseconds, Z.
func timestamp(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000Z")
}
