package controllers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
)

// GET /
func (ctl *Controller) Root(c *gin.Context) {
	RespondSuccess(c, gin.H{
		"service": "Léxia Bot - Atendimento Automático via WhatsApp",
		"status":  "online",
		"version": ctl.Version,
		"endpoints": gin.H{
			"webhook":      "POST /webhook/kommo",
			"test":         "GET /webhook/test",
			"testMessage":  "POST /webhook/test",
			"auth":         "GET /auth",
			"authCallback": "GET /auth/callback?code=CODE",
			"refreshToken": "POST /auth/refresh",
			"health":       "GET /health",
		},
		"timestamp": timestamp(ctl.now()),
	})
}

// GET /health
func (ctl *Controller) Health(c *gin.Context) {
	RespondSuccess(c, gin.H{
		"status":    "healthy",
		"uptime":    ctl.now().Sub(ctl.Started).Seconds(),
		"token":     ctl.Credentials.State(),
		"timestamp": timestamp(ctl.now()),
	})
}

func NotFound(c *gin.Context) {
	c.JSON(http.StatusNotFound, gin.H{
		"error":  "Endpoint não encontrado",
		"path":   c.Request.URL.Path,
		"method": c.Request.Method,
	})
}

// Recovered answers a request whose handler panicked.
func (ctl *Controller) Recovered(c *gin.Context, recovered any) {
	ctl.logger().Error("unhandled error", "path", c.Request.URL.Path, "panic", recovered)
	c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
		"error":   "Erro interno do servidor",
		"message": fmt.Sprint(recovered),
	})
}
