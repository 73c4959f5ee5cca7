package controllers

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"

	"lexia/credentials"

	"github.com/gin-gonic/gin"
)

// GET /auth
func (ctl *Controller) AuthPage(c *gin.Context) {
	c.HTML(http.StatusOK, "auth.html", gin.H{
		"AuthURL":     ctl.Credentials.AuthorizationURL(),
		"RedirectURI": ctl.RedirectURI,
	})
}

// GET /auth/callback?code=...
func (ctl *Controller) AuthCallback(c *gin.Context) {
	code := c.Query("code")
	if code == "" {
		c.HTML(http.StatusBadRequest, "error.html", gin.H{
			"Title":   "Erro - Código Ausente",
			"Heading": "Erro",
			"Message": "Código de autorização não fornecido.",
			"Hint":    "/auth/callback?code=SEU_CODIGO",
		})
		return
	}

	ts, err := ctl.Credentials.ExchangeCode(c.Request.Context(), code)
	if err != nil {
		ctl.logger().Error("auth callback failed", "err", err)
		c.HTML(http.StatusInternalServerError, "error.html", gin.H{
			"Title":   "Erro - Falha na Autenticação",
			"Heading": "Erro na Autenticação",
			"Message": err.Error(),
			"Detail":  providerDetail(err),
		})
		return
	}

	c.HTML(http.StatusOK, "callback.html", gin.H{
		"AccessToken":  ts.AccessToken,
		"RefreshToken": ts.RefreshToken,
		"ExpiresIn":    ts.ExpiresIn,
		"ExpiresHours": float64(ts.ExpiresIn) / 3600,
	})
}

// POST /auth/refresh
func (ctl *Controller) AuthRefresh(c *gin.Context) {
	token, err := ctl.Credentials.RefreshAccessToken(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": err.Error()})
		return
	}

	RespondSuccess(c, gin.H{
		"success":      true,
		"message":      "Token renovado com sucesso",
		"access_token": token,
		"timestamp":    timestamp(ctl.now()),
	})
}

// providerDetail pretty-prints what the OAuth server answered, "{}" when it
// did not answer at all.
func providerDetail(err error) string {
	var pe *credentials.ProviderError
	if !errors.As(err, &pe) || pe.Body == "" {
		return "{}"
	}
	var out bytes.Buffer
	if json.Indent(&out, []byte(pe.Body), "", "  ") != nil {
		return pe.Body
	}
	return out.String()
}
