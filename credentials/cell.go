package credentials

import "sync"

// TokenCell holds the access token currently used for Kommo API calls.
// It is the only mutable state shared between the webhook tasks and the
// credential manager; a refresh racing a send resolves as last write wins.
type TokenCell struct {
	mu    sync.RWMutex
	token string
}

func NewTokenCell(initial string) *TokenCell {
	return &TokenCell{token: initial}
}

func (c *TokenCell) AccessToken() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

func (c *TokenCell) SetAccessToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}
