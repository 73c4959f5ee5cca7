package router

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"lexia/middleware"

	"github.com/gin-gonic/gin"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func serve(r *gin.Engine, method, path string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuthorizer(t *testing.T) {
	ok := func(c *gin.Context) { c.String(http.StatusOK, "ok") }

	open := gin.New()
	open.GET("/admin", Authorizer("s3cret"), ok)

	cases := []struct {
		name   string
		header string
		want   int
	}{
		{"no header", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic s3cret", http.StatusUnauthorized},
		{"wrong token", "Bearer nope", http.StatusUnauthorized},
		{"valid", "Bearer s3cret", http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := serve(open, http.MethodGet, "/admin", map[string]string{"Authorization": tc.header})
			if w.Code != tc.want {
				t.Errorf("expected %d, got %d", tc.want, w.Code)
			}
		})
	}

	closed := gin.New()
	closed.GET("/admin", Authorizer(""), ok)
	if w := serve(closed, http.MethodGet, "/admin", map[string]string{"Authorization": "Bearer "}); w.Code != http.StatusForbidden {
		t.Errorf("empty token should close the route, got %d", w.Code)
	}
}

func TestCORS_AnyOrigin(t *testing.T) {
	r := gin.New()
	r.Use(middleware.CORSMiddleware())
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := serve(r, http.MethodGet, "/x", map[string]string{"Origin": "https://a.example"})
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("expected *, got %q", got)
	}

	w = serve(r, http.MethodOptions, "/x", map[string]string{"Origin": "https://a.example"})
	if w.Code != http.StatusNoContent {
		t.Errorf("preflight should answer 204, got %d", w.Code)
	}
}

func TestCORS_AllowList(t *testing.T) {
	r := gin.New()
	r.Use(middleware.CORSMiddleware("https://crm.example/"))
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := serve(r, http.MethodGet, "/x", map[string]string{"Origin": "https://crm.example"})
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "https://crm.example" {
		t.Errorf("allowed origin should be echoed, got %q", got)
	}
	if w.Header().Get("Vary") != "Origin" {
		t.Errorf("expected Vary: Origin, got %q", w.Header().Get("Vary"))
	}

	w = serve(r, http.MethodGet, "/x", map[string]string{"Origin": "https://evil.example"})
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("unknown origin should get no CORS header, got %q", got)
	}
}
