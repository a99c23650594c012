package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

func secRouter(opt SecurityOptions) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestID())
	r.Use(SecurityHeaders(opt))
	r.GET("/s", func(c *gin.Context) { c.Status(http.StatusOK) })
	return r
}

func TestSecurityHeaders_Baseline(t *testing.T) {
	r := secRouter(SecurityOptions{EnablePolicy: true})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/s", nil))

	h := w.Header()
	if h.Get("X-Content-Type-Options") != "nosniff" ||
		h.Get("X-Frame-Options") != "DENY" ||
		h.Get("Referrer-Policy") != "no-referrer" {
		t.Fatalf("baseline headers missing: %v", h)
	}
	if h.Get("Permissions-Policy") == "" || h.Get("X-Permitted-Cross-Domain-Policies") != "none" {
		t.Fatalf("policy headers missing: %v", h)
	}
	if !strings.Contains(h.Get("Access-Control-Expose-Headers"), requestIDHeader) {
		t.Fatalf("request id not exposed: %v", h)
	}
}

func TestSecurityHeaders_HSTSOnlyOverHTTPS(t *testing.T) {
	r := secRouter(SecurityOptions{EnableHSTS: true, HSTSMaxAge: 24 * time.Hour})

	// Plain HTTP: no HSTS.
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/s", nil))
	if w.Header().Get("Strict-Transport-Security") != "" {
		t.Fatal("HSTS must not be set for plain HTTP")
	}

	// Forwarded HTTPS: HSTS present with configured max-age.
	w2 := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/s", nil)
	req.Header.Set("X-Forwarded-Proto", "https")
	r.ServeHTTP(w2, req)
	got := w2.Header().Get("Strict-Transport-Security")
	if !strings.Contains(got, "max-age=86400") {
		t.Fatalf("HSTS = %q", got)
	}
}

func TestSecurityHeaders_NoStore(t *testing.T) {
	r := secRouter(SecurityOptions{NoStore: true})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/s", nil))
	if w.Header().Get("Cache-Control") != "no-store" {
		t.Fatalf("Cache-Control = %q", w.Header().Get("Cache-Control"))
	}
}
