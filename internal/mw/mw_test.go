package mw

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

func serve(r *gin.Engine, method, path string, hdr map[string]string, remote string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	for k, v := range hdr {
		req.Header.Set(k, v)
	}
	if remote != "" {
		req.RemoteAddr = remote
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRateLimit_PerIP(t *testing.T) {
	gin.SetMode(gin.TestMode)
	rl := NewRateLimiter(rate.Every(time.Hour), 2, time.Minute)
	r := gin.New()
	r.Use(RateLimit(rl, ByIPAndRoute))
	r.GET("/ping", func(c *gin.Context) { c.Status(http.StatusOK) })

	for i := 0; i < 2; i++ {
		if w := serve(r, http.MethodGet, "/ping", nil, "10.0.0.1:1234"); w.Code != http.StatusOK {
			t.Fatalf("request %d = %d, want 200", i, w.Code)
		}
	}
	if w := serve(r, http.MethodGet, "/ping", nil, "10.0.0.1:9999"); w.Code != http.StatusTooManyRequests {
		t.Errorf("third request = %d, want 429", w.Code)
	}
	if w := serve(r, http.MethodGet, "/ping", nil, "10.0.0.2:1234"); w.Code != http.StatusOK {
		t.Errorf("other IP = %d, want 200", w.Code)
	}
}

func TestRateLimit_ByContextKey(t *testing.T) {
	gin.SetMode(gin.TestMode)
	rl := NewRateLimiter(rate.Every(time.Hour), 1, time.Minute)
	r := gin.New()
	r.Use(func(c *gin.Context) { c.Set("uid", c.GetHeader("X-User")); c.Next() })
	r.Use(RateLimit(rl, ByContextKey("uid")))
	r.POST("/send", func(c *gin.Context) { c.Status(http.StatusOK) })

	alice := map[string]string{"X-User": "alice"}
	if w := serve(r, http.MethodPost, "/send", alice, ""); w.Code != http.StatusOK {
		t.Fatalf("first = %d", w.Code)
	}
	if w := serve(r, http.MethodPost, "/send", alice, ""); w.Code != http.StatusTooManyRequests {
		t.Errorf("second = %d, want 429", w.Code)
	}
	if w := serve(r, http.MethodPost, "/send", map[string]string{"X-User": "bob"}, ""); w.Code != http.StatusOK {
		t.Errorf("bob = %d, want 200", w.Code)
	}
}

func TestRL_SweepDropsIdleKeys(t *testing.T) {
	rl := NewRateLimiter(rate.Every(time.Second), 1, time.Minute)
	rl.Allow("a")
	rl.sweep(time.Now().Add(2 * time.Minute))
	rl.mu.Lock()
	n := len(rl.m)
	rl.mu.Unlock()
	if n != 0 {
		t.Errorf("len after sweep = %d, want 0", n)
	}
	rl.Stop()
	rl.Stop()
}

func TestRL_StartExits(t *testing.T) {
	exited := func(rl *RL) bool {
		select {
		case <-rl.done:
			return true
		case <-time.After(time.Second):
			return false
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	rl := NewRateLimiter(rate.Every(time.Second), 1, time.Minute).Start(ctx)
	cancel()
	if !exited(rl) {
		t.Error("gc goroutine still running after context cancel")
	}

	rl = NewRateLimiter(rate.Every(time.Second), 1, time.Minute).Start(context.Background())
	rl.Stop()
	if !exited(rl) {
		t.Error("gc goroutine still running after Stop")
	}
}

func TestCORS(t *testing.T) {
	gin.SetMode(gin.TestMode)
	tests := []struct {
		name   string
		env    string
		origin string
		want   string
	}{
		{"dev allows any", "dev", "https://evil.example", "https://evil.example"},
		{"prod same host", "prod", "http://example.com", "http://example.com"},
		{"prod allow list", "prod", "https://app.example", "https://app.example"},
		{"prod foreign", "prod", "https://example.com.evil", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := gin.New()
			r.Use(CORS(tt.env, []string{"https://app.example"}))
			r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })
			w := serve(r, http.MethodGet, "http://example.com/x", map[string]string{"Origin": tt.origin}, "")
			if got := w.Header().Get("Access-Control-Allow-Origin"); got != tt.want {
				t.Errorf("Allow-Origin = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestCORS_Preflight(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(CORS("dev", nil))
	r.OPTIONS("/x", func(c *gin.Context) { c.Status(http.StatusOK) })
	w := serve(r, http.MethodOptions, "/x", map[string]string{"Origin": "http://localhost:5173"}, "")
	if w.Code != http.StatusNoContent {
		t.Errorf("preflight = %d, want 204", w.Code)
	}
}
