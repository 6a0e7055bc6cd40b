package middleware

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"video-chat-go/pkg/log"
)

func observeLogs(t *testing.T) *observer.ObservedLogs {
	t.Helper()
	core, logs := observer.New(zapcore.InfoLevel)
	log.SetLogger(zap.New(core))
	t.Cleanup(func() { log.SetLogger(zap.NewNop()) })
	return logs
}

func TestRequestLoggerRedactsCredentials(t *testing.T) {
	const apiKey = "vc_0123456789abcdef0123456789abcdef0123456789abcdef"
	const jwt = "eyJhbGciOiJIUzI1NiJ9.payload.signature"

	tests := []struct {
		name         string
		path         string
		requestBody  string
		responseBody string
		redacted     bool
	}{
		{name: "login", path: "/api/v1/admin/login", requestBody: `{"username":"admin","password":"s3cret"}`, responseBody: fmt.Sprintf(`{"token":%q}`, jwt), redacted: true},
		{name: "create tenant", path: "/api/v1/admin/tenants", requestBody: `{"name":"acme"}`, responseBody: fmt.Sprintf(`{"apiKey":%q}`, apiKey), redacted: true},
		{name: "tenant route", path: "/api/v1/chat/video", requestBody: `{"user_query":"hi"}`, responseBody: `{"answer":"hello"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logs := observeLogs(t)
			gin.SetMode(gin.TestMode)
			r := gin.New()
			r.Use(RequestLogger())
			r.POST(tt.path, func(c *gin.Context) {
				c.Data(http.StatusOK, "application/json", []byte(tt.responseBody))
			})

			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, tt.path, strings.NewReader(tt.requestBody)))
			if rec.Body.String() != tt.responseBody {
				t.Fatalf("client body altered: %s", rec.Body.String())
			}

			entries := logs.FilterMessage("HTTP Request Log").All()
			if len(entries) != 1 {
				t.Fatalf("got %d request log entries, want 1", len(entries))
			}
			fields := entries[0].ContextMap()
			loggedReq, _ := fields["requestBody"].(string)
			loggedResp, _ := fields["responseBody"].(string)
			if tt.redacted {
				for _, secret := range []string{apiKey, jwt, "vc_", "s3cret"} {
					if strings.Contains(loggedReq, secret) || strings.Contains(loggedResp, secret) {
						t.Fatalf("secret %q reached the log: req=%q resp=%q", secret, loggedReq, loggedResp)
					}
				}
				return
			}
			if loggedReq != tt.requestBody || loggedResp != tt.responseBody {
				t.Fatalf("bodies not logged: req=%q resp=%q", loggedReq, loggedResp)
			}
		})
	}
}
