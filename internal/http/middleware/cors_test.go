package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCORS(t *testing.T) {
	tests := []struct {
		name       string
		allowed    []string
		method     string
		origin     string
		preflight  string
		wantOrigin string
		wantStatus int
		wantCalled bool
	}{
		{"listed origin", []string{"https://barberia.pe"}, http.MethodGet, "https://barberia.pe", "", "https://barberia.pe", http.StatusOK, true},
		{"unknown origin", []string{"https://barberia.pe"}, http.MethodGet, "https://evil.example", "", "", http.StatusOK, true},
		{"wildcard", []string{" * "}, http.MethodPost, "https://any.example", "", "https://any.example", http.StatusOK, true},
		{"no origin", []string{"*"}, http.MethodGet, "", "", "", http.StatusOK, true},
		{"preflight", []string{"https://barberia.pe"}, http.MethodOptions, "https://barberia.pe", "POST", "https://barberia.pe", http.StatusNoContent, false},
		{"preflight unknown origin", []string{"https://barberia.pe"}, http.MethodOptions, "https://evil.example", "POST", "", http.StatusForbidden, false},
		{"preflight unserved method", []string{"https://barberia.pe"}, http.MethodOptions, "https://barberia.pe", "DELETE", "https://barberia.pe", http.StatusForbidden, false},
		{"options without request method", []string{"https://barberia.pe"}, http.MethodOptions, "https://barberia.pe", "", "https://barberia.pe", http.StatusOK, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			called := false
			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				called = true
				w.WriteHeader(http.StatusOK)
			})
			req := httptest.NewRequest(tt.method, "/api/forms", nil)
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			if tt.preflight != "" {
				req.Header.Set("Access-Control-Request-Method", tt.preflight)
			}
			rec := httptest.NewRecorder()

			CORS(tt.allowed)(next).ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantCalled, called)
			assert.Equal(t, tt.wantOrigin, rec.Header().Get("Access-Control-Allow-Origin"))
			if tt.origin != "" {
				assert.Equal(t, "Origin", rec.Header().Get("Vary"))
			}
			if tt.wantOrigin != "" {
				assert.Equal(t, "GET, POST, OPTIONS", rec.Header().Get("Access-Control-Allow-Methods"))
				assert.Contains(t, rec.Header().Get("Access-Control-Allow-Headers"), "Content-Type")
			}
		})
	}
}
