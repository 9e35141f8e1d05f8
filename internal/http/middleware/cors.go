package middleware

import (
	"net/http"
	"strings"
)

var (
	corsMethods = []string{http.MethodGet, http.MethodPost, http.MethodOptions}
	corsHeaders = []string{"Authorization", "Content-Type", "X-Request-Id"}
)

type corsPolicy struct {
	any     bool
	origins map[string]bool
	methods string
	headers string
}

func newCORSPolicy(allowedOrigins []string) corsPolicy {
	p := corsPolicy{
		origins: make(map[string]bool, len(allowedOrigins)),
		methods: strings.Join(corsMethods, ", "),
		headers: strings.Join(corsHeaders, ", "),
	}
	for _, origin := range allowedOrigins {
		switch origin = strings.TrimSpace(origin); origin {
		case "":
		case "*":
			p.any = true
		default:
			p.origins[origin] = true
		}
	}
	return p
}

func (p corsPolicy) allows(origin string) bool {
	return origin != "" && (p.any || p.origins[origin])
}

// CORS lets the shop's site reach the forms API from another origin. "*" in
// allowedOrigins echoes any Origin back. A preflight from an unlisted origin,
// or for a method the API does not serve, is refused with 403.
func CORS(allowedOrigins []string) func(http.Handler) http.Handler {
	policy := newCORSPolicy(allowedOrigins)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := strings.TrimSpace(r.Header.Get("Origin"))
			if origin != "" {
				w.Header().Add("Vary", "Origin")
			}
			allowed := policy.allows(origin)
			if allowed {
				h := w.Header()
				h.Set("Access-Control-Allow-Origin", origin)
				h.Set("Access-Control-Allow-Headers", policy.headers)
				h.Set("Access-Control-Allow-Methods", policy.methods)
				h.Set("Access-Control-Max-Age", "600")
			}

			requested := r.Header.Get("Access-Control-Request-Method")
			if r.Method != http.MethodOptions || origin == "" || requested == "" {
				next.ServeHTTP(w, r)
				return
			}
			if !allowed || !servesMethod(requested) {
				w.WriteHeader(http.StatusForbidden)
				return
			}
			w.WriteHeader(http.StatusNoContent)
		})
	}
}

func servesMethod(method string) bool {
	for _, m := range corsMethods {
		if strings.EqualFold(m, strings.TrimSpace(method)) {
			return true
		}
	}
	return false
}
