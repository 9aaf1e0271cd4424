package api

import (
	"crypto/subtle"
	"net/http"
	"slices"
	"strings"
)

// devOrigins are the local frontend dev servers, always allowed.
var devOrigins = []string{
	"http://localhost:5173",
	"http://localhost:4173",
	"http://localhost:3000",
}

// withCORS answers preflights and reflects the Origin header when it is one
// of devOrigins or extra.
func withCORS(extra []string, next http.Handler) http.Handler {
	allowed := make(map[string]struct{}, len(devOrigins)+len(extra))
	for _, o := range slices.Concat(devOrigins, extra) {
		if o = strings.TrimSpace(o); o != "" {
			allowed[o] = struct{}{}
		}
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if origin := r.Header.Get("Origin"); origin != "" {
			if _, ok := allowed[origin]; ok {
				h := w.Header()
				h.Set("Access-Control-Allow-Origin", origin)
				h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
				h.Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
				h.Add("Vary", "Origin")
			}
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// bearerMatches reports whether r carries "Bearer <key>". An empty key never
// matches.
func bearerMatches(r *http.Request, key string) bool {
	token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok || key == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(token), []byte(key)) == 1
}

// requireToken gates a handler behind a bearer token. With no key configured
// the endpoint answers 403 naming the variable that enables it.
func requireToken(key, envVar string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if key == "" {
			http.Error(w, "disabled: set "+envVar+" to enable", http.StatusForbidden)
			return
		}
		if !bearerMatches(r, key) {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}
