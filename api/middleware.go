package api

import (
	"context"
	"encoding/json"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"medshift/core/auth"
	"medshift/core/rbac"
)

func (s *Server) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				if s.logger != nil {
					s.logger.Errorf("PANIC %s %s: %v\n%s", r.Method, r.URL.Path, rec, string(debug.Stack()))
				}
				http.Error(w, "internal server error", http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func (s *Server) securityHeadersMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "SAMEORIGIN")
		w.Header().Set("Referrer-Policy", "no-referrer")
		next.ServeHTTP(w, r)
	})
}

func (s *Server) jsonMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		next.ServeHTTP(w, r)
	})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		if s.logger != nil {
			user := "-"
			if v := r.Context().Value(auth.ClaimsContextKey); v != nil {
				user = v.(*auth.Claims).Email
			}
			s.logger.Printf("RESP %s %s user=%s status=%d dur=%s bytes=%d", r.Method, r.URL.Path, user, rec.status, time.Since(start), rec.size)
		}
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
	size   int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	n, err := r.ResponseWriter.Write(b)
	r.size += n
	return n, err
}

// withAuth verifies the bearer token and stores its claims on the context.
func (s *Server) withAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		raw := strings.TrimSpace(r.Header.Get("Authorization"))
		if !strings.HasPrefix(raw, "Bearer ") {
			if s.logger != nil {
				s.logger.Printf("AUTH fail (missing bearer) %s %s", r.Method, r.URL.Path)
			}
			writeJSON(w, http.StatusUnauthorized, errorBody("auth.unauthorized", "auth.error.unauthorized"))
			return
		}
		claims, err := s.tokens.Verify(strings.TrimPrefix(raw, "Bearer "))
		if err != nil {
			if s.logger != nil {
				s.logger.Printf("AUTH fail (bad token) %s %s: %v", r.Method, r.URL.Path, err)
			}
			writeJSON(w, http.StatusUnauthorized, errorBody("auth.unauthorized", "auth.error.unauthorized"))
			return
		}
		ctx := context.WithValue(r.Context(), auth.ClaimsContextKey, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	}
}

func (s *Server) requirePermission(perm rbac.Permission) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			val := r.Context().Value(auth.ClaimsContextKey)
			if val == nil {
				writeJSON(w, http.StatusUnauthorized, errorBody("auth.unauthorized", "auth.error.unauthorized"))
				return
			}
			claims := val.(*auth.Claims)
			if !s.policy.Allowed(claims.Roles, perm) {
				if s.logger != nil {
					s.logger.Printf("PERM fail %s %s user=%s roles=%v need=%s", r.Method, r.URL.Path, claims.Email, claims.Roles, perm)
				}
				writeJSON(w, http.StatusForbidden, errorBody("auth.forbidden", "auth.error.permissionDenied"))
				return
			}
			next.ServeHTTP(w, r)
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func errorBody(code, i18nKey string) map[string]any {
	return map[string]any{
		"error": map[string]string{
			"code":     code,
			"i18n_key": i18nKey,
		},
	}
}
