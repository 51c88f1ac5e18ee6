package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"medshift/core/auth"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, i18nKey string) {
	writeJSON(w, status, map[string]any{
		"error": map[string]string{
			"code":     code,
			"i18n_key": i18nKey,
		},
	})
}

// bindJSON decodes the request body into v and runs struct validation.
func bindJSON(r *http.Request, v interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return err
	}
	if err := validate.Struct(v); err != nil {
		var invalid *validator.InvalidValidationError
		if errors.As(err, &invalid) {
			return nil
		}
		return err
	}
	return nil
}

// currentClaims returns the verified token claims, or nil outside an
// authenticated route.
func currentClaims(r *http.Request) *auth.Claims {
	val := r.Context().Value(auth.ClaimsContextKey)
	if val == nil {
		return nil
	}
	claims, _ := val.(*auth.Claims)
	return claims
}

func parseIntDefault(raw string, def int) int {
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return n
}

func parseID(raw string) int64 {
	id, _ := strconv.ParseInt(raw, 10, 64)
	return id
}
