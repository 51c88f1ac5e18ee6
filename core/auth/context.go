package auth

type contextKey string

// ClaimsContextKey carries the verified token claims through a request.
const ClaimsContextKey contextKey = "authClaims"
