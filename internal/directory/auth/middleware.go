package auth

import (
	"context"
	"fmt"
	"net/http"
	"strings"
)

type route struct {
	method string
	prefix string
}

// protectedRoutes mirrors ProtectedMethods on the HTTP side.
var protectedRoutes = []route{
	{http.MethodPost, "/v1/companies"},          // UpsertCompany
	{http.MethodDelete, "/v1/companies/"},       // DeleteCompany
	{http.MethodPost, "/v1/maintenance/filter"}, // FilterCompanies
}

func HTTPMiddleware(next http.Handler, jwtSecret string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Skip authentication for non-protected endpoints
		if !isProtectedRequest(r) {
			next.ServeHTTP(w, r)
			return
		}

		tokenString, err := extractTokenFromHeader(r)
		if err != nil {
			http.Error(w, err.Error(), http.StatusUnauthorized)
			return
		}

		claims, err := validateToken(tokenString, jwtSecret)
		if err != nil {
			http.Error(w, "invalid token", http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), userContextKey, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func extractTokenFromHeader(r *http.Request) (string, error) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return "", fmt.Errorf("authorization header required")
	}

	if !strings.HasPrefix(authHeader, "Bearer ") {
		return "", fmt.Errorf("invalid authorization format")
	}
	tokenString := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
	if tokenString == "" {
		return "", fmt.Errorf("invalid authorization format")
	}

	return tokenString, nil
}

func isProtectedRequest(r *http.Request) bool {
	for _, rt := range protectedRoutes {
		if r.Method == rt.method && strings.HasPrefix(r.URL.Path, rt.prefix) {
			return true
		}
	}
	return false
}
