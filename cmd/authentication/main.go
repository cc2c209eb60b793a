// This is a **mock authentication service**: it issues JWTs accepted by
// the directory's mutating endpoints, simulating an operator login.
package main

import (
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/gartstein/companydir/internal/directory/auth"
	"github.com/gartstein/companydir/internal/directory/config"
	"go.uber.org/zap"
)

const defaultPort = "8081"

// TokenResponse represents the response structure
type TokenResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

type tokenIssuer struct {
	secret string
	ttl    time.Duration
	logger *zap.Logger
}

// ServeHTTP issues a token for the subject query parameter.
func (i *tokenIssuer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost && r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	subject := r.URL.Query().Get("subject")
	if subject == "" {
		subject = "operator"
	}

	token, err := auth.GenerateToken(subject, i.secret, i.ttl)
	if err != nil {
		i.logger.Error("Failed to generate token", zap.Error(err))
		http.Error(w, "Failed to generate token", http.StatusInternalServerError)
		return
	}
	i.logger.Info("Token issued", zap.String("subject", subject))

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(TokenResponse{Token: token, ExpiresAt: time.Now().Add(i.ttl)}); err != nil {
		i.logger.Error("Failed to encode token", zap.Error(err))
	}
}

func main() {
	logger, _ := zap.NewProduction()
	defer func() { _ = logger.Sync() }()

	cfg, err := config.Load("")
	if err != nil {
		logger.Fatal("failed to load config", zap.Error(err))
	}

	port := os.Getenv("AUTH_PORT")
	if port == "" {
		port = defaultPort
	}

	mux := http.NewServeMux()
	mux.Handle("/token", &tokenIssuer{secret: cfg.JWTSecret, ttl: auth.DefaultTokenTTL, logger: logger})

	srv := &http.Server{Addr: ":" + port, Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	logger.Info("Authentication service running", zap.String("port", port))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal("authentication service failed", zap.Error(err))
	}
}
