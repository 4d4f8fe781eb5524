package main

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/AmjadKudsi/walmart-bill-splitter/internal/auth"
	"github.com/AmjadKudsi/walmart-bill-splitter/internal/middleware"
	"github.com/AmjadKudsi/walmart-bill-splitter/internal/service"
	"github.com/AmjadKudsi/walmart-bill-splitter/internal/storage"
	"github.com/AmjadKudsi/walmart-bill-splitter/internal/storage/sqlite"
	"github.com/AmjadKudsi/walmart-bill-splitter/pkg/logging"
)

const tokenDuration = 24 * time.Hour

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

// sessionSecret returns the token signing secret from the environment,
// or a random per-process one. With a random secret, in-flight sessions
// do not survive a restart even when the SQLite store does.
func sessionSecret() string {
	if s := os.Getenv("SESSION_SECRET"); s != "" {
		return s
	}
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		slog.Error("Failed to generate session secret", "error", err)
		os.Exit(1)
	}
	slog.Warn("SESSION_SECRET not set, using a random per-process secret")
	return hex.EncodeToString(buf)
}

func main() {
	logging.Setup()

	dbPath := getEnv("DB_PATH", "./data/sessions.db")
	port := getEnv("PORT", "8080")

	var store storage.Store
	if dbPath == "memory" {
		store = storage.NewMemoryStore()
		slog.Info("Storage initialized", "backend", "memory")
	} else {
		sqliteStore, err := sqlite.New(dbPath)
		if err != nil {
			slog.Error("Failed to initialize storage", "error", err)
			os.Exit(1)
		}
		store = sqliteStore
		slog.Info("Storage initialized", "backend", "sqlite", "database", dbPath)
	}
	defer store.Close()

	tokens := auth.NewTokenManager(sessionSecret(), tokenDuration)

	mux := http.NewServeMux()
	svc := service.NewReceiptService(store, tokens)
	svc.Routes(mux)

	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, "ok")
	})

	handler := middleware.Logging(middleware.Metrics(mux))

	// h2c lets the UI keep one HTTP/2 connection without TLS in front.
	h2cHandler := h2c.NewHandler(handler, &http2.Server{})

	addr := ":" + port
	slog.Info("Server starting", "address", addr, "url", "http://localhost"+addr)
	if err := http.ListenAndServe(addr, h2cHandler); err != nil {
		slog.Error("Server failed", "error", err)
		os.Exit(1)
	}
}
