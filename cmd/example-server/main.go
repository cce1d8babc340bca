package main

import (
	"context"
	"encoding/json"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"request-gate/middleware/pipeline"
	"request-gate/middleware/ratelimit/domain"
	"request-gate/middleware/ratelimit/infra"
	"request-gate/middleware/requestid"
	"request-gate/middleware/session"
)

func main() {
	// Exemplo: o pipeline injetado direto no webserver (sem proxy)
	secret := os.Getenv("SESSION_SECRET")
	if secret == "" {
		secret = "example-server-secret-do-not-use-in-prod"
	}
	codec, err := session.NewJWTCodec([]byte(secret))
	if err != nil {
		log.Fatalf("session codec: %v", err)
	}

	apiLimiter, err := infra.NewFixedWindow(domain.APIPreset)
	if err != nil {
		log.Fatalf("api limiter: %v", err)
	}
	authLimiter, err := infra.NewFixedWindow(domain.AuthPreset)
	if err != nil {
		log.Fatalf("auth limiter: %v", err)
	}

	gate, err := pipeline.New(pipeline.Options{
		APILimiter:  apiLimiter,
		AuthLimiter: authLimiter,
		Codec:       codec,
		Stats:       infra.NewMemoryStatsStore(),
		Logger:      slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug})),
	})
	if err != nil {
		log.Fatalf("pipeline: %v", err)
	}

	h := requestid.Middleware(gate(newMux(codec)))

	addr := ":8081"
	if v := os.Getenv("LISTEN_ADDR"); v != "" {
		addr = v
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       90 * time.Second,
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Printf("example server listening on %s", addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("server error: %v", err)
	}
}

func newMux(codec session.Codec) *http.ServeMux {
	mux := http.NewServeMux()

	page := func(body string) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "text/plain; charset=utf-8")
			_, _ = w.Write([]byte(body + "\n"))
		}
	}
	mux.HandleFunc("GET /{$}", page("home"))
	mux.HandleFunc("GET /dashboard", page("dashboard"))
	mux.HandleFunc("GET /sign-in", page("sign in"))
	mux.HandleFunc("GET /sign-up", page("sign up"))

	mux.HandleFunc("GET /api/widgets", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, []map[string]string{{"id": "w-1", "name": "widget"}})
	})

	// Sessão de demonstração sem checar credencial nenhuma: serve só para
	// exercitar a renovação de sessão do pipeline.
	mux.HandleFunc("POST /api/auth/demo-session", func(w http.ResponseWriter, r *http.Request) {
		expires := time.Now().Add(session.DefaultTTL)
		token, err := codec.Sign(session.Payload{
			Claims:  map[string]any{"user": map[string]any{"id": uuid.NewString()}},
			Expires: expires,
		})
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "could not sign session"})
			return
		}
		session.SetCookie(w, token, expires)
		writeJSON(w, http.StatusCreated, map[string]string{"expires": expires.UTC().Format(time.RFC3339)})
	})

	mux.HandleFunc("POST /api/auth/sign-out", func(w http.ResponseWriter, r *http.Request) {
		session.ClearCookie(w)
		writeJSON(w, http.StatusOK, map[string]bool{"success": true})
	})

	return mux
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
