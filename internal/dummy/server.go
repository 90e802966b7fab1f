// Package dummy serves a stub target so the harness can be exercised
// without the real CRUD servers: canned payloads, configurable latency
// jitter, no state.
package dummy

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand"
	"net/http"
	"strconv"
	"time"
)

type ServerConfig struct {
	Port int

	// Latency window per request; defaults to 5-25ms.
	MinDelay time.Duration
	MaxDelay time.Duration
}

type user struct {
	ID        int64  `json:"id"`
	Username  string `json:"username"`
	Email     string `json:"email"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	IsActive  bool   `json:"isActive"`
}

type order struct {
	ID          int64   `json:"id"`
	TotalAmount float64 `json:"totalAmount"`
	Status      string  `json:"status"`
}

func fakeUser(id int64) user {
	return user{
		ID:        id,
		Username:  fmt.Sprintf("user%d", id),
		Email:     fmt.Sprintf("user%d@example.com", id),
		FirstName: "Test",
		LastName:  fmt.Sprintf("User%d", id),
		IsActive:  true,
	}
}

func Start(cfg ServerConfig) *http.Server {
	if cfg.MinDelay == 0 {
		cfg.MinDelay = 5 * time.Millisecond
	}
	if cfg.MaxDelay <= cfg.MinDelay {
		cfg.MaxDelay = cfg.MinDelay + 20*time.Millisecond
	}

	jitter := func() {
		span := cfg.MaxDelay - cfg.MinDelay
		time.Sleep(cfg.MinDelay + time.Duration(rand.Int63n(int64(span))))
	}

	writeJSON := func(w http.ResponseWriter, status int, v any) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(v)
	}

	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/users/{id}", func(w http.ResponseWriter, r *http.Request) {
		jitter()
		id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
		if err != nil || id < 1 {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "user not found"})
			return
		}
		writeJSON(w, http.StatusOK, fakeUser(id))
	})

	mux.HandleFunc("GET /api/users", func(w http.ResponseWriter, r *http.Request) {
		jitter()
		size, _ := strconv.Atoi(r.URL.Query().Get("size"))
		if size < 1 {
			size = 10
		}
		users := make([]user, 0, size)
		for i := 1; i <= size; i++ {
			users = append(users, fakeUser(int64(i)))
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"users": users, "totalElements": 10000, "totalPages": 1000, "currentPage": 0,
		})
	})

	mux.HandleFunc("POST /api/users", func(w http.ResponseWriter, r *http.Request) {
		jitter()
		writeJSON(w, http.StatusCreated, fakeUser(rand.Int63n(10000)+1))
	})

	mux.HandleFunc("GET /api/users/{id}/orders", func(w http.ResponseWriter, r *http.Request) {
		jitter()
		writeJSON(w, http.StatusOK, []order{
			{ID: 1, TotalAmount: 99.95, Status: "DELIVERED"},
			{ID: 2, TotalAmount: 24.50, Status: "PENDING"},
		})
	})

	mux.HandleFunc("GET /api/users/search", func(w http.ResponseWriter, r *http.Request) {
		jitter()
		writeJSON(w, http.StatusOK, []user{fakeUser(1), fakeUser(2)})
	})

	mux.HandleFunc("POST /api/users/bulk", func(w http.ResponseWriter, r *http.Request) {
		jitter()
		writeJSON(w, http.StatusCreated, []user{fakeUser(1), fakeUser(2), fakeUser(3)})
	})

	// Minimal GraphQL endpoint: always answers the data shape the
	// harness queries for; good enough to benchmark the transport.
	mux.HandleFunc("POST /graphql", func(w http.ResponseWriter, r *http.Request) {
		jitter()
		writeJSON(w, http.StatusOK, map[string]any{
			"data": map[string]any{"user": fakeUser(1)},
		})
	})

	addr := fmt.Sprintf(":%d", cfg.Port)
	server := &http.Server{Addr: addr, Handler: mux}

	go func() {
		slog.Info("dummy target listening", "addr", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("dummy target failed", "err", err)
		}
	}()

	return server
}
