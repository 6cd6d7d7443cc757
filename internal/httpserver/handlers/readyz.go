package handlers

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/MrSnakeDoc/playwatch/internal/httpserver/deps"
	"github.com/MrSnakeDoc/playwatch/internal/logger"
)

const pingTimeout = 2 * time.Second

type componentStatus struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

type readyzResponse struct {
	Ready      bool                       `json:"ready"`
	Components map[string]componentStatus `json:"components,omitempty"`
}

// Readyz pings every configured backend in parallel. Any failure makes
// the instance not ready (503).
func Readyz(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), pingTimeout)
		defer cancel()

		var (
			mu         sync.Mutex
			wg         sync.WaitGroup
			components = make(map[string]componentStatus, len(d.Readiness))
			ready      = true
		)
		for name, p := range d.Readiness {
			name, p := name, p
			wg.Add(1)
			go func() {
				defer wg.Done()
				st := componentStatus{OK: true}
				if err := p.Ping(ctx); err != nil {
					st = componentStatus{OK: false, Error: err.Error()}
					d.Logger.Warn("readiness check failed",
						logger.String("component", name),
						logger.Error(err))
				}
				mu.Lock()
				components[name] = st
				if !st.OK {
					ready = false
				}
				mu.Unlock()
			}()
		}
		wg.Wait()

		status := http.StatusOK
		if !ready {
			status = http.StatusServiceUnavailable
		}
		writeJSON(w, status, readyzResponse{Ready: ready, Components: components})
	}
}
