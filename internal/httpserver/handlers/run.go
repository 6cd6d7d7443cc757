package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/playwatch/internal/checker"
	"github.com/MrSnakeDoc/playwatch/internal/httpserver/deps"
	"github.com/MrSnakeDoc/playwatch/internal/logger"
)

type runResponse struct {
	UserKey  string `json:"user_key"`
	Accepted bool   `json:"accepted"`
	UseProxy bool   `json:"use_proxy"`
}

// Run claims the run slot of {key}, starts the check in the background and
// answers 202. A run already in flight for the user answers 409. ?direct=true skips
// proxy rotation.
func Run(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key := chi.URLParam(r, "key")
		if key == "" {
			writeError(w, http.StatusBadRequest, "missing user key")
			return
		}

		useProxy := true
		if v := r.URL.Query().Get("direct"); v != "" {
			direct, err := strconv.ParseBool(v)
			if err != nil {
				writeError(w, http.StatusBadRequest, "direct must be a boolean")
				return
			}
			useProxy = !direct
		}

		// The run outlives the request.
		ctx := context.WithoutCancel(r.Context())
		if !d.Runner.Start(ctx, key, checker.Options{UseProxy: useProxy}) {
			writeJSON(w, http.StatusConflict, runResponse{UserKey: key, UseProxy: useProxy})
			return
		}

		d.Logger.Info("run triggered via api",
			logger.String("user", key),
			logger.Bool("use_proxy", useProxy),
			logger.String("remote_ip", r.RemoteAddr))
		writeJSON(w, http.StatusAccepted, runResponse{UserKey: key, Accepted: true, UseProxy: useProxy})
	}
}
