package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/playwatch/internal/httpserver/deps"
	"github.com/MrSnakeDoc/playwatch/internal/logger"
)

type targetStatus struct {
	ID          string     `json:"id"`
	URL         string     `json:"url"`
	PackageName string     `json:"package_name"`
	AppName     string     `json:"app_name,omitempty"`
	Checked     bool       `json:"checked"`
	Available   *bool      `json:"available,omitempty"`
	Error       string     `json:"error,omitempty"`
	CheckedAt   *time.Time `json:"checked_at,omitempty"`
}

type statusResponse struct {
	UserKey string         `json:"user_key"`
	Targets []targetStatus `json:"targets"`
}

// Status returns the latest result of every target of {key}.
func Status(d deps.Deps) http.HandlerFunc {
	loc := d.Location
	if loc == nil {
		loc = time.Local
	}
	return func(w http.ResponseWriter, r *http.Request) {
		key := chi.URLParam(r, "key")

		statuses, err := d.Registry.Status(r.Context(), key)
		if err != nil {
			d.Logger.Error("failed to load status", logger.String("user", key), logger.Error(err))
			writeError(w, http.StatusInternalServerError, "failed to load status")
			return
		}

		resp := statusResponse{
			UserKey: key,
			Targets: make([]targetStatus, 0, len(statuses)),
		}
		for _, st := range statuses {
			ts := targetStatus{
				ID:          st.Target.ID,
				URL:         st.Target.URL,
				PackageName: st.Target.PackageName,
				AppName:     st.Target.AppName,
			}
			if res := st.Result; res != nil {
				at := res.CheckedAt.In(loc)
				available := res.Available
				ts.Checked = true
				ts.Available = &available
				ts.Error = res.ErrorMessage
				ts.CheckedAt = &at
			}
			resp.Targets = append(resp.Targets, ts)
		}
		writeJSON(w, http.StatusOK, resp)
	}
}
