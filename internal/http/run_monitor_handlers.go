package http

import (
	"encoding/json"
	"errors"
	nethttp "net/http"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"go-laue-run-monitor/internal/expansion"
	"go-laue-run-monitor/internal/model"
	"go-laue-run-monitor/internal/refresh"
	"go-laue-run-monitor/internal/render"
	"go-laue-run-monitor/internal/session"
)

var validate = validator.New()

type toggleRequest struct {
	Session string `json:"session" validate:"required,uuid"`
	JobID   int64  `json:"job_id" validate:"required,gt=0"`
}

type rowsMeta struct {
	Session     string    `json:"session"`
	Created     bool      `json:"created"`
	Count       int       `json:"count"`
	Jobs        int       `json:"jobs"`
	GeneratedAt time.Time `json:"generated_at"`
}

type rowsResponse struct {
	Meta rowsMeta         `json:"meta"`
	Data []render.RowView `json:"data"`
}

func rowsPayload(s *session.Session, created bool) rowsResponse {
	frame := s.Controller.Frame()
	views := render.View(frame)
	return rowsResponse{
		Meta: rowsMeta{
			Session:     s.ID,
			Created:     created,
			Count:       len(views),
			Jobs:        len(model.JobRows(frame.Rows)),
			GeneratedAt: time.Now().UTC(),
		},
		Data: views,
	}
}

// rowsHandler returns the flattened grid of a session, creating the session on first use.
// refresh=1 polls the database before answering.
func rowsHandler(sessions *session.Manager, poller *refresh.Poller) nethttp.HandlerFunc {
	return func(w nethttp.ResponseWriter, r *nethttp.Request) {
		if r.Method != nethttp.MethodGet {
			writeJSON(w, nethttp.StatusMethodNotAllowed, map[string]any{"error": "method not allowed"})
			return
		}

		if poller != nil && parseBool(r.URL.Query().Get("refresh")) {
			if _, err := poller.RefreshNow(r.Context()); err != nil {
				writeJSON(w, nethttp.StatusServiceUnavailable, map[string]any{
					"error": "failed to refresh job list",
				})
				return
			}
		}

		s, created := sessions.Acquire(r.URL.Query().Get("session"))
		writeJSON(w, nethttp.StatusOK, rowsPayload(s, created))
	}
}

// toggleHandler applies a click on a job's expand control and returns the new rows.
func toggleHandler(sessions *session.Manager) nethttp.HandlerFunc {
	return func(w nethttp.ResponseWriter, r *nethttp.Request) {
		if r.Method != nethttp.MethodPost {
			writeJSON(w, nethttp.StatusMethodNotAllowed, map[string]any{"error": "method not allowed"})
			return
		}

		var req toggleRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, nethttp.StatusBadRequest, map[string]any{"error": "invalid JSON body"})
			return
		}
		req.Session = strings.TrimSpace(req.Session)
		if err := validate.Struct(req); err != nil {
			writeJSON(w, nethttp.StatusBadRequest, map[string]any{"error": validationMessage(err)})
			return
		}

		s, ok := sessions.Get(req.Session)
		if !ok {
			writeJSON(w, nethttp.StatusNotFound, map[string]any{"error": "unknown session"})
			return
		}
		s, _ = sessions.Acquire(s.ID)

		changed := s.Controller.Toggle(req.JobID)
		payload := rowsPayload(s, false)
		writeJSON(w, nethttp.StatusOK, map[string]any{
			"meta":    payload.Meta,
			"changed": changed,
			"state":   s.Controller.State(req.JobID),
			"data":    payload.Data,
		})
	}
}

type stateEntry struct {
	JobID int64 `json:"job_id"`
	expansion.State
}

// stateHandler exposes the expansion record of every job a session has seen.
func stateHandler(sessions *session.Manager) nethttp.HandlerFunc {
	return func(w nethttp.ResponseWriter, r *nethttp.Request) {
		id := strings.TrimSpace(r.URL.Query().Get("session"))
		if id == "" {
			writeJSON(w, nethttp.StatusBadRequest, map[string]any{"error": "session is required"})
			return
		}
		s, ok := sessions.Get(id)
		if !ok {
			writeJSON(w, nethttp.StatusNotFound, map[string]any{"error": "unknown session"})
			return
		}

		snapshot := s.Controller.Snapshot()
		items := make([]stateEntry, 0, len(snapshot))
		for jobID, st := range snapshot {
			items = append(items, stateEntry{JobID: jobID, State: st})
		}
		sort.Slice(items, func(i, j int) bool { return items[i].JobID > items[j].JobID })

		writeJSON(w, nethttp.StatusOK, map[string]any{
			"meta": map[string]any{
				"session": s.ID,
				"count":   len(items),
			},
			"data": items,
		})
	}
}

func columnsHandler(w nethttp.ResponseWriter, _ *nethttp.Request) {
	writeJSON(w, nethttp.StatusOK, map[string]any{
		"data": render.Columns(),
	})
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return "invalid request"
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		switch fe.Field() {
		case "Session":
			parts = append(parts, "session must be a session id")
		case "JobID":
			parts = append(parts, "job_id must be a positive integer")
		default:
			parts = append(parts, strings.ToLower(fe.Field())+" is invalid")
		}
	}
	return strings.Join(parts, "; ")
}

func parseBool(raw string) bool {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}
