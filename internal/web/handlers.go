package web

import (
	"embed"
	"encoding/json"
	"html/template"
	"net/http"
	"strconv"
	"time"

	"github.com/minidoracat/mcp-feedback-enhanced/internal/history"
	"github.com/minidoracat/mcp-feedback-enhanced/internal/version"
)

//go:embed templates/*.html
var templateFS embed.FS

func parseTemplates() *template.Template {
	return template.Must(template.ParseFS(templateFS, "templates/*.html"))
}

func (m *Manager) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", m.handleIndex)
	mux.HandleFunc("GET /session/{id}", m.handleSessionPage)
	mux.HandleFunc("GET /ws/{id}", m.handleWebSocket)
	mux.HandleFunc("POST /api/complete/{id}", m.handleComplete)
	mux.HandleFunc("GET /api/sessions", m.handleListSessions)
	mux.HandleFunc("GET /api/history", m.handleHistory)
	mux.HandleFunc("GET /healthz", m.handleHealth)
	if m.metrics != nil {
		mux.Handle("GET /metrics", m.metrics.Handler())
	}

	if m.debug {
		return m.logRequests(mux)
	}
	return mux
}

func (m *Manager) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		m.log.Debug("http request", "method", r.Method, "path", r.URL.Path, "duration", time.Since(start))
	})
}

type pageData struct {
	Title    string
	Version  string
	Session  sessionInfo
	Sessions []sessionInfo
}

func (m *Manager) handleIndex(w http.ResponseWriter, _ *http.Request) {
	sessions := m.listSessions()
	infos := make([]sessionInfo, 0, len(sessions))
	for _, s := range sessions {
		infos = append(infos, s.info())
	}
	m.render(w, "index.html", pageData{
		Title:    version.Name,
		Version:  version.Version,
		Sessions: infos,
	})
}

func (m *Manager) handleSessionPage(w http.ResponseWriter, r *http.Request) {
	s := m.session(r.PathValue("id"))
	if s == nil {
		http.Error(w, "Session not found", http.StatusNotFound)
		return
	}
	m.render(w, "feedback.html", pageData{
		Title:   version.Name,
		Version: version.Version,
		Session: s.info(),
	})
}

func (m *Manager) render(w http.ResponseWriter, name string, data pageData) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := m.templates.ExecuteTemplate(w, name, data); err != nil {
		m.log.Error("render template failed", "template", name, "error", err)
	}
}

type completeRequest struct {
	Feedback string `json:"feedback"`
}

func (m *Manager) handleComplete(w http.ResponseWriter, r *http.Request) {
	s := m.session(r.PathValue("id"))
	if s == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "Session not found"})
		return
	}

	var req completeRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	m.completeSession(s, req.Feedback)
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (m *Manager) handleListSessions(w http.ResponseWriter, _ *http.Request) {
	sessions := m.listSessions()
	infos := make([]sessionInfo, 0, len(sessions))
	for _, s := range sessions {
		infos = append(infos, s.info())
	}
	writeJSON(w, http.StatusOK, infos)
}

func (m *Manager) handleHistory(w http.ResponseWriter, r *http.Request) {
	if m.history == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "history is disabled"})
		return
	}

	limit := history.DefaultListLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid limit"})
			return
		}
		limit = n
	}

	entries, err := m.history.List(r.Context(), limit)
	if err != nil {
		m.log.Error("listing history failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "listing history failed"})
		return
	}
	if entries == nil {
		entries = []history.Entry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

func (m *Manager) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
