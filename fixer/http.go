package fixer

import (
	"encoding/json"
	"errors"
	"html/template"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hazyhaar/statusfixer/patcher"
	"github.com/hazyhaar/statusfixer/shield"
)

// maxCaptureBytes bounds POST /check bodies. Issue pages run to a few MB.
const maxCaptureBytes = 16 << 20

// Handler returns the local status surface.
func (f *Fixer) Handler() http.Handler {
	r := chi.NewRouter()
	for _, mw := range shield.DefaultStack(f.logger) {
		r.Use(mw)
	}

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"status":   "ok",
			"sessions": len(f.Sessions()),
		})
	})

	r.Get("/sessions", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, f.Sessions())
	})

	r.Get("/sessions/{id}", func(w http.ResponseWriter, r *http.Request) {
		info, err := f.Session(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, statusFor(err), err)
			return
		}
		writeJSON(w, http.StatusOK, info)
	})

	r.Post("/sessions/{id}/rescan", func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		info, err := f.Rescan(id)
		if err != nil {
			writeError(w, statusFor(err), err)
			return
		}
		shield.GetLogger(r.Context()).Info("fixer: manual rescan", "id", id, "badge", info.LastResult.Badge)
		writeJSON(w, http.StatusOK, info)
	})

	r.Post("/check", func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxCaptureBytes))
		if err != nil {
			writeError(w, http.StatusRequestEntityTooLarge, err)
			return
		}
		res, patched, err := f.CheckCapture(string(body))
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		writeJSON(w, http.StatusOK, captureResponse{Result: res, HTML: patched})
	})

	r.Get("/options", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := optionsPage.Execute(w, f.optionsView()); err != nil {
			shield.GetLogger(r.Context()).Error("fixer: render options", "error", err)
		}
	})

	return r
}

func statusFor(err error) int {
	if errors.Is(err, ErrUnknownSession) {
		return http.StatusNotFound
	}
	if errors.Is(err, ErrSessionClosed) {
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Debug("fixer: write response", "error", err)
	}
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]string{"error": err.Error()})
}

type captureResponse struct {
	Result patcher.Result `json:"result"`
	HTML   string         `json:"html,omitempty"`
}

type optionsView struct {
	Config   *Config
	Sessions []SessionInfo
}

func (f *Fixer) optionsView() optionsView {
	return optionsView{Config: f.cfg, Sessions: f.Sessions()}
}

var optionsPage = template.Must(template.New("options").Parse(`<!doctype html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>Status Field Fixer: settings</title>
<style>
body { font: 14px system-ui, sans-serif; margin: 2em; max-width: 56em; }
table { border-collapse: collapse; }
td, th { border-bottom: 1px solid #ddd; padding: 4px 8px; text-align: left; vertical-align: top; }
code { font-size: 12px; }
</style>
</head>
<body>
<h1>Status Field Fixer</h1>
<p>Settings are read from the YAML configuration file. Restart the daemon to apply changes.</p>

<h2>Pages</h2>
<table>
<tr><th>ID</th><th>URL</th><th>Rescans</th><th>Badge</th></tr>
{{range .Sessions}}<tr><td>{{.ID}}</td><td>{{.URL}}</td><td>{{.Runs}}</td><td>{{.BadgeText}}</td></tr>
{{else}}<tr><td colspan="4">No page attached.</td></tr>
{{end}}</table>

<h2>Timing</h2>
<table>
<tr><td>Initial delay</td><td>{{.Config.Schedule.InitialDelay}}</td></tr>
<tr><td>Debounce</td><td>{{.Config.Schedule.Debounce}}</td></tr>
<tr><td>Editing keyword threshold</td><td>{{.Config.Patcher.EditingKeywordThreshold}}</td></tr>
</table>

<h2>Page detection</h2>
<table>
<tr><td>SaaS suffix</td><td><code>{{.Config.Popup.SaaSSuffix}}</code></td></tr>
<tr><td>Product substring</td><td><code>{{.Config.Popup.ProductSubstring}}</code></td></tr>
</table>
</body>
</html>
`))
