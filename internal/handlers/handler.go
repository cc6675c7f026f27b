package handlers

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/a-h/templ"
	json "github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/csg33k/mirecurso/internal/domain"
	"github.com/csg33k/mirecurso/internal/ports"
	"github.com/csg33k/mirecurso/internal/reference"
	"github.com/csg33k/mirecurso/internal/templates"
	"github.com/csg33k/mirecurso/internal/wizard"
)

type Handler struct {
	sessions *Sessions
	ref      *reference.Data
	pdf      ports.DocumentRenderer
	stt      ports.Transcriber
	log      *zap.Logger
}

// New wires the HTTP surface. stt may be nil when voice input is disabled.
func New(sessions *Sessions, pdf ports.DocumentRenderer, stt ports.Transcriber, log *zap.Logger) *Handler {
	return &Handler{sessions: sessions, ref: sessions.Reference(), pdf: pdf, stt: stt, log: log}
}

func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", h.index)
	mux.HandleFunc("GET /formulario/paso/{n}", h.stepPage)
	mux.HandleFunc("POST /formulario/paso/{n}/campo", h.commitField)
	mux.HandleFunc("POST /formulario/paso/{n}/siguiente", h.next)
	mux.HandleFunc("POST /formulario/paso/{n}/atras", h.back)
	mux.HandleFunc("POST /formulario/paso/{n}/enviar", h.submit)
	mux.HandleFunc("POST /formulario/revision/confirmar", h.confirm)
	mux.HandleFunc("GET /formulario/documento", h.printDocument)
	mux.HandleFunc("GET /formulario/documento.txt", h.downloadText)
	mux.HandleFunc("GET /formulario/documento.pdf", h.downloadPDF)
	mux.HandleFunc("POST /formulario/reiniciar", h.reset)
	mux.HandleFunc("GET /api/regiones/{region}/comunas", h.communes)
	mux.HandleFunc("POST /api/transcribir", h.transcribe)
	mux.HandleFunc("GET /healthz", h.healthz)
	return h.logRequests(mux)
}

var requirements = []string{
	"Su cédula de identidad",
	"El aviso de cobro de contribuciones o el certificado de avalúo fiscal",
	"Sus liquidaciones de pensión u otros comprobantes de ingresos",
	"La resolución del SII, si presentó una solicitud y fue rechazada",
}

func (h *Handler) index(w http.ResponseWriter, r *http.Request) {
	st := h.sessions.Store(w, r)
	started := len(st.CompletedSteps()) > 0 || len(st.Draft(domain.StepIdentity)) > 0
	render(w, r, templates.Index(templates.IndexView{
		Layout:       h.layout(st, "Inicio", 0),
		Started:      started,
		ContinueHref: stepHref(st.FurthestAccessibleStep()),
		Requirements: requirements,
	}))
}

func (h *Handler) reset(w http.ResponseWriter, r *http.Request) {
	st := h.sessions.Store(w, r)
	st.Reset(r.Context())
	redirect(w, r, "/")
}

// layout builds the step navigation; current is 0 outside the wizard.
func (h *Handler) layout(st *wizard.Store, title string, current domain.Step) templates.Layout {
	l := templates.Layout{Title: title, Progress: st.Progress()}
	if current == 0 {
		return l
	}
	for step := domain.StepIdentity; step <= domain.StepOutput; step++ {
		l.Nav = append(l.Nav, templates.StepLink{
			Number:     step,
			Title:      step.Title(),
			Href:       stepHref(step),
			Current:    step == current,
			Complete:   st.IsComplete(step),
			Accessible: st.IsStepAccessible(step),
		})
	}
	return l
}

// fail shows the retryable error page. State is never touched.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, status int, msg, retry string, err error) {
	h.log.Error("request failed",
		zap.String("path", r.URL.Path),
		zap.Int("status", status),
		zap.Error(err),
	)
	renderStatus(w, r, status, templates.Error(templates.ErrorView{
		Layout:    templates.Layout{Title: "Error"},
		Message:   msg,
		RetryHref: retry,
	}))
}

// ── Helpers ───────────────────────────────────────────────────────────────────

// render writes a templ component to the response.
func render(w http.ResponseWriter, r *http.Request, c templ.Component) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := c.Render(r.Context(), w); err != nil {
		http.Error(w, err.Error(), 500)
	}
}

// renderStatus is render with a status other than 200.
func renderStatus(w http.ResponseWriter, r *http.Request, status int, c templ.Component) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_ = c.Render(r.Context(), w)
}

// redirect sends htmx requests an HX-Redirect and plain form posts a 303.
func redirect(w http.ResponseWriter, r *http.Request, url string) {
	if r.Header.Get("HX-Request") == "true" {
		w.Header().Set("HX-Redirect", url)
		w.WriteHeader(http.StatusOK)
		return
	}
	http.Redirect(w, r, url, http.StatusSeeOther)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type apiError struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func stepHref(step domain.Step) string { return fmt.Sprintf("/formulario/paso/%d", step) }

func pathStep(r *http.Request) (domain.Step, bool) {
	n, err := strconv.Atoi(r.PathValue("n"))
	if err != nil {
		return 0, false
	}
	s := domain.Step(n)
	return s, s.Valid()
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func (h *Handler) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		h.log.Debug("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("duration", time.Since(start)),
		)
	})
}
