package handlers

import (
	"context"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/csg33k/mirecurso/internal/ports"
)

// maxUpload bounds a dictation request, audio plus form overhead.
const maxUpload = 12 << 20

type communesResponse struct {
	Region   string   `json:"region"`
	Communes []string `json:"communes"`
}

func (h *Handler) communes(w http.ResponseWriter, r *http.Request) {
	region := r.PathValue("region")
	if !h.ref.HasRegion(region) {
		writeJSON(w, http.StatusNotFound, apiError{Error: "region_not_found", Message: "Región no encontrada"})
		return
	}
	writeJSON(w, http.StatusOK, communesResponse{Region: region, Communes: h.ref.CommunesForRegion(region)})
}

type transcription struct {
	Text string `json:"text"`
}

// transcribe accepts a multipart "audio" file. The browser posts an "error"
// field instead when the microphone could not be opened.
func (h *Handler) transcribe(w http.ResponseWriter, r *http.Request) {
	if h.stt == nil {
		writeJSON(w, http.StatusServiceUnavailable, apiError{Error: "unavailable", Message: "El dictado por voz no está disponible. Escriba el texto."})
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxUpload)
	if err := r.ParseMultipartForm(maxUpload); err != nil {
		writeJSON(w, http.StatusBadRequest, apiError{Error: "bad_request", Message: "No recibimos el audio."})
		return
	}

	var (
		text string
		err  error
	)
	if r.FormValue("error") != "" {
		err = ports.ErrNoPermission
	} else {
		file, hdr, ferr := r.FormFile("audio")
		if ferr != nil {
			writeJSON(w, http.StatusBadRequest, apiError{Error: "bad_request", Message: "No recibimos el audio."})
			return
		}
		defer file.Close()
		text, err = h.stt.Transcribe(r.Context(), file, hdr.Header.Get("Content-Type"))
	}

	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, transcription{Text: text})
	case errors.Is(err, ports.ErrNoPermission):
		writeJSON(w, http.StatusForbidden, apiError{Error: "no_permission", Message: "Debe permitir el uso del micrófono para dictar."})
	case errors.Is(err, ports.ErrNoSpeech):
		writeJSON(w, http.StatusUnprocessableEntity, apiError{Error: "no_speech", Message: "No escuchamos su voz. Intente hablar más cerca del micrófono."})
	case errors.Is(err, context.Canceled):
		// client went away
	default:
		h.log.Warn("transcription failed", zap.Error(err))
		writeJSON(w, http.StatusBadGateway, apiError{Error: "transcription_failed", Message: "No pudimos transcribir el audio. Intente nuevamente o escriba el texto."})
	}
}

type pinger interface {
	Ping(ctx context.Context) error
}

func (h *Handler) healthz(w http.ResponseWriter, r *http.Request) {
	if p, ok := h.sessions.Persister().(pinger); ok {
		if err := p.Ping(r.Context()); err != nil {
			h.log.Warn("health check failed", zap.Error(err))
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "sessions": h.sessions.Len()})
}
