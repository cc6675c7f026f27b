package transcribe_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/csg33k/mirecurso/internal/adapters/transcribe"
	"github.com/csg33k/mirecurso/internal/ports"
)

var _ ports.Transcriber = (*transcribe.Client)(nil)

func newClient(t *testing.T, h http.HandlerFunc) *transcribe.Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return transcribe.New(transcribe.Config{
		BaseURL: srv.URL,
		APIKey:  "secret",
		Timeout: 2 * time.Second,
	}, zap.NewNop())
}

func TestTranscribe_Success(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/audio/transcriptions", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))

		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "whisper-1", r.FormValue("model"))
		assert.Equal(t, "es", r.FormValue("language"))

		f, hdr, err := r.FormFile("file")
		require.NoError(t, err)
		defer f.Close()
		assert.Equal(t, "dictado.ogg", hdr.Filename)
		body, _ := io.ReadAll(f)
		assert.Equal(t, "fake-audio", string(body))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"text":"  Vivo sola en la casa desde 1985. "}`))
	})

	got, err := c.Transcribe(context.Background(), strings.NewReader("fake-audio"), "audio/ogg;codecs=opus")

	require.NoError(t, err)
	assert.Equal(t, "Vivo sola en la casa desde 1985.", got)
}

func TestTranscribe_EmptyTextIsNoSpeech(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"text":"   "}`))
	})

	_, err := c.Transcribe(context.Background(), strings.NewReader("silence"), "audio/webm")
	assert.ErrorIs(t, err, ports.ErrNoSpeech)
}

func TestTranscribe_EmptyAudioIsNoSpeech(t *testing.T) {
	called := false
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) { called = true })

	_, err := c.Transcribe(context.Background(), strings.NewReader(""), "audio/webm")
	assert.ErrorIs(t, err, ports.ErrNoSpeech)
	assert.False(t, called)
}

func TestTranscribe_ServiceError(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":{"message":"model overloaded"}}`))
	})

	_, err := c.Transcribe(context.Background(), strings.NewReader("audio"), "audio/webm")
	require.ErrorIs(t, err, ports.ErrTranscriptionFailed)
	assert.Contains(t, err.Error(), "500")
}

func TestTranscribe_Unreachable(t *testing.T) {
	c := transcribe.New(transcribe.Config{BaseURL: "http://127.0.0.1:1", Timeout: time.Second}, zap.NewNop())

	_, err := c.Transcribe(context.Background(), strings.NewReader("audio"), "audio/webm")
	assert.ErrorIs(t, err, ports.ErrTranscriptionFailed)
}

func TestTranscribe_TooLarge(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("oversized audio must not be uploaded")
	})

	big := strings.NewReader(strings.Repeat("x", transcribe.MaxAudioBytes+1))
	_, err := c.Transcribe(context.Background(), big, "audio/webm")
	assert.ErrorIs(t, err, ports.ErrTranscriptionFailed)
}
