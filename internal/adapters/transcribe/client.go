// Package transcribe turns dictated audio into text through an HTTP speech
// service that speaks the common /v1/audio/transcriptions multipart API.
package transcribe

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/csg33k/mirecurso/internal/ports"
)

// MaxAudioBytes bounds a single dictation upload.
const MaxAudioBytes = 10 << 20

type Config struct {
	BaseURL  string
	APIKey   string
	Model    string
	Language string
	Timeout  time.Duration
}

type response struct {
	Text string `json:"text"`
}

type apiError struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Client implements ports.Transcriber.
type Client struct {
	http   *resty.Client
	cfg    Config
	logger *zap.Logger
}

func New(cfg Config, logger *zap.Logger) *Client {
	if cfg.Model == "" {
		cfg.Model = "whisper-1"
	}
	if cfg.Language == "" {
		cfg.Language = "es"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	// No retries: the multipart body is built from a reader that is consumed
	// by the first attempt.
	client := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetTimeout(cfg.Timeout).
		SetHeader("Accept", "application/json")
	if cfg.APIKey != "" {
		client.SetAuthToken(cfg.APIKey)
	}
	return &Client{http: client, cfg: cfg, logger: logger}
}

// Transcribe uploads audio and returns the recognized text. It never
// retries; the user can simply dictate again.
func (c *Client) Transcribe(ctx context.Context, audio io.Reader, mimeType string) (string, error) {
	buf, err := io.ReadAll(io.LimitReader(audio, MaxAudioBytes+1))
	if err != nil {
		return "", fmt.Errorf("%w: read audio: %v", ports.ErrTranscriptionFailed, err)
	}
	if len(buf) == 0 {
		return "", ports.ErrNoSpeech
	}
	if len(buf) > MaxAudioBytes {
		return "", fmt.Errorf("%w: audio exceeds %d bytes", ports.ErrTranscriptionFailed, MaxAudioBytes)
	}

	var result response
	var apiErr apiError
	resp, err := c.http.R().
		SetContext(ctx).
		SetFileReader("file", "dictado"+extensionFor(mimeType), bytes.NewReader(buf)).
		SetFormData(map[string]string{
			"model":    c.cfg.Model,
			"language": c.cfg.Language,
		}).
		SetResult(&result).
		SetError(&apiErr).
		Post("/v1/audio/transcriptions")
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(ctx.Err(), context.Canceled) {
			return "", context.Canceled
		}
		c.logger.Error("transcription request failed", zap.Error(err))
		return "", fmt.Errorf("%w: %v", ports.ErrTranscriptionFailed, err)
	}
	if resp.IsError() {
		c.logger.Error("transcription service returned error",
			zap.Int("status_code", resp.StatusCode()),
			zap.String("msg", apiErr.Error.Message),
		)
		return "", fmt.Errorf("%w: status %d", ports.ErrTranscriptionFailed, resp.StatusCode())
	}

	text := strings.TrimSpace(result.Text)
	if text == "" {
		return "", ports.ErrNoSpeech
	}
	c.logger.Debug("transcription done", zap.Int("audio_bytes", len(buf)), zap.Int("chars", len(text)))
	return text, nil
}

func extensionFor(mimeType string) string {
	base, _, _ := strings.Cut(mimeType, ";")
	switch strings.TrimSpace(base) {
	case "audio/webm":
		return ".webm"
	case "audio/ogg":
		return ".ogg"
	case "audio/mp4", "audio/m4a", "audio/x-m4a":
		return ".m4a"
	case "audio/mpeg":
		return ".mp3"
	case "audio/wav", "audio/x-wav":
		return ".wav"
	}
	return ".webm"
}
