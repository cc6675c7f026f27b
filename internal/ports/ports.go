package ports

import (
	"context"
	"errors"
	"io"

	"github.com/csg33k/mirecurso/internal/document"
)

// ErrNotFound is returned by a StatePersister when key holds nothing.
var ErrNotFound = errors.New("state not found")

// StatePersister is the single-device key/value store holding wizard snapshots.
type StatePersister interface {
	Load(ctx context.Context, key string) ([]byte, error)
	Save(ctx context.Context, key string, payload []byte) error
	Delete(ctx context.Context, key string) error
}

// DocumentRenderer turns a built document into a printable file.
type DocumentRenderer interface {
	Render(ctx context.Context, doc *document.Document, w io.Writer) error
	ContentType() string
	Extension() string
}

// Transcription failures the UI distinguishes.
var (
	ErrNoPermission        = errors.New("microphone permission denied")
	ErrNoSpeech            = errors.New("no speech detected")
	ErrTranscriptionFailed = errors.New("transcription failed")
)

// Transcriber converts recorded audio to text. It never touches wizard state;
// the caller decides whether to accept the text.
type Transcriber interface {
	Transcribe(ctx context.Context, audio io.Reader, mimeType string) (string, error)
}
