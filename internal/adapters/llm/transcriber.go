package llm

import (
	"context"
	"fmt"
	"sync"
	"time"

	"google.golang.org/genai"

	"github.com/PabloGalante/intervu-api/internal/domain"
)

// Transcriber is a batch speech-to-text recognizer on Gemini: audio chunks
// are buffered during the capture and transcribed in one call on Stop. It
// emits no incremental updates.
type Transcriber struct {
	client    *genai.Client
	modelName string
	mimeType  string
	timeout   time.Duration

	mu      sync.Mutex
	started bool
	audio   []byte
	updates chan domain.RecognizerUpdate
}

// TranscriberFactory mints one Transcriber per capture over a shared client.
// A Transcriber handles one capture at a time, so concurrent sessions each
// get their own.
type TranscriberFactory struct {
	client    *genai.Client
	modelName string
	mimeType  string
	timeout   time.Duration
}

func NewTranscriberFactory(ctx context.Context, cfg ClientConfig, mimeType string) (*TranscriberFactory, error) {
	if cfg.ProjectID == "" || cfg.Location == "" {
		return nil, fmt.Errorf("project and location must be set for the transcriber")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		Project:  cfg.ProjectID,
		Location: cfg.Location,
		Backend:  genai.BackendVertexAI,
	})
	if err != nil {
		return nil, fmt.Errorf("creating transcriber client: %w", err)
	}

	modelName := cfg.ModelName
	if modelName == "" {
		modelName = "gemini-2.0-flash-001"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &TranscriberFactory{
		client:    client,
		modelName: modelName,
		mimeType:  mimeType,
		timeout:   timeout,
	}, nil
}

func (f *TranscriberFactory) New() domain.Recognizer {
	return &Transcriber{
		client:    f.client,
		modelName: f.modelName,
		mimeType:  f.mimeType,
		timeout:   f.timeout,
	}
}

func (t *Transcriber) Start(context.Context) (<-chan domain.RecognizerUpdate, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.started {
		return nil, fmt.Errorf("transcriber already started")
	}
	t.started = true
	t.audio = nil
	t.updates = make(chan domain.RecognizerUpdate)
	return t.updates, nil
}

func (t *Transcriber) Feed(chunk []byte) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.started {
		return
	}
	t.audio = append(t.audio, chunk...)
}

// Stop transcribes the buffered audio. An empty buffer yields an empty
// transcript without a remote call.
func (t *Transcriber) Stop(ctx context.Context) (string, error) {
	t.mu.Lock()
	if !t.started {
		t.mu.Unlock()
		return "", nil
	}
	t.started = false
	audio := t.audio
	t.audio = nil
	updates := t.updates
	t.updates = nil
	t.mu.Unlock()

	close(updates)

	if len(audio) == 0 {
		return "", nil
	}

	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	parts := []*genai.Part{
		genai.NewPartFromText("Transcribe this audio recording. Return only the spoken words, with punctuation, and nothing else."),
		genai.NewPartFromBytes(audio, t.mimeType),
	}
	contents := []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}

	res, err := t.client.Models.GenerateContent(ctx, t.modelName, contents, nil)
	if err != nil {
		return "", fmt.Errorf("gemini transcription: %w", err)
	}

	return res.Text(), nil
}
