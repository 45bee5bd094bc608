package tts

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
)

// Status classifies an Outcome for display.
type Status string

const (
	StatusSuccess Status = "success"
	StatusWarning Status = "warning"
	StatusError   Status = "error"
)

const (
	// MsgNoText is the warning shown when there is nothing to read aloud.
	MsgNoText = "No text to convert to speech."
	// MsgCompleted is the success message shown after playback.
	MsgCompleted = "✅ Text-to-Speech Conversion Completed!"
)

// Outcome is what the user is told after a speech request.
type Outcome struct {
	Status   Status
	Message  string
	Err      error
	Duration time.Duration
}

// OK reports whether speech was played.
func (o Outcome) OK() bool { return o.Status == StatusSuccess }

// Synthesizer reads text aloud with one engine, one request at a time.
type Synthesizer struct {
	engine Engine
	logger *slog.Logger

	mu sync.Mutex
}

// NewSynthesizer wraps an engine.
func NewSynthesizer(engine Engine, logger *slog.Logger) *Synthesizer {
	return &Synthesizer{engine: engine, logger: logger}
}

// Engine returns the wrapped engine.
func (s *Synthesizer) Engine() Engine { return s.engine }

// Speak reads text aloud and blocks until playback completes.
//
// Blank text yields a warning without touching the engine. Engine failures
// are reported in the Outcome; nothing is retried.
func (s *Synthesizer) Speak(ctx context.Context, text string) (out Outcome) {
	if strings.TrimSpace(text) == "" {
		return Outcome{Status: StatusWarning, Message: MsgNoText}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			out = s.failed(fmt.Errorf("%s engine panicked: %v", s.engine.Name(), r))
		}
		out.Duration = time.Since(start)
	}()

	if err := s.engine.Speak(ctx, text); err != nil {
		return s.failed(err)
	}

	s.logger.Info("speech played",
		"engine", s.engine.Name(),
		"text_length", len(text),
		"duration", time.Since(start),
	)
	return Outcome{Status: StatusSuccess, Message: MsgCompleted}
}

func (s *Synthesizer) failed(err error) Outcome {
	s.logger.Warn("text-to-speech failed", "engine", s.engine.Name(), "error", err)
	return Outcome{
		Status:  StatusError,
		Message: "Text-to-Speech Error: " + err.Error(),
		Err:     err,
	}
}
