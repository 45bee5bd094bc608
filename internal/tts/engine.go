package tts

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrBinaryNotFound is returned when an engine executable is not on PATH.
	ErrBinaryNotFound = errors.New("TTS binary not found")
	// ErrNoModelSpecified is returned when piper has no voice model.
	ErrNoModelSpecified = errors.New("no piper model specified")
	// ErrSynthesisFailed is returned when the engine process fails.
	ErrSynthesisFailed = errors.New("TTS synthesis failed")
	// ErrEmptyText is returned when an engine is handed nothing to say.
	ErrEmptyText = errors.New("empty text")
	// ErrEngineUnavailable is returned by Unavailable.
	ErrEngineUnavailable = errors.New("TTS engine unavailable")
)

// Engine is the interface for text-to-speech playback.
type Engine interface {
	// Speak reads text aloud and returns once playback has completed.
	Speak(ctx context.Context, text string) error
	// Name returns the engine identifier.
	Name() string
}

// Unavailable stands in when no engine could be initialised. Every Speak
// fails with the reason, so the failure surfaces where the user asked for speech.
type Unavailable struct {
	Reason error
}

// Name returns the engine identifier.
func (u Unavailable) Name() string { return "unavailable" }

// Speak always fails.
func (u Unavailable) Speak(ctx context.Context, text string) error {
	if u.Reason == nil {
		return ErrEngineUnavailable
	}
	return fmt.Errorf("%w: %v", ErrEngineUnavailable, u.Reason)
}
