package tts

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strconv"
	"strings"
)

// EspeakConfig holds configuration for the espeak-ng engine.
type EspeakConfig struct {
	// BinaryPath is the espeak-ng executable. Defaults to "espeak-ng".
	BinaryPath string
	// Voice is passed with -v when set (e.g. "en-us").
	Voice string
	// Rate is words per minute, passed with -s when positive.
	Rate int
}

// EspeakEngine implements Engine by running espeak-ng, which plays through
// the default audio device itself.
type EspeakEngine struct {
	config EspeakConfig
	logger *slog.Logger
}

// NewEspeakEngine creates an espeak-ng engine after checking the binary exists.
func NewEspeakEngine(cfg EspeakConfig, logger *slog.Logger) (*EspeakEngine, error) {
	if cfg.BinaryPath == "" {
		cfg.BinaryPath = "espeak-ng"
	}

	if _, err := exec.LookPath(cfg.BinaryPath); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrBinaryNotFound, cfg.BinaryPath)
	}

	return &EspeakEngine{
		config: cfg,
		logger: logger,
	}, nil
}

// Name returns the engine identifier.
func (e *EspeakEngine) Name() string {
	return "espeak"
}

func (e *EspeakEngine) args() []string {
	args := []string{"--stdin"}
	if e.config.Voice != "" {
		args = append(args, "-v", e.config.Voice)
	}
	if e.config.Rate > 0 {
		args = append(args, "-s", strconv.Itoa(e.config.Rate))
	}
	return args
}

// Speak pipes text into espeak-ng and waits for it to finish speaking.
func (e *EspeakEngine) Speak(ctx context.Context, text string) error {
	if strings.TrimSpace(text) == "" {
		return ErrEmptyText
	}

	args := e.args()
	e.logger.Debug("running espeak",
		"binary", e.config.BinaryPath,
		"args", args,
		"text_length", len(text),
	)

	cmd := exec.CommandContext(ctx, e.config.BinaryPath, args...)
	cmd.Stdin = strings.NewReader(text)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		e.logger.Error("espeak failed",
			"error", err,
			"stderr", stderr.String(),
		)
		return fmt.Errorf("%w: %v", ErrSynthesisFailed, err)
	}

	return nil
}
