package tts

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os/exec"
)

// Piper emits raw 16-bit little-endian PCM at this rate, mono.
const (
	piperSampleRate    = 22050
	piperChannels      = 1
	piperBitsPerSample = 16
)

// PiperConfig holds configuration for the Piper TTS engine.
type PiperConfig struct {
	// BinaryPath is the path to the piper executable.
	BinaryPath string
	// ModelPath is the path to the ONNX model file.
	ModelPath string
	// Speaker selects a speaker in multi-speaker models.
	Speaker string
	// PlayerPath is the program that plays WAV from stdin. Defaults to "aplay".
	PlayerPath string
	// PlayerArgs are passed to the player. Defaults to aplay's "-q -".
	PlayerArgs []string
}

// PiperEngine implements Engine with local Piper synthesis and a WAV player.
type PiperEngine struct {
	config PiperConfig
	logger *slog.Logger
}

// NewPiperEngine creates a new Piper TTS engine.
func NewPiperEngine(cfg PiperConfig, logger *slog.Logger) (*PiperEngine, error) {
	if cfg.BinaryPath == "" {
		cfg.BinaryPath = "piper"
	}
	if cfg.PlayerPath == "" {
		cfg.PlayerPath = "aplay"
	}
	if cfg.PlayerArgs == nil {
		cfg.PlayerArgs = []string{"-q", "-"}
	}

	if _, err := exec.LookPath(cfg.BinaryPath); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrBinaryNotFound, cfg.BinaryPath)
	}

	if cfg.ModelPath == "" {
		return nil, ErrNoModelSpecified
	}

	if _, err := exec.LookPath(cfg.PlayerPath); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrBinaryNotFound, cfg.PlayerPath)
	}

	return &PiperEngine{
		config: cfg,
		logger: logger,
	}, nil
}

// Name returns the engine identifier.
func (p *PiperEngine) Name() string {
	return "piper"
}

// Speak synthesizes text and plays it, returning when the player exits.
func (p *PiperEngine) Speak(ctx context.Context, text string) error {
	wav, err := p.Synthesize(ctx, text)
	if err != nil {
		return err
	}
	return p.play(ctx, wav)
}

// Synthesize converts text to WAV audio using Piper.
func (p *PiperEngine) Synthesize(ctx context.Context, text string) ([]byte, error) {
	if text == "" {
		return nil, ErrEmptyText
	}

	args := []string{
		"--model", p.config.ModelPath,
		"--output-raw",
	}
	if p.config.Speaker != "" {
		args = append(args, "--speaker", p.config.Speaker)
	}

	p.logger.Debug("running piper",
		"binary", p.config.BinaryPath,
		"model", p.config.ModelPath,
		"speaker", p.config.Speaker,
		"text_length", len(text),
	)

	cmd := exec.CommandContext(ctx, p.config.BinaryPath, args...)
	cmd.Stdin = bytes.NewReader([]byte(text))

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		p.logger.Error("piper failed",
			"error", err,
			"stderr", stderr.String(),
		)
		return nil, fmt.Errorf("%w: %v", ErrSynthesisFailed, err)
	}

	rawAudio := stdout.Bytes()
	if len(rawAudio) == 0 {
		return nil, fmt.Errorf("%w: no audio output", ErrSynthesisFailed)
	}

	p.logger.Debug("piper synthesis complete",
		"output_bytes", len(rawAudio),
	)

	return wrapRawPCMAsWAV(rawAudio, piperSampleRate, piperChannels, piperBitsPerSample), nil
}

func (p *PiperEngine) play(ctx context.Context, wav []byte) error {
	cmd := exec.CommandContext(ctx, p.config.PlayerPath, p.config.PlayerArgs...)
	cmd.Stdin = bytes.NewReader(wav)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		p.logger.Error("audio player failed",
			"player", p.config.PlayerPath,
			"error", err,
			"stderr", stderr.String(),
		)
		return fmt.Errorf("%w: playback: %v", ErrSynthesisFailed, err)
	}
	return nil
}

// wrapRawPCMAsWAV adds a 44-byte WAV header to raw PCM data.
func wrapRawPCMAsWAV(pcm []byte, sampleRate, channels, bitsPerSample int) []byte {
	dataSize := len(pcm)
	byteRate := sampleRate * channels * bitsPerSample / 8
	blockAlign := channels * bitsPerSample / 8

	header := make([]byte, 44)

	// RIFF header
	copy(header[0:4], "RIFF")
	putLE32(header[4:8], uint32(36+dataSize))
	copy(header[8:12], "WAVE")

	// fmt subchunk
	copy(header[12:16], "fmt ")
	putLE32(header[16:20], 16) // subchunk size
	putLE16(header[20:22], 1)  // PCM
	putLE16(header[22:24], uint16(channels))
	putLE32(header[24:28], uint32(sampleRate))
	putLE32(header[28:32], uint32(byteRate))
	putLE16(header[32:34], uint16(blockAlign))
	putLE16(header[34:36], uint16(bitsPerSample))

	// data subchunk
	copy(header[36:40], "data")
	putLE32(header[40:44], uint32(dataSize))

	return append(header, pcm...)
}

func putLE16(b []byte, v uint16) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
}

func putLE32(b []byte, v uint32) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
	b[3] = byte(v >> 24)
}
