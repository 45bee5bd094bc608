package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ironsheep/perceptive-vision/internal/config"
	"github.com/ironsheep/perceptive-vision/internal/logging"
	"github.com/ironsheep/perceptive-vision/internal/ocr"
	"github.com/ironsheep/perceptive-vision/internal/server"
	"github.com/ironsheep/perceptive-vision/internal/session"
	"github.com/ironsheep/perceptive-vision/internal/tts"
)

// Version information - set by ldflags during build
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	// Handle --version and -v flags
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "--version", "-v", "version":
			fmt.Printf("perceptive-vision %s\n", Version)
			fmt.Printf("  Build time: %s\n", BuildTime)
			fmt.Printf("  Git commit: %s\n", GitCommit)
			return
		case "--help", "-h", "help":
			printHelp()
			return
		}
	}

	cfg, err := config.Load()
	if err != nil {
		// Use stderr before logger is initialized
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		os.Exit(1)
	}

	logger := logging.New(cfg.LogLevel, cfg.LogFormat)
	logger.Info("starting perceptive-vision", "version", Version, "commit", GitCommit)
	logger.Info("configuration loaded",
		"http_addr", cfg.HTTPAddr,
		"max_upload_bytes", cfg.MaxUploadBytes,
		"max_pixels", cfg.MaxPixels,
		"session_ttl", cfg.SessionTTL,
		"ocr_languages", cfg.OCR.Languages,
		"tts_backend", cfg.TTS.Backend,
		"log_level", cfg.LogLevel,
		"log_format", cfg.LogFormat,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig.String())
		cancel()
	}()

	engine := ocr.NewTesseractEngine(ocr.TesseractConfig{
		Languages:      cfg.OCR.Languages,
		TessdataPrefix: cfg.OCR.TessdataPrefix,
		Variables:      cfg.OCR.Variables,
	})
	if v := engine.Version(); v != "" {
		logger.Info("tesseract ready", "version", v)
	} else {
		logger.Warn("tesseract did not report a version, OCR may fail")
	}
	extractor := ocr.NewExtractor(engine, logger)

	synthesizer := tts.NewSynthesizer(selectSpeechEngine(cfg.TTS, logger), logger)

	sessions := session.NewStore(cfg.SessionTTL, logger)
	defer sessions.Close()

	srv, err := server.New(server.Options{
		Addr:            cfg.HTTPAddr,
		MaxUploadBytes:  cfg.MaxUploadBytes,
		MaxPixels:       cfg.MaxPixels,
		PreviewMaxWidth: cfg.PreviewMaxWidth,
	}, extractor, synthesizer, sessions, logger)
	if err != nil {
		logger.Error("failed to create server", "error", err)
		os.Exit(1)
	}

	go func() {
		if err := srv.Start(); err != nil {
			logger.Error("HTTP server error", "error", err)
			cancel()
		}
	}()

	<-ctx.Done()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to shutdown HTTP server", "error", err)
	}

	logger.Info("shutdown complete")
}

// selectSpeechEngine registers every backend that initialises and returns the
// configured one. If that backend is unusable the app still starts; speech
// requests then fail with the reason.
func selectSpeechEngine(cfg config.TTSConfig, logger *slog.Logger) tts.Engine {
	registry := tts.NewRegistry()
	register := func(name string, engine tts.Engine, err error) {
		if err == nil {
			err = registry.Register(engine)
		}
		if err != nil {
			registry.RegisterFailure(name, err)
		}
	}

	espeak, err := tts.NewEspeakEngine(tts.EspeakConfig{
		BinaryPath: cfg.EspeakPath,
		Voice:      cfg.EspeakVoice,
		Rate:       cfg.EspeakRate,
	}, logger)
	register("espeak", espeak, err)

	if cfg.PiperModel != "" {
		piper, err := tts.NewPiperEngine(tts.PiperConfig{
			BinaryPath: cfg.PiperPath,
			ModelPath:  cfg.PiperModel,
			Speaker:    cfg.PiperSpeaker,
			PlayerPath: cfg.PlayerPath,
		}, logger)
		register("piper", piper, err)
	} else {
		registry.RegisterFailure("piper", tts.ErrNoModelSpecified)
	}

	logger.Info("TTS engines registered", "engines", registry.List())

	engine, err := registry.Get(cfg.Backend)
	if err != nil {
		logger.Warn("configured TTS backend unavailable, speech will fail",
			"backend", cfg.Backend,
			"error", err,
		)
		return tts.Unavailable{Reason: err}
	}

	logger.Info("TTS engine selected", "engine", engine.Name())
	return engine
}

func printHelp() {
	fmt.Println("perceptive-vision - extract text from images and read it aloud")
	fmt.Println()
	fmt.Println("Usage: perceptive-vision [options]")
	fmt.Println()
	fmt.Println("Options:")
	fmt.Println("  --version, -v    Print version information")
	fmt.Println("  --help, -h       Print this help message")
	fmt.Println()
	fmt.Println("Environment variables:")
	fmt.Println("  PERCEPTIVE_CONFIG=path.yaml       Optional YAML config file")
	fmt.Println("  PERCEPTIVE_HTTP_ADDR=:8501        Listen address")
	fmt.Println("  PERCEPTIVE_OCR_LANGUAGES=eng      Tesseract languages (eng+deu)")
	fmt.Println("  PERCEPTIVE_TESSDATA_PREFIX=dir    Tesseract data directory")
	fmt.Println("  PERCEPTIVE_TTS_BACKEND=espeak     espeak or piper")
	fmt.Println("  PERCEPTIVE_PIPER_MODEL=model.onnx Piper voice model")
	fmt.Println("  PERCEPTIVE_LOG_LEVEL=info         debug, info, warn, error")
	fmt.Println("  PERCEPTIVE_LOG_FORMAT=text        text or json")
	fmt.Println()
	fmt.Println("Open http://localhost:8501 in a browser once the server is running.")
}
