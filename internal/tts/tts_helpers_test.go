package tts

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"testing"

	"github.com/ironsheep/perceptive-vision/internal/logging"
)

// fakeEngine counts calls and can be made to fail or block.
type fakeEngine struct {
	name string
	err  error

	mu      sync.Mutex
	calls   int
	texts   []string
	started chan struct{}
	release chan struct{}
}

func (f *fakeEngine) Name() string {
	if f.name == "" {
		return "fake"
	}
	return f.name
}

func (f *fakeEngine) Speak(ctx context.Context, text string) error {
	f.mu.Lock()
	f.calls++
	f.texts = append(f.texts, text)
	f.mu.Unlock()

	if f.started != nil {
		f.started <- struct{}{}
	}
	if f.release != nil {
		<-f.release
	}
	return f.err
}

func (f *fakeEngine) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// writeScript creates an executable shell script in a temp dir and returns its path.
func writeScript(t *testing.T, name, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell scripts not supported on windows")
	}
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(fmt.Sprintf("#!/bin/sh\n%s\n", body)), 0755); err != nil {
		t.Fatalf("failed to write script: %v", err)
	}
	return path
}

var quietLogger = logging.Discard()
