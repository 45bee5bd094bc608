// Package session keeps per-browser state for the web UI: the current upload,
// the last extraction for that upload, and whether an action is running.
package session

import (
	"errors"
	"sync"
	"time"

	"github.com/ironsheep/perceptive-vision/internal/imaging"
	"github.com/ironsheep/perceptive-vision/internal/ocr"
)

// ErrSessionBusy is returned when an action is requested while another one
// is still running for the same session.
var ErrSessionBusy = errors.New("an action is already in progress")

// Session is the state of one browser. It is safe for concurrent use.
type Session struct {
	ID        string
	CreatedAt time.Time

	mu       sync.Mutex
	upload   *imaging.Upload
	cached   *ocr.Extraction
	cachedID string
	busy     bool
	lastSeen time.Time
}

func newSession(id string, now time.Time) *Session {
	return &Session{ID: id, CreatedAt: now, lastSeen: now}
}

// Upload returns the current upload, or nil when nothing has been uploaded.
func (s *Session) Upload() *imaging.Upload {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.upload
}

// SetUpload replaces the current upload and drops any cached extraction.
func (s *Session) SetUpload(u *imaging.Upload) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.upload = u
	s.cached = nil
	s.cachedID = ""
}

// Extraction returns the cached extraction for the current upload.
func (s *Session) Extraction() (ocr.Extraction, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cached == nil || s.upload == nil || s.cachedID != s.upload.ID {
		return ocr.Extraction{}, false
	}
	return *s.cached, true
}

// CacheExtraction remembers a successful extraction of the upload with the
// given ID. Failed extractions and extractions of a replaced upload are ignored.
func (s *Session) CacheExtraction(uploadID string, e ocr.Extraction) {
	if e.Failed() {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.upload == nil || s.upload.ID != uploadID {
		return
	}
	s.cached = &e
	s.cachedID = uploadID
}

// TryBegin marks the session busy. It returns ErrSessionBusy if an action
// is already running.
func (s *Session) TryBegin() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.busy {
		return ErrSessionBusy
	}
	s.busy = true
	return nil
}

// End clears the busy flag set by TryBegin.
func (s *Session) End() {
	s.mu.Lock()
	s.busy = false
	s.mu.Unlock()
}

// Busy reports whether an action is running.
func (s *Session) Busy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.busy
}

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	s.lastSeen = now
	s.mu.Unlock()
}

// expired reports whether the session has been idle longer than ttl.
// A busy session never expires.
func (s *Session) expired(now time.Time, ttl time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.busy && now.Sub(s.lastSeen) > ttl
}
