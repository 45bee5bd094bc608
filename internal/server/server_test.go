package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ironsheep/perceptive-vision/internal/logging"
	"github.com/ironsheep/perceptive-vision/internal/ocr"
	"github.com/ironsheep/perceptive-vision/internal/session"
	"github.com/ironsheep/perceptive-vision/internal/tts"
)

// fakeOCR returns a fixed text or error and records what it was handed.
type fakeOCR struct {
	text string
	err  error

	mu     sync.Mutex
	calls  int
	images []image.Image
}

func (f *fakeOCR) Name() string { return "fake-ocr" }

func (f *fakeOCR) Recognize(ctx context.Context, img image.Image) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.images = append(f.images, img)
	return f.text, f.err
}

func (f *fakeOCR) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeSpeaker struct {
	err error

	mu    sync.Mutex
	texts []string
}

func (f *fakeSpeaker) Name() string { return "fake-tts" }

func (f *fakeSpeaker) Speak(ctx context.Context, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.texts = append(f.texts, text)
	return f.err
}

func (f *fakeSpeaker) spoken() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.texts...)
}

type testEnv struct {
	srv      *Server
	ocr      *fakeOCR
	speaker  *fakeSpeaker
	sessions *session.Store
	cookie   *http.Cookie
}

func newTestEnv(t *testing.T, ocrText string) *testEnv {
	t.Helper()

	logger := logging.Discard()
	env := &testEnv{
		ocr:      &fakeOCR{text: ocrText},
		speaker:  &fakeSpeaker{},
		sessions: session.NewStore(time.Hour, logger),
	}
	t.Cleanup(env.sessions.Close)

	srv, err := New(Options{Addr: ":0", MaxUploadBytes: 1 << 20, MaxPixels: 128 * 32, PreviewMaxWidth: 64},
		ocr.NewExtractor(env.ocr, logger),
		tts.NewSynthesizer(env.speaker, logger),
		env.sessions,
		logger,
	)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	env.srv = srv
	return env
}

// do sends a request, keeping the session cookie between calls.
func (e *testEnv) do(t *testing.T, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	if e.cookie != nil {
		req.AddCookie(e.cookie)
	}
	rec := httptest.NewRecorder()
	e.srv.Handler().ServeHTTP(rec, req)
	for _, c := range rec.Result().Cookies() {
		if c.Name == sessionCookie {
			e.cookie = c
		}
	}
	return rec
}

func (e *testEnv) post(t *testing.T, path string) *httptest.ResponseRecorder {
	return e.do(t, httptest.NewRequest(http.MethodPost, path, nil))
}

func (e *testEnv) upload(t *testing.T, filename string, data []byte) *httptest.ResponseRecorder {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile(uploadField, filename)
	if err != nil {
		t.Fatalf("CreateFormFile: %v", err)
	}
	fw.Write(data)
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/upload", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return e.do(t, req)
}

func testPNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{uint8(x * 4), uint8(y * 4), 128, 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png.Encode: %v", err)
	}
	return buf.Bytes()
}

func assertContains(t *testing.T, rec *httptest.ResponseRecorder, want ...string) {
	t.Helper()
	body := rec.Body.String()
	for _, w := range want {
		if !strings.Contains(body, w) {
			t.Errorf("response body missing %q", w)
		}
	}
}

func TestIndex(t *testing.T) {
	env := newTestEnv(t, "")

	rec := env.do(t, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	assertContains(t, rec,
		"👁️ Perceptive Vision AI 👁️",
		"ℹ️ About",
		"<strong>Extract Text</strong>",
		`accept=".jpg,.jpeg,.png"`,
		"📝 Extract Text",
		"🔊 Text-to-Speech",
		`aria-live="polite"`,
		"<strong>Tesseract OCR</strong>",
	)
	if strings.Contains(rec.Body.String(), "Uploaded Image") {
		t.Error("no preview expected before an upload")
	}

	if env.cookie == nil || !env.cookie.HttpOnly {
		t.Fatalf("expected an HttpOnly session cookie, got %+v", env.cookie)
	}

	// the cookie is reused on the next request
	first := env.cookie.Value
	env.cookie = &http.Cookie{Name: sessionCookie, Value: first}
	env.do(t, httptest.NewRequest(http.MethodGet, "/", nil))
	if env.cookie.Value != first {
		t.Error("existing session should be kept")
	}
	if env.sessions.Len() != 1 {
		t.Errorf("sessions = %d, want 1", env.sessions.Len())
	}
}

func TestUpload(t *testing.T) {
	env := newTestEnv(t, "")

	rec := env.upload(t, "photo.PNG", testPNG(t, 128, 32))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	assertContains(t, rec, "Uploaded Image", "data:image/png;base64,", `width="64"`, `height="16"`)
}

func TestUpload_Rejected(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		data     []byte
		status   int
		message  string
	}{
		{"gif extension", "anim.gif", []byte("GIF89a"), http.StatusBadRequest, "Unsupported file type"},
		{"no extension", "README", []byte("hello"), http.StatusBadRequest, "Unsupported file type"},
		{"empty file", "blank.png", nil, http.StatusBadRequest, "The uploaded file is empty."},
		{"not an image", "fake.jpg", []byte("definitely not a jpeg"), http.StatusBadRequest, "Could not read the image"},
		{"too large", "huge.png", make([]byte, 2<<20), http.StatusRequestEntityTooLarge, "File is too large."},
		{"too many pixels", "wide.png", testPNG(t, 129, 32), http.StatusRequestEntityTooLarge, "Image dimensions are too large."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, "")
			env.upload(t, "first.png", testPNG(t, 16, 16))

			rec := env.upload(t, tt.filename, tt.data)

			if rec.Code != tt.status {
				t.Errorf("status = %d, want %d", rec.Code, tt.status)
			}
			assertContains(t, rec, tt.message)
			// previous upload survives
			assertContains(t, rec, "Uploaded Image")
		})
	}
}

func TestUpload_MissingFile(t *testing.T) {
	env := newTestEnv(t, "")

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	mw.WriteField("note", "no file here")
	mw.Close()
	req := httptest.NewRequest(http.MethodPost, "/upload", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	rec := env.do(t, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
	assertContains(t, rec, "Please choose an image to upload.")
}

func TestButtonsWithoutUploadDoNothing(t *testing.T) {
	env := newTestEnv(t, "HELLO")

	for _, path := range []string{"/extract", "/speak"} {
		rec := env.post(t, path)
		if rec.Code != http.StatusOK {
			t.Errorf("%s status = %d, want 200", path, rec.Code)
		}
		if strings.Contains(rec.Body.String(), "📝 Extracted Text") {
			t.Errorf("%s rendered a result without an upload", path)
		}
	}

	if env.ocr.callCount() != 0 {
		t.Errorf("OCR called %d times, want 0", env.ocr.callCount())
	}
	if len(env.speaker.spoken()) != 0 {
		t.Error("speech engine should not be called")
	}
}

func TestExtract(t *testing.T) {
	env := newTestEnv(t, "HELLO WORLD\n")
	env.upload(t, "hello.png", testPNG(t, 32, 16))

	rec := env.post(t, "/extract")

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	assertContains(t, rec, "📝 Extracted Text", "<textarea id=\"extracted\" readonly>\nHELLO WORLD\n</textarea>")

	if env.ocr.callCount() != 1 {
		t.Fatalf("OCR called %d times, want 1", env.ocr.callCount())
	}
	if _, ok := env.ocr.images[0].(*image.Gray); !ok {
		t.Errorf("OCR received %T, want preprocessed *image.Gray", env.ocr.images[0])
	}
}

func TestExtract_LeadingNewlineKept(t *testing.T) {
	env := newTestEnv(t, "\nINDENTED")
	env.upload(t, "lead.png", testPNG(t, 8, 8))

	rec := env.post(t, "/extract")

	// browsers drop one newline straight after <textarea>, so the page
	// carries an extra one to keep the text verbatim
	assertContains(t, rec, "readonly>\n\nINDENTED</textarea>")
}

func TestActionsLogDurations(t *testing.T) {
	env := newTestEnv(t, "HELLO")
	var logs bytes.Buffer
	env.srv.logger = logging.NewWithWriter(&logs, "info", "text")
	env.upload(t, "hello.png", testPNG(t, 8, 8))

	env.post(t, "/extract")
	env.post(t, "/speak")

	out := logs.String()
	for _, want := range []string{"msg=\"text extracted\"", "msg=\"speech requested\"", "cached_text=true", "ocr_duration=", "tts_duration="} {
		if !strings.Contains(out, want) {
			t.Errorf("log output missing %q:\n%s", want, out)
		}
	}
}

func TestExtract_NoText(t *testing.T) {
	env := newTestEnv(t, "  \n")
	env.upload(t, "blank.png", testPNG(t, 8, 8))

	rec := env.post(t, "/extract")
	assertContains(t, rec, ocr.NoTextDetected)
}

func TestExtract_Failure(t *testing.T) {
	env := newTestEnv(t, "")
	env.ocr.err = errors.New("engine exploded")
	env.upload(t, "x.png", testPNG(t, 8, 8))

	rec := env.post(t, "/extract")

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
	assertContains(t, rec, "Error extracting text: engine exploded", ocr.OCRFailed)

	// still usable afterwards
	env.ocr.err = nil
	env.ocr.text = "RECOVERED"
	rec = env.post(t, "/extract")
	assertContains(t, rec, "RECOVERED")
}

func TestSpeak_ReusesExtraction(t *testing.T) {
	env := newTestEnv(t, "HELLO WORLD")
	env.upload(t, "hello.png", testPNG(t, 16, 16))

	env.post(t, "/extract")
	rec := env.post(t, "/speak")

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	assertContains(t, rec, tts.MsgCompleted)
	if env.ocr.callCount() != 1 {
		t.Errorf("OCR called %d times, want 1 (cached)", env.ocr.callCount())
	}
	if got := env.speaker.spoken(); len(got) != 1 || got[0] != "HELLO WORLD" {
		t.Errorf("spoken = %v, want [HELLO WORLD]", got)
	}

	// a new upload forces a fresh extraction
	env.upload(t, "other.png", testPNG(t, 16, 16))
	env.post(t, "/speak")
	if env.ocr.callCount() != 2 {
		t.Errorf("OCR called %d times after new upload, want 2", env.ocr.callCount())
	}
}

func TestSpeak_WithoutPriorExtraction(t *testing.T) {
	env := newTestEnv(t, "READ ME")
	env.upload(t, "a.png", testPNG(t, 16, 16))

	rec := env.post(t, "/speak")

	assertContains(t, rec, tts.MsgCompleted)
	if env.ocr.callCount() != 1 {
		t.Errorf("OCR called %d times, want 1", env.ocr.callCount())
	}
	if got := env.speaker.spoken(); len(got) != 1 || got[0] != "READ ME" {
		t.Errorf("spoken = %v", got)
	}
}

func TestSpeak_EngineError(t *testing.T) {
	env := newTestEnv(t, "HELLO")
	env.speaker.err = errors.New("no audio device")
	env.upload(t, "hello.png", testPNG(t, 16, 16))

	rec := env.post(t, "/speak")

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
	assertContains(t, rec, "Text-to-Speech Error: no audio device", `class="banner error"`)
}

func TestBusySession(t *testing.T) {
	env := newTestEnv(t, "HELLO")
	env.upload(t, "hello.png", testPNG(t, 16, 16))

	sess, ok := env.sessions.Get(env.cookie.Value)
	if !ok {
		t.Fatal("session not found")
	}
	if err := sess.TryBegin(); err != nil {
		t.Fatalf("TryBegin: %v", err)
	}

	for _, path := range []string{"/extract", "/speak"} {
		rec := env.post(t, path)
		if rec.Code != http.StatusConflict {
			t.Errorf("%s status = %d, want 409", path, rec.Code)
		}
		assertContains(t, rec, "Please wait for the current action to finish.")
	}
	if rec := env.upload(t, "next.png", testPNG(t, 8, 8)); rec.Code != http.StatusConflict {
		t.Errorf("upload status = %d, want 409", rec.Code)
	}
	if env.ocr.callCount() != 0 {
		t.Errorf("OCR called %d times while busy", env.ocr.callCount())
	}

	sess.End()
	if rec := env.post(t, "/extract"); rec.Code != http.StatusOK {
		t.Errorf("status after End = %d, want 200", rec.Code)
	}
}

func TestHealthz(t *testing.T) {
	env := newTestEnv(t, "")

	rec := env.do(t, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %s", ct)
	}

	var got healthResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if got.Status != "ok" || got.OCR.Engine != "fake-ocr" || got.TTS != "fake-tts" {
		t.Errorf("healthz = %+v", got)
	}
}

func TestUnknownRoute(t *testing.T) {
	env := newTestEnv(t, "")
	rec := env.do(t, httptest.NewRequest(http.MethodGet, "/nope", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}
