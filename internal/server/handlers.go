package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"html/template"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/ironsheep/perceptive-vision/internal/imaging"
	"github.com/ironsheep/perceptive-vision/internal/ocr"
	"github.com/ironsheep/perceptive-vision/internal/session"
	"github.com/ironsheep/perceptive-vision/internal/tts"
)

const (
	sessionCookie = "pv_session"
	uploadField   = "image"
)

// message is a banner shown above the results.
type message struct {
	Level tts.Status
	Text  string
}

type uploadView struct {
	Filename string
	Preview  template.URL
	Width    int
	Height   int
}

type extractionView struct {
	Text string
}

// pageData is everything the page template renders.
type pageData struct {
	About       template.HTML
	Footer      template.HTML
	MaxUploadMB int64
	Accept      string
	Upload      *uploadView
	Extraction  *extractionView
	Messages    []message
}

func (p *pageData) warn(text string) { p.Messages = append(p.Messages, message{tts.StatusWarning, text}) }
func (p *pageData) fail(text string) { p.Messages = append(p.Messages, message{tts.StatusError, text}) }
func (p *pageData) note(o tts.Outcome) { p.Messages = append(p.Messages, message{o.Status, o.Message}) }

// session returns the caller's session, creating one (and its cookie) when
// the request carries none or an expired one.
func (s *Server) session(w http.ResponseWriter, r *http.Request) *session.Session {
	if c, err := r.Cookie(sessionCookie); err == nil {
		if sess, ok := s.sessions.Get(c.Value); ok {
			return sess
		}
	}

	sess := s.sessions.Create()
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    sess.ID,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return sess
}

func (s *Server) newPage(sess *session.Session) *pageData {
	p := &pageData{
		About:       s.content.about,
		Footer:      s.content.footer,
		MaxUploadMB: s.opts.MaxUploadBytes >> 20,
		Accept:      strings.Join(imaging.AllowedExtensions, ","),
	}
	if u := sess.Upload(); u != nil && u.Preview != nil {
		p.Upload = &uploadView{
			Filename: u.Filename,
			Preview:  template.URL(u.Preview.DataURI),
			Width:    u.Preview.Width,
			Height:   u.Preview.Height,
		}
	}
	return p
}

func (s *Server) render(w http.ResponseWriter, status int, p *pageData) {
	var buf bytes.Buffer
	if err := s.content.page.Execute(&buf, p); err != nil {
		s.logger.Error("failed to render page", "error", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	w.Write(buf.Bytes())
}

// handleIndex renders the page for the current session.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	sess := s.session(w, r)
	s.render(w, http.StatusOK, s.newPage(sess))
}

// handleUpload replaces the session's image. A rejected file leaves the
// previous upload in place.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	sess := s.session(w, r)

	if err := sess.TryBegin(); err != nil {
		p := s.newPage(sess)
		p.warn("Please wait for the current action to finish.")
		s.render(w, http.StatusConflict, p)
		return
	}
	defer sess.End()

	upload, status, err := s.readUpload(w, r)
	if err != nil {
		s.logger.Info("upload rejected", "error", err, "status", status)
		p := s.newPage(sess)
		p.fail(uploadErrorMessage(status, err))
		s.render(w, status, p)
		return
	}

	sess.SetUpload(upload)
	s.logger.Info("image uploaded",
		"upload_id", upload.ID,
		"filename", upload.Filename,
		"format", upload.Format,
		"bytes", upload.Size,
		"width", upload.Width(),
		"height", upload.Height(),
	)
	s.render(w, http.StatusOK, s.newPage(sess))
}

// readUpload pulls the "image" part out of a multipart request and decodes
// it. The returned status is the HTTP status to answer with on error.
func (s *Server) readUpload(w http.ResponseWriter, r *http.Request) (*imaging.Upload, int, error) {
	if r.ContentLength > s.opts.MaxUploadBytes {
		return nil, http.StatusRequestEntityTooLarge, errUploadTooLarge
	}
	r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxUploadBytes)

	mr, err := r.MultipartReader()
	if err != nil {
		return nil, http.StatusBadRequest, errNoFile
	}

	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			return nil, http.StatusBadRequest, errNoFile
		}
		if err != nil {
			return nil, statusForReadError(err), err
		}
		if part.FormName() != uploadField || part.FileName() == "" {
			part.Close()
			continue
		}

		upload, err := s.decodePart(part)
		part.Close()
		if err != nil {
			return nil, statusForReadError(err), err
		}
		return upload, http.StatusOK, nil
	}
}

func (s *Server) decodePart(part *multipart.Part) (*imaging.Upload, error) {
	upload, err := imaging.DecodeWithLimit(part, part.FileName(), s.opts.MaxPixels)
	if err != nil {
		return nil, err
	}
	preview, err := imaging.NewPreview(upload.Image, upload.Format, s.opts.PreviewMaxWidth)
	if err != nil {
		return nil, err
	}
	upload.Preview = preview
	return upload, nil
}

var (
	errUploadTooLarge = errors.New("upload exceeds the size limit")
	errNoFile         = errors.New("no image file in request")
)

func statusForReadError(err error) int {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) || errors.Is(err, errUploadTooLarge) || errors.Is(err, imaging.ErrImageTooLarge) {
		return http.StatusRequestEntityTooLarge
	}
	return http.StatusBadRequest
}

func uploadErrorMessage(status int, err error) string {
	switch {
	case errors.Is(err, imaging.ErrImageTooLarge):
		return "Image dimensions are too large. Please upload a smaller image."
	case status == http.StatusRequestEntityTooLarge:
		return "File is too large."
	case errors.Is(err, imaging.ErrUnsupportedFormat):
		return "Unsupported file type. Please upload a JPG, JPEG or PNG image."
	case errors.Is(err, imaging.ErrEmptyUpload):
		return "The uploaded file is empty."
	case errors.Is(err, errNoFile):
		return "Please choose an image to upload."
	default:
		return "Could not read the image: " + err.Error()
	}
}

// handleExtract runs OCR on the current upload and shows the text.
func (s *Server) handleExtract(w http.ResponseWriter, r *http.Request) {
	sess := s.session(w, r)
	p := s.newPage(sess)

	upload := sess.Upload()
	if upload == nil {
		s.render(w, http.StatusOK, p)
		return
	}
	if err := sess.TryBegin(); err != nil {
		p.warn("Please wait for the current action to finish.")
		s.render(w, http.StatusConflict, p)
		return
	}
	defer sess.End()

	ex := s.extractor.Extract(r.Context(), upload.Image)
	sess.CacheExtraction(upload.ID, ex)
	s.logger.Info("text extracted",
		"upload_id", upload.ID,
		"failed", ex.Failed(),
		"text_length", len(ex.Text),
		"duration", ex.Duration,
	)

	if ex.Failed() {
		p.fail("Error extracting text: " + ex.Err.Error())
	}
	p.Extraction = &extractionView{Text: ex.Text}
	s.render(w, http.StatusOK, p)
}

// handleSpeak reads the current upload's text aloud, reusing the last
// extraction of this upload when there is one.
func (s *Server) handleSpeak(w http.ResponseWriter, r *http.Request) {
	sess := s.session(w, r)
	p := s.newPage(sess)

	upload := sess.Upload()
	if upload == nil {
		s.render(w, http.StatusOK, p)
		return
	}
	if err := sess.TryBegin(); err != nil {
		p.warn("Please wait for the current action to finish.")
		s.render(w, http.StatusConflict, p)
		return
	}
	defer sess.End()

	ex, cached := sess.Extraction()
	if !cached {
		ex = s.extractor.Extract(r.Context(), upload.Image)
		sess.CacheExtraction(upload.ID, ex)
		if ex.Failed() {
			p.fail("Error extracting text: " + ex.Err.Error())
		}
	}

	out := s.synthesizer.Speak(r.Context(), ex.Text)
	s.logger.Info("speech requested",
		"upload_id", upload.ID,
		"cached_text", cached,
		"ocr_duration", ex.Duration,
		"status", out.Status,
		"tts_duration", out.Duration,
	)
	p.note(out)
	s.render(w, http.StatusOK, p)
}

// healthResponse is the /healthz body.
type healthResponse struct {
	Status   string   `json:"status"`
	OCR      ocr.Info `json:"ocr"`
	TTS      string   `json:"tts"`
	Sessions int      `json:"sessions"`
}

// infoReporter is implemented by engines that can describe themselves.
type infoReporter interface {
	Info() ocr.Info
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	engine := s.extractor.Engine()
	info := ocr.Info{Available: true, Engine: engine.Name()}
	if ir, ok := engine.(infoReporter); ok {
		info = ir.Info()
	}

	writeJSON(w, http.StatusOK, healthResponse{
		Status:   "ok",
		OCR:      info,
		TTS:      s.synthesizer.Engine().Name(),
		Sessions: s.sessions.Len(),
	})
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
