// Package server implements the Perceptive Vision web UI.
//
// The UI is a single server-rendered page. Every interaction is an HTML form
// post that runs synchronously and answers with the re-rendered page, so the
// browser needs no JavaScript beyond a small "working..." hint.
//
// # Routes
//
//	GET  /          render the page for the caller's session
//	POST /upload    multipart upload, field "image" (.jpg, .jpeg, .png)
//	POST /extract   run OCR on the current upload
//	POST /speak     read the current upload's text aloud
//	GET  /healthz   JSON status of the OCR and TTS engines
//
// # Sessions
//
// A browser is identified by an HttpOnly cookie that maps to a
// session.Session. A session holds one upload at a time. A successful
// extraction is remembered for that upload, so pressing "Text-to-Speech" after
// "Extract Text" does not run OCR again; uploading a new file forgets it.
//
// Only one action runs per session at a time. A second press while the first
// is still running is answered with 409 Conflict and a warning banner.
//
// # Errors
//
// Nothing a user does is fatal. OCR and speech failures are shown inline as
// banners and the page stays usable. Upload problems answer 400 (bad file)
// or 413 (too large) and keep the previous upload.
package server
