// Package tts reads text aloud through a speech engine installed on the host.
//
// Engines block until playback has finished. Two are provided:
//
//   - EspeakEngine runs espeak-ng, which synthesizes and plays in one step.
//   - PiperEngine runs piper to synthesize raw PCM, wraps it as WAV and pipes
//     it to a player (aplay by default).
//
// Synthesizer sits in front of an engine and turns every call into an Outcome
// the UI can show: a warning for blank text (the engine is not called), a
// success message, or an error message. Calls are serialized because there is
// one audio device.
package tts
