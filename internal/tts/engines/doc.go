// Package engines contains the HTTP synthesis backends.
// The gateway engine talks to the studio gateway task API (/tts/synthesize),
// the aivis engine talks to an AivisSpeech engine directly
// (audio_query followed by synthesis).
// Each engine implements the ttypes.TTSEngine interface.
package engines
