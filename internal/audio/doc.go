// Package audio plays and exports synthesized WAV payloads.
// Playback uses oto/v3; decoding, resampling and WAV encoding use beep.
// Every started playback reports exactly one end through a channel.
package audio
