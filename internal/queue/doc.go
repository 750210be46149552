// Package queue holds the ordered audio payloads of a play-all session.
// Each entry remembers the line it was synthesized from, so playback
// positions map back to lines after failed lines have been dropped.
package queue
