package tts

import (
	"fmt"
)

const (
	// MinSpeed is the slowest playback speed multiplier
	MinSpeed = 0.5

	// MaxSpeed is the fastest playback speed multiplier
	MaxSpeed = 2.0

	// DefaultSpeed is normal speed
	DefaultSpeed = 1.0
)

// SpeedSteps are the values the speed keys move between.
var SpeedSteps = []float64{
	0.5,  // Half speed
	0.75, // Three-quarter speed
	1.0,  // Normal speed
	1.25, // Quarter faster
	1.5,  // Half faster
	1.75, // Three-quarter faster
	2.0,  // Double speed
}

// ValidateSpeed checks that speed lies in [MinSpeed, MaxSpeed].
func ValidateSpeed(speed float64) error {
	if speed < MinSpeed || speed > MaxSpeed {
		return fmt.Errorf("%w: got %.2f", ErrInvalidSpeed, speed)
	}
	return nil
}

// NextSpeed returns the next higher step, or current when already at the top.
func NextSpeed(current float64) float64 {
	for _, speed := range SpeedSteps {
		if speed > current {
			return speed
		}
	}
	return current
}

// PrevSpeed returns the next lower step, or current when already at the bottom.
func PrevSpeed(current float64) float64 {
	for i := len(SpeedSteps) - 1; i >= 0; i-- {
		if SpeedSteps[i] < current {
			return SpeedSteps[i]
		}
	}
	return current
}

// SpeedDisplay returns a human-readable speed description.
func SpeedDisplay(speed float64) string {
	switch speed {
	case 0.5:
		return "0.5x (Half Speed)"
	case 0.75:
		return "0.75x (Slow)"
	case 1.0:
		return "1.0x (Normal)"
	case 1.25:
		return "1.25x (Fast)"
	case 1.5:
		return "1.5x (Faster)"
	case 1.75:
		return "1.75x (Very Fast)"
	case 2.0:
		return "2.0x (Double Speed)"
	default:
		return fmt.Sprintf("%.2fx", speed)
	}
}
