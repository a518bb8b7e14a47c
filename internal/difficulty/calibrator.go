// Package difficulty picks a practice difficulty band pitched slightly above
// the learner's current mastery.
package difficulty

import (
	"errors"
	"fmt"
)

// Band is the target difficulty handed to practice generation.
type Band string

const (
	BandBasic    Band = "basic"
	BandMedium   Band = "medium"
	BandAdvanced Band = "advanced"
)

const (
	// Stretch is added to the mastery score before banding.
	Stretch = 0.1

	basicCeiling  = 0.4
	mediumCeiling = 0.7
)

// ErrUnknownBand is returned by ParseBand for a name that is not a band.
var ErrUnknownBand = errors.New("unknown difficulty band")

// Calibrate maps a mastery score in [0,1] to a band.
func Calibrate(masteryScore float64) Band {
	target := masteryScore + Stretch
	switch {
	case target < basicCeiling:
		return BandBasic
	case target < mediumCeiling:
		return BandMedium
	default:
		return BandAdvanced
	}
}

// ParseBand converts a band name back into a Band.
func ParseBand(s string) (Band, error) {
	switch Band(s) {
	case BandBasic, BandMedium, BandAdvanced:
		return Band(s), nil
	default:
		return "", fmt.Errorf("%w %q", ErrUnknownBand, s)
	}
}
