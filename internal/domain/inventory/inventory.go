package inventory

import "errors"

// ErrOutOfStock is an expected business outcome, not a fault: the counter is
// already at zero so nothing was decremented.
var ErrOutOfStock = errors.New("inventory: out of stock")

// Level classifies a stock quantity against the configured thresholds.
type Level int

const (
	LevelOK Level = iota
	LevelLow
	LevelCritical
)

// Thresholds hold the operator-alert boundaries for a stock counter.
type Thresholds struct {
	Low      int
	Critical int
}

func (t Thresholds) Classify(quantity int) Level {
	switch {
	case quantity <= t.Critical:
		return LevelCritical
	case quantity <= t.Low:
		return LevelLow
	default:
		return LevelOK
	}
}
