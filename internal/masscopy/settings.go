package masscopy

import (
	"time"

	"barcopy/internal/model"
	"barcopy/internal/window"
)

// Settings is the read-only configuration of one run.
type Settings struct {
	From         time.Time
	To           time.Time
	TZMode       window.TZMode
	ThreadCount  int
	EnableHour   bool
	EnableDay    bool
	EnableWeek   bool
	EnableMonth  bool
	DataProvider string
}

// Transition is one stage of the chain.
type Transition struct {
	From model.Resolution
	To   model.Resolution
}

func (t Transition) String() string { return t.From.String() + "->" + t.To.String() }

// Stage order. The month stage reads day bars: weeks do not tile months.
var Transitions = [NumStages]Transition{
	{model.Minute, model.Hour},
	{model.Hour, model.Day},
	{model.Day, model.Week},
	{model.Day, model.Month},
}

// NumStages is the number of transition stages in a run.
const NumStages = 4

// producer[k] is the stage whose output stage k reads, or -1.
var producer = [NumStages]int{-1, 0, 1, 1}

// Enabled reports whether stage k is switched on.
func (s Settings) Enabled(k int) bool {
	switch k {
	case 0:
		return s.EnableHour
	case 1:
		return s.EnableDay
	case 2:
		return s.EnableWeek
	case 3:
		return s.EnableMonth
	default:
		return false
	}
}

// AnyEnabled reports whether at least one stage is switched on.
func (s Settings) AnyEnabled() bool {
	for k := 0; k < NumStages; k++ {
		if s.Enabled(k) {
			return true
		}
	}
	return false
}
