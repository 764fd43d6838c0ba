package resample

import (
	"errors"
	"fmt"
	"time"

	"barcopy/internal/model"
)

var (
	// ErrWeekToMonth is returned for Week→Month: ISO weeks do not end on month boundaries,
	// so monthly bars built from weekly bars would be wrong.
	ErrWeekToMonth = errors.New("resample: week to month is not supported, build months from days")

	// ErrInvalidTransition is returned for any pair the engine does not build.
	ErrInvalidTransition = errors.New("resample: invalid resolution transition")
)

// ValidateTransition accepts Minute→Hour, Hour→Day, Day→Week and Day→Month.
func ValidateTransition(source, target model.Resolution) error {
	if source == model.Week && target == model.Month {
		return ErrWeekToMonth
	}
	if source == model.Day && target == model.Month {
		return nil
	}
	next, ok := source.Next()
	if !ok || next != target {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, source, target)
	}
	return nil
}

// Resample folds ascending source bars into target-resolution bars.
// Bars outside the inclusive [windowFrom, windowTo] are skipped. Every output bar is
// stamped with the timestamp of the last source bar folded into it.
func Resample(bars []model.Bar, source, target model.Resolution, windowFrom, windowTo time.Time) ([]model.Bar, error) {
	if err := ValidateTransition(source, target); err != nil {
		return nil, err
	}

	var out []model.Bar
	var acc *model.Bar
	for i := range bars {
		b := bars[i]
		if b.Timestamp.Before(windowFrom) || b.Timestamp.After(windowTo) {
			continue
		}
		if acc == nil || NewBucket(target, acc.Timestamp, b.Timestamp) {
			if acc != nil {
				out = append(out, *acc)
			}
			acc = &model.Bar{
				Resolution:      target,
				Timestamp:       b.Timestamp,
				PriceFormatMask: b.PriceFormatMask,
				Open:            b.Open,
				High:            b.High,
				Low:             b.Low,
				Close:           b.Close,
				Volume:          b.Volume,
			}
			continue
		}
		acc.Timestamp = b.Timestamp
		if b.High.GreaterThan(acc.High) {
			acc.High = b.High
		}
		if b.Low.LessThan(acc.Low) {
			acc.Low = b.Low
		}
		acc.Close = b.Close
		acc.Volume = acc.Volume.Add(b.Volume)
	}
	if acc != nil {
		out = append(out, *acc)
	}
	return out, nil
}

// NewBucket reports whether next starts a new target bucket relative to prev.
// Calendar keys are compared in full (not just the single field) so gaps longer than
// one period still close the bucket.
func NewBucket(target model.Resolution, prev, next time.Time) bool {
	switch target {
	case model.Hour:
		return prev.Hour() != next.Hour() || !sameDate(prev, next)
	case model.Day:
		return !sameDate(prev, next)
	case model.Week:
		py, pw := prev.ISOWeek()
		ny, nw := next.ISOWeek()
		return py != ny || pw != nw
	case model.Month:
		return prev.Year() != next.Year() || prev.Month() != next.Month()
	default:
		// Minute is never a target; treat every bar as its own bucket.
		return true
	}
}

func sameDate(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
