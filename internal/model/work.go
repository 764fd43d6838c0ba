package model

import "time"

// CopyWorkItem is one instrument scheduled for one resolution transition.
type CopyWorkItem struct {
	SourceResolution Resolution
	InstrumentID     string
}

// StageResult describes the outcome of one work item.
type StageResult struct {
	Instrument    string
	From          Resolution
	To            Resolution
	SourceCount   int
	ProducedCount int
	DeletedCount  int
	WindowFrom    time.Time
	WindowTo      time.Time
	Err           error
}

// Ok reports whether the item completed without error.
func (r StageResult) Ok() bool { return r.Err == nil }
