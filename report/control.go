package report

// ControlLoop decides when a snapshot is due: once every interval bars,
// counted from the last emitted snapshot.
type ControlLoop struct {
	interval int
	last     int
	build    func() Snapshot
	emit     func(Snapshot)
}

// NewControlLoop builds a loop. emit may be nil.
func NewControlLoop(interval int, build func() Snapshot, emit func(Snapshot)) *ControlLoop {
	if interval <= 0 {
		interval = DefaultLookback
	}
	return &ControlLoop{interval: interval, build: build, emit: emit}
}

// MaybeSnapshot is called with the index of each processed bar.
func (c *ControlLoop) MaybeSnapshot(i int) (Snapshot, bool) {
	if i-c.last+1 < c.interval {
		return Snapshot{}, false
	}
	s := c.build()
	c.last = i
	if c.emit != nil {
		c.emit(s)
	}
	return s, true
}
