package models

// ChangeTracker records the signed delta of a value between updates, for
// UI change-highlighting. The first observed value is not a change: it
// records 0 and arms the tracker, so a later genuine zero-change is
// distinguishable from "never had a prior value". A new non-zero delta
// replaces the previous one; an unchanged value keeps the last delta.
type ChangeTracker struct {
	Change   float64
	HasPrior bool
}

// Observe records the transition prev -> next.
func (c *ChangeTracker) Observe(prev, next float64) {
	if !c.HasPrior {
		c.Change = 0
		c.HasPrior = true
		return
	}
	if d := next - prev; d != 0 {
		c.Change = d
	}
}
