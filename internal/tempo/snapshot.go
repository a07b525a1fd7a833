package tempo

// Snapshot maps ISO dates to their Tempo day. It is the result of a single
// fetch and is not shared between cycles.
type Snapshot map[string]Day

// Lookup returns the day for date, if the feed published it.
func (s Snapshot) Lookup(date string) (Day, bool) {
	d, ok := s[date]
	return d, ok
}
