package model

// Match is a backend-computed pairing of one subscription and one
// publication. Matches are immutable once received.
type Match struct {
	ID           string       `json:"id"`
	CreatedAt    int64        `json:"createdAt,omitempty"`
	Publication  Publication  `json:"publication"`
	Subscription Subscription `json:"subscription"`
}

// Equal reports whether two matches are the same match. Only the match ID
// takes part: the backend may emit repeats for one (subscription,
// publication) pair under different IDs.
func (m Match) Equal(other Match) bool {
	return m.ID == other.ID
}

// MatchSet is a set of matches keyed by match ID.
type MatchSet map[string]struct{}

// NewMatchSet returns a set holding the IDs of matches.
func NewMatchSet(matches []Match) MatchSet {
	s := make(MatchSet, len(matches))
	for _, m := range matches {
		s[m.ID] = struct{}{}
	}
	return s
}

// Contains reports whether m is in the set.
func (s MatchSet) Contains(m Match) bool {
	_, ok := s[m.ID]
	return ok
}

// Add inserts m and reports whether it was not present before.
func (s MatchSet) Add(m Match) bool {
	if _, ok := s[m.ID]; ok {
		return false
	}
	s[m.ID] = struct{}{}
	return true
}

// Len returns the number of matches in the set.
func (s MatchSet) Len() int {
	return len(s)
}

// NewMatches returns the matches of current that are not in previous, in
// response order. Repeated IDs within current are reported once.
func NewMatches(previous MatchSet, current []Match) []Match {
	var fresh []Match
	emitted := make(map[string]struct{})
	for _, m := range current {
		if previous.Contains(m) {
			continue
		}
		if _, dup := emitted[m.ID]; dup {
			continue
		}
		emitted[m.ID] = struct{}{}
		fresh = append(fresh, m)
	}
	return fresh
}
