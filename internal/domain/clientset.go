package domain

import "math/bits"

// ClientSet is a set of client ids backed by a single 64-bit mask over the
// id pool. It is the canonical recipient-set type: channel and visibility
// computations are plain word operations.
type ClientSet uint64

func SetOf(ids ...ClientID) ClientSet {
	var s ClientSet
	for _, id := range ids {
		s.Insert(id)
	}
	return s
}

func (s *ClientSet) Insert(id ClientID) {
	*s |= 1 << uint(id)
}

func (s *ClientSet) Remove(id ClientID) {
	*s &^= 1 << uint(id)
}

func (s ClientSet) Contains(id ClientID) bool {
	return s&(1<<uint(id)) != 0
}

func (s ClientSet) Union(o ClientSet) ClientSet { return s | o }

func (s ClientSet) Intersect(o ClientSet) ClientSet { return s & o }

// Diff returns the members of s that are not in o.
func (s ClientSet) Diff(o ClientSet) ClientSet { return s &^ o }

func (s ClientSet) Count() int { return bits.OnesCount64(uint64(s)) }

func (s ClientSet) Empty() bool { return s == 0 }

// IDs returns the members in ascending order.
func (s ClientSet) IDs() []ClientID {
	out := make([]ClientID, 0, s.Count())
	for v := uint64(s); v != 0; v &= v - 1 {
		out = append(out, ClientID(bits.TrailingZeros64(v)))
	}
	return out
}
