// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package breakpoint

// dedupKey identifies reads piled up on the same alignment.
type dedupKey struct {
	refID, start, end int
	strand            byte
}

// deduper decides whether a read is admitted despite earlier reads with the
// same key. Keys are only compared with keys of the same start, so the state
// is reset whenever the start position moves.
type deduper interface {
	admit(key dedupKey, clipped, hasMismatch bool) bool
}

// pileup holds the keys seen at the current start position.
type pileup struct {
	refID, start int
}

// moved reports whether key starts at a new position, and if so records it.
func (p *pileup) moved(key dedupKey) bool {
	if key.refID == p.refID && key.start == p.start {
		return false
	}
	p.refID, p.start = key.refID, key.start
	return true
}

// firstWins admits the first read of each key.
type firstWins struct {
	pileup
	seen map[dedupKey]struct{}
}

func (d *firstWins) admit(key dedupKey, _, _ bool) bool {
	if d.moved(key) || d.seen == nil {
		d.seen = map[dedupKey]struct{}{}
	}
	if _, ok := d.seen[key]; ok {
		return false
	}
	d.seen[key] = struct{}{}
	return true
}

type dedupRank int

const (
	rankClipped dedupRank = iota
	rankClean
	rankMismatch
)

// ranked admits the first read of each key, then at most one clean
// mismatch-bearing read and at most one clean read without mismatches after
// a clipped one. Clipped duplicates are always dropped.
type ranked struct {
	pileup
	ranks map[dedupKey]dedupRank
}

func (d *ranked) admit(key dedupKey, clipped, hasMismatch bool) bool {
	if d.moved(key) || d.ranks == nil {
		d.ranks = map[dedupKey]dedupRank{}
	}
	rank := rankClean
	switch {
	case clipped:
		rank = rankClipped
	case hasMismatch:
		rank = rankMismatch
	}
	prev, ok := d.ranks[key]
	if !ok {
		d.ranks[key] = rank
		return true
	}
	switch rank {
	case rankMismatch:
		if prev == rankMismatch {
			return false
		}
	case rankClean:
		if prev != rankClipped {
			return false
		}
	default:
		return false
	}
	d.ranks[key] = rank
	return true
}
