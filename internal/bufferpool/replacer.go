package bufferpool

import "fmt"

// PolicyKind selects the frame replacement algorithm of a pool.
type PolicyKind int

const (
	KindLRU PolicyKind = iota
	KindFIFO
	KindClock
	KindLRUK
)

func (k PolicyKind) String() string {
	switch k {
	case KindLRU:
		return "lru"
	case KindFIFO:
		return "fifo"
	case KindClock:
		return "clock"
	case KindLRUK:
		return "lru-k"
	default:
		return "unknown"
	}
}

// Policy is a tagged replacement-policy variant. K is meaningful only for
// LRU-K.
type Policy struct {
	Kind PolicyKind
	K    int
}

var (
	LRU   = Policy{Kind: KindLRU}
	FIFO  = Policy{Kind: KindFIFO}
	Clock = Policy{Kind: KindClock}
)

// LRUK returns an LRU-K policy evicting by the oldest K-th most recent pin.
func LRUK(k int) Policy { return Policy{Kind: KindLRUK, K: k} }

// ParsePolicy maps a config string ("lru", "fifo", "clock", "lru-2", ...) to
// a Policy.
func ParsePolicy(s string) (Policy, error) {
	switch s {
	case "", "lru":
		return LRU, nil
	case "fifo":
		return FIFO, nil
	case "clock":
		return Clock, nil
	}
	var k int
	if n, err := fmt.Sscanf(s, "lru-%d", &k); err == nil && n == 1 && k > 0 {
		return LRUK(k), nil
	}
	return Policy{}, fmt.Errorf("bufferpool: unknown replacement policy %q", s)
}

// Replacer tracks access recency for the frames of one pool and picks
// eviction victims. The pool hands empty frames out itself; a replacer only
// ever chooses among occupied frames for which evictable reports true
// (fix count zero).
type Replacer interface {
	// OnPin records an access to a frame. hit is false when the frame was
	// just (re)loaded with a new page, which resets any per-frame history.
	OnPin(frameID int, hit bool)

	// Victim returns the frame to evict, or ok=false when no evictable
	// frame exists.
	Victim(evictable func(frameID int) bool) (frameID int, ok bool)
}

func newReplacer(p Policy, numFrames int) Replacer {
	switch p.Kind {
	case KindFIFO:
		return &stampReplacer{stamps: make([]uint64, numFrames), stampOnHit: false}
	case KindClock:
		return newClockReplacer(numFrames)
	case KindLRUK:
		k := p.K
		if k <= 0 {
			k = 2
		}
		return &lrukReplacer{hist: make([][]uint64, numFrames), k: k}
	default:
		return &stampReplacer{stamps: make([]uint64, numFrames), stampOnHit: true}
	}
}

// stampReplacer implements LRU and FIFO with one recency stamp per frame.
// A pool-wide monotonic clock is incremented on every pin; LRU stamps the
// frame on every pin, FIFO only when the page is loaded.
type stampReplacer struct {
	stamps     []uint64
	clock      uint64
	stampOnHit bool
}

func (r *stampReplacer) OnPin(frameID int, hit bool) {
	r.clock++
	if !hit || r.stampOnHit {
		r.stamps[frameID] = r.clock
	}
}

func (r *stampReplacer) Victim(evictable func(int) bool) (int, bool) {
	victim, ok := -1, false
	for i := range r.stamps {
		if !evictable(i) {
			continue
		}
		// Strict < keeps the lowest frame index on equal stamps.
		if !ok || r.stamps[i] < r.stamps[victim] {
			victim, ok = i, true
		}
	}
	return victim, ok
}

// clockReplacer implements CLOCK (second chance): a reference bit set on
// every pin and cleared by a rotating hand.
type clockReplacer struct {
	ref  []bool
	hand int
}

func newClockReplacer(numFrames int) *clockReplacer {
	return &clockReplacer{ref: make([]bool, numFrames)}
}

func (r *clockReplacer) OnPin(frameID int, hit bool) {
	r.ref[frameID] = true
}

func (r *clockReplacer) Victim(evictable func(int) bool) (int, bool) {
	n := len(r.ref)
	if n == 0 {
		return -1, false
	}
	// Two full sweeps bound the scan: the first clears ref bits, the second
	// must then find any evictable frame.
	for i := 0; i < 2*n; i++ {
		idx := r.hand
		r.hand = (r.hand + 1) % n
		if !evictable(idx) {
			continue
		}
		if r.ref[idx] {
			r.ref[idx] = false
			continue
		}
		return idx, true
	}
	return -1, false
}

// lrukReplacer keeps the last k pin stamps per frame and evicts by the
// oldest k-th most recent. Frames with fewer than k accesses are preferred
// victims, oldest first access first.
type lrukReplacer struct {
	hist  [][]uint64
	clock uint64
	k     int
}

func (r *lrukReplacer) OnPin(frameID int, hit bool) {
	r.clock++
	if !hit {
		r.hist[frameID] = r.hist[frameID][:0]
	}
	h := append(r.hist[frameID], r.clock)
	if len(h) > r.k {
		h = h[len(h)-r.k:]
	}
	r.hist[frameID] = h
}

func (r *lrukReplacer) Victim(evictable func(int) bool) (int, bool) {
	victim, ok := -1, false
	var victimFull bool
	var victimKey uint64
	for i := range r.hist {
		if !evictable(i) {
			continue
		}
		h := r.hist[i]
		full := len(h) >= r.k
		var key uint64
		if len(h) > 0 {
			key = h[0] // oldest retained stamp: the k-th most recent once full
		}
		better := !ok ||
			(!full && victimFull) ||
			(full == victimFull && key < victimKey)
		if better {
			victim, ok = i, true
			victimFull, victimKey = full, key
		}
	}
	return victim, ok
}
