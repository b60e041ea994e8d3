package bufferpool

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func noneEvictable(int) bool { return false }

func evictableSet(ids ...int) func(int) bool {
	set := map[int]bool{}
	for _, id := range ids {
		set[id] = true
	}
	return func(i int) bool { return set[i] }
}

func TestParsePolicy(t *testing.T) {
	p, err := ParsePolicy("")
	require.NoError(t, err)
	require.Equal(t, KindLRU, p.Kind)

	p, err = ParsePolicy("fifo")
	require.NoError(t, err)
	require.Equal(t, KindFIFO, p.Kind)

	p, err = ParsePolicy("clock")
	require.NoError(t, err)
	require.Equal(t, KindClock, p.Kind)

	p, err = ParsePolicy("lru-3")
	require.NoError(t, err)
	require.Equal(t, KindLRUK, p.Kind)
	require.Equal(t, 3, p.K)

	_, err = ParsePolicy("mru")
	require.Error(t, err)
}

func TestLRU_EvictsOldestStamp(t *testing.T) {
	r := newReplacer(LRU, 3)

	r.OnPin(0, false)
	r.OnPin(1, false)
	r.OnPin(2, false)
	r.OnPin(0, true) // frame 0 becomes most recent

	victim, ok := r.Victim(evictableSet(0, 1, 2))
	require.True(t, ok)
	require.Equal(t, 1, victim)
}

func TestLRU_TieBreaksLowestIndex(t *testing.T) {
	r := newReplacer(LRU, 3)
	// Frames 1 and 2 never pinned: both stamp zero, lowest index wins.
	r.OnPin(0, false)

	victim, ok := r.Victim(evictableSet(1, 2))
	require.True(t, ok)
	require.Equal(t, 1, victim)
}

func TestLRU_NoEvictableFrame(t *testing.T) {
	r := newReplacer(LRU, 2)
	r.OnPin(0, false)
	r.OnPin(1, false)

	_, ok := r.Victim(noneEvictable)
	require.False(t, ok)
}

func TestFIFO_HitDoesNotRefresh(t *testing.T) {
	r := newReplacer(FIFO, 3)

	r.OnPin(0, false)
	r.OnPin(1, false)
	r.OnPin(2, false)
	r.OnPin(0, true) // a hit must not move frame 0 to the back of the queue

	victim, ok := r.Victim(evictableSet(0, 1, 2))
	require.True(t, ok)
	require.Equal(t, 0, victim)
}

func TestClock_SecondChance(t *testing.T) {
	r := newReplacer(Clock, 3)

	r.OnPin(0, false)
	r.OnPin(1, false)
	r.OnPin(2, false)

	// First sweep clears all ref bits, second sweep takes frame 0.
	victim, ok := r.Victim(evictableSet(0, 1, 2))
	require.True(t, ok)
	require.Equal(t, 0, victim)

	// Frame 0 is re-pinned: the hand is past it, so frame 1 goes next.
	r.OnPin(0, false)
	victim, ok = r.Victim(evictableSet(0, 1, 2))
	require.True(t, ok)
	require.Equal(t, 1, victim)
}

func TestClock_SkipsPinnedFrames(t *testing.T) {
	r := newReplacer(Clock, 3)
	r.OnPin(0, false)
	r.OnPin(1, false)
	r.OnPin(2, false)

	victim, ok := r.Victim(evictableSet(2))
	require.True(t, ok)
	require.Equal(t, 2, victim)

	_, ok = r.Victim(noneEvictable)
	require.False(t, ok)
}

func TestLRUK_EvictsByKthAccess(t *testing.T) {
	r := newReplacer(LRUK(2), 3)

	// Frame 0: accesses 1, 4 -> 2nd-most-recent = 1
	// Frame 1: accesses 2, 5 -> 2nd-most-recent = 2
	// Frame 2: accesses 3, 6 -> 2nd-most-recent = 3
	r.OnPin(0, false)
	r.OnPin(1, false)
	r.OnPin(2, false)
	r.OnPin(0, true)
	r.OnPin(1, true)
	r.OnPin(2, true)

	victim, ok := r.Victim(evictableSet(0, 1, 2))
	require.True(t, ok)
	require.Equal(t, 0, victim)
}

func TestLRUK_PrefersShortHistory(t *testing.T) {
	r := newReplacer(LRUK(2), 3)

	r.OnPin(0, false)
	r.OnPin(0, true)
	r.OnPin(1, false) // only one access: preferred victim
	r.OnPin(2, false)
	r.OnPin(2, true)

	victim, ok := r.Victim(evictableSet(0, 1, 2))
	require.True(t, ok)
	require.Equal(t, 1, victim)
}

func TestLRUK_ReloadResetsHistory(t *testing.T) {
	r := newReplacer(LRUK(2), 2)

	r.OnPin(0, false)
	r.OnPin(0, true)
	r.OnPin(1, false)
	r.OnPin(1, true)
	r.OnPin(0, false) // frame 0 reloaded with a new page: history restarts

	// Frame 0 now has one access (newer first access than frame 1's k-th),
	// but short histories evict first.
	victim, ok := r.Victim(evictableSet(0, 1))
	require.True(t, ok)
	require.Equal(t, 0, victim)
}
