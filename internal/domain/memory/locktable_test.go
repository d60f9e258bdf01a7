package memory

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLockTable_SameKeyReturnsSameMutex(t *testing.T) {
	t.Parallel()
	lt := newLockTable(10)
	a := lt.getOrCreate("k1")
	b := lt.getOrCreate("k1")
	assert.Same(t, a, b)
}

func TestLockTable_EvictsLRUWhenUnheld(t *testing.T) {
	t.Parallel()
	lt := newLockTable(2)
	lt.getOrCreate("a")
	lt.getOrCreate("b")
	lt.getOrCreate("c") // should evict "a"
	assert.Equal(t, 2, lt.size())
}

func TestLockTable_SkipsEvictionOfHeldMutex(t *testing.T) {
	t.Parallel()
	lt := newLockTable(1)
	muA := lt.getOrCreate("a")
	muA.Lock()
	defer muA.Unlock()

	lt.getOrCreate("b") // would evict "a", but it's held

	// "a" must still be resolvable to the same, currently-held mutex.
	assert.Same(t, muA, lt.getOrCreate("a"))
}
