package server

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRoomTrackerJoinIfNew(t *testing.T) {
	tr := NewRoomTracker()
	c := &Client{}

	assert.True(t, tr.JoinIfNew(c, "r1"), "expected first join to be new")
	assert.False(t, tr.JoinIfNew(c, "r1"), "expected repeat join to be a no-op")
	assert.False(t, tr.JoinIfNew(c, "r1"), "expected repeat join to stay a no-op")

	assert.True(t, tr.JoinIfNew(c, "r2"), "expected join of a different room to be new")

	other := &Client{}
	assert.True(t, tr.JoinIfNew(other, "r1"), "expected join from a different connection to be new")
}

func TestRoomTrackerRelease(t *testing.T) {
	tr := NewRoomTracker()
	c := &Client{}

	tr.JoinIfNew(c, "r1")
	tr.Release(c, "r1")

	assert.True(t, tr.JoinIfNew(c, "r1"), "expected rejoin after release to be new")
}

func TestRoomTrackerReleaseAll(t *testing.T) {
	tr := NewRoomTracker()
	c := &Client{}

	tr.JoinIfNew(c, "r1")
	tr.JoinIfNew(c, "r2")

	rooms := tr.ReleaseAll(c)
	assert.ElementsMatch(t, []string{"r1", "r2"}, rooms, "expected both joined rooms returned exactly once")

	assert.Empty(t, tr.ReleaseAll(c), "expected second release to return an empty set")
	assert.True(t, tr.JoinIfNew(c, "r1"), "expected join after release-all to be new")
}

func TestRoomTrackerReleaseRoom(t *testing.T) {
	tr := NewRoomTracker()
	c1 := &Client{}
	c2 := &Client{}

	tr.JoinIfNew(c1, "r1")
	tr.JoinIfNew(c2, "r1")
	tr.JoinIfNew(c2, "r2")

	tr.ReleaseRoom("r1")

	assert.True(t, tr.JoinIfNew(c1, "r1"), "expected c1's record of r1 to be cleared")
	assert.ElementsMatch(t, []string{"r2"}, tr.ReleaseAll(c2), "expected c2 to keep only r2")
}
