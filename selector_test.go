package portbus

import (
	"testing"

	"github.com/portbus/portbus-go/wire"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConn(id, category string, tabID int) *Connection {
	return &Connection{
		id:       id,
		category: category,
		tabID:    tabID,
		writeCh:  make(chan *wire.Envelope, writeQueueDepth),
	}
}

func testRegistry(conns ...*Connection) *portRegistry {
	r := newPortRegistry()
	for _, c := range conns {
		r.add(c)
	}
	return r
}

func targetIDs(targets []*Connection) map[string]bool {
	ids := make(map[string]bool, len(targets))
	for _, c := range targets {
		ids[c.id] = true
	}
	return ids
}

// TEST040: No filters from a local origin selects every connection
func Test040_select_all_local(t *testing.T) {
	r := testRegistry(
		testConn("a", "cs", 1),
		testConn("b", "cs", 2),
		testConn("c", "popup", NoTab),
	)
	targets := r.selectTargets(true, nil, nil, "")
	assert.Len(t, targets, 3)
}

// TEST041: Remote origins are never echoed their own request
func Test041_select_excludes_sender(t *testing.T) {
	r := testRegistry(
		testConn("a", "cs", 1),
		testConn("b", "cs", 1),
	)
	targets := r.selectTargets(false, nil, nil, "a")
	ids := targetIDs(targets)
	assert.False(t, ids["a"])
	assert.True(t, ids["b"])
}

// TEST042: Category filter keeps only listed buckets; an empty filter
// matches nothing
func Test042_select_category_filter(t *testing.T) {
	r := testRegistry(
		testConn("a", "cs", 1),
		testConn("b", "popup", NoTab),
		testConn("c", "devtools", 1),
	)
	targets := r.selectTargets(true, nil, []string{"cs", "devtools"}, "")
	ids := targetIDs(targets)
	assert.True(t, ids["a"])
	assert.False(t, ids["b"])
	assert.True(t, ids["c"])

	assert.Empty(t, r.selectTargets(true, nil, []string{}, ""))
}

// TEST043: Tab filter matches exact tab ids, including NoTab
func Test043_select_tab_filter(t *testing.T) {
	r := testRegistry(
		testConn("a", "cs", 1),
		testConn("b", "cs", 2),
		testConn("c", "popup", NoTab),
	)
	tab := 1
	ids := targetIDs(r.selectTargets(true, &tab, nil, ""))
	assert.True(t, ids["a"])
	assert.False(t, ids["b"])
	assert.False(t, ids["c"])

	noTab := NoTab
	ids = targetIDs(r.selectTargets(true, &noTab, nil, ""))
	assert.False(t, ids["a"])
	assert.True(t, ids["c"])
}

// TEST044: SameTab resolves against the requesting connection's tab
func Test044_select_same_tab(t *testing.T) {
	r := testRegistry(
		testConn("req", "devtools", 2),
		testConn("a", "cs", 1),
		testConn("b", "cs", 2),
	)
	tab := SameTab
	targets := r.selectTargets(false, &tab, nil, "req")
	require.Len(t, targets, 1)
	assert.Equal(t, "b", targets[0].id)
}

// TEST045: An unregistered remote origin selects nothing
func Test045_select_unknown_origin(t *testing.T) {
	r := testRegistry(testConn("a", "cs", 1))
	assert.Empty(t, r.selectTargets(false, nil, nil, "ghost"))
}

// TEST046: Removing the last connection of a category deletes its bucket
func Test046_registry_bucket_cleanup(t *testing.T) {
	r := newPortRegistry()
	c := testConn("a", "cs", 1)
	r.add(c)
	require.True(t, r.remove(c))
	assert.False(t, r.remove(c))
	_, ok := r.buckets["cs"]
	assert.False(t, ok)
	assert.Empty(t, r.snapshot())
}
