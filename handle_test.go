package portbus

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// captureHandle returns a handle whose submissions are recorded instead of
// routed.
func captureHandle(isBackground bool) (*Handle, *[]*parsedCall) {
	var calls []*parsedCall
	h := &Handle{
		isBackground: isBackground,
		submit: func(pc *parsedCall) bool {
			calls = append(calls, pc)
			return true
		},
	}
	return h, &calls
}

// TEST050: Positional grammar extracts filters, name, args and callback
func Test050_parse_full_form(t *testing.T) {
	h, calls := captureHandle(false)
	cb := func(any, bool) {}

	ok := h.Cmd(Tab(3), Contexts{"cs"}, "square", 5, "extra", cb)
	require.True(t, ok)
	require.Len(t, *calls, 1)
	pc := (*calls)[0]

	require.NotNil(t, pc.tab)
	assert.Equal(t, 3, *pc.tab)
	assert.Equal(t, []string{"cs"}, pc.contexts)
	assert.Equal(t, "square", pc.name)
	assert.Equal(t, []any{5, "extra"}, pc.args)
	assert.NotNil(t, pc.cmdCB)
	assert.False(t, pc.broadcast)
}

// TEST051: Filters are optional and order before the name is free
func Test051_parse_minimal_and_reordered(t *testing.T) {
	h, calls := captureHandle(false)

	require.True(t, h.Cmd("ping"))
	require.True(t, h.Cmd(Contexts{"cs"}, Tab(1), "ping"))
	require.Len(t, *calls, 2)

	pc := (*calls)[0]
	assert.Nil(t, pc.tab)
	assert.Nil(t, pc.contexts)
	assert.Empty(t, pc.args)
	assert.Nil(t, pc.cmdCB)

	pc = (*calls)[1]
	require.NotNil(t, pc.tab)
	assert.Equal(t, 1, *pc.tab)
	assert.Equal(t, []string{"cs"}, pc.contexts)
}

// TEST052: Malformed argument lists return false synchronously and submit
// nothing
func Test052_parse_rejections(t *testing.T) {
	h, calls := captureHandle(false)
	cb := func(any, bool) {}

	assert.False(t, h.Cmd())                              // empty
	assert.False(t, h.Cmd(Tab(1), Contexts{"cs"}))        // no name
	assert.False(t, h.Cmd(Tab(1), Tab(2), "x"))           // second tab
	assert.False(t, h.Cmd(Contexts{}, Contexts{}, "x"))   // second contexts
	assert.False(t, h.Cmd(5, "x"))                        // untyped value before name
	assert.False(t, h.Cmd(cb, "x"))                       // callback before name
	assert.Empty(t, *calls)
}

// TEST053: Only a trailing callback of the exact signature is sniffed;
// anything else stays an opaque argument
func Test053_parse_callback_position(t *testing.T) {
	h, calls := captureHandle(false)
	cb := func(any, bool) {}

	require.True(t, h.Cmd("x", cb, "after"))
	pc := (*calls)[0]
	assert.Nil(t, pc.cmdCB)
	assert.Len(t, pc.args, 2)

	// Broadcast ignores the unicast signature and vice versa.
	require.True(t, h.Bcast("x", cb))
	pc = (*calls)[1]
	assert.Nil(t, pc.bcastCB)
	assert.Len(t, pc.args, 1)

	require.True(t, h.Bcast("x", func([]any) {}))
	pc = (*calls)[2]
	assert.NotNil(t, pc.bcastCB)
	assert.Empty(t, pc.args)
	assert.True(t, pc.broadcast)
}

// TEST054: Bg forces the category filter to exactly ["bg"] and rejects
// anything but a leading command name
func Test054_bg_shorthand(t *testing.T) {
	h, calls := captureHandle(false)

	require.True(t, h.Bg("save", 1, 2))
	pc := (*calls)[0]
	assert.Equal(t, []string{CategoryBackground}, pc.contexts)
	assert.Equal(t, "save", pc.name)
	assert.Equal(t, []any{1, 2}, pc.args)

	assert.False(t, h.Bg())
	assert.False(t, h.Bg(Tab(1), "save"))
	assert.False(t, h.Bg(Contexts{"cs"}, "save"))
}

// TEST055: Bg is unavailable on the background handle
func Test055_bg_on_background(t *testing.T) {
	h, calls := captureHandle(true)
	assert.False(t, h.Bg("save"))
	assert.Empty(t, *calls)
}

// TEST056: An explicit empty Contexts filter is preserved as set-but-empty
func Test056_parse_empty_contexts(t *testing.T) {
	h, calls := captureHandle(false)
	require.True(t, h.Cmd(Contexts{}, "x"))
	pc := (*calls)[0]
	require.NotNil(t, pc.contexts)
	assert.Empty(t, pc.contexts)
}

// TEST057: deliver adapts broadcast results to the array callback, mapping
// nil to an empty array
func Test057_deliver_broadcast_adaptation(t *testing.T) {
	var got []any
	pc := &parsedCall{broadcast: true, bcastCB: func(results []any) { got = results }}

	pc.deliver([]any{"a", "b"}, true)
	assert.Equal(t, []any{"a", "b"}, got)

	pc.deliver(nil, false)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}
