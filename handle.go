package portbus

// Tab tags a value in a Cmd/Bcast argument list as the tab filter.
// Tab(SameTab) targets the tab the calling connection is attached to.
type Tab int

// Contexts tags a value in a Cmd/Bcast argument list as the category filter.
type Contexts []string

// parsedCall is one validated, not-yet-dispatched command invocation.
type parsedCall struct {
	tab       *int
	contexts  []string // nil = no filter; empty = filter matching nothing
	name      string
	args      []any
	broadcast bool
	cmdCB     func(result any, valid bool)
	bcastCB   func(results []any)
}

func (pc *parsedCall) wantResponse() bool {
	return pc.cmdCB != nil || pc.bcastCB != nil
}

// deliver resolves the caller's callback with the routed outcome. For
// broadcast calls result is the collected array; for unicast the first
// collected value (valid=false marks "no valid result").
func (pc *parsedCall) deliver(result any, valid bool) {
	if pc.broadcast {
		if pc.bcastCB == nil {
			return
		}
		arr, ok := result.([]any)
		if !ok || arr == nil {
			arr = []any{}
		}
		pc.bcastCB(arr)
		return
	}
	if pc.cmdCB != nil {
		pc.cmdCB(result, valid)
	}
}

// parseCall applies the positional grammar left-to-right until the command
// name is found: optional Tab filter, optional Contexts filter, mandatory
// string command name, any number of opaque arguments, optional trailing
// completion callback (func(any, bool) for unicast, func([]any) for
// broadcast). Returns false for: zero arguments, no command name, a second
// Tab or Contexts before the name, or any value before the name that is not
// Tab/Contexts/string.
func parseCall(argv []any, broadcast bool) (*parsedCall, bool) {
	if len(argv) == 0 {
		return nil, false
	}

	pc := &parsedCall{broadcast: broadcast}
	tabSet := false
	contextsSet := false
	nameIdx := -1

	for i := 0; i < len(argv) && nameIdx < 0; i++ {
		switch v := argv[i].(type) {
		case Tab:
			if tabSet {
				return nil, false
			}
			tabSet = true
			t := int(v)
			pc.tab = &t
		case Contexts:
			if contextsSet {
				return nil, false
			}
			contextsSet = true
			if v == nil {
				pc.contexts = []string{}
			} else {
				pc.contexts = []string(v)
			}
		case string:
			pc.name = v
			nameIdx = i
		default:
			return nil, false
		}
	}
	if nameIdx < 0 {
		return nil, false
	}

	rest := argv[nameIdx+1:]
	if len(rest) > 0 {
		if broadcast {
			if cb, ok := rest[len(rest)-1].(func(results []any)); ok {
				pc.bcastCB = cb
				rest = rest[:len(rest)-1]
			}
		} else {
			if cb, ok := rest[len(rest)-1].(func(result any, valid bool)); ok {
				pc.cmdCB = cb
				rest = rest[:len(rest)-1]
			}
		}
	}
	if len(rest) > 0 {
		pc.args = make([]any, len(rest))
		copy(pc.args, rest)
	}

	return pc, true
}

// Handle is the public object a context uses to issue commands. Background
// and client handles share the grammar; only routing differs.
type Handle struct {
	isBackground bool
	submit       func(*parsedCall) bool
}

// Cmd issues a unicast-style command: the caller's trailing callback (if
// any) receives the first collected reply. With multiple matching targets
// the winner is whichever replies first; this nondeterminism is inherited
// from reply arrival order. Returns false synchronously when the argument
// list is malformed; nothing is sent in that case.
func (h *Handle) Cmd(args ...any) bool {
	pc, ok := parseCall(args, false)
	if !ok {
		return false
	}
	return h.submit(pc)
}

// Bcast issues a broadcast command: the caller's trailing callback (if any)
// receives the full array of collected replies, in arrival order. Targets
// that disconnect before replying shrink the array, never grow it. Returns
// false synchronously when the argument list is malformed.
func (h *Handle) Bcast(args ...any) bool {
	pc, ok := parseCall(args, true)
	if !ok {
		return false
	}
	return h.submit(pc)
}

// Bg is shorthand for Cmd with the category filter forced to exactly
// ["bg"]. The first argument must already be the command name; tab and
// category filters are not accepted. Only meaningful on non-background
// handles; the background handle always returns false.
func (h *Handle) Bg(args ...any) bool {
	if h.isBackground {
		return false
	}
	if len(args) == 0 {
		return false
	}
	if _, ok := args[0].(string); !ok {
		return false
	}
	pc, ok := parseCall(args, false)
	if !ok {
		return false
	}
	pc.contexts = []string{CategoryBackground}
	return h.submit(pc)
}
