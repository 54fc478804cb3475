package portbus

// SameTab is the reserved tab-filter sentinel meaning "the same tab the
// requesting connection is attached to". Background resolves it to a concrete
// tab id before target selection.
const SameTab = -2

// selectTargets computes the connections that should receive a command.
//
// localOrigin marks requests issued by background itself; those are never
// filtered against the requesting connection (background is only ever a
// target implicitly, via its own local handler, not via this selector).
// For remote origins the requesting connection must already be registered;
// if it cannot be found the result is empty (defensive, should not occur).
func (r *portRegistry) selectTargets(localOrigin bool, tabFilter *int, contexts []string, requestingID string) []*Connection {
	var origin *Connection
	if !localOrigin {
		var ok bool
		origin, ok = r.lookup(requestingID)
		if !ok {
			return nil
		}
		// Resolve the same-tab sentinel against the requester's tab.
		if tabFilter != nil && *tabFilter == SameTab {
			resolved := origin.tabID
			tabFilter = &resolved
		}
	}

	var targets []*Connection
	for category, bucket := range r.buckets {
		// nil means no category filter; an empty filter matches nothing.
		if contexts != nil && !containsString(contexts, category) {
			continue
		}
		for _, conn := range bucket {
			if tabFilter != nil && conn.tabID != *tabFilter {
				continue
			}
			// Never echo a request back to its sender.
			if origin != nil && conn.id == origin.id {
				continue
			}
			targets = append(targets, conn)
		}
	}
	return targets
}

func containsString(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}
