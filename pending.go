package portbus

// pendingRequest is one command forwarded to one specific connection,
// awaiting its reply. settle is invoked with the reply, or with (nil, false)
// when the owning connection disconnects first.
type pendingRequest struct {
	reqID  uint64
	settle func(result any, valid bool)
}

// pendingTable maps each outbound connection id to the FIFO list of requests
// in flight on it, so a disconnect can synthesize failure responses for
// everything still outstanding. Not safe for concurrent use; the background
// router serializes access.
type pendingTable struct {
	byConn map[string][]pendingRequest
}

func newPendingTable() *pendingTable {
	return &pendingTable{byConn: make(map[string][]pendingRequest)}
}

func (t *pendingTable) add(connID string, reqID uint64, settle func(result any, valid bool)) {
	t.byConn[connID] = append(t.byConn[connID], pendingRequest{reqID: reqID, settle: settle})
}

// take removes and returns the pending request matching reqID on connID.
// The list is linear-scanned; it is deleted once empty.
func (t *pendingTable) take(connID string, reqID uint64) (pendingRequest, bool) {
	list, ok := t.byConn[connID]
	if !ok {
		return pendingRequest{}, false
	}
	for i, pr := range list {
		if pr.reqID == reqID {
			list = append(list[:i], list[i+1:]...)
			if len(list) == 0 {
				delete(t.byConn, connID)
			} else {
				t.byConn[connID] = list
			}
			return pr, true
		}
	}
	return pendingRequest{}, false
}

// drain removes and returns every pending request on connID, in FIFO order.
func (t *pendingTable) drain(connID string) []pendingRequest {
	list := t.byConn[connID]
	delete(t.byConn, connID)
	return list
}
