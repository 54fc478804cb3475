package wire

import "fmt"

// Protocol version. Version 1: tagged envelopes, length-prefixed CBOR framing.
const ProtocolVersion uint8 = 1

// Tag discriminates the four envelope kinds carried over a port.
type Tag uint8

const (
	TagSetName     Tag = 0 // background → new connection, assigns instance id
	TagRequest     Tag = 1
	TagResponse    Tag = 2
	TagUpdateTabID Tag = 3 // devtools-style tab re-homing
)

// String returns the envelope tag name.
func (t Tag) String() string {
	switch t {
	case TagSetName:
		return "setName"
	case TagRequest:
		return "request"
	case TagResponse:
		return "response"
	case TagUpdateTabID:
		return "updateTabId"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", t)
	}
}

// Envelope is one structured message exchanged over a port. Which fields are
// meaningful depends on Tag:
//
//	setName:     Name
//	request:     CmdName, Args, ReqID, SendResponse, Broadcast;
//	             Category/PortID/TabID/Contexts only on the initial
//	             non-background → background hop
//	response:    ReqID, Result, ResultValid
//	updateTabId: Category, PortID, TabID
type Envelope struct {
	Tag          Tag
	Name         string   // assigned connection id (setName)
	CmdName      string   // command name (request)
	Args         []any    // positional arguments (request)
	ReqID        uint64   // request/response correlation id
	SendResponse bool     // true when the originating caller wants a reply
	Broadcast    bool     // collect an array of replies instead of the first
	Category     string   // origin context category (first hop, updateTabId)
	PortID       string   // origin connection id (first hop, updateTabId)
	TabID        *int     // tab filter (first hop) or new tab id (updateTabId)
	Contexts     []string // category filter (first hop only)
	Result       any      // reply value (response)
	ResultValid  bool     // false marks "no valid result" (response)
}

// NewSetName creates the envelope that hands a freshly attached connection
// its background-assigned id.
func NewSetName(name string) *Envelope {
	return &Envelope{Tag: TagSetName, Name: name}
}

// NewRequest creates a request envelope for a background → target hop.
// First-hop routing fields are filled in by the sender as needed.
func NewRequest(cmdName string, args []any, reqID uint64, sendResponse, broadcast bool) *Envelope {
	return &Envelope{
		Tag:          TagRequest,
		CmdName:      cmdName,
		Args:         args,
		ReqID:        reqID,
		SendResponse: sendResponse,
		Broadcast:    broadcast,
	}
}

// NewResponse creates a response envelope. valid=false marks the reply as
// carrying no valid result (missing handler, disconnected target, no targets).
func NewResponse(reqID uint64, result any, valid bool) *Envelope {
	return &Envelope{Tag: TagResponse, ReqID: reqID, Result: result, ResultValid: valid}
}

// NewUpdateTabID creates the envelope that re-homes a connection onto its
// real tab id once known.
func NewUpdateTabID(category, portID string, tabID int) *Envelope {
	return &Envelope{Tag: TagUpdateTabID, Category: category, PortID: portID, TabID: &tabID}
}
