package wire

import (
	"reflect"

	"github.com/fxamacker/cbor/v2"
)

// decMode decodes nested maps as map[string]any so decoded argument and
// result values survive a JSON round trip.
var decMode, _ = cbor.DecOptions{
	DefaultMapType: reflect.TypeOf(map[string]any(nil)),
}.DecMode()

// CBOR map keys. Integer keys keep envelopes compact on the wire.
const (
	keyVersion      = 0  // version (u8, always 1)
	keyTag          = 1  // tag (u8)
	keyName         = 2  // name (tstr, setName only)
	keyCmdName      = 3  // cmdName (tstr, request only)
	keyArgs         = 4  // args (array, request only)
	keyReqID        = 5  // reqId (u64)
	keySendResponse = 6  // sendResponse (bool)
	keyBroadcast    = 7  // broadcast (bool)
	keyCategory     = 8  // category (tstr, first hop / updateTabId)
	keyPortID       = 9  // portId (tstr, first hop / updateTabId)
	keyTabID        = 10 // tabId (int, optional)
	keyContexts     = 11 // contexts (array of tstr, optional)
	keyResult       = 12 // result (any, response only)
	keyResultValid  = 13 // resultValid (bool, response only)
)

// Encode encodes an Envelope to CBOR bytes using integer keys.
// Optional fields are omitted when unset.
func Encode(env *Envelope) ([]byte, error) {
	m := make(map[int]any)

	m[keyVersion] = ProtocolVersion
	m[keyTag] = uint8(env.Tag)

	if env.Name != "" {
		m[keyName] = env.Name
	}
	if env.CmdName != "" {
		m[keyCmdName] = env.CmdName
	}
	if env.Args != nil {
		m[keyArgs] = env.Args
	}
	if env.ReqID != 0 {
		m[keyReqID] = env.ReqID
	}
	if env.SendResponse {
		m[keySendResponse] = true
	}
	if env.Broadcast {
		m[keyBroadcast] = true
	}
	if env.Category != "" {
		m[keyCategory] = env.Category
	}
	if env.PortID != "" {
		m[keyPortID] = env.PortID
	}
	if env.TabID != nil {
		m[keyTabID] = *env.TabID
	}
	if env.Contexts != nil {
		m[keyContexts] = env.Contexts
	}
	if env.Result != nil {
		m[keyResult] = env.Result
	}
	if env.ResultValid {
		m[keyResultValid] = true
	}

	return cbor.Marshal(m)
}

// Decode decodes CBOR bytes to an Envelope, validating version and tag.
func Decode(data []byte) (*Envelope, error) {
	var m map[int]any
	if err := decMode.Unmarshal(data, &m); err != nil {
		return nil, codecErr("unmarshal: %v", err)
	}

	env := &Envelope{}

	verVal, ok := m[keyVersion]
	if !ok {
		return nil, &ProtocolError{Type: ProtocolErrorMissingField, Message: "version (key 0)"}
	}
	ver, ok := toUint(verVal)
	if !ok || uint8(ver) != ProtocolVersion {
		return nil, &ProtocolError{Type: ProtocolErrorBadVersion,
			Message: "version must be " + string(rune('0'+ProtocolVersion))}
	}

	tagVal, ok := m[keyTag]
	if !ok {
		return nil, &ProtocolError{Type: ProtocolErrorMissingField, Message: "tag (key 1)"}
	}
	tag, ok := toUint(tagVal)
	if !ok || Tag(tag) > TagUpdateTabID {
		return nil, &ProtocolError{Type: ProtocolErrorBadTag, Message: Tag(tag).String()}
	}
	env.Tag = Tag(tag)

	if v, ok := m[keyName]; ok {
		if s, ok := v.(string); ok {
			env.Name = s
		}
	}
	if v, ok := m[keyCmdName]; ok {
		if s, ok := v.(string); ok {
			env.CmdName = s
		}
	}
	if v, ok := m[keyArgs]; ok {
		if arr, ok := v.([]any); ok {
			env.Args = arr
		}
	}
	if v, ok := m[keyReqID]; ok {
		if n, ok := toUint(v); ok {
			env.ReqID = n
		}
	}
	if v, ok := m[keySendResponse]; ok {
		if b, ok := v.(bool); ok {
			env.SendResponse = b
		}
	}
	if v, ok := m[keyBroadcast]; ok {
		if b, ok := v.(bool); ok {
			env.Broadcast = b
		}
	}
	if v, ok := m[keyCategory]; ok {
		if s, ok := v.(string); ok {
			env.Category = s
		}
	}
	if v, ok := m[keyPortID]; ok {
		if s, ok := v.(string); ok {
			env.PortID = s
		}
	}
	if v, ok := m[keyTabID]; ok {
		if n, ok := toInt(v); ok {
			env.TabID = &n
		}
	}
	if v, ok := m[keyContexts]; ok {
		if arr, ok := v.([]any); ok {
			contexts := make([]string, 0, len(arr))
			for _, item := range arr {
				if s, ok := item.(string); ok {
					contexts = append(contexts, s)
				}
			}
			env.Contexts = contexts
		}
	}
	if v, ok := m[keyResult]; ok {
		env.Result = v
	}
	if v, ok := m[keyResultValid]; ok {
		if b, ok := v.(bool); ok {
			env.ResultValid = b
		}
	}

	// Tag-specific required fields.
	switch env.Tag {
	case TagSetName:
		if env.Name == "" {
			return nil, &ProtocolError{Type: ProtocolErrorMissingField, Message: "setName requires name"}
		}
	case TagRequest:
		if env.CmdName == "" {
			return nil, &ProtocolError{Type: ProtocolErrorMissingField, Message: "request requires cmdName"}
		}
	case TagUpdateTabID:
		if env.TabID == nil {
			return nil, &ProtocolError{Type: ProtocolErrorMissingField, Message: "updateTabId requires tabId"}
		}
	}

	return env, nil
}

// toUint extracts an unsigned integer, handling CBOR type variance.
// CBOR libraries may decode integers as int, int64, uint64, or float64.
func toUint(v any) (uint64, bool) {
	switch n := v.(type) {
	case uint64:
		return n, true
	case int64:
		if n < 0 {
			return 0, false
		}
		return uint64(n), true
	case int:
		if n < 0 {
			return 0, false
		}
		return uint64(n), true
	case float64:
		if n < 0 {
			return 0, false
		}
		return uint64(n), true
	default:
		return 0, false
	}
}

// toInt extracts a signed integer (tab ids may be negative sentinels).
func toInt(v any) (int, bool) {
	switch n := v.(type) {
	case int64:
		return int(n), true
	case uint64:
		return int(n), true
	case int:
		return n, true
	case float64:
		return int(n), true
	default:
		return 0, false
	}
}
