package portbus

import (
	"io"
	"log/slog"
	"sync"

	"github.com/portbus/portbus-go/wire"
)

// Client is the non-background end of a port: a content script, popup,
// devtools panel or similar context. It declares a category name, receives
// its instance id from background asynchronously, routes every outbound call
// through background, and dispatches inbound requests to its handler table.
type Client struct {
	category string
	handlers *HandlerTable
	logger   *slog.Logger
	limits   wire.Limits
	conn     *Connection
	handle   *Handle

	mu         sync.Mutex
	assignedID string
	nextReqID  uint64
	callbacks  map[uint64]func(result any, valid bool)
	deferred   []*parsedCall
}

// Connect opens the client side of a port to background under the given
// category name (empty means "unknown"). The instance id arrives
// asynchronously via setName; calls issued before then are queued and
// flushed in issue order once it lands. handlers may be nil when this
// context answers no commands.
func Connect(r io.Reader, w io.Writer, category string, handlers *HandlerTable, opts Options) *Client {
	if category == "" {
		category = CategoryUnknown
	}
	c := &Client{
		category:  category,
		handlers:  handlers,
		logger:    opts.logger(),
		limits:    opts.limits(),
		callbacks: make(map[uint64]func(result any, valid bool)),
		conn: &Connection{
			category: category,
			tabID:    NoTab,
			writeCh:  make(chan *wire.Envelope, writeQueueDepth),
		},
	}
	c.handle = &Handle{submit: c.submit}

	ew := wire.NewEnvelopeWriter(w)
	ew.SetLimits(c.limits)
	er := wire.NewEnvelopeReader(r)
	er.SetLimits(c.limits)
	go c.writerLoop(ew)
	go c.readerLoop(er)
	return c
}

// Handle returns this context's command entry point (Cmd, Bcast, Bg).
func (c *Client) Handle() *Handle { return c.handle }

// AssignedID returns the background-assigned instance id, or "" before
// assignment.
func (c *Client) AssignedID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.assignedID
}

// Close shuts down the outbound side of the port. Outstanding response
// callbacks are never invoked after Close.
func (c *Client) Close() {
	c.conn.shutdown()
}

// UpdateTabID announces this context's (new) tab id to background. Meant for
// contexts that learn their tab late, devtools panels in particular.
func (c *Client) UpdateTabID(tabID int) {
	c.mu.Lock()
	id := c.assignedID
	c.mu.Unlock()
	c.conn.send(wire.NewUpdateTabID(c.category, id, tabID))
}

func (c *Client) writerLoop(w *wire.EnvelopeWriter) {
	for env := range c.conn.writeCh {
		if err := w.WriteEnvelope(env); err != nil {
			c.logger.Warn("write failed", "category", c.category, "error", err)
			return
		}
	}
}

// readerLoop drains inbound envelopes until the port dies. Response
// callbacks still registered at that point are never invoked.
func (c *Client) readerLoop(r *wire.EnvelopeReader) {
	for {
		env, err := r.ReadEnvelope()
		if err != nil {
			if err != io.EOF {
				c.logger.Warn("read failed", "category", c.category, "error", err)
			}
			c.conn.shutdown()
			return
		}
		c.handleEnvelope(env)
	}
}

func (c *Client) handleEnvelope(env *wire.Envelope) {
	switch env.Tag {
	case wire.TagSetName:
		c.adopt(env.Name)
	case wire.TagRequest:
		c.dispatch(env)
	case wire.TagResponse:
		c.resolve(env)
	default:
		c.logger.Warn("unexpected envelope", "category", c.category, "tag", env.Tag.String())
	}
}

// adopt stores the background-assigned id and flushes calls queued before
// assignment, in their original issue order.
func (c *Client) adopt(name string) {
	c.mu.Lock()
	c.assignedID = name
	queued := c.deferred
	c.deferred = nil
	c.mu.Unlock()

	c.logger.Debug("instance id assigned", "id", name, "category", c.category, "deferred", len(queued))
	for _, pc := range queued {
		c.sendCall(pc)
	}
}

// submit implements Handle dispatch for this client.
func (c *Client) submit(pc *parsedCall) bool {
	c.mu.Lock()
	if c.assignedID == "" {
		c.deferred = append(c.deferred, pc)
		c.mu.Unlock()
		return true
	}
	c.mu.Unlock()
	c.sendCall(pc)
	return true
}

// sendCall emits the first-hop request envelope, carrying the caller's
// identity and filters for background to route on.
func (c *Client) sendCall(pc *parsedCall) {
	want := pc.wantResponse()

	c.mu.Lock()
	c.nextReqID++
	reqID := c.nextReqID
	if want {
		c.callbacks[reqID] = pc.deliver
	}
	id := c.assignedID
	c.mu.Unlock()

	env := wire.NewRequest(pc.name, pc.args, reqID, want, pc.broadcast)
	env.Category = c.category
	env.PortID = id
	env.TabID = pc.tab
	env.Contexts = pc.contexts

	if !c.conn.send(env) && want {
		// Port already gone; resolve locally rather than leak the callback.
		c.mu.Lock()
		cb, ok := c.callbacks[reqID]
		delete(c.callbacks, reqID)
		c.mu.Unlock()
		if ok {
			cb(nil, false)
		}
	}
}

// dispatch runs a handler for an inbound request. A missing handler or a
// schema rejection answers with the invalid-result marker when the caller
// wants a reply, and is silent otherwise.
func (c *Client) dispatch(env *wire.Envelope) {
	fn, ok := c.handlers.lookup(env.CmdName)
	if !ok {
		c.logger.Debug("no handler", "category", c.category, "command", env.CmdName)
		if env.SendResponse {
			c.conn.send(wire.NewResponse(env.ReqID, nil, false))
		}
		return
	}
	if err := c.handlers.validateArgs(env.CmdName, env.Args); err != nil {
		c.logger.Warn("args rejected by schema", "command", env.CmdName, "error", err)
		if env.SendResponse {
			c.conn.send(wire.NewResponse(env.ReqID, nil, false))
		}
		return
	}

	reqID := env.ReqID
	want := env.SendResponse
	respond := onceRespond(c.logger, env.CmdName, func(result any) {
		if want {
			c.conn.send(wire.NewResponse(reqID, result, true))
		}
	})
	go fn(env.Args, respond)
}

// resolve matches an inbound response to its registered callback. Unknown
// ids (fire-and-forget calls, or duplicates) are dropped.
func (c *Client) resolve(env *wire.Envelope) {
	c.mu.Lock()
	cb, ok := c.callbacks[env.ReqID]
	if ok {
		delete(c.callbacks, env.ReqID)
	}
	c.mu.Unlock()
	if !ok {
		return
	}
	cb(env.Result, env.ResultValid)
}
