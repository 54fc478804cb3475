package portbus

import (
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/portbus/portbus-go/wire"
)

// Background is the routing hub. Exactly one exists per deployment; every
// other context connects to it over a duplex port. It owns the connection
// registry, forwards requests to matching targets, aggregates their replies,
// and synthesizes invalid-result replies for targets that disconnect
// mid-request.
type Background struct {
	handlers *HandlerTable
	logger   *slog.Logger
	timeout  time.Duration
	limits   wire.Limits
	handle   *Handle

	mu        sync.Mutex
	registry  *portRegistry
	pending   *pendingTable
	nextReqID uint64
}

// NewBackground creates the hub with the given handler table. handlers may
// be nil when background answers no commands itself.
func NewBackground(handlers *HandlerTable, opts Options) *Background {
	b := &Background{
		handlers: handlers,
		logger:   opts.logger(),
		timeout:  opts.RequestTimeout,
		limits:   opts.limits(),
		registry: newPortRegistry(),
		pending:  newPendingTable(),
	}
	b.handle = &Handle{isBackground: true, submit: b.submitLocal}
	return b
}

// Handle returns background's own command entry point. Bg is not available
// on it; background reaches its local handlers through normal routing.
func (b *Background) Handle() *Handle { return b.handle }

// Connections returns a snapshot of every live connection.
func (b *Background) Connections() []ConnectionInfo {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.registry.snapshot()
}

// AttachPort registers a new duplex port with background. category is the
// bucket the connection lands in (empty means "unknown"); tabID is the tab
// the remote context lives in, or NoTab. The assigned connection id is
// returned and also sent to the remote side as a setName envelope before any
// other traffic.
func (b *Background) AttachPort(r io.Reader, w io.Writer, category string, tabID int) string {
	if category == "" {
		category = CategoryUnknown
	}
	conn := &Connection{
		id:       uuid.NewString(),
		category: category,
		tabID:    tabID,
		writeCh:  make(chan *wire.Envelope, writeQueueDepth),
	}

	b.mu.Lock()
	b.registry.add(conn)
	b.mu.Unlock()

	ew := wire.NewEnvelopeWriter(w)
	ew.SetLimits(b.limits)
	er := wire.NewEnvelopeReader(r)
	er.SetLimits(b.limits)
	go b.writerLoop(conn, ew)
	go b.readerLoop(conn, er)

	conn.send(wire.NewSetName(conn.id))
	b.logger.Info("connection attached", "id", conn.id, "category", category, "tab", tabID)
	b.notify(OnConnect, category, tabID)
	return conn.id
}

func (b *Background) writerLoop(conn *Connection, w *wire.EnvelopeWriter) {
	for env := range conn.writeCh {
		if err := w.WriteEnvelope(env); err != nil {
			b.logger.Warn("write failed", "id", conn.id, "error", err)
			return
		}
	}
}

// readerLoop drains inbound envelopes until the port dies. Any read error,
// including a malformed envelope, detaches the connection.
func (b *Background) readerLoop(conn *Connection, r *wire.EnvelopeReader) {
	for {
		env, err := r.ReadEnvelope()
		if err != nil {
			if err != io.EOF {
				b.logger.Warn("read failed", "id", conn.id, "error", err)
			}
			b.detach(conn)
			return
		}
		b.handleEnvelope(conn, env)
	}
}

func (b *Background) handleEnvelope(conn *Connection, env *wire.Envelope) {
	switch env.Tag {
	case wire.TagRequest:
		b.routeRemote(conn, env)
	case wire.TagResponse:
		b.settleResponse(conn, env)
	case wire.TagUpdateTabID:
		b.rehome(conn, env)
	case wire.TagSetName:
		// Only background assigns names.
		b.logger.Warn("unexpected setName from connection", "id", conn.id)
	}
}

// detach tears down a dead connection: removes it from the registry, then
// settles every request still pending on it with the invalid-result marker,
// exactly once each. Callers settling concurrently (response racing the
// disconnect) are safe because take/drain run under the router lock.
func (b *Background) detach(conn *Connection) {
	b.mu.Lock()
	if !b.registry.remove(conn) {
		b.mu.Unlock()
		return
	}
	drained := b.pending.drain(conn.id)
	lastTab := conn.tabID
	b.mu.Unlock()

	conn.shutdown()
	for _, pr := range drained {
		pr.settle(nil, false)
	}
	b.logger.Info("connection detached", "id", conn.id, "category", conn.category, "pending", len(drained))
	b.notify(OnDisconnect, conn.category, lastTab)
}

// routeRemote dispatches a request that arrived over a port. Routing trusts
// the registry's record of the connection over whatever identity fields the
// envelope claims; TabID and Contexts on the envelope are the caller's
// filters, ReqID is the caller's correlation id for the eventual reply.
func (b *Background) routeRemote(origin *Connection, env *wire.Envelope) {
	deliver := func(any, bool) {}
	if env.SendResponse {
		reqID := env.ReqID
		deliver = func(result any, valid bool) {
			origin.send(wire.NewResponse(reqID, result, valid))
		}
	}
	b.route(origin, env.TabID, env.Contexts, env.CmdName, env.Args, env.Broadcast, env.SendResponse, deliver)
}

// submitLocal dispatches a call made through background's own handle.
func (b *Background) submitLocal(pc *parsedCall) bool {
	b.route(nil, pc.tab, pc.contexts, pc.name, pc.args, pc.broadcast, pc.wantResponse(), pc.deliver)
	return true
}

// route is the fan-out/fan-in core. It selects targets, decides whether
// background's local handler also participates, registers one pending slot
// per forwarded request, and wires everything into a one-shot aggregator
// whose completion resolves the caller.
//
// All registry and pending-table mutation happens under the lock; sends and
// callbacks happen after release so a completion callback may re-enter the
// router (a handler calling Cmd from inside its own dispatch).
func (b *Background) route(origin *Connection, tabFilter *int, contexts []string, cmdName string, args []any, broadcast, wantResponse bool, deliver func(result any, valid bool)) {
	originID := ""
	if origin != nil {
		originID = origin.id
	}

	b.mu.Lock()
	targets := b.registry.selectTargets(origin == nil, tabFilter, contexts, originID)

	// Background itself answers when no tab filter is set, the category
	// filter (if any) includes "bg", and a local handler exists.
	var local HandlerFunc
	if tabFilter == nil && (contexts == nil || containsString(contexts, CategoryBackground)) {
		if fn, ok := b.handlers.lookup(cmdName); ok {
			local = fn
		}
	}

	needed := len(targets)
	if local != nil {
		needed++
	}

	if needed == 0 {
		b.mu.Unlock()
		b.logger.Debug("no targets", "command", cmdName, "origin", originID)
		if wantResponse {
			if broadcast {
				deliver([]any{}, false)
			} else {
				deliver(nil, false)
			}
		}
		return
	}

	agg := newAggregator(needed, func(results []any) {
		if !wantResponse {
			return
		}
		if broadcast {
			deliver(results, true)
			return
		}
		if len(results) > 0 {
			deliver(results[0], true)
		} else {
			deliver(nil, false)
		}
	})

	type forward struct {
		conn  *Connection
		reqID uint64
	}
	fwds := make([]forward, 0, len(targets))
	for _, target := range targets {
		b.nextReqID++
		reqID := b.nextReqID
		b.pending.add(target.id, reqID, agg.add)
		fwds = append(fwds, forward{conn: target, reqID: reqID})
	}
	b.mu.Unlock()

	for _, f := range fwds {
		env := wire.NewRequest(cmdName, args, f.reqID, wantResponse, broadcast)
		if !f.conn.send(env) {
			// Connection gone or wedged; settle its slot now.
			b.mu.Lock()
			pr, ok := b.pending.take(f.conn.id, f.reqID)
			b.mu.Unlock()
			if ok {
				pr.settle(nil, false)
			}
		}
	}

	if local != nil {
		if err := b.handlers.validateArgs(cmdName, args); err != nil {
			b.logger.Warn("args rejected by schema", "command", cmdName, "error", err)
			agg.add(nil, false)
		} else {
			respond := onceRespond(b.logger, cmdName, func(result any) {
				agg.add(result, true)
			})
			go local(args, respond)
		}
	}

	if wantResponse && b.timeout > 0 {
		agg.startTimer(b.timeout)
	}
}

// settleResponse matches a reply to its pending slot. Replies for unknown
// ids (already settled by a disconnect, or fire-and-forget) are dropped.
func (b *Background) settleResponse(conn *Connection, env *wire.Envelope) {
	b.mu.Lock()
	pr, ok := b.pending.take(conn.id, env.ReqID)
	b.mu.Unlock()
	if !ok {
		b.logger.Debug("response for unknown request", "id", conn.id, "req", env.ReqID)
		return
	}
	pr.settle(env.Result, env.ResultValid)
}

// rehome moves a connection to a new tab (devtools panels learn their
// inspected tab late). The registry bucket is untouched; only the tab id
// changes, with disconnect/connect notifications for the old and new tab.
func (b *Background) rehome(conn *Connection, env *wire.Envelope) {
	b.mu.Lock()
	target, ok := b.registry.lookup(env.PortID)
	if !ok {
		target = conn
	}
	oldTab := target.tabID
	newTab := *env.TabID
	target.tabID = newTab
	category := target.category
	b.mu.Unlock()

	b.logger.Info("connection re-homed", "id", target.id, "category", category, "old_tab", oldTab, "tab", newTab)
	b.notify(OnDisconnect, category, oldTab)
	b.notify(OnConnect, category, newTab)
}

// notify invokes a reserved lifecycle handler, when registered, with
// (categoryName, tabID). The result is ignored.
func (b *Background) notify(name, category string, tabID int) {
	fn, ok := b.handlers.lookup(name)
	if !ok {
		return
	}
	fn([]any{category, tabID}, func(any) {})
}
