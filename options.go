package portbus

import (
	"io"
	"log/slog"
	"time"

	"github.com/portbus/portbus-go/wire"
)

// Options configures a Background or Client. The zero value is usable:
// discarded logs, no request timeout, default wire limits.
type Options struct {
	// Logger receives structured diagnostics. Nil discards everything.
	Logger *slog.Logger

	// RequestTimeout force-completes an aggregation that is still waiting
	// after this duration (a target handler that never responds would
	// otherwise stall the caller forever). Zero disables the timeout.
	RequestTimeout time.Duration

	// Limits bounds envelope framing. Zero value means wire.DefaultLimits.
	Limits wire.Limits
}

func (o Options) logger() *slog.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func (o Options) limits() wire.Limits {
	if o.Limits.MaxEnvelope <= 0 {
		return wire.DefaultLimits()
	}
	return o.Limits
}

// writeQueueDepth is the per-connection outbound buffer. A full queue means
// the remote side stopped draining; envelopes are then dropped and the slot
// settles as invalid rather than blocking the router.
const writeQueueDepth = 64
