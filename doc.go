// Package portbus is a request/response and broadcast messaging layer for
// browser-extension style contexts (background, content scripts, popups,
// devtools) built atop one platform primitive: a bidirectional named port
// between each non-background context and the background context.
//
// The background context owns the router: given a command addressed to an
// optional tab id and optional set of named context categories, it
// enumerates matching live connections, forwards the command to each,
// collects the replies (including one produced locally in the background
// when it has a matching handler), and delivers either the first collected
// value (Cmd) or the full array of collected values (Bcast) back to the
// originating caller. Contexts that disconnect mid-flight resolve their
// slot with an invalid-result marker instead of stalling the caller.
//
// Ports are modeled as duplex byte streams carrying length-prefixed CBOR
// envelopes (see the wire subpackage); net.Pipe is enough to run the whole
// system in-process.
package portbus
