// Package dispatcher implements the request/response multiplexer: it keys
// pending requests by the 16-byte UUID carried on every outbound message,
// matches asynchronous inbound notifications back to them, and enforces a
// per-request deadline using ordinary context-based cancellation.
package dispatcher

import (
	"context"
	"sync"
	"time"

	"github.com/leonzdev/tsla-ble-dash-expo/internal/log"
	"github.com/leonzdev/tsla-ble-dash-expo/pkg/protocol"
	"github.com/leonzdev/tsla-ble-dash-expo/pkg/protocol/protobuf/universalmessage"
)

// DefaultRequestTimeout is how long SendAndAwait waits for a matching
// response before failing with a TimeoutError.
const DefaultRequestTimeout = 10 * time.Second

// PostHandler runs once a response matching a pending request arrives,
// before the result is delivered to the caller. Its only real use is
// authenticating and decrypting an encrypted response; handshake responses
// pass a nil PostHandler and get the raw message back untouched.
type PostHandler func(msg *universalmessage.RoutableMessage) ([]byte, error)

// Result is what SendAndAwait returns on a successful match: the decoded
// envelope, and (when a PostHandler ran) its decrypted plaintext.
type Result struct {
	Message   *universalmessage.RoutableMessage
	Plaintext []byte
}

type pendingEntry struct {
	resultCh    chan *Result
	errCh       chan error
	postHandler PostHandler
}

// Dispatcher owns the pending-request table. It does not own the
// transport; send is supplied by the caller so this package stays
// independent of any particular BLE client.
type Dispatcher struct {
	send func([]byte) error

	mu      sync.Mutex
	pending map[string]*pendingEntry
}

// New returns a Dispatcher that submits outbound frames via send.
func New(send func([]byte) error) *Dispatcher {
	return &Dispatcher{
		send:    send,
		pending: make(map[string]*pendingEntry),
	}
}

// SendAndAwait registers uuid, submits outbound via the transport, and
// blocks until a matching response arrives, ctx is cancelled, or
// DefaultRequestTimeout elapses. postHandler may be nil.
func (d *Dispatcher) SendAndAwait(ctx context.Context, outbound, uuid []byte, postHandler PostHandler) (*Result, error) {
	key := string(uuid)
	entry := &pendingEntry{
		resultCh:    make(chan *Result, 1),
		errCh:       make(chan error, 1),
		postHandler: postHandler,
	}

	d.mu.Lock()
	d.pending[key] = entry
	d.mu.Unlock()

	cleanup := func() {
		d.mu.Lock()
		delete(d.pending, key)
		d.mu.Unlock()
	}

	if err := d.send(outbound); err != nil {
		cleanup()
		return nil, err
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, DefaultRequestTimeout)
	defer cancel()

	select {
	case res := <-entry.resultCh:
		return res, nil
	case err := <-entry.errCh:
		return nil, err
	case <-timeoutCtx.Done():
		cleanup()
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &protocol.TimeoutError{}
	}
}

// HandleMessage decodes a raw inbound frame and, if its UUID matches a
// pending request, runs that request's PostHandler and delivers the result.
// A frame with no registered UUID is logged and discarded, per the
// multiplexer contract.
func (d *Dispatcher) HandleMessage(raw []byte) {
	msg, err := protocol.DecodeRoutable(raw)
	if err != nil {
		log.Warning("dispatcher: dropping malformed inbound message: %s", err)
		return
	}

	key := string(msg.Uuid)
	d.mu.Lock()
	entry, ok := d.pending[key]
	if ok {
		delete(d.pending, key)
	}
	d.mu.Unlock()

	if !ok {
		log.Debug("dispatcher: discarding message with unrecognized uuid %x", msg.Uuid)
		return
	}

	if entry.postHandler == nil {
		entry.resultCh <- &Result{Message: msg}
		return
	}
	plaintext, err := entry.postHandler(msg)
	if err != nil {
		entry.errCh <- err
		return
	}
	entry.resultCh <- &Result{Message: msg, Plaintext: plaintext}
}

// HandleDisconnect fails every pending request with a DisconnectError. The
// transport calls this once, on its disconnect event.
func (d *Dispatcher) HandleDisconnect() {
	d.mu.Lock()
	pending := d.pending
	d.pending = make(map[string]*pendingEntry)
	d.mu.Unlock()

	for _, entry := range pending {
		entry.errCh <- &protocol.DisconnectError{}
	}
}
