package client

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/glycerine/idem"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/KilimcininKorOglu/ldapc/internal/ldap"
	"github.com/KilimcininKorOglu/ldapc/internal/logging"
)

type handleState int

const (
	stateCreated handleState = iota
	stateSent
)

var errNoOutcome = errors.New("handle completed without a result or an error")

// Handle is one in-flight protocol operation. It moves from created to sent
// to completed and never leaves completed. Callbacks are registered before
// Send; registering one afterwards panics.
type Handle struct {
	req      ldap.ProtocolOp
	controls []ldap.Control
	op       string
	log      logging.Logger

	mu              sync.Mutex
	conn            *Conn
	state           handleState
	messageID       int
	createdAt       time.Time
	sentAt          time.Time
	completedAt     time.Time
	timeout         time.Duration
	closeOnComplete bool
	span            trace.Span
	result          *Result
	err             *Error

	// A completion that lands while partial callbacks are running is held
	// back until they return, so the terminal callback is always last.
	delivering bool
	pending    bool

	onResult       []func(*Result)
	onControl      []func(ldap.Control)
	onIntermediate []func(*Intermediate)
	onNotice       []func(*Notice)
	onEntry        []func(*Entry)
	onReference    []func([]string)
	onException    func(*Error)

	done     atomic.Bool
	consumed atomic.Bool
	gate     *idem.IdemCloseChan
}

func newHandle(c *Conn, req ldap.ProtocolOp, controls []ldap.Control) *Handle {
	return &Handle{
		req:       req,
		controls:  cloneControls(controls),
		op:        req.OperationType().String(),
		log:       c.log,
		conn:      c,
		createdAt: time.Now(),
		timeout:   c.opts.responseTimeout,
		gate:      idem.NewIdemCloseChan(),
	}
}

func (h *Handle) configure(f func()) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.state != stateCreated {
		panic(fmt.Sprintf("ldapc: %s handle configured after Send", h.op))
	}
	f()
}

// OnResult registers a callback for the final result.
func (h *Handle) OnResult(f func(*Result)) {
	h.configure(func() { h.onResult = append(h.onResult, f) })
}

// OnControl registers a callback invoked for every control attached to any
// response of this operation, before the response itself is delivered.
func (h *Handle) OnControl(f func(ldap.Control)) {
	h.configure(func() { h.onControl = append(h.onControl, f) })
}

// OnIntermediate registers a callback for IntermediateResponse messages.
func (h *Handle) OnIntermediate(f func(*Intermediate)) {
	h.configure(func() { h.onIntermediate = append(h.onIntermediate, f) })
}

// OnUnsolicitedNotification registers a callback for notices received while
// the operation is outstanding.
func (h *Handle) OnUnsolicitedNotification(f func(*Notice)) {
	h.configure(func() { h.onNotice = append(h.onNotice, f) })
}

// OnException sets the exception callback. Only one is kept; a later call
// replaces the earlier one.
func (h *Handle) OnException(f func(*Error)) {
	h.configure(func() { h.onException = f })
}

// CloseOnComplete makes completion of this handle close its connection.
func (h *Handle) CloseOnComplete(v bool) {
	h.configure(func() { h.closeOnComplete = v })
}

// SetTimeout sets how long Await waits for the final response. Zero waits
// until the Await context ends.
func (h *Handle) SetTimeout(d time.Duration) {
	h.mu.Lock()
	h.timeout = d
	h.mu.Unlock()
}

// MessageID returns the assigned message ID, 0 before Send.
func (h *Handle) MessageID() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.messageID
}

func (h *Handle) CreationTime() time.Time {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.createdAt
}

func (h *Handle) SentTime() time.Time {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.sentAt
}

func (h *Handle) CompletedTime() time.Time {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.completedAt
}

// ConsumedMessage reports whether any response reached a callback.
func (h *Handle) ConsumedMessage() bool {
	return h.consumed.Load()
}

// Done is closed once the handle has completed and its callbacks have run.
func (h *Handle) Done() <-chan struct{} {
	return h.gate.Chan
}

// Op returns the request operation name.
func (h *Handle) Op() string {
	return h.op
}

// Send writes the request. It fails with ErrAlreadySent on a second call and
// with ErrNoConnection when the handle is not bound to a connection. Any
// other failure also completes the handle with that error.
func (h *Handle) Send() error {
	return h.send(context.Background())
}

func (h *Handle) send(ctx context.Context) error {
	h.mu.Lock()
	if h.state != stateCreated {
		h.mu.Unlock()
		return ErrAlreadySent
	}
	c := h.conn
	if c == nil {
		h.mu.Unlock()
		return ErrNoConnection
	}
	h.state = stateSent
	h.mu.Unlock()
	return c.send(ctx, h)
}

// Await blocks until the handle completes. When the handle's timeout expires
// first, the operation is abandoned and a KindTimeout error is returned. A
// context deadline is treated the same way; any other context cancellation
// abandons the operation with a KindLocal error.
func (h *Handle) Await(ctx context.Context) (*Result, error) {
	h.mu.Lock()
	state, timeout := h.state, h.timeout
	h.mu.Unlock()
	if state == stateCreated {
		return nil, ErrNotSent
	}

	var expired <-chan time.Time
	if timeout > 0 {
		t := time.NewTimer(timeout)
		defer t.Stop()
		expired = t.C
	}

	select {
	case <-h.gate.Chan:
	case <-expired:
		_ = h.Abandon(h.newError(KindTimeout, fmt.Errorf("no response within %v", timeout)))
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			_ = h.Abandon(h.newError(KindTimeout, ctx.Err()))
		} else {
			_ = h.Abandon(h.newError(KindLocal, context.Cause(ctx)))
		}
	}
	<-h.gate.Chan
	return h.outcome()
}

// Execute sends the request and waits for its completion.
func (h *Handle) Execute(ctx context.Context) (*Result, error) {
	if err := h.send(ctx); err != nil {
		if errors.Is(err, ErrAlreadySent) || errors.Is(err, ErrNoConnection) {
			return nil, err
		}
		return h.outcome()
	}
	return h.Await(ctx)
}

// Abandon gives up on the operation. Unless the handle has already
// completed, the handle completes with a KindAbandoned error wrapping cause
// and an AbandonRequest is then written in the background (best effort). A
// cause that already is an *Error is used as is.
func (h *Handle) Abandon(cause error) error {
	h.mu.Lock()
	state, id, c := h.state, h.messageID, h.conn
	h.mu.Unlock()
	if state == stateCreated {
		return ErrNotSent
	}
	if h.done.Load() {
		return nil
	}
	h.complete(nil, h.normalize(KindAbandoned, cause))
	if id != 0 && c != nil {
		go c.abandon(id)
	}
	return nil
}

// writeDeadline bounds the request write by ctx's deadline and the handle
// timeout, whichever comes first.
func (h *Handle) writeDeadline(ctx context.Context) time.Time {
	h.mu.Lock()
	timeout := h.timeout
	h.mu.Unlock()
	deadline, _ := ctx.Deadline()
	if timeout > 0 {
		if d := time.Now().Add(timeout); deadline.IsZero() || d.Before(deadline) {
			deadline = d
		}
	}
	return deadline
}

func (h *Handle) outcome() (*Result, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	switch {
	case h.result != nil:
		return h.result, nil
	case h.err != nil:
		return nil, h.err
	}
	return nil, &Error{Kind: KindLocal, MessageID: h.messageID, Op: h.op, Err: errNoOutcome}
}

func (h *Handle) newError(kind ErrorKind, err error) *Error {
	return &Error{Kind: kind, MessageID: h.MessageID(), Op: h.op, Err: err}
}

// normalize turns any failure into an *Error owned by this handle.
func (h *Handle) normalize(kind ErrorKind, err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		cp := *e
		if cp.MessageID == 0 {
			cp.MessageID = h.MessageID()
		}
		if cp.Op == "" {
			cp.Op = h.op
		}
		return &cp
	}
	return h.newError(kind, err)
}

func (h *Handle) markSent(id int, span trace.Span) {
	h.mu.Lock()
	h.messageID = id
	h.sentAt = time.Now()
	h.span = span
	h.mu.Unlock()
	span.SetAttributes(attribute.Int("ldap.message_id", id))
}

// complete records the outcome. Only the first call has any effect.
func (h *Handle) complete(res *Result, fail *Error) {
	h.mu.Lock()
	if !h.done.CompareAndSwap(false, true) {
		id := h.messageID
		h.mu.Unlock()
		h.log.Debug("discarding late completion", "message_id", id, "op", h.op)
		return
	}
	h.completedAt = time.Now()
	h.result, h.err = res, fail
	if h.delivering {
		h.pending = true
		h.mu.Unlock()
		return
	}
	h.mu.Unlock()
	h.finish()
}

func (h *Handle) finish() {
	h.mu.Lock()
	res, fail := h.result, h.err
	results, exc := h.onResult, h.onException
	c := h.conn
	h.conn = nil
	id, span := h.messageID, h.span
	closeConn := h.closeOnComplete
	elapsed := h.completedAt.Sub(h.sentAt)
	sent := !h.sentAt.IsZero()
	h.mu.Unlock()

	if c != nil {
		c.release(h, id)
	}
	if res != nil {
		h.consumed.Store(true)
		for _, f := range results {
			f(res)
		}
	} else if exc != nil {
		exc(fail)
	}
	h.gate.Close()

	var outcome string
	if res != nil {
		outcome = res.Code().String()
	} else {
		outcome = fail.Kind.String()
	}
	if c != nil && sent && c.opts.metrics != nil {
		c.opts.metrics.OperationCompleted(h.op, outcome, elapsed)
	}
	if span != nil {
		if fail != nil {
			span.RecordError(fail)
			span.SetStatus(codes.Error, fail.Kind.String())
		} else {
			span.SetAttributes(attribute.String("ldap.result_code", outcome))
		}
		span.End()
	}
	h.log.Debug("operation completed", "message_id", id, "op", h.op, "outcome", outcome)

	if closeConn && c != nil {
		_ = c.Close()
	}
}

// deliver runs a partial fan-out unless the handle has completed. fan
// returns how many callbacks it invoked.
func (h *Handle) deliver(fan func() int) bool {
	h.mu.Lock()
	if h.done.Load() {
		h.mu.Unlock()
		return false
	}
	h.delivering = true
	h.mu.Unlock()

	n := fan()
	if n > 0 {
		h.consumed.Store(true)
	}

	h.mu.Lock()
	h.delivering = false
	pending := h.pending
	h.pending = false
	h.mu.Unlock()
	if pending {
		h.finish()
	}
	return n > 0
}

func fanOut[T any](h *Handle, fns []func(T), next func() T) bool {
	if len(fns) == 0 {
		return false
	}
	return h.deliver(func() int {
		n := 0
		for _, f := range fns {
			if h.done.Load() {
				break
			}
			f(next())
			n++
		}
		return n
	})
}

func (h *Handle) control(c ldap.Control) bool {
	return fanOut(h, h.onControl, func() ldap.Control {
		return ldap.Control{OID: c.OID, Criticality: c.Criticality, Value: bytes.Clone(c.Value)}
	})
}

func (h *Handle) intermediate(i *Intermediate) bool {
	return fanOut(h, h.onIntermediate, func() *Intermediate { return i })
}

func (h *Handle) unsolicited(n *Notice) bool {
	return fanOut(h, h.onNotice, func() *Notice { return n })
}

func (h *Handle) entry(e *Entry) bool {
	return fanOut(h, h.onEntry, func() *Entry { return e })
}

func (h *Handle) reference(uris []string) bool {
	return fanOut(h, h.onReference, func() []string { return slices.Clone(uris) })
}
