package client

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"sync"
	"time"

	"github.com/glycerine/idem"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/KilimcininKorOglu/ldapc/internal/ber"
	"github.com/KilimcininKorOglu/ldapc/internal/ldap"
	"github.com/KilimcininKorOglu/ldapc/internal/logging"
)

// Bounds for the best-effort UnbindRequest written by Close and the
// AbandonRequest written after a handle gives up.
const (
	unbindTimeout  = time.Second
	abandonTimeout = time.Second
)

// Conn is a client connection. It assigns message IDs, writes requests and
// routes every inbound message to the handle that owns its ID.
type Conn struct {
	nc   net.Conn
	br   *bufio.Reader
	id   string
	log  logging.Logger
	opts options

	mu      sync.Mutex
	handles map[int]*Handle
	lastID  int
	closed  bool

	writeMu sync.Mutex

	// ReqStop is closed when the connection starts shutting down, Done when
	// the reader goroutine has exited.
	halt *idem.Halter
}

// Dial connects to address over TCP.
func Dial(ctx context.Context, address string, opts ...Option) (*Conn, error) {
	var d net.Dialer
	nc, err := d.DialContext(ctx, "tcp", address)
	if err != nil {
		return nil, NewError(KindConnection, "dial", err)
	}
	return NewConn(nc, opts...), nil
}

// NewConn wraps an established transport and starts its reader.
func NewConn(nc net.Conn, opts ...Option) *Conn {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	id := logging.GenerateConnID()
	c := &Conn{
		nc:      nc,
		br:      bufio.NewReader(nc),
		id:      id,
		log:     o.logger.WithConnID(id).WithFields("remote", nc.RemoteAddr().String()),
		opts:    o,
		handles: make(map[int]*Handle),
		halt:    idem.NewHalterNamed(fmt.Sprintf("ldapc.Conn(%s)", id)),
	}
	c.log.Debug("connection established")
	go c.readLoop()
	return c
}

// ID returns the connection's log correlation ID.
func (c *Conn) ID() string {
	return c.id
}

// Operation creates a handle for an arbitrary request.
func (c *Conn) Operation(req ldap.ProtocolOp, controls ...ldap.Control) *Handle {
	return newHandle(c, req, controls)
}

// Bind creates a handle for a BindRequest.
func (c *Conn) Bind(req *ldap.BindRequest, controls ...ldap.Control) *Handle {
	return newHandle(c, req, controls)
}

// Search creates a handle for a SearchRequest.
func (c *Conn) Search(req *ldap.SearchRequest, controls ...ldap.Control) *SearchHandle {
	return &SearchHandle{Handle: newHandle(c, req, controls)}
}

// Compare creates a handle for a CompareRequest.
func (c *Conn) Compare(req *ldap.CompareRequest, controls ...ldap.Control) *CompareHandle {
	return &CompareHandle{Handle: newHandle(c, req, controls)}
}

// Extended creates a handle for an ExtendedRequest.
func (c *Conn) Extended(req *ldap.ExtendedRequest, controls ...ldap.Control) *ExtendedHandle {
	return &ExtendedHandle{Handle: newHandle(c, req, controls)}
}

// Outstanding returns the number of operations awaiting a final response.
func (c *Conn) Outstanding() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.handles)
}

// Done is closed when the reader goroutine has exited.
func (c *Conn) Done() <-chan struct{} {
	return c.halt.Done.Chan
}

// IsClosed reports whether the connection has been shut down.
func (c *Conn) IsClosed() bool {
	return c.halt.ReqStop.IsClosed()
}

// nextIDLocked returns the next free message ID, wrapping after
// ldap.MaxMessageID to 1. Caller holds c.mu.
func (c *Conn) nextIDLocked() int {
	for {
		if c.lastID >= ldap.MaxMessageID {
			c.lastID = 0
		}
		c.lastID++
		if _, busy := c.handles[c.lastID]; !busy {
			return c.lastID
		}
	}
}

func (c *Conn) send(ctx context.Context, h *Handle) error {
	body, err := h.req.Encode()
	if err != nil {
		e := h.newError(KindEncoding, err)
		h.complete(nil, e)
		return e
	}

	_, span := c.opts.tracer.Start(ctx, "ldap."+h.op,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("ldap.operation", h.op),
			attribute.String("ldap.conn_id", c.id),
		))

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		span.End()
		e := h.newError(KindConnection, net.ErrClosed)
		h.complete(nil, e)
		return e
	}
	id := c.nextIDLocked()
	c.handles[id] = h
	h.markSent(id, span)
	c.mu.Unlock()

	if c.opts.metrics != nil {
		c.opts.metrics.OperationStarted(h.op)
	}

	msg := &ldap.LDAPMessage{
		MessageID: id,
		Operation: &ldap.RawOperation{Tag: int(h.req.OperationType()), Data: body},
		Controls:  h.controls,
	}
	pkt, err := msg.Encode()
	if err != nil {
		e := h.newError(KindEncoding, err)
		h.complete(nil, e)
		return e
	}
	if n, err := c.write(ctx, pkt, h.writeDeadline(ctx)); err != nil {
		c.log.Warn("write failed", "message_id", id, "op", h.op, "written", n, "error", err)
		e := h.newError(writeErrorKind(ctx, err), err)
		h.complete(nil, e)
		// A partial message leaves the stream unusable.
		if n > 0 || e.Kind == KindConnection {
			c.shutdown(err)
		}
		return e
	}
	c.log.Debug("operation sent", "message_id", id, "op", h.op)
	return nil
}

// writeErrorKind classifies a failed request write. A write cut short by the
// handle timeout or a context deadline is a timeout, a canceled context is
// local, anything else is a connection failure.
func writeErrorKind(ctx context.Context, err error) ErrorKind {
	switch {
	case errors.Is(ctx.Err(), context.Canceled):
		return KindLocal
	case errors.Is(ctx.Err(), context.DeadlineExceeded), errors.Is(err, os.ErrDeadlineExceeded):
		return KindTimeout
	}
	return KindConnection
}

// write sends pkt. The write fails once deadline passes (zero means none) or
// ctx ends, so a peer that stops reading cannot block the caller forever.
func (c *Conn) write(ctx context.Context, pkt []byte, deadline time.Time) (int, error) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	_ = c.nc.SetWriteDeadline(deadline)

	interrupted := make(chan struct{})
	stop := context.AfterFunc(ctx, func() {
		defer close(interrupted)
		_ = c.nc.SetWriteDeadline(time.Now())
	})
	n, err := c.nc.Write(pkt)
	if !stop() {
		<-interrupted
	}
	return n, err
}

// writeOp writes a request that expects no response.
func (c *Conn) writeOp(op ldap.ProtocolOp, timeout time.Duration) (int, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return 0, net.ErrClosed
	}
	id := c.nextIDLocked()
	c.mu.Unlock()

	msg, err := ldap.NewMessage(id, op, nil)
	if err != nil {
		return 0, err
	}
	pkt, err := msg.Encode()
	if err != nil {
		return 0, err
	}
	return c.write(context.Background(), pkt, time.Now().Add(timeout))
}

// abandon writes an AbandonRequest for target. When the write is cut short
// after part of the message went out, the stream is unusable and the
// connection is shut down.
func (c *Conn) abandon(target int) {
	n, err := c.writeOp(&ldap.AbandonRequest{MessageID: target}, abandonTimeout)
	if err == nil || c.IsClosed() {
		return
	}
	c.log.Debug("abandon request not written", "message_id", target, "written", n, "error", err)
	if n > 0 {
		c.shutdown(err)
	}
}

func (c *Conn) release(h *Handle, id int) {
	c.mu.Lock()
	if c.handles[id] == h {
		delete(c.handles, id)
	}
	c.mu.Unlock()
}

// Close writes an UnbindRequest (best effort), closes the socket and fails
// every outstanding operation with a KindConnection error. It does not wait
// for the reader, so it may be called from callbacks. Close is idempotent.
func (c *Conn) Close() error {
	if c.IsClosed() {
		return nil
	}
	_ = c.nc.SetWriteDeadline(time.Now().Add(unbindTimeout))
	if _, err := c.writeOp(ldap.UnbindRequest{}, unbindTimeout); err != nil {
		c.log.Debug("unbind not written", "error", err)
	}
	return c.shutdown(ErrConnectionClosed)
}

func (c *Conn) shutdown(cause error) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	pending := c.handles
	c.handles = make(map[int]*Handle)
	c.mu.Unlock()

	c.halt.ReqStop.Close()
	err := c.nc.Close()
	for _, h := range pending {
		h.complete(nil, h.newError(KindConnection, cause))
	}
	c.log.Info("connection closed", "failed_operations", len(pending), "reason", cause)
	return err
}

func (c *Conn) readLoop() {
	defer c.halt.Done.Close()
	for {
		pkt, err := ber.ReadPacket(c.br, c.opts.maxMessageSize)
		if err != nil {
			if !c.IsClosed() {
				c.log.Warn("read failed", "error", err)
			}
			c.shutdown(err)
			return
		}
		msg, err := ldap.ParseLDAPMessage(pkt)
		if err != nil {
			c.log.Error("malformed message from server", "error", err)
			c.shutdown(err)
			return
		}
		c.dispatch(msg)
	}
}

func (c *Conn) dispatch(msg *ldap.LDAPMessage) {
	resp, err := ldap.DecodeResponse(msg)

	if msg.MessageID == 0 {
		if err != nil {
			c.log.Warn("undecodable unsolicited message", "error", err)
			return
		}
		n, ok := resp.(*ldap.Notice)
		if !ok {
			c.log.Warn("ignoring message with ID 0", "op", msg.OperationType().String())
			return
		}
		c.notify(newNotice(n))
		return
	}

	c.mu.Lock()
	h := c.handles[msg.MessageID]
	c.mu.Unlock()
	if h == nil {
		c.log.Debug("dropping response for unknown message ID",
			"message_id", msg.MessageID, "op", msg.OperationType().String())
		return
	}
	if err != nil {
		h.complete(nil, h.newError(KindEncoding, err))
		return
	}

	for _, ctl := range msg.Controls {
		h.control(ctl)
	}
	switch r := resp.(type) {
	case *ldap.Result:
		h.complete(newResult(r, msg.Controls), nil)
	case *ldap.SearchResultEntry:
		h.entry(newEntry(r, msg.Controls))
	case *ldap.SearchResultReference:
		h.reference(r.URIs)
	case *ldap.IntermediateResponse:
		h.intermediate(&Intermediate{name: r.Name, value: r.Value})
	}
}

// notify broadcasts a notice to every live handle and to the connection
// listeners. A Notice of Disconnection then closes the connection.
func (c *Conn) notify(n *Notice) {
	if c.opts.metrics != nil {
		c.opts.metrics.UnsolicitedNotification(n.Name())
	}

	c.mu.Lock()
	live := make([]*Handle, 0, len(c.handles))
	for _, h := range c.handles {
		live = append(live, h)
	}
	c.mu.Unlock()

	claimed := false
	for _, h := range live {
		if h.unsolicited(n) {
			claimed = true
		}
	}
	for _, l := range c.opts.listeners {
		l(n)
		claimed = true
	}
	if !claimed {
		c.log.Debug("unclaimed unsolicited notification", "oid", n.Name())
	}

	if n.IsDisconnection() {
		c.log.Warn("server sent notice of disconnection",
			"code", n.Code().String(), "diagnostic", n.DiagnosticMessage())
		c.shutdown(fmt.Errorf("notice of disconnection: %s: %s", n.Code(), n.DiagnosticMessage()))
	}
}
