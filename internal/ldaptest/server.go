package ldaptest

import (
	"bufio"
	"errors"
	"io"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/glycerine/idem"

	"github.com/KilimcininKorOglu/ldapc/internal/ber"
	"github.com/KilimcininKorOglu/ldapc/internal/ldap"
	"github.com/KilimcininKorOglu/ldapc/internal/logging"
)

// MaxMessageSize bounds requests read by the server.
const MaxMessageSize = 16 * 1024 * 1024

// ErrServerClosed is returned by replies attempted after Close.
var ErrServerClosed = errors.New("ldaptest: server closed")

// HandlerFunc handles one request. Each request runs in its own goroutine,
// so a handler may sleep without blocking the read loop.
type HandlerFunc func(r *Request)

// Request is a received request together with its reply path.
type Request struct {
	Message *ldap.LDAPMessage
	srv     *Server
}

// ID returns the request's message ID.
func (r *Request) ID() int {
	return r.Message.MessageID
}

// Reply sends op with the request's message ID.
func (r *Request) Reply(op ldap.ProtocolOp, controls ...ldap.Control) error {
	return r.srv.write(r.Message.MessageID, op, controls)
}

// Bind decodes the request as a BindRequest.
func (r *Request) Bind() (*ldap.BindRequest, error) {
	return ldap.ParseBindRequest(r.Message.Operation.Data)
}

// ReplyAfter waits d, then replies. It gives up if the server closes first.
func (r *Request) ReplyAfter(d time.Duration, op ldap.ProtocolOp, controls ...ldap.Control) error {
	select {
	case <-time.After(d):
		return r.Reply(op, controls...)
	case <-r.srv.halt.ReqStop.Chan:
		return ErrServerClosed
	}
}

// Server is the scripted server. The zero value is not usable; call NewServer.
type Server struct {
	client net.Conn
	conn   net.Conn
	log    logging.Logger

	mu       sync.Mutex
	cond     *sync.Cond
	handlers map[ldap.OperationType]HandlerFunc
	received []*ldap.LDAPMessage

	writeMu sync.Mutex
	halt    *idem.Halter
	wg      sync.WaitGroup
}

// NewServer starts a server and registers its shutdown with tb.Cleanup.
func NewServer(tb testing.TB) *Server {
	tb.Helper()
	clientSide, serverSide := net.Pipe()
	s := &Server{
		client:   clientSide,
		conn:     serverSide,
		log:      logging.NewNop(),
		handlers: make(map[ldap.OperationType]HandlerFunc),
		halt:     idem.NewHalterNamed("ldaptest.Server"),
	}
	s.cond = sync.NewCond(&s.mu)
	go s.serve()
	tb.Cleanup(func() { _ = s.Close() })
	return s
}

// ClientConn returns the client end of the pipe.
func (s *Server) ClientConn() net.Conn {
	return s.client
}

// Handle registers f for requests of type t, replacing any earlier handler.
func (s *Server) Handle(t ldap.OperationType, f HandlerFunc) {
	s.mu.Lock()
	s.handlers[t] = f
	s.mu.Unlock()
}

// Notify sends an unsolicited notification (message ID 0).
func (s *Server) Notify(name string, code ldap.ResultCode, diagnostic string) error {
	return s.write(0, &ldap.Result{
		Type:         ldap.ApplicationExtendedResponse,
		LDAPResult:   ldap.LDAPResult{ResultCode: code, DiagnosticMessage: diagnostic},
		ResponseName: name,
	}, nil)
}

// Requests returns every message received so far, in arrival order.
func (s *Server) Requests() []*ldap.LDAPMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*ldap.LDAPMessage, len(s.received))
	copy(out, s.received)
	return out
}

// WaitFor blocks until a message of type t has arrived or timeout elapses.
func (s *Server) WaitFor(t ldap.OperationType, timeout time.Duration) (*ldap.LDAPMessage, bool) {
	deadline := time.Now().Add(timeout)
	timer := time.AfterFunc(timeout, func() {
		s.mu.Lock()
		s.cond.Broadcast()
		s.mu.Unlock()
	})
	defer timer.Stop()

	s.mu.Lock()
	defer s.mu.Unlock()
	for {
		for _, m := range s.received {
			if m.OperationType() == t {
				return m, true
			}
		}
		if !time.Now().Before(deadline) {
			return nil, false
		}
		s.cond.Wait()
	}
}

// Close shuts the server down and waits for handler goroutines.
func (s *Server) Close() error {
	if s.halt.ReqStop.IsClosed() {
		return nil
	}
	s.halt.ReqStop.Close()
	err := s.conn.Close()
	s.wg.Wait()
	<-s.halt.Done.Chan
	return err
}

// Drop closes the server end abruptly, as if the server went away.
func (s *Server) Drop() error {
	return s.conn.Close()
}

func (s *Server) write(id int, op ldap.ProtocolOp, controls []ldap.Control) error {
	if s.halt.ReqStop.IsClosed() {
		return ErrServerClosed
	}
	msg, err := ldap.NewMessage(id, op, controls)
	if err != nil {
		return err
	}
	pkt, err := msg.Encode()
	if err != nil {
		return err
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	_, err = s.conn.Write(pkt)
	return err
}

func (s *Server) serve() {
	defer s.halt.Done.Close()
	br := bufio.NewReader(s.conn)
	for {
		pkt, err := ber.ReadPacket(br, MaxMessageSize)
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrClosedPipe) {
				s.log.Debug("read error", "error", err)
			}
			return
		}
		msg, err := ldap.ParseLDAPMessage(pkt)
		if err != nil {
			s.log.Warn("protocol error", "error", err)
			return
		}

		s.mu.Lock()
		s.received = append(s.received, msg)
		s.cond.Broadcast()
		h := s.handlers[msg.OperationType()]
		s.mu.Unlock()

		switch msg.OperationType() {
		case ldap.ApplicationUnbindRequest:
			s.log.Debug("unbind request received", "message_id", msg.MessageID)
			_ = s.conn.Close()
			return
		case ldap.ApplicationAbandonRequest:
			if h == nil {
				continue
			}
		}
		if h == nil {
			h = unwilling
		}
		req := &Request{Message: msg, srv: s}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			h(req)
		}()
	}
}

// unwilling answers any request it does not know with unwillingToPerform.
func unwilling(r *Request) {
	t, ok := responseTypes[r.Message.OperationType()]
	if !ok {
		return
	}
	_ = r.Reply(Done(t, ldap.ResultUnwillingToPerform))
}

var responseTypes = map[ldap.OperationType]ldap.OperationType{
	ldap.ApplicationBindRequest:     ldap.ApplicationBindResponse,
	ldap.ApplicationSearchRequest:   ldap.ApplicationSearchResultDone,
	ldap.ApplicationModifyRequest:   ldap.ApplicationModifyResponse,
	ldap.ApplicationAddRequest:      ldap.ApplicationAddResponse,
	ldap.ApplicationDelRequest:      ldap.ApplicationDelResponse,
	ldap.ApplicationModifyDNRequest: ldap.ApplicationModifyDNResponse,
	ldap.ApplicationCompareRequest:  ldap.ApplicationCompareResponse,
	ldap.ApplicationExtendedRequest: ldap.ApplicationExtendedResponse,
}
