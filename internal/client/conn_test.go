package client

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KilimcininKorOglu/ldapc/internal/ldap"
	"github.com/KilimcininKorOglu/ldapc/internal/ldaptest"
)

func TestMessageIDsIncrease(t *testing.T) {
	t.Parallel()
	srv, conn := newTestConn(t)
	srv.Handle(ldap.ApplicationSearchRequest, replySearchDoneAfter(0))

	var last int
	for i := 0; i < 5; i++ {
		h := conn.Search(searchRequest())
		_, err := h.Execute(context.Background())
		require.NoError(t, err)
		assert.Greater(t, h.MessageID(), last)
		last = h.MessageID()
	}
}

func TestMessageIDWrapsToOne(t *testing.T) {
	t.Parallel()
	srv, conn := newTestConn(t)
	srv.Handle(ldap.ApplicationSearchRequest, replySearchDoneAfter(0))

	conn.mu.Lock()
	conn.lastID = ldap.MaxMessageID - 1
	conn.mu.Unlock()

	first := conn.Search(searchRequest())
	_, err := first.Execute(context.Background())
	require.NoError(t, err)
	assert.Equal(t, ldap.MaxMessageID, first.MessageID())

	second := conn.Search(searchRequest())
	_, err = second.Execute(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, second.MessageID())
}

func TestMessageIDSkipsLiveHandles(t *testing.T) {
	t.Parallel()
	_, conn := newTestConn(t)

	conn.mu.Lock()
	defer conn.mu.Unlock()
	conn.lastID = ldap.MaxMessageID
	conn.handles[1] = &Handle{}
	conn.handles[2] = &Handle{}
	assert.Equal(t, 3, conn.nextIDLocked())
	delete(conn.handles, 1)
	delete(conn.handles, 2)
}

func TestConcurrentSendsGetUniqueIDs(t *testing.T) {
	t.Parallel()
	srv, conn := newTestConn(t)
	srv.Handle(ldap.ApplicationSearchRequest, replySearchDoneAfter(20*time.Millisecond))

	const n = 50
	ids := make(chan int, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			h := conn.Search(searchRequest())
			_, err := h.Execute(context.Background())
			assert.NoError(t, err)
			ids <- h.MessageID()
		}()
	}
	wg.Wait()
	close(ids)

	seen := make(map[int]bool)
	for id := range ids {
		assert.False(t, seen[id], "duplicate message ID %d", id)
		seen[id] = true
	}
	assert.Len(t, seen, n)
}

func TestCloseFailsOutstanding(t *testing.T) {
	t.Parallel()
	srv, conn := newTestConn(t)
	srv.Handle(ldap.ApplicationSearchRequest, func(*ldaptest.Request) {})

	h := conn.Search(searchRequest())
	require.NoError(t, h.Send())
	time.AfterFunc(50*time.Millisecond, func() { _ = conn.Close() })

	_, err := h.Await(context.Background())
	assert.ErrorIs(t, err, ErrConnectionClosed)
	assert.Equal(t, KindConnection, KindOf(err))

	_, ok := srv.WaitFor(ldap.ApplicationUnbindRequest, time.Second)
	assert.True(t, ok)
	assert.NoError(t, conn.Close())

	_, err = conn.Search(searchRequest()).Execute(context.Background())
	assert.ErrorIs(t, err, ErrConnectionClosed)
}

func TestServerDropFailsOutstanding(t *testing.T) {
	t.Parallel()
	srv, conn := newTestConn(t)
	srv.Handle(ldap.ApplicationSearchRequest, func(*ldaptest.Request) {
		_ = srv.Drop()
	})

	_, err := conn.Search(searchRequest()).Execute(context.Background())
	assert.ErrorIs(t, err, ErrConnectionClosed)

	select {
	case <-conn.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("reader did not exit")
	}
}

func TestUnknownMessageIDIsDropped(t *testing.T) {
	t.Parallel()
	srv, conn := newTestConn(t)
	srv.Handle(ldap.ApplicationSearchRequest, replySearchDoneAfter(100*time.Millisecond))
	srv.Handle(ldap.ApplicationCompareRequest, func(r *ldaptest.Request) {
		_ = r.Reply(ldaptest.Done(ldap.ApplicationCompareResponse, ldap.ResultCompareTrue))
	})

	// The search times out, so its late response arrives for an ID the
	// connection no longer knows.
	h := conn.Search(searchRequest())
	h.SetTimeout(20 * time.Millisecond)
	_, err := h.Execute(context.Background())
	require.ErrorIs(t, err, ErrTimeout)
	time.Sleep(150 * time.Millisecond)

	req := &ldap.CompareRequest{DN: "cn=x", Attribute: "cn", Value: []byte("x")}
	res, err := conn.Compare(req).Execute(context.Background())
	require.NoError(t, err)
	assert.Equal(t, ldap.ResultCompareTrue, res.Code())
	assert.False(t, conn.IsClosed())
}

func TestSearchEntriesAndReferences(t *testing.T) {
	t.Parallel()
	srv, conn := newTestConn(t)
	srv.Handle(ldap.ApplicationSearchRequest, func(r *ldaptest.Request) {
		_ = r.Reply(ldaptest.Entry("cn=alice,dc=example,dc=com", "cn", "alice", "mail", "alice@example.com"))
		_ = r.Reply(&ldap.SearchResultReference{URIs: []string{"ldap://other/dc=example,dc=com"}})
		_ = r.Reply(ldaptest.Entry("cn=bob,dc=example,dc=com", "cn", "bob"))
		_ = r.Reply(ldaptest.Done(ldap.ApplicationSearchResultDone, ldap.ResultSuccess))
	})

	var dns []string
	var refs [][]string
	h := conn.Search(searchRequest())
	h.OnEntry(func(e *Entry) { dns = append(dns, e.DN()) })
	h.OnReference(func(uris []string) { refs = append(refs, uris) })
	var first *Entry
	h.OnEntry(func(e *Entry) {
		if first == nil {
			first = e
		}
	})

	res, err := h.Execute(context.Background())
	require.NoError(t, err)
	assert.True(t, res.IsSuccess())
	assert.Equal(t, []string{"cn=alice,dc=example,dc=com", "cn=bob,dc=example,dc=com"}, dns)
	assert.Equal(t, [][]string{{"ldap://other/dc=example,dc=com"}}, refs)

	require.NotNil(t, first)
	assert.Equal(t, []string{"cn", "mail"}, first.AttributeNames())
	assert.Equal(t, []string{"alice@example.com"}, first.Values("MAIL"))
	assert.Nil(t, first.Values("sn"))
	raw := first.RawValues("cn")
	raw[0][0] = 'X'
	assert.Equal(t, []string{"alice"}, first.Values("cn"))
}

func TestCompareCallback(t *testing.T) {
	t.Parallel()
	srv, conn := newTestConn(t)
	code := ldap.ResultCompareFalse
	srv.Handle(ldap.ApplicationCompareRequest, func(r *ldaptest.Request) {
		_ = r.Reply(ldaptest.Done(ldap.ApplicationCompareResponse, code))
	})

	var outcome []bool
	h := conn.Compare(&ldap.CompareRequest{DN: "cn=alice,dc=example,dc=com", Attribute: "cn", Value: []byte("bob")})
	h.OnCompare(func(matched bool) { outcome = append(outcome, matched) })
	_, err := h.Execute(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []bool{false}, outcome)
}

func TestCompareCallbackSkipsErrors(t *testing.T) {
	t.Parallel()
	srv, conn := newTestConn(t)
	srv.Handle(ldap.ApplicationCompareRequest, func(r *ldaptest.Request) {
		_ = r.Reply(ldaptest.Done(ldap.ApplicationCompareResponse, ldap.ResultNoSuchObject))
	})

	called := false
	h := conn.Compare(&ldap.CompareRequest{DN: "cn=nobody", Attribute: "cn", Value: []byte("x")})
	h.OnCompare(func(bool) { called = true })
	res, err := h.Execute(context.Background())
	require.NoError(t, err, "a non-success code is a result, not an error")
	assert.Equal(t, ldap.ResultNoSuchObject, res.Code())
	assert.False(t, called)
}

func TestExtendedCallback(t *testing.T) {
	t.Parallel()
	srv, conn := newTestConn(t)
	srv.Handle(ldap.ApplicationExtendedRequest, func(r *ldaptest.Request) {
		req, err := ldap.ParseExtendedRequest(r.Message.Operation.Data)
		if err != nil || req.Name != ldap.WhoAmIOID {
			_ = r.Reply(ldaptest.Done(ldap.ApplicationExtendedResponse, ldap.ResultProtocolError))
			return
		}
		_ = r.Reply(ldaptest.ExtendedResponse("", []byte("dn:cn=alice,dc=example,dc=com")))
	})

	var got string
	h := conn.Extended(ldap.NewWhoAmIRequest())
	h.OnExtended(func(_ string, value []byte) { got = string(value) })
	_, err := h.Execute(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "dn:cn=alice,dc=example,dc=com", got)
}

func TestUnsolicitedNotificationBroadcast(t *testing.T) {
	t.Parallel()
	var listener []string
	var mu sync.Mutex
	srv, conn := newTestConn(t, WithUnsolicitedListener(func(n *Notice) {
		mu.Lock()
		listener = append(listener, n.Name())
		mu.Unlock()
	}))
	srv.Handle(ldap.ApplicationSearchRequest, func(r *ldaptest.Request) {
		_ = srv.Notify("1.2.3.4", ldap.ResultSuccess, "heads up")
		_ = r.ReplyAfter(50*time.Millisecond, ldaptest.Done(ldap.ApplicationSearchResultDone, ldap.ResultSuccess))
	})

	var notices []*Notice
	h := conn.Search(searchRequest())
	h.OnUnsolicitedNotification(func(n *Notice) { notices = append(notices, n) })
	_, err := h.Execute(context.Background())
	require.NoError(t, err)

	require.Len(t, notices, 1)
	assert.Equal(t, "1.2.3.4", notices[0].Name())
	assert.Equal(t, "heads up", notices[0].DiagnosticMessage())
	assert.False(t, notices[0].IsDisconnection())
	assert.True(t, h.ConsumedMessage())

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"1.2.3.4"}, listener)
}

func TestUnclaimedNotificationIsHarmless(t *testing.T) {
	t.Parallel()
	srv, conn := newTestConn(t)
	srv.Handle(ldap.ApplicationSearchRequest, replySearchDoneAfter(0))

	require.NoError(t, srv.Notify("1.2.3.4", ldap.ResultSuccess, ""))
	_, err := conn.Search(searchRequest()).Execute(context.Background())
	require.NoError(t, err)
	assert.False(t, conn.IsClosed())
}

func TestNoticeOfDisconnectionClosesConnection(t *testing.T) {
	t.Parallel()
	srv, conn := newTestConn(t)
	srv.Handle(ldap.ApplicationSearchRequest, func(r *ldaptest.Request) {
		_ = srv.Notify(ldap.NoticeOfDisconnectionOID, ldap.ResultUnavailable, "shutting down")
	})

	var notified bool
	h := conn.Search(searchRequest())
	h.OnUnsolicitedNotification(func(n *Notice) { notified = n.IsDisconnection() })
	_, err := h.Execute(context.Background())
	assert.ErrorIs(t, err, ErrConnectionClosed)
	assert.Contains(t, err.Error(), "shutting down")
	assert.True(t, notified)

	select {
	case <-conn.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("reader did not exit")
	}
}

func TestEncodingErrorFailsSend(t *testing.T) {
	t.Parallel()
	_, conn := newTestConn(t)

	h := conn.Search(&ldap.SearchRequest{Scope: ldap.SearchScope(9)})
	var exc *Error
	h.OnException(func(e *Error) { exc = e })
	err := h.Send()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrEncoding)
	assert.ErrorIs(t, err, ldap.ErrInvalidSearchScope)
	require.NotNil(t, exc)

	_, err = h.Await(context.Background())
	assert.ErrorIs(t, err, ErrEncoding)
	assert.Zero(t, conn.Outstanding())
}

type recordingMetrics struct {
	mu        sync.Mutex
	started   []string
	completed []string
	notices   []string
}

func (m *recordingMetrics) OperationStarted(op string) {
	m.mu.Lock()
	m.started = append(m.started, op)
	m.mu.Unlock()
}

func (m *recordingMetrics) OperationCompleted(op, outcome string, _ time.Duration) {
	m.mu.Lock()
	m.completed = append(m.completed, op+"/"+outcome)
	m.mu.Unlock()
}

func (m *recordingMetrics) UnsolicitedNotification(oid string) {
	m.mu.Lock()
	m.notices = append(m.notices, oid)
	m.mu.Unlock()
}

func TestMetricsAreRecorded(t *testing.T) {
	t.Parallel()
	m := &recordingMetrics{}
	srv, conn := newTestConn(t, WithMetrics(m))
	srv.Handle(ldap.ApplicationSearchRequest, replySearchDoneAfter(0))
	srv.Handle(ldap.ApplicationCompareRequest, func(*ldaptest.Request) {})

	_, err := conn.Search(searchRequest()).Execute(context.Background())
	require.NoError(t, err)

	h := conn.Compare(&ldap.CompareRequest{DN: "cn=x", Attribute: "cn", Value: []byte("x")})
	h.SetTimeout(20 * time.Millisecond)
	_, err = h.Execute(context.Background())
	require.ErrorIs(t, err, ErrTimeout)

	require.NoError(t, srv.Notify("1.2.3.4", ldap.ResultSuccess, ""))
	require.Eventually(t, func() bool {
		m.mu.Lock()
		defer m.mu.Unlock()
		return len(m.notices) == 1
	}, time.Second, 10*time.Millisecond)

	m.mu.Lock()
	defer m.mu.Unlock()
	assert.Equal(t, []string{"SearchRequest", "CompareRequest"}, m.started)
	assert.Equal(t, []string{"SearchRequest/success", "CompareRequest/timeout"}, m.completed)
}

func TestErrorFormatting(t *testing.T) {
	e := &Error{Kind: KindTimeout, MessageID: 7, Op: "SearchRequest", Err: errors.New("no response within 1s")}
	assert.Equal(t, "ldapc: SearchRequest timeout (message 7): no response within 1s", e.Error())
	assert.ErrorIs(t, e, ErrTimeout)
	assert.NotErrorIs(t, e, ErrAbandoned)
	assert.Equal(t, "ldapc: local", NewError(KindLocal, "", nil).Error())
	assert.Equal(t, ErrorKind(0), KindOf(errors.New("plain")))
	assert.Equal(t, "sasl verification", KindSASLVerification.String())
}
