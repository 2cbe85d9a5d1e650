package operation

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KilimcininKorOglu/obacore/internal/ldap"
)

func testEntries(n int) []*ldap.Entry {
	names := []string{"alice", "bob", "carol", "dave", "erin"}
	entries := make([]*ldap.Entry, n)
	for i := range entries {
		entries[i] = ldap.NewEntry("uid=" + names[i] + ",dc=example,dc=com")
	}
	return entries
}

// streamWorkflow returns entries until the search asks to stop.
func streamWorkflow(entries []*ldap.Entry) Workflow {
	return workflowFunc(func(op Operation) error {
		s := op.(*SearchOperation)
		for _, e := range entries {
			if !s.ReturnEntry(e, nil) {
				return nil
			}
		}
		s.SetResultCode(ldap.ResultSuccess)
		return nil
	})
}

func TestSearchLimits(t *testing.T) {
	tests := []struct {
		name        string
		requestSize int
		connSize    int
		wantSize    int
		requestTime int
		connTime    time.Duration
		wantTime    time.Duration
	}{
		{"request smaller", 5, 10, 5, 2, time.Minute, 2 * time.Second},
		{"connection smaller", 20, 10, 10, 120, time.Minute, time.Minute},
		{"request unlimited", 0, 10, 10, 0, time.Minute, time.Minute},
		{"connection unlimited", 5, 0, 5, 3, 0, 3 * time.Second},
		{"both unlimited", 0, -1, 0, 0, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conn := newFakeConn(nil)
			conn.sizeLimit = tt.connSize
			conn.timeLimit = tt.connTime

			op := NewSearchOperation(conn, 1, 1, nil, &ldap.SearchRequest{
				SizeLimit: tt.requestSize,
				TimeLimit: tt.requestTime,
			})

			assert.Equal(t, tt.wantSize, op.SizeLimit())
			assert.Equal(t, tt.wantTime, op.TimeLimit())
		})
	}
}

func TestSearchStreamsEntries(t *testing.T) {
	h := newHarness()
	h.ng.add("dc=example,dc=com", streamWorkflow(testEntries(3)))

	op := h.search("dc=example,dc=com", "(objectClass=*)")
	h.engine.Run(op)

	assert.Equal(t, ldap.ResultSuccess, op.ResultCode())
	assert.Equal(t, int64(3), op.EntriesSent())
	assert.Len(t, h.conn.entries, 3)
	assert.Equal(t, []string{"request", "entry", "entry", "entry", "response"}, h.log.snapshot())
	assert.Equal(t, 1, h.conn.responseCount())

	// The done response goes out once even if asked again.
	op.SendSearchResultDone()
	assert.Equal(t, 1, h.conn.responseCount())
}

func TestSearchSizeLimit(t *testing.T) {
	h := newHarness()
	h.ng.add("dc=example,dc=com", streamWorkflow(testEntries(5)))

	op := NewSearchOperation(h.conn, 1, 2, nil, &ldap.SearchRequest{
		BaseObject: "dc=example,dc=com",
		Scope:      ldap.ScopeWholeSubtree,
		Filter:     "(objectClass=*)",
		SizeLimit:  2,
	})
	h.engine.Run(op)

	assert.Equal(t, ldap.ResultSizeLimitExceeded, op.ResultCode())
	assert.Contains(t, op.ErrorMessage(), "maximum of 2 entries")
	assert.Equal(t, int64(2), op.EntriesSent())
	assert.Equal(t, ldap.ResultSizeLimitExceeded, h.conn.lastResponse().ResultCode)
}

func TestSearchTimeLimit(t *testing.T) {
	h := newHarness()
	h.conn.timeLimit = 10 * time.Millisecond
	h.ng.add("dc=example,dc=com", workflowFunc(func(op Operation) error {
		time.Sleep(30 * time.Millisecond)
		if op.(*SearchOperation).ReturnEntry(ldap.NewEntry("uid=late,dc=example,dc=com"), nil) {
			op.SetResultCode(ldap.ResultSuccess)
		}
		return nil
	}))

	op := h.search("dc=example,dc=com", "(objectClass=*)")
	h.engine.Run(op)

	assert.Equal(t, ldap.ResultTimeLimitExceeded, op.ResultCode())
	assert.Zero(t, op.EntriesSent())
}

func TestSearchEntryPlugins(t *testing.T) {
	t.Run("terminate", func(t *testing.T) {
		h := newHarness()
		h.ng.add("dc=example,dc=com", streamWorkflow(testEntries(3)))
		h.plugins.entry = func(*SearchOperation, *ldap.Entry) StreamDecision {
			return StreamDecision{Terminate: true}
		}

		op := h.search("dc=example,dc=com", "(objectClass=*)")
		h.engine.Run(op)

		assert.Equal(t, ldap.ResultCanceled, op.ResultCode())
		assert.Contains(t, op.ErrorMessage(), "uid=alice,dc=example,dc=com")
		assert.Zero(t, op.EntriesSent())
	})

	t.Run("suppress", func(t *testing.T) {
		h := newHarness()
		h.ng.add("dc=example,dc=com", streamWorkflow(testEntries(3)))
		h.plugins.entry = func(_ *SearchOperation, e *ldap.Entry) StreamDecision {
			return StreamDecision{Send: e.DN != "uid=bob,dc=example,dc=com", Continue: true}
		}

		op := h.search("dc=example,dc=com", "(objectClass=*)")
		h.engine.Run(op)

		assert.Equal(t, ldap.ResultSuccess, op.ResultCode())
		assert.Equal(t, int64(2), op.EntriesSent())
	})
}

func TestSearchSendFailureStopsStream(t *testing.T) {
	h := newHarness()
	h.conn.sendErr = errors.New("broken pipe")
	h.ng.add("dc=example,dc=com", streamWorkflow(testEntries(3)))

	op := h.search("dc=example,dc=com", "(objectClass=*)")
	h.engine.Run(op)

	assert.Zero(t, op.EntriesSent())
	assert.Equal(t, ldap.ResultUndefined, op.ResultCode())
}

func TestSearchReferences(t *testing.T) {
	h := newHarness()
	op := h.search("dc=example,dc=com", "(objectClass=*)")

	assert.True(t, op.ReturnReference([]string{"ldap://a.example.com/dc=example,dc=com"}))
	assert.Equal(t, int64(1), op.ReferencesSent())

	h.conn.rejectRefs = true
	assert.True(t, op.ReturnReference([]string{"ldap://b.example.com/dc=example,dc=com"}))
	assert.True(t, op.ReturnReference([]string{"ldap://c.example.com/dc=example,dc=com"}))
	assert.Equal(t, int64(1), op.ReferencesSent())
	assert.Len(t, h.conn.references, 1)
}

func TestSearchDecodeFailures(t *testing.T) {
	tests := []struct {
		name   string
		base   string
		filter string
		code   ldap.ResultCode
	}{
		{"bad base", "not a dn", "(objectClass=*)", ldap.ResultInvalidDNSyntax},
		{"bad filter", "dc=example,dc=com", "(cn=", ldap.ResultProtocolError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness()
			calls := 0
			h.ng.add("dc=example,dc=com", workflowFunc(func(Operation) error {
				calls++
				return nil
			}))

			op := h.search(tt.base, tt.filter)
			h.engine.Run(op)

			assert.Equal(t, tt.code, op.ResultCode())
			assert.Zero(t, calls)
			assert.Equal(t, 1, h.conn.responseCount())
		})
	}
}

func TestPersistentSearchLifecycle(t *testing.T) {
	for _, notify := range []bool{true, false} {
		h := newHarness()
		deregistered := 0
		h.ng.add("dc=example,dc=com", workflowFunc(func(op Operation) error {
			s := op.(*SearchOperation)
			s.MakePersistent(func() { deregistered++ })
			s.SetResultCode(ldap.ResultSuccess)
			return nil
		}))

		op := NewSearchOperation(h.conn, 1, 2, nil, &ldap.SearchRequest{
			BaseObject: "dc=example,dc=com",
			Scope:      ldap.ScopeWholeSubtree,
			Filter:     "(objectClass=*)",
			SizeLimit:  1,
		})
		h.engine.Run(op)

		require.True(t, op.IsPersistent())
		assert.Zero(t, op.SizeLimit())
		assert.Equal(t, CancelTooLate, op.CancelResult())
		assert.Zero(t, h.conn.responseCount())
		assert.Equal(t, []string{"request"}, h.log.snapshot())

		// Changes keep streaming past the original size limit.
		for _, e := range testEntries(2) {
			assert.True(t, op.ReturnEntry(e, nil))
		}

		result := h.engine.Cancel(op, &CancelRequest{Reason: "abandoned", NotifyOriginalRequestor: notify})
		assert.Equal(t, CancelCanceled, result)
		assert.Equal(t, 1, deregistered)
		assert.False(t, op.IsPersistent())
		assert.Equal(t, ldap.ResultCanceled, op.ResultCode())
		assert.Equal(t, []string{"request", "entry", "entry", "response"}, h.log.snapshot())
		if notify {
			assert.Equal(t, 1, h.conn.responseCount())
		} else {
			assert.Zero(t, h.conn.responseCount())
		}

		assert.False(t, op.ReturnEntry(ldap.NewEntry("uid=x,dc=example,dc=com"), nil))
		h.engine.Cancel(op, &CancelRequest{NotifyOriginalRequestor: true})
		op.SendSearchResultDone()
		assert.Equal(t, 1, deregistered)
		assert.LessOrEqual(t, h.conn.responseCount(), 1)
		assert.Len(t, h.log.snapshot(), 4)
	}
}

func TestSearchAnsweredBeforeCompletion(t *testing.T) {
	h := newHarness()
	h.ng.add("dc=example,dc=com", workflowFunc(func(op Operation) error {
		s := op.(*SearchOperation)
		s.SetResultCode(ldap.ResultSuccess)
		s.Context().AddSubOperation(&SubOperation{Parent: s, Code: ldap.ResultSuccess})
		s.SendSearchResultDone()
		return nil
	}))

	op := h.search("dc=example,dc=com", "(objectClass=*)")
	h.engine.Run(op)

	assert.Equal(t, CancelTooLate, op.CancelResult())
	assert.Equal(t, 1, h.conn.responseCount())
	assert.Equal(t, []string{"request", "response"}, h.log.snapshot())
	assert.Len(t, h.plugins.postSubjects(), 1)
}

func TestSearchAttributes(t *testing.T) {
	op := NewSearchOperation(nil, 1, 1, nil, &ldap.SearchRequest{
		Attributes: []string{"cn", "CN", "*", "+", "1.1"},
	})
	assert.Equal(t, []string{"cn", "*", "+", "1.1"}, op.Attributes())

	op.SetRawAttributes([]string{"bad attr"})
	assert.Nil(t, op.Attributes())
	assert.Equal(t, ldap.ResultProtocolError, op.ResultCode())

	empty := NewSearchOperation(nil, 1, 1, nil, &ldap.SearchRequest{})
	assert.NotNil(t, empty.Attributes())
	assert.Empty(t, empty.Attributes())
}
