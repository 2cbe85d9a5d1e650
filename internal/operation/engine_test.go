package operation

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KilimcininKorOglu/obacore/internal/ldap"
)

func TestAddWithoutWorkflowEndToEnd(t *testing.T) {
	h := newHarness()
	h.ng.add("dc=other,dc=org", succeed)

	op := h.add("uid=bob,dc=example,dc=com", ldap.NewAttribute("objectClass", "person"))
	h.engine.Run(op)

	require.Equal(t, ldap.ResultNoSuchObject, op.ResultCode())
	assert.Contains(t, op.ErrorMessage(), "uid=bob,dc=example,dc=com")
	assert.Empty(t, op.Context().SubOperations())
	assert.False(t, op.WorkflowExecuted())

	post := h.plugins.postSubjects()
	require.Len(t, post, 1)
	assert.Same(t, op, post[0])

	assert.Equal(t, 1, h.conn.responseCount())
	assert.Equal(t, ldap.ResultNoSuchObject, h.conn.lastResponse().ResultCode)
	assert.Equal(t, []string{"request", "response"}, h.log.snapshot())
	assert.Equal(t, CancelTooLate, op.CancelResult())
	assert.False(t, op.StopTime().IsZero())
}

func TestAddWithoutWorkflowEdgeCases(t *testing.T) {
	tests := []struct {
		name    string
		entryDN string
		code    ldap.ResultCode
		message string
	}{
		{"root DSE", "", ldap.ResultUnwillingToPerform, msgAddRootDSE},
		{"no parent and not a suffix", "o=orphan", ldap.ResultNoSuchObject, "has no parent and is not a suffix"},
		{"suffix without workflow", "dc=example,dc=com", ldap.ResultUndefined, ""},
		{"unserved suffix", "uid=bob,ou=people,dc=elsewhere,dc=org", ldap.ResultNoSuchObject, "no backend serves its suffix"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness()
			h.ng.add("dc=example,dc=com", nil)

			op := h.add(tt.entryDN)
			h.engine.Run(op)

			assert.Equal(t, tt.code, op.ResultCode())
			if tt.message == "" {
				assert.Empty(t, op.ErrorMessage())
			} else {
				assert.Contains(t, op.ErrorMessage(), tt.message)
			}
			assert.Equal(t, 1, h.conn.responseCount())
		})
	}
}

func TestSuccessfulAddRespondsOnce(t *testing.T) {
	h := newHarness()
	calls := 0
	h.ng.add("dc=example,dc=com", workflowFunc(func(op Operation) error {
		calls++
		return succeed(op)
	}))

	op := h.add("uid=bob,dc=example,dc=com")
	h.engine.Run(op)

	assert.Equal(t, 1, calls)
	assert.Equal(t, ldap.ResultSuccess, op.ResultCode())
	assert.True(t, op.WorkflowExecuted())
	assert.Equal(t, 1, h.conn.responseCount())
	assert.Equal(t, []string{"request", "response"}, h.log.snapshot())
	assert.Equal(t, CancelTooLate, op.CancelResult())
	assert.Equal(t, 1, h.plugins.preParsed)
}

func TestPostResponseFanOut(t *testing.T) {
	t.Run("one call per sub-operation", func(t *testing.T) {
		h := newHarness()
		h.ng.add("dc=example,dc=com", workflowFunc(func(op Operation) error {
			op.SetResultCode(ldap.ResultSuccess)
			op.Context().AddSubOperation(&SubOperation{Parent: op, Backend: "a", Code: ldap.ResultSuccess})
			op.Context().AddSubOperation(&SubOperation{Parent: op, Backend: "b", Code: ldap.ResultSuccess})
			return nil
		}))

		op := h.modify("uid=bob,dc=example,dc=com")
		h.engine.Run(op)

		post := h.plugins.postSubjects()
		require.Len(t, post, 2)
		for i, backend := range []string{"a", "b"} {
			sub, ok := post[i].(*SubOperation)
			require.True(t, ok, "post-response subject %d is not a sub-operation", i)
			assert.Equal(t, backend, sub.Backend)
			assert.Equal(t, KindModify, sub.Kind())
			assert.Equal(t, op.OperationID(), sub.OperationID())
		}
	})

	t.Run("no sub-operations", func(t *testing.T) {
		h := newHarness()
		h.ng.add("dc=example,dc=com", workflowFunc(func(op Operation) error {
			op.SetResultCode(ldap.ResultSuccess)
			return nil
		}))

		h.engine.Run(h.modify("uid=bob,dc=example,dc=com"))

		assert.Empty(t, h.plugins.postSubjects())
	})

	t.Run("no workflow", func(t *testing.T) {
		h := newHarness()
		h.plugins.preParse = func(op Operation) PreParseResult {
			op.SetResultCode(ldap.ResultBusy)
			return PreParseRespondNow
		}

		op := h.modify("uid=bob,dc=example,dc=com")
		h.engine.Run(op)

		post := h.plugins.postSubjects()
		require.Len(t, post, 1)
		assert.Same(t, op, post[0])
	})
}

func TestWorkflowErrors(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		panics  bool
		code    ldap.ResultCode
		matched string
		message string
	}{
		{
			name:    "result error",
			err:     ldap.NewResultError(ldap.ResultNoSuchObject, "entry is gone").WithMatchedDN("dc=example,dc=com"),
			code:    ldap.ResultNoSuchObject,
			matched: "dc=example,dc=com",
			message: "entry is gone",
		},
		{
			name:    "plain error",
			err:     errors.New("disk on fire"),
			code:    ldap.ResultOperationsError,
			message: "disk on fire",
		},
		{
			name:    "panic",
			panics:  true,
			code:    ldap.ResultOperationsError,
			message: "workflow panicked",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness()
			h.ng.add("dc=example,dc=com", workflowFunc(func(op Operation) error {
				if tt.panics {
					panic("boom")
				}
				return tt.err
			}))

			op := h.add("uid=bob,dc=example,dc=com")
			h.engine.Run(op)

			assert.Equal(t, tt.code, op.ResultCode())
			assert.Equal(t, tt.matched, op.MatchedDN())
			assert.Contains(t, op.ErrorMessage(), tt.message)
			assert.Equal(t, 1, h.conn.responseCount())
		})
	}
}

func TestDecodeFailureSkipsWorkflow(t *testing.T) {
	h := newHarness()
	calls := 0
	h.ng.add("", workflowFunc(func(op Operation) error {
		calls++
		return nil
	}))

	op := h.add("not a dn")
	h.engine.Run(op)

	assert.Zero(t, calls)
	assert.Equal(t, ldap.ResultInvalidDNSyntax, op.ResultCode())
	assert.Contains(t, op.ErrorMessage(), "not a dn")
	assert.Equal(t, 1, h.conn.responseCount())
	assert.Equal(t, []string{"request", "response"}, h.log.snapshot())
}

func TestPersistentSearchNotification(t *testing.T) {
	for _, failure := range []string{"panic", "error"} {
		t.Run("second observer "+failure, func(t *testing.T) {
			h := newHarness()
			h.ng.add("dc=example,dc=com", succeed)

			first, second, third := &fakeObserver{}, &fakeObserver{}, &fakeObserver{}
			if failure == "panic" {
				second.panicky = true
			} else {
				second.err = errObserver
			}
			h.registry.observers = []PersistentSearchObserver{first, second, third}

			op := h.add("uid=bob,dc=example,dc=com")
			h.engine.Run(op)

			assert.Equal(t, ldap.ResultSuccess, op.ResultCode())
			assert.Equal(t, 1, first.calls)
			assert.Equal(t, 1, second.calls)
			assert.Equal(t, 1, third.calls)
			assert.Equal(t, []PersistentSearchObserver{second}, h.registry.deregistered)
			assert.Equal(t, []PersistentSearchObserver{first, third}, h.registry.Observers())
			assert.Equal(t, 1, h.conn.responseCount())
		})
	}

	t.Run("only successful sub-operations", func(t *testing.T) {
		h := newHarness()
		h.ng.add("dc=example,dc=com", workflowFunc(func(op Operation) error {
			op.SetResultCode(ldap.ResultSuccess)
			op.Context().AddSubOperation(&SubOperation{Parent: op, Code: ldap.ResultBusy})
			op.Context().AddSubOperation(&SubOperation{Parent: op, Code: ldap.ResultSuccess})
			return nil
		}))
		observer := &fakeObserver{}
		h.registry.observers = []PersistentSearchObserver{observer}

		h.engine.Run(h.modify("uid=bob,dc=example,dc=com"))

		assert.Equal(t, []Kind{KindModify}, observer.kinds)
	})

	t.Run("not for failed operations", func(t *testing.T) {
		h := newHarness()
		h.ng.add("dc=example,dc=com", nil)
		observer := &fakeObserver{}
		h.registry.observers = []PersistentSearchObserver{observer}

		h.engine.Run(h.add("uid=bob,dc=example,dc=com"))

		assert.Zero(t, observer.calls)
	})
}

func TestPreParseTerminate(t *testing.T) {
	h := newHarness()
	calls := 0
	h.ng.add("dc=example,dc=com", workflowFunc(func(op Operation) error {
		calls++
		return nil
	}))
	h.plugins.preParse = func(Operation) PreParseResult { return PreParseTerminate }

	op := h.add("uid=bob,dc=example,dc=com")
	h.engine.Run(op)

	assert.Zero(t, calls)
	assert.Equal(t, ldap.ResultCanceled, op.ResultCode())
	assert.Equal(t, msgPreParseDisconnect, op.ErrorMessage())
	assert.Equal(t, []string{"request", "response"}, h.log.snapshot())
	assert.Zero(t, h.conn.responseCount())
	assert.Equal(t, CancelCanceled, op.CancelResult())

	post := h.plugins.postSubjects()
	require.Len(t, post, 1)
	assert.Same(t, op, post[0])
}

func TestPreParseRespondNow(t *testing.T) {
	for _, result := range []PreParseResult{PreParseRespondNow, PreParseSkipCore} {
		h := newHarness()
		calls := 0
		h.ng.add("dc=example,dc=com", workflowFunc(func(op Operation) error {
			calls++
			return nil
		}))
		h.plugins.preParse = func(op Operation) PreParseResult {
			op.SetResultCode(ldap.ResultBusy)
			op.AppendErrorMessage("slow down")
			return result
		}

		op := h.add("uid=bob,dc=example,dc=com")
		h.engine.Run(op)

		assert.Zero(t, calls)
		assert.Equal(t, 1, h.conn.responseCount())
		assert.Equal(t, ldap.ResultBusy, h.conn.lastResponse().ResultCode)
		assert.Equal(t, "slow down", h.conn.lastResponse().DiagnosticMessage)
		assert.Equal(t, []string{"request", "response"}, h.log.snapshot())
		assert.Equal(t, CancelTooLate, op.CancelResult())
	}
}

func TestCancelRequestedBeforeDispatch(t *testing.T) {
	h := newHarness()
	calls := 0
	h.ng.add("dc=example,dc=com", workflowFunc(func(op Operation) error {
		calls++
		return nil
	}))
	h.plugins.preParse = func(op Operation) PreParseResult {
		op.base().cancel.store(&CancelRequest{Reason: "abandoned"})
		return PreParseContinue
	}

	op := h.add("uid=bob,dc=example,dc=com")
	h.engine.Run(op)

	assert.Zero(t, calls)
	assert.Equal(t, ldap.ResultCanceled, op.ResultCode())
	assert.Equal(t, "abandoned", op.ErrorMessage())
	assert.Equal(t, CancelCanceled, op.CancelResult())
	assert.Zero(t, h.conn.responseCount())
	assert.Equal(t, []string{"request", "response"}, h.log.snapshot())
	assert.Len(t, h.plugins.postSubjects(), 1)
}

func TestAccessLogOrderOnEveryPath(t *testing.T) {
	h := newHarness()
	h.ng.add("dc=example,dc=com", succeed)

	ops := []Operation{
		h.add("uid=bob,dc=example,dc=com"),
		h.modify("uid=bob,dc=example,dc=com"),
		NewModifyDNOperation(h.conn, 3, 4, nil, &ldap.ModifyDNRequest{
			Entry:        "uid=bob,dc=example,dc=com",
			NewRDN:       "uid=robert",
			DeleteOldRDN: true,
		}),
		h.search("dc=example,dc=com", "(uid=*)"),
	}
	for _, op := range ops {
		h.engine.Run(op)
	}

	events := h.log.snapshot()
	require.Len(t, events, 2*len(ops))
	for i := 0; i < len(events); i += 2 {
		assert.Equal(t, "request", events[i])
		assert.Equal(t, "response", events[i+1])
	}
	assert.Equal(t, len(ops), h.conn.responseCount())
}

func TestNewEngineDefaults(t *testing.T) {
	e := NewEngine(nil)
	assert.Equal(t, DefaultCancelWaitTimeout, e.config.CancelWaitTimeout)
	assert.Equal(t, DefaultCancelPollInterval, e.config.CancelPollInterval)

	e = NewEngine(&EngineConfig{CancelWaitTimeout: -1})
	assert.Equal(t, DefaultCancelWaitTimeout, e.config.CancelWaitTimeout)

	// Runs without any collaborator.
	op := NewAddOperation(nil, 1, 1, nil, &ldap.AddRequest{Entry: "uid=bob,dc=example,dc=com"})
	e.Run(op)
	assert.Equal(t, ldap.ResultNoSuchObject, op.ResultCode())
	assert.True(t, op.ProcessingTime() >= 0)
	assert.Less(t, op.ProcessingTime(), time.Minute)
}

func TestReject(t *testing.T) {
	h := newHarness(shortCancelWait)
	calls := 0
	h.ng.add("dc=example,dc=com", workflowFunc(func(Operation) error {
		calls++
		return nil
	}))

	op := h.search("dc=example,dc=com", "(uid=*)")
	h.engine.Reject(op, ldap.NewResultError(ldap.ResultBusy, "the work queue is full"))

	assert.Zero(t, calls)
	assert.Equal(t, ldap.ResultBusy, op.ResultCode())
	assert.Equal(t, "the work queue is full", op.ErrorMessage())
	assert.Equal(t, []string{"request", "response"}, h.log.snapshot())
	assert.Equal(t, 1, h.conn.responseCount())
	require.Len(t, h.plugins.postSubjects(), 1)
	assert.Equal(t, CancelTooLate, h.engine.Cancel(op, &CancelRequest{}))
}

func TestOperationFinishedOnce(t *testing.T) {
	tests := []struct {
		name string
		run  func(h *harness) Operation
	}{
		{"completed", func(h *harness) Operation {
			op := h.add("uid=bob,dc=example,dc=com")
			h.engine.Run(op)
			return op
		}},
		{"cancelled before start", func(h *harness) Operation {
			op := h.add("uid=bob,dc=example,dc=com")
			h.engine.Cancel(op, &CancelRequest{Reason: "abandoned"})
			h.engine.Run(op)
			return op
		}},
		{"rejected", func(h *harness) Operation {
			op := h.modify("uid=bob,dc=example,dc=com")
			h.engine.Reject(op, ldap.NewResultError(ldap.ResultBusy, "busy"))
			return op
		}},
		{"bind", func(h *harness) Operation {
			op := h.bind("", "")
			h.engine.Run(op)
			return op
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(shortCancelWait)
			h.ng.add("dc=example,dc=com", succeed)

			op := tt.run(h)
			h.engine.Cancel(op, &CancelRequest{})
			assert.Equal(t, []int64{op.OperationID()}, h.conn.finished)
		})
	}
}

func TestPersistentSearchFinishesWhenCancelled(t *testing.T) {
	h := newHarness()
	h.ng.add("dc=example,dc=com", workflowFunc(func(op Operation) error {
		op.(*SearchOperation).MakePersistent(nil)
		op.SetResultCode(ldap.ResultSuccess)
		return nil
	}))

	op := h.search("dc=example,dc=com", "(objectClass=*)")
	h.engine.Run(op)
	assert.Zero(t, h.conn.finishedCount())

	assert.Equal(t, CancelCanceled, h.engine.Cancel(op, &CancelRequest{Reason: "abandoned"}))
	assert.Equal(t, 1, h.conn.finishedCount())
}
