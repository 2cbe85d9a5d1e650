package operation

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KilimcininKorOglu/obacore/internal/ldap"
)

func TestCancellationPublishIsMonotonic(t *testing.T) {
	var c cancellation

	assert.Equal(t, CancelPending, c.current())
	assert.True(t, c.publish(CancelCanceled))
	assert.False(t, c.publish(CancelTooLate))
	assert.False(t, c.publish(CancelCanceled))
	assert.Equal(t, CancelCanceled, c.current())
}

func TestCancellationFirstRequestWins(t *testing.T) {
	var c cancellation

	c.store(&CancelRequest{Reason: "first"})
	c.store(&CancelRequest{Reason: "second"})
	assert.Equal(t, "first", c.request.Load().Reason)

	var empty cancellation
	empty.store(nil)
	require.NotNil(t, empty.pending())
}

func TestCancellationWaitSeesPublishedResult(t *testing.T) {
	var c cancellation
	go func() {
		time.Sleep(20 * time.Millisecond)
		c.publish(CancelCanceled)
	}()

	assert.Equal(t, CancelCanceled, c.wait(&CancelRequest{}, time.Second, 5*time.Millisecond))
}

func TestCancelBound(t *testing.T) {
	h := newHarness(shortCancelWait)
	op := h.add("uid=bob,dc=example,dc=com")

	start := time.Now()
	result := h.engine.Cancel(op, &CancelRequest{Reason: "too slow"})
	elapsed := time.Since(start)

	assert.Equal(t, CancelCannotCancel, result)
	assert.GreaterOrEqual(t, elapsed, 100*time.Millisecond)
	assert.Less(t, elapsed, 2*time.Second)
	// Giving up does not alter the stored state.
	assert.Equal(t, CancelPending, op.CancelResult())
	require.NotNil(t, op.CancelRequest())
	assert.Equal(t, "too slow", op.CancelRequest().Reason)
}

func TestEarlyCancel(t *testing.T) {
	tests := []struct {
		name      string
		notify    bool
		abandoned bool
		responses int
	}{
		{"silent", false, false, 0},
		{"notify requestor", true, false, 1},
		{"notify abandoned operations", false, true, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(shortCancelWait, func(cfg *EngineConfig) {
				cfg.NotifyAbandonedOperations = tt.abandoned
			})
			calls := 0
			h.ng.add("dc=example,dc=com", workflowFunc(func(op Operation) error {
				calls++
				return nil
			}))

			op := h.add("uid=bob,dc=example,dc=com")
			require.Equal(t, CancelCannotCancel,
				h.engine.Cancel(op, &CancelRequest{Reason: "abandoned", NotifyOriginalRequestor: tt.notify}))

			h.engine.Run(op)

			assert.Zero(t, calls)
			assert.Equal(t, CancelCanceled, op.CancelResult())
			assert.Equal(t, ldap.ResultCanceled, op.ResultCode())
			assert.Equal(t, "abandoned", op.ErrorMessage())
			assert.Empty(t, h.log.snapshot())
			assert.Empty(t, h.plugins.postSubjects())
			assert.Equal(t, tt.responses, h.conn.responseCount())
			assert.Zero(t, h.plugins.preParsed)

			assert.Equal(t, CancelCanceled, h.engine.Cancel(op, &CancelRequest{}))
		})
	}
}

func TestCancelAfterCompletionIsTooLate(t *testing.T) {
	h := newHarness(shortCancelWait)
	h.ng.add("dc=example,dc=com", succeed)

	op := h.add("uid=bob,dc=example,dc=com")
	h.engine.Run(op)

	for i := 0; i < 3; i++ {
		assert.Equal(t, CancelTooLate, h.engine.Cancel(op, &CancelRequest{Reason: "late"}))
		assert.Equal(t, CancelTooLate, op.CancelResult())
	}
	assert.Equal(t, ldap.ResultSuccess, op.ResultCode())
	assert.Equal(t, 1, h.conn.responseCount())
}

// blockingWorkflow runs until the operation is asked to stop.
func blockingWorkflow(started chan<- struct{}) Workflow {
	var once sync.Once
	return workflowFunc(func(op Operation) error {
		once.Do(func() { close(started) })
		for op.CheckCanceled() == nil {
			time.Sleep(time.Millisecond)
		}
		return ErrCanceled
	})
}

func TestCancelDuringWorkflow(t *testing.T) {
	for _, notify := range []bool{true, false} {
		h := newHarness()
		started := make(chan struct{})
		h.ng.add("dc=example,dc=com", blockingWorkflow(started))

		op := h.add("uid=bob,dc=example,dc=com")
		done := make(chan struct{})
		go func() {
			h.engine.Run(op)
			close(done)
		}()

		<-started
		result := h.engine.Cancel(op, &CancelRequest{Reason: "client asked", NotifyOriginalRequestor: notify})
		<-done

		assert.Equal(t, CancelCanceled, result)
		assert.Equal(t, ldap.ResultCanceled, op.ResultCode())
		assert.Equal(t, "client asked", op.ErrorMessage())
		assert.Equal(t, []string{"request", "response"}, h.log.snapshot())
		if notify {
			require.Equal(t, 1, h.conn.responseCount())
			assert.Equal(t, ldap.ResultCanceled, h.conn.lastResponse().ResultCode)
		} else {
			assert.Zero(t, h.conn.responseCount())
		}
	}
}

func TestCancelRacesRun(t *testing.T) {
	for i := 0; i < 20; i++ {
		h := newHarness()
		h.ng.add("dc=example,dc=com", workflowFunc(func(op Operation) error {
			time.Sleep(20 * time.Millisecond)
			if err := op.CheckCanceled(); err != nil {
				return err
			}
			op.SetResultCode(ldap.ResultSuccess)
			return nil
		}))

		op := h.add("uid=bob,dc=example,dc=com")
		var (
			wg     sync.WaitGroup
			result CancelResult
		)
		wg.Add(2)
		go func() {
			defer wg.Done()
			h.engine.Run(op)
		}()
		go func() {
			defer wg.Done()
			result = h.engine.Cancel(op, &CancelRequest{Reason: "abandoned"})
		}()
		wg.Wait()

		assert.Contains(t, []CancelResult{CancelCanceled, CancelTooLate}, result)
		assert.Equal(t, result, op.CancelResult())
		// Cancelled before it started: nothing is logged.
		if events := h.log.snapshot(); len(events) > 0 {
			assert.Equal(t, []string{"request", "response"}, events)
		}
	}
}

func TestDisconnectDuringWorkflow(t *testing.T) {
	h := newHarness(shortCancelWait)
	h.ng.add("dc=example,dc=com", workflowFunc(func(op Operation) error {
		op.(*AddOperation).DisconnectClient("admin limit", true, "bye")
		op.SetResultCode(ldap.ResultSuccess)
		op.Context().AddSubOperation(&SubOperation{Parent: op, Code: ldap.ResultSuccess})
		return nil
	}))
	observer := &fakeObserver{}
	h.registry.observers = []PersistentSearchObserver{observer}

	op := h.add("uid=bob,dc=example,dc=com")
	h.engine.Run(op)

	assert.Equal(t, CancelCanceled, op.CancelResult())
	assert.Equal(t, []string{"admin limit"}, h.conn.disconnects)
	assert.Zero(t, h.conn.responseCount())
	assert.Equal(t, []string{"request", "response"}, h.log.snapshot())
	assert.Empty(t, h.plugins.postSubjects())
	assert.Zero(t, observer.calls)
	assert.Equal(t, CancelCanceled, h.engine.Cancel(op, &CancelRequest{}))
}

func TestCheckCanceled(t *testing.T) {
	h := newHarness(shortCancelWait)
	op := h.add("uid=bob,dc=example,dc=com")

	assert.NoError(t, op.CheckCanceled())
	h.engine.Cancel(op, &CancelRequest{})
	assert.ErrorIs(t, op.CheckCanceled(), ErrCanceled)

	op.base().cancel.publish(CancelTooLate)
	assert.NoError(t, op.CheckCanceled())
}

func TestCancelResultCodes(t *testing.T) {
	assert.Equal(t, ldap.ResultCanceled, CancelCanceled.ResultCode())
	assert.Equal(t, ldap.ResultTooLate, CancelTooLate.ResultCode())
	assert.Equal(t, ldap.ResultCannotCancel, CancelCannotCancel.ResultCode())
	assert.Equal(t, ldap.ResultUndefined, CancelPending.ResultCode())
}
