package repayment

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/inbucket/courier/pkg/config"
	"github.com/inbucket/courier/pkg/extension/event"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimestamp(t *testing.T) {
	testCases := []struct {
		input float64
		want  time.Time
	}{
		{0, time.Unix(0, 0).UTC()},
		{1700000000, time.Unix(1700000000, 0).UTC()},
		{1700000000.5, time.Unix(1700000000, 500000000).UTC()},
		{99999999999, time.Unix(99999999999, 0).UTC()},
		{1e11, time.Unix(1e8, 0).UTC()},
		{1700000000123, time.Unix(1700000000, 123000000).UTC()},
	}
	for _, tc := range testCases {
		got := Timestamp(tc.input)
		assert.WithinDuration(t, tc.want, got, time.Microsecond, "Timestamp(%v)", tc.input)
	}
}

func TestRecordExpired(t *testing.T) {
	now := time.Unix(1700000000, 0)
	r := &Record{}
	assert.False(t, r.Expired(now))
	exp := 1700000000.0
	r.ExpirationTime = &exp
	assert.True(t, r.Expired(now))
	exp = 1700000001000
	assert.False(t, r.Expired(now))
}

func TestEntityLocks(t *testing.T) {
	el := &entityLocks{}
	unlockA := el.lock("a")
	unlockB := el.lock("b")
	assert.Equal(t, 2, el.size())

	acquired := make(chan struct{})
	go func() {
		unlock := el.lock("a")
		close(acquired)
		unlock()
	}()
	select {
	case <-acquired:
		t.Fatal("second lock of a should block")
	case <-time.After(20 * time.Millisecond):
	}
	unlockA()
	<-acquired
	unlockB()
	assert.Zero(t, el.size())
}

func TestEntityLocksConcurrent(t *testing.T) {
	el := &entityLocks{}
	counter := 0
	wg := &sync.WaitGroup{}
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := el.lock("same")
			counter++
			unlock()
		}()
	}
	wg.Wait()
	assert.Equal(t, 50, counter)
	assert.Zero(t, el.size())
}

func TestProcessorFromConfig(t *testing.T) {
	for _, name := range []string{config.ProcessorInstant, config.ProcessorAsync, config.ProcessorReject} {
		p, err := ProcessorFromConfig(config.Payment{Processor: name})
		require.NoError(t, err)
		d, err := p.Charge(context.Background(), &event.Repayment{})
		require.NoError(t, err)
		assert.True(t, validStatus(d.Status))
	}
	_, err := ProcessorFromConfig(config.Payment{Processor: "barter"})
	assert.Error(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = Instant.Charge(ctx, &event.Repayment{})
	assert.ErrorIs(t, err, context.Canceled)
}
