package repayment_test

import (
	"context"
	"errors"
	"math"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/inbucket/courier/pkg/config"
	"github.com/inbucket/courier/pkg/extension"
	"github.com/inbucket/courier/pkg/extension/event"
	"github.com/inbucket/courier/pkg/ident"
	"github.com/inbucket/courier/pkg/repayment"
	"github.com/inbucket/courier/pkg/storage"
	"github.com/inbucket/courier/pkg/test"
	"github.com/inbucket/courier/pkg/validation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var epoch = time.Date(2026, 4, 1, 8, 0, 0, 0, time.UTC)

func newService(t *testing.T, p repayment.Processor) *repayment.Service {
	t.Helper()
	ids, err := ident.NewGenerator(3)
	require.NoError(t, err)
	v, err := validation.New()
	require.NoError(t, err)
	return &repayment.Service{
		Store:     repayment.NewMemoryStore(),
		Processor: p,
		Validator: v,
		IDs:       ids,
		ExtHost:   extension.NewHost(),
		Clock:     func() time.Time { return epoch },
	}
}

func ptr[T any](v T) *T { return &v }

func validRequest() repayment.Request {
	return repayment.Request{
		EntityName:  "Repayment",
		EntityID:    "loan-7",
		DisplayName: "Loan 7",
		LogoURL:     "https://cdn.example.com/l.png",
		Keywords:    []string{"loan"},
		RankingHint: ptr(50.0),
	}
}

func TestPayValidation(t *testing.T) {
	testCases := []struct {
		name  string
		edit  func(r *repayment.Request)
		field string
	}{
		{"missing name", func(r *repayment.Request) { r.EntityName = "" }, "entity_name"},
		{"missing id", func(r *repayment.Request) { r.EntityID = "" }, "entity_id"},
		{"long id", func(r *repayment.Request) { r.EntityID = strings.Repeat("x", 65) }, "entity_id"},
		{"long group", func(r *repayment.Request) { r.EntityGroupID = strings.Repeat("g", 65) }, "entity_group_id"},
		{"long display", func(r *repayment.Request) { r.DisplayName = strings.Repeat("d", 51) }, "display_name"},
		{"long description", func(r *repayment.Request) {
			r.Description = strings.Repeat("d", 2001)
		}, "description"},
		{"bad logo", func(r *repayment.Request) { r.LogoURL = "not a url" }, "logo_url"},
		{"long logo", func(r *repayment.Request) {
			r.LogoURL = "https://example.com/" + strings.Repeat("a", 500)
		}, "logo_url"},
		{"negative hint", func(r *repayment.Request) { r.RankingHint = ptr(-0.5) }, "ranking_hint"},
		{"large hint", func(r *repayment.Request) { r.RankingHint = ptr(100.01) }, "ranking_hint"},
		{"nan hint", func(r *repayment.Request) { r.RankingHint = ptr(math.NaN()) }, "ranking_hint"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			charged := false
			svc := newService(t, repayment.ProcessorFunc(
				func(context.Context, *event.Repayment) (*event.PaymentDecision, error) {
					charged = true
					return &event.PaymentDecision{Status: repayment.StatusSuccess}, nil
				}))
			req := validRequest()
			tc.edit(&req)

			_, err := svc.Pay(context.Background(), req)
			var verr validation.Error
			require.ErrorAs(t, err, &verr)
			assert.Contains(t, verr, tc.field)
			assert.False(t, charged, "processor must not be called")
		})
	}
}

func TestPayBoundaries(t *testing.T) {
	svc := newService(t, repayment.Instant)
	req := validRequest()
	req.EntityID = strings.Repeat("é", 64)
	req.DisplayName = strings.Repeat("名", 50)
	req.RankingHint = ptr(100.0)
	req.LogoURL = ""
	req.Keywords = []string{strings.Repeat("k", 1200)}

	result, err := svc.Pay(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, repayment.StatusSuccess, result.Status)

	req.EntityID = "zero"
	req.RankingHint = ptr(0.0)
	_, err = svc.Pay(context.Background(), req)
	require.NoError(t, err)
}

func TestPaySuccessStoresSnapshot(t *testing.T) {
	svc := newService(t, repayment.Instant)
	processed := svc.ExtHost.Events.AfterRepaymentProcessed.AsyncTestListener("test", 1)

	result, err := svc.Pay(context.Background(), validRequest())
	require.NoError(t, err)
	assert.Equal(t, repayment.StatusSuccess, result.Status)
	assert.True(t, strings.HasPrefix(result.PaymentID, "pay_"))
	assert.Equal(t, "loan-7", result.EntityID)
	assert.Equal(t, epoch, result.ProcessedAt)
	assert.NotEmpty(t, result.Message)
	require.NotNil(t, result.Snapshot)
	assert.Equal(t, "Loan 7", result.Snapshot.DisplayName)
	assert.Equal(t, result.PaymentID, result.Snapshot.PaymentID)
	assert.Equal(t, epoch, result.Snapshot.UpdatedAt)

	stored, err := svc.Get(context.Background(), "loan-7")
	require.NoError(t, err)
	assert.Equal(t, result.Snapshot, stored)

	ev, err := processed()
	require.NoError(t, err)
	assert.Equal(t, result.PaymentID, ev.PaymentID)
	assert.Equal(t, repayment.StatusSuccess, ev.Status)
}

func TestPayPendingStores(t *testing.T) {
	svc := newService(t, repayment.Async)
	result, err := svc.Pay(context.Background(), validRequest())
	require.NoError(t, err)
	assert.Equal(t, repayment.StatusPending, result.Status)
	require.NotNil(t, result.Snapshot)

	_, err = svc.Get(context.Background(), "loan-7")
	assert.NoError(t, err)
}

func TestPayFailedKeepsPrevious(t *testing.T) {
	svc := newService(t, repayment.Instant)
	first, err := svc.Pay(context.Background(), validRequest())
	require.NoError(t, err)

	svc.Processor = repayment.ProcessorFunc(
		func(context.Context, *event.Repayment) (*event.PaymentDecision, error) {
			return nil, errors.New("card declined")
		})
	req := validRequest()
	req.DisplayName = "Changed"
	result, err := svc.Pay(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, repayment.StatusFailed, result.Status)
	assert.Equal(t, "card declined", result.Message)
	assert.NotEmpty(t, result.PaymentID)
	assert.NotEqual(t, first.PaymentID, result.PaymentID)
	assert.Equal(t, first.Snapshot, result.Snapshot)

	stored, err := svc.Get(context.Background(), "loan-7")
	require.NoError(t, err)
	assert.Equal(t, "Loan 7", stored.DisplayName)
}

func TestPayRejectedWithoutPrevious(t *testing.T) {
	svc := newService(t, repayment.Reject)
	result, err := svc.Pay(context.Background(), validRequest())
	require.NoError(t, err)
	assert.Equal(t, repayment.StatusFailed, result.Status)
	assert.Nil(t, result.Snapshot)

	_, err = svc.Get(context.Background(), "loan-7")
	assert.ErrorIs(t, err, storage.ErrNotExist)
}

func TestPayLastWriteWins(t *testing.T) {
	testCases := []struct {
		name      string
		stored    *float64
		incoming  *float64
		overwrite bool
	}{
		{"newer incoming", ptr(1000.0), ptr(2000.0), true},
		{"older incoming", ptr(2000.0), ptr(1000.0), false},
		{"equal", ptr(2000.0), ptr(2000.0), true},
		{"incoming without time", ptr(2000.0), nil, true},
		{"stored without time", nil, ptr(1.0), true},
		{"seconds vs milliseconds", ptr(1700000000.0), ptr(1700000000500.0), true},
		{"milliseconds vs seconds", ptr(1700000001000.0), ptr(1700000000.0), false},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			svc := newService(t, repayment.Instant)
			req := validRequest()
			req.MetadataModificationTime = tc.stored
			req.DisplayName = "stored"
			_, err := svc.Pay(context.Background(), req)
			require.NoError(t, err)

			req.MetadataModificationTime = tc.incoming
			req.DisplayName = "incoming"
			result, err := svc.Pay(context.Background(), req)
			require.NoError(t, err)
			assert.Equal(t, repayment.StatusSuccess, result.Status)

			want := "stored"
			if tc.overwrite {
				want = "incoming"
			}
			assert.Equal(t, want, result.Snapshot.DisplayName)
			stored, err := svc.Get(context.Background(), "loan-7")
			require.NoError(t, err)
			assert.Equal(t, want, stored.DisplayName)
		})
	}
}

func TestPayExpiredRecord(t *testing.T) {
	svc := newService(t, repayment.Instant)
	req := validRequest()
	req.ExpirationTime = ptr(float64(epoch.Add(-time.Minute).UnixMilli()))
	req.MetadataModificationTime = ptr(9e12)
	_, err := svc.Pay(context.Background(), req)
	require.NoError(t, err)

	_, err = svc.Get(context.Background(), "loan-7")
	assert.ErrorIs(t, err, storage.ErrNotExist)

	// An expired record does not block an older write.
	req.ExpirationTime = nil
	req.MetadataModificationTime = ptr(1.0)
	req.DisplayName = "fresh"
	result, err := svc.Pay(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "fresh", result.Snapshot.DisplayName)
}

func TestPayExtensionOverride(t *testing.T) {
	svc := newService(t, repayment.Instant)
	svc.ExtHost.Events.BeforeRepaymentProcessed.AddListener("test",
		func(ev event.Repayment) *event.PaymentDecision {
			if ev.EntityID == "loan-7" {
				return &event.PaymentDecision{Status: event.PaymentPending, Message: "held for review"}
			}
			return nil
		})

	result, err := svc.Pay(context.Background(), validRequest())
	require.NoError(t, err)
	assert.Equal(t, repayment.StatusPending, result.Status)
	assert.Equal(t, "held for review", result.Message)

	req := validRequest()
	req.EntityID = "other"
	result, err = svc.Pay(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, repayment.StatusSuccess, result.Status)

	// Unknown statuses from listeners are ignored.
	svc.ExtHost.Events.BeforeRepaymentProcessed.AddListener("test",
		func(event.Repayment) *event.PaymentDecision {
			return &event.PaymentDecision{Status: "maybe"}
		})
	result, err = svc.Pay(context.Background(), validRequest())
	require.NoError(t, err)
	assert.Equal(t, repayment.StatusSuccess, result.Status)
}

func TestPaySerializesEntity(t *testing.T) {
	var mu sync.Mutex
	active, maxActive := map[string]int{}, 0
	svc := newService(t, repayment.ProcessorFunc(
		func(_ context.Context, ev *event.Repayment) (*event.PaymentDecision, error) {
			mu.Lock()
			active[ev.EntityID]++
			if active[ev.EntityID] > maxActive {
				maxActive = active[ev.EntityID]
			}
			mu.Unlock()
			time.Sleep(time.Millisecond)
			mu.Lock()
			active[ev.EntityID]--
			mu.Unlock()
			return &event.PaymentDecision{Status: repayment.StatusSuccess}, nil
		}))

	wg := &sync.WaitGroup{}
	for i := range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			req := validRequest()
			req.EntityID = []string{"a", "b"}[i%2]
			_, err := svc.Pay(context.Background(), req)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, maxActive)
}

func TestMemoryStoreSuite(t *testing.T) {
	test.RepaymentStoreSuite(t, func(*testing.T) repayment.Store {
		return repayment.NewMemoryStore()
	})
}

func TestStoreFromConfig(t *testing.T) {
	s, err := repayment.StoreFromConfig(configPayment("memory"))
	require.NoError(t, err)
	assert.IsType(t, &repayment.MemoryStore{}, s)

	_, err = repayment.StoreFromConfig(configPayment("etcd"))
	assert.Error(t, err)
}

func configPayment(store string) config.Payment {
	return config.Payment{Store: store}
}
