package test

import (
	"context"
	"testing"
	"time"

	"github.com/inbucket/courier/pkg/repayment"
	"github.com/inbucket/courier/pkg/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RepaymentStoreFactory returns a new, empty repayment store for the test suite.
type RepaymentStoreFactory func(t *testing.T) repayment.Store

// RepaymentStoreSuite runs a set of general tests on the provided repayment.Store.
func RepaymentStoreSuite(t *testing.T, factory RepaymentStoreFactory) {
	testCases := []struct {
		name string
		test func(*testing.T, repayment.Store)
	}{
		{"round trip", testRepaymentRoundTrip},
		{"sparse record", testRepaymentSparse},
		{"replace", testRepaymentReplace},
		{"not exist", testRepaymentNotExist},
		{"isolation", testRepaymentIsolation},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			store := factory(t)
			tc.test(t, store)
			require.NoError(t, store.Close())
		})
	}
}

// FullRecord returns a record with every field set.
func FullRecord(entityID string) *repayment.Record {
	hint, exp, mod, public := 42.5, 4102444800.0, 1700000000123.0, true
	return &repayment.Record{
		EntityID:                 entityID,
		EntityName:               "Repayment",
		EntityGroupID:            "group-7",
		DisplayName:              "Loan 7 repayment",
		Description:              "Monthly installment, 日本語 included",
		LogoURL:                  "https://cdn.example.com/logo.png",
		Keywords:                 []string{"loan", "installment"},
		RankingHint:              &hint,
		ExpirationTime:           &exp,
		MetadataModificationTime: &mod,
		ActivityType:             []string{"payment"},
		IsPublicData:             &public,
		Extras:                   map[string]any{"channel": "web", "attempt": 2.0},
		PaymentID:                "pay_abc",
		UpdatedAt:                time.Date(2026, 2, 3, 4, 5, 6, 789000000, time.UTC),
	}
}

func testRepaymentRoundTrip(t *testing.T, store repayment.Store) {
	ctx := context.Background()
	want := FullRecord("entity-1")
	require.NoError(t, store.Put(ctx, want))

	got, err := store.Get(ctx, "entity-1")
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func testRepaymentSparse(t *testing.T, store repayment.Store) {
	ctx := context.Background()
	want := &repayment.Record{
		EntityID:   "entity-2",
		EntityName: "Repayment",
		PaymentID:  "pay_def",
		UpdatedAt:  time.Date(2026, 2, 3, 4, 5, 6, 0, time.UTC),
	}
	require.NoError(t, store.Put(ctx, want))

	got, err := store.Get(ctx, "entity-2")
	require.NoError(t, err)
	assert.Equal(t, want, got)
	assert.Nil(t, got.RankingHint)
	assert.Nil(t, got.IsPublicData)
}

func testRepaymentReplace(t *testing.T, store repayment.Store) {
	ctx := context.Background()
	require.NoError(t, store.Put(ctx, FullRecord("entity-3")))
	next := FullRecord("entity-3")
	next.DisplayName = "Renamed"
	next.Keywords = []string{}
	next.PaymentID = "pay_xyz"
	require.NoError(t, store.Put(ctx, next))

	got, err := store.Get(ctx, "entity-3")
	require.NoError(t, err)
	assert.Equal(t, "Renamed", got.DisplayName)
	assert.Equal(t, "pay_xyz", got.PaymentID)
	assert.Empty(t, got.Keywords)
}

func testRepaymentNotExist(t *testing.T, store repayment.Store) {
	_, err := store.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, storage.ErrNotExist)
}

func testRepaymentIsolation(t *testing.T, store repayment.Store) {
	ctx := context.Background()
	rec := FullRecord("entity-4")
	require.NoError(t, store.Put(ctx, rec))
	rec.Keywords[0] = "changed"
	*rec.RankingHint = 1

	got, err := store.Get(ctx, "entity-4")
	require.NoError(t, err)
	assert.Equal(t, "loan", got.Keywords[0])
	assert.Equal(t, 42.5, *got.RankingHint)

	got.Extras["channel"] = "changed"
	again, err := store.Get(ctx, "entity-4")
	require.NoError(t, err)
	assert.Equal(t, "web", again.Extras["channel"])
}
