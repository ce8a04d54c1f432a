package test

import (
	"context"

	"github.com/inbucket/courier/pkg/repayment"
	"github.com/stretchr/testify/mock"
)

// RepaymentMock is a testify mock of repayment.Manager.
type RepaymentMock struct {
	mock.Mock
}

var _ repayment.Manager = &RepaymentMock{}

// Pay mock function.
func (m *RepaymentMock) Pay(ctx context.Context, req repayment.Request) (*repayment.Result, error) {
	args := m.Called(ctx, req)
	r, _ := args.Get(0).(*repayment.Result)
	return r, args.Error(1)
}

// Get mock function.
func (m *RepaymentMock) Get(ctx context.Context, entityID string) (*repayment.Record, error) {
	args := m.Called(ctx, entityID)
	r, _ := args.Get(0).(*repayment.Record)
	return r, args.Error(1)
}
