package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/bnema/imgbatch/internal/domain"
	"github.com/bnema/imgbatch/internal/port"
)

type StatusStoreMock struct {
	mock.Mock
}

func NewStatusStoreMock(t interface {
	mock.TestingT
	Cleanup(func())
}) *StatusStoreMock {
	m := &StatusStoreMock{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *StatusStoreMock) Persist(ctx context.Context, rec *domain.EntityRecord) error {
	args := m.Called(ctx, rec)
	return args.Error(0)
}

func (m *StatusStoreMock) Query(ctx context.Context, requestID string) ([]*domain.EntityRecord, error) {
	args := m.Called(ctx, requestID)
	recs, _ := args.Get(0).([]*domain.EntityRecord)
	return recs, args.Error(1)
}

func (m *StatusStoreMock) DeleteExpired(ctx context.Context, cutoff time.Time) (int, error) {
	args := m.Called(ctx, cutoff)
	return args.Int(0), args.Error(1)
}

func (m *StatusStoreMock) Close() error {
	args := m.Called()
	return args.Error(0)
}

var _ port.StatusStore = (*StatusStoreMock)(nil)
