package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/bnema/imgbatch/internal/domain"
	"github.com/bnema/imgbatch/internal/port"
)

type ReportWriterMock struct {
	mock.Mock
}

func NewReportWriterMock(t interface {
	mock.TestingT
	Cleanup(func())
}) *ReportWriterMock {
	m := &ReportWriterMock{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *ReportWriterMock) Write(ctx context.Context, requestID string, rows []domain.OutputRow) (string, error) {
	args := m.Called(ctx, requestID, rows)
	return args.String(0), args.Error(1)
}

func (m *ReportWriterMock) Path(requestID string) string {
	args := m.Called(requestID)
	return args.String(0)
}

func (m *ReportWriterMock) Dir() string {
	args := m.Called()
	return args.String(0)
}

type NotifierMock struct {
	mock.Mock
}

func NewNotifierMock(t interface {
	mock.TestingT
	Cleanup(func())
}) *NotifierMock {
	m := &NotifierMock{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *NotifierMock) Notify(ctx context.Context, endpoint, requestID string, status domain.JobStatus) error {
	args := m.Called(ctx, endpoint, requestID, status)
	return args.Error(0)
}

var (
	_ port.ReportWriter = (*ReportWriterMock)(nil)
	_ port.Notifier     = (*NotifierMock)(nil)
)
