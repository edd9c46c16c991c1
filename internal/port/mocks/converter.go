package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/bnema/imgbatch/internal/port"
)

type ImageFetcherMock struct {
	mock.Mock
}

func NewImageFetcherMock(t interface {
	mock.TestingT
	Cleanup(func())
}) *ImageFetcherMock {
	m := &ImageFetcherMock{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *ImageFetcherMock) Fetch(ctx context.Context, url string) ([]byte, error) {
	args := m.Called(ctx, url)
	data, _ := args.Get(0).([]byte)
	return data, args.Error(1)
}

type ImageCompressorMock struct {
	mock.Mock
}

func NewImageCompressorMock(t interface {
	mock.TestingT
	Cleanup(func())
}) *ImageCompressorMock {
	m := &ImageCompressorMock{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *ImageCompressorMock) Compress(data []byte, scratchName string) ([]byte, error) {
	args := m.Called(data, scratchName)
	out, _ := args.Get(0).([]byte)
	return out, args.Error(1)
}

type ImageHostMock struct {
	mock.Mock
}

func NewImageHostMock(t interface {
	mock.TestingT
	Cleanup(func())
}) *ImageHostMock {
	m := &ImageHostMock{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *ImageHostMock) Upload(ctx context.Context, data []byte) (string, error) {
	args := m.Called(ctx, data)
	return args.String(0), args.Error(1)
}

var (
	_ port.ImageFetcher    = (*ImageFetcherMock)(nil)
	_ port.ImageCompressor = (*ImageCompressorMock)(nil)
	_ port.ImageHost       = (*ImageHostMock)(nil)
)
