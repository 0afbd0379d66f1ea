package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/yeisme/arca/pkg/internal/remote"
)

type MockSource struct {
	mock.Mock
}

func (m *MockSource) ListPage(ctx context.Context, folder, pageToken string) (remote.Page, error) {
	args := m.Called(ctx, folder, pageToken)
	return args.Get(0).(remote.Page), args.Error(1)
}

func (m *MockSource) Open(ctx context.Context, id string) (*remote.Stream, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*remote.Stream), args.Error(1)
}
