package storage

import (
	"context"

	"github.com/stretchr/testify/mock"
)

// MockStorage implements the Storage interface for testing
type MockStorage struct {
	mock.Mock
}

// GetObject implements the Storage interface
func (m *MockStorage) GetObject(ctx context.Context, userID, objectID string) (*CalendarObject, error) {
	args := m.Called(ctx, userID, objectID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*CalendarObject), args.Error(1)
}

// UpdateObject implements the Storage interface
func (m *MockStorage) UpdateObject(ctx context.Context, obj *CalendarObject) (string, error) {
	args := m.Called(ctx, obj)
	return args.String(0), args.Error(1)
}
