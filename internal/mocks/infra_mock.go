package mocks

import (
	"context"

	"storybook-server/internal/model"
	"storybook-server/internal/repository"

	"github.com/stretchr/testify/mock"
)

// MockStorybookRepository is a mock type for the StorybookRepository type
type MockStorybookRepository struct {
	mock.Mock
}

// Save provides a mock function with given fields: ctx, sb
func (_m *MockStorybookRepository) Save(ctx context.Context, sb *model.Storybook) error {
	ret := _m.Called(ctx, sb)
	if rf, ok := ret.Get(0).(func(context.Context, *model.Storybook) error); ok {
		return rf(ctx, sb)
	}
	return ret.Error(0)
}

// GetByID provides a mock function with given fields: ctx, id
func (_m *MockStorybookRepository) GetByID(ctx context.Context, id string) (*model.Storybook, error) {
	ret := _m.Called(ctx, id)
	var r0 *model.Storybook
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(*model.Storybook)
	}
	return r0, ret.Error(1)
}

// ListByUser provides a mock function with given fields: ctx, userID, limit, offset
func (_m *MockStorybookRepository) ListByUser(ctx context.Context, userID string, limit int, offset int) ([]*model.Storybook, error) {
	ret := _m.Called(ctx, userID, limit, offset)
	var r0 []*model.Storybook
	if ret.Get(0) != nil {
		r0 = ret.Get(0).([]*model.Storybook)
	}
	return r0, ret.Error(1)
}

func NewMockStorybookRepository(t testingT) *MockStorybookRepository {
	m := &MockStorybookRepository{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

var _ repository.StorybookRepository = (*MockStorybookRepository)(nil)

// MockStatusStore is a mock type for the status Store
type MockStatusStore struct {
	mock.Mock
}

// Put provides a mock function with given fields: ctx, update
func (_m *MockStatusStore) Put(ctx context.Context, update model.ProgressUpdate) error {
	ret := _m.Called(ctx, update)
	return ret.Error(0)
}

// Get provides a mock function with given fields: ctx, storybookID
func (_m *MockStatusStore) Get(ctx context.Context, storybookID string) (*model.ProgressUpdate, error) {
	ret := _m.Called(ctx, storybookID)
	var r0 *model.ProgressUpdate
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(*model.ProgressUpdate)
	}
	return r0, ret.Error(1)
}

// Subscribe provides a mock function with given fields: ctx, storybookID
func (_m *MockStatusStore) Subscribe(ctx context.Context, storybookID string) (<-chan model.ProgressUpdate, error) {
	ret := _m.Called(ctx, storybookID)
	var r0 <-chan model.ProgressUpdate
	switch v := ret.Get(0).(type) {
	case chan model.ProgressUpdate:
		r0 = v
	case <-chan model.ProgressUpdate:
		r0 = v
	}
	return r0, ret.Error(1)
}

func NewMockStatusStore(t testingT) *MockStatusStore {
	m := &MockStatusStore{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

// MockNotifier is a mock type for the Notifier type
type MockNotifier struct {
	mock.Mock
}

// Notify provides a mock function with given fields: ctx, payload
func (_m *MockNotifier) Notify(ctx context.Context, payload model.NotificationPayload) error {
	ret := _m.Called(ctx, payload)
	return ret.Error(0)
}

func NewMockNotifier(t testingT) *MockNotifier {
	m := &MockNotifier{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

// MockTaskPublisher is a mock type for the TaskPublisher type
type MockTaskPublisher struct {
	mock.Mock
}

// PublishTask provides a mock function with given fields: ctx, payload
func (_m *MockTaskPublisher) PublishTask(ctx context.Context, payload model.GenerationTaskPayload) error {
	ret := _m.Called(ctx, payload)
	return ret.Error(0)
}

func NewMockTaskPublisher(t testingT) *MockTaskPublisher {
	m := &MockTaskPublisher{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

// MockRunner is a mock type for the Runner type
type MockRunner struct {
	mock.Mock
}

// Run provides a mock function with given fields: ctx, runID, req
func (_m *MockRunner) Run(ctx context.Context, runID string, req model.GenerationRequest) (*model.PipelineRun, error) {
	ret := _m.Called(ctx, runID, req)
	if rf, ok := ret.Get(0).(func(context.Context, string, model.GenerationRequest) (*model.PipelineRun, error)); ok {
		return rf(ctx, runID, req)
	}
	var r0 *model.PipelineRun
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(*model.PipelineRun)
	}
	return r0, ret.Error(1)
}

func NewMockRunner(t testingT) *MockRunner {
	m := &MockRunner{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}
