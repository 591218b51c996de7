package mocks

import (
	"context"

	"storybook-server/internal/service"

	"github.com/stretchr/testify/mock"
)

// MockAIClient is a mock type for the AIClient type
type MockAIClient struct {
	mock.Mock
}

// GenerateText provides a mock function with given fields: ctx, operation, systemPrompt, userInput, params
func (_m *MockAIClient) GenerateText(ctx context.Context, operation string, systemPrompt string, userInput string, params service.GenerationParams) (string, service.UsageInfo, error) {
	ret := _m.Called(ctx, operation, systemPrompt, userInput, params)

	var r0 string
	if rf, ok := ret.Get(0).(func(context.Context, string, string, string, service.GenerationParams) string); ok {
		r0 = rf(ctx, operation, systemPrompt, userInput, params)
	} else {
		r0 = ret.String(0)
	}

	var r1 service.UsageInfo
	if ret.Get(1) != nil {
		r1 = ret.Get(1).(service.UsageInfo)
	}

	return r0, r1, ret.Error(2)
}

// GenerateTextWithImages provides a mock function with given fields: ctx, operation, systemPrompt, userInput, images, params
func (_m *MockAIClient) GenerateTextWithImages(ctx context.Context, operation string, systemPrompt string, userInput string, images []string, params service.GenerationParams) (string, service.UsageInfo, error) {
	ret := _m.Called(ctx, operation, systemPrompt, userInput, images, params)

	var r0 string
	if rf, ok := ret.Get(0).(func(context.Context, string, string, string, []string, service.GenerationParams) string); ok {
		r0 = rf(ctx, operation, systemPrompt, userInput, images, params)
	} else {
		r0 = ret.String(0)
	}

	var r1 service.UsageInfo
	if ret.Get(1) != nil {
		r1 = ret.Get(1).(service.UsageInfo)
	}

	return r0, r1, ret.Error(2)
}

// NewMockAIClient creates a new instance of MockAIClient. It also registers a testing interface on the mock and a cleanup function to assert the mocks expectations.
// The first argument is typically a *testing.T value.
func NewMockAIClient(t testingT) *MockAIClient {
	m := &MockAIClient{}
	m.Mock.Test(t)

	t.Cleanup(func() { m.AssertExpectations(t) })

	return m
}

var _ service.AIClient = (*MockAIClient)(nil)
