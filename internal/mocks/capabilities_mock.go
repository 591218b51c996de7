package mocks

import (
	"context"

	"storybook-server/internal/model"
	"storybook-server/internal/service"

	"github.com/stretchr/testify/mock"
)

type testingT interface {
	mock.TestingT
	Cleanup(func())
}

// MockStoryRewriter is a mock type for the StoryRewriter type
type MockStoryRewriter struct {
	mock.Mock
}

// RewriteStory provides a mock function with given fields: ctx, text, age, learningThemes
func (_m *MockStoryRewriter) RewriteStory(ctx context.Context, text string, age int, learningThemes string) (string, error) {
	ret := _m.Called(ctx, text, age, learningThemes)
	if rf, ok := ret.Get(0).(func(context.Context, string, int, string) (string, error)); ok {
		return rf(ctx, text, age, learningThemes)
	}
	return ret.String(0), ret.Error(1)
}

func NewMockStoryRewriter(t testingT) *MockStoryRewriter {
	m := &MockStoryRewriter{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

var _ service.StoryRewriter = (*MockStoryRewriter)(nil)

// MockImageGenerator is a mock type for the ImageGenerator type
type MockImageGenerator struct {
	mock.Mock
}

// GenerateImage provides a mock function with given fields: ctx, prompt
func (_m *MockImageGenerator) GenerateImage(ctx context.Context, prompt service.ImagePrompt) (service.ImageOutput, error) {
	ret := _m.Called(ctx, prompt)
	if rf, ok := ret.Get(0).(func(context.Context, service.ImagePrompt) (service.ImageOutput, error)); ok {
		return rf(ctx, prompt)
	}
	var r0 service.ImageOutput
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(service.ImageOutput)
	}
	return r0, ret.Error(1)
}

func NewMockImageGenerator(t testingT) *MockImageGenerator {
	m := &MockImageGenerator{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

var _ service.ImageGenerator = (*MockImageGenerator)(nil)

// MockImageVerifier is a mock type for the ImageVerifier type
type MockImageVerifier struct {
	mock.Mock
}

// VerifyImageFit provides a mock function with given fields: ctx, imageURI, pageText, age, styleHint
func (_m *MockImageVerifier) VerifyImageFit(ctx context.Context, imageURI string, pageText string, age int, styleHint string) (bool, error) {
	ret := _m.Called(ctx, imageURI, pageText, age, styleHint)
	if rf, ok := ret.Get(0).(func(context.Context, string, string, int, string) (bool, error)); ok {
		return rf(ctx, imageURI, pageText, age, styleHint)
	}
	return ret.Bool(0), ret.Error(1)
}

func NewMockImageVerifier(t testingT) *MockImageVerifier {
	m := &MockImageVerifier{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

var _ service.ImageVerifier = (*MockImageVerifier)(nil)

// MockDialogueGenerator is a mock type for the DialogueGenerator type
type MockDialogueGenerator struct {
	mock.Mock
}

// TransformDialogue provides a mock function with given fields: ctx, pageText, age
func (_m *MockDialogueGenerator) TransformDialogue(ctx context.Context, pageText string, age int) (string, error) {
	ret := _m.Called(ctx, pageText, age)
	if rf, ok := ret.Get(0).(func(context.Context, string, int) (string, error)); ok {
		return rf(ctx, pageText, age)
	}
	return ret.String(0), ret.Error(1)
}

func NewMockDialogueGenerator(t testingT) *MockDialogueGenerator {
	m := &MockDialogueGenerator{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

var _ service.DialogueGenerator = (*MockDialogueGenerator)(nil)

// MockSpeechSynthesizer is a mock type for the SpeechSynthesizer type
type MockSpeechSynthesizer struct {
	mock.Mock
}

// SynthesizeSpeech provides a mock function with given fields: ctx, script, voice, age
func (_m *MockSpeechSynthesizer) SynthesizeSpeech(ctx context.Context, script string, voice model.VoiceProfile, age int) (string, error) {
	ret := _m.Called(ctx, script, voice, age)
	if rf, ok := ret.Get(0).(func(context.Context, string, model.VoiceProfile, int) (string, error)); ok {
		return rf(ctx, script, voice, age)
	}
	return ret.String(0), ret.Error(1)
}

func NewMockSpeechSynthesizer(t testingT) *MockSpeechSynthesizer {
	m := &MockSpeechSynthesizer{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

var _ service.SpeechSynthesizer = (*MockSpeechSynthesizer)(nil)

// MockAnimator is a mock type for the Animator type
type MockAnimator struct {
	mock.Mock
}

// SynthesizeAnimation provides a mock function with given fields: ctx, imageURI, pageText, age
func (_m *MockAnimator) SynthesizeAnimation(ctx context.Context, imageURI string, pageText string, age int) (string, error) {
	ret := _m.Called(ctx, imageURI, pageText, age)
	if rf, ok := ret.Get(0).(func(context.Context, string, string, int) (string, error)); ok {
		return rf(ctx, imageURI, pageText, age)
	}
	return ret.String(0), ret.Error(1)
}

func NewMockAnimator(t testingT) *MockAnimator {
	m := &MockAnimator{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

var _ service.Animator = (*MockAnimator)(nil)
