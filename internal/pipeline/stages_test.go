package pipeline_test

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"testing"
	"time"

	"storybook-server/internal/mocks"
	"storybook-server/internal/model"
	"storybook-server/internal/pipeline"
	"storybook-server/internal/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func pngURI(tag string) string {
	return model.EncodeDataURI("image/png", []byte("png-"+tag))
}

func promptFor(fragment string) interface{} {
	return mock.MatchedBy(func(p service.ImagePrompt) bool { return strings.Contains(p.Text, fragment) })
}

func TestImageSynthesizer_Chaining(t *testing.T) {
	gen := mocks.NewMockImageGenerator(t)
	ver := mocks.NewMockImageVerifier(t)
	pages := []model.PageDraft{{Index: 1, Text: "Fox wakes."}, {Index: 2, Text: "Fox runs."}, {Index: 3, Text: "Fox sleeps."}}
	style := "Soft watercolor"

	var prompts []service.ImagePrompt
	gen.On("GenerateImage", mock.Anything, mock.Anything).Return(func(_ context.Context, p service.ImagePrompt) (service.ImageOutput, error) {
		prompts = append(prompts, p)
		return service.ImageOutput{DataURI: pngURI(strconv.Itoa(len(prompts)))}, nil
	}).Times(3)
	ver.On("VerifyImageFit", mock.Anything, mock.Anything, mock.Anything, 6, style).Return(true, nil).Times(3)

	synth := pipeline.NewImageSynthesizer(gen, ver, time.Second, time.Second, zap.NewNop())
	out := synth.Synthesize(context.Background(), pages, 6, style)

	require.Len(t, out, 3)
	require.Len(t, prompts, 3)
	assert.True(t, strings.HasPrefix(prompts[0].Text, "Soft watercolor. "))
	assert.Empty(t, prompts[0].ReferenceImage)
	for i := 1; i < 3; i++ {
		assert.Equal(t, out[i-1].ImageURI, prompts[i].ReferenceImage, "page %d must reference page %d", i+1, i)
		assert.NotContains(t, prompts[i].Text, style)
		assert.True(t, out[i].Chained)
	}
	for _, o := range out {
		assert.NotEmpty(t, o.ImageURI)
		assert.True(t, o.Approved)
	}
}

func TestImageSynthesizer_FailureBreaksChain(t *testing.T) {
	gen := mocks.NewMockImageGenerator(t)
	ver := mocks.NewMockImageVerifier(t)
	pages := []model.PageDraft{{Index: 1, Text: "Fox wakes."}, {Index: 2, Text: "Fox runs."}, {Index: 3, Text: "Fox sleeps."}}

	gen.On("GenerateImage", mock.Anything, promptFor("Fox wakes.")).Return(service.ImageOutput{DataURI: pngURI("1")}, nil).Once()
	gen.On("GenerateImage", mock.Anything, promptFor("Fox runs.")).Return(service.ImageOutput{}, errors.New("content filter")).Once()
	gen.On("GenerateImage", mock.Anything, mock.MatchedBy(func(p service.ImagePrompt) bool {
		return strings.Contains(p.Text, "Fox sleeps.") && p.ReferenceImage == "" && strings.HasPrefix(p.Text, "Cartoon. ")
	})).Return(service.ImageOutput{DataURI: pngURI("3")}, nil).Once()
	ver.On("VerifyImageFit", mock.Anything, pngURI("1"), "Fox wakes.", 4, "Cartoon").Return(true, nil).Once()
	ver.On("VerifyImageFit", mock.Anything, pngURI("3"), "Fox sleeps.", 4, "Cartoon").Return(false, errors.New("vision down")).Once()

	out := pipeline.NewImageSynthesizer(gen, ver, time.Second, time.Second, zap.NewNop()).
		Synthesize(context.Background(), pages, 4, "Cartoon")

	assert.Equal(t, pngURI("1"), out[0].ImageURI)
	assert.True(t, out[0].Approved)
	assert.Empty(t, out[1].ImageURI)
	assert.False(t, out[1].Approved)
	assert.Equal(t, pngURI("3"), out[2].ImageURI)
	assert.False(t, out[2].Chained)
	assert.False(t, out[2].Approved, "verifier error fails closed")
}

func TestImageSynthesizer_InvalidOrPanickingGenerator(t *testing.T) {
	gen := mocks.NewMockImageGenerator(t)
	ver := mocks.NewMockImageVerifier(t)
	synth := pipeline.NewImageSynthesizer(gen, ver, time.Second, time.Second, zap.NewNop())

	gen.On("GenerateImage", mock.Anything, promptFor("placeholder page")).
		Return(service.ImageOutput{DataURI: "data:image/png;base64,placeholder-image"}, nil).Once()
	out := synth.SynthesizePage(context.Background(), model.PageDraft{Index: 1, Text: "placeholder page"}, "", 5, "")
	assert.Empty(t, out.ImageURI)

	gen.On("GenerateImage", mock.Anything, promptFor("panic page")).
		Return(func(context.Context, service.ImagePrompt) (service.ImageOutput, error) { panic("nil map") }).Once()
	out = synth.SynthesizePage(context.Background(), model.PageDraft{Index: 2, Text: "panic page"}, "", 5, "")
	assert.Empty(t, out.ImageURI)

	ver.AssertNotCalled(t, "VerifyImageFit", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestImageSynthesizer_Timeout(t *testing.T) {
	gen := mocks.NewMockImageGenerator(t)
	ver := mocks.NewMockImageVerifier(t)
	gen.On("GenerateImage", mock.Anything, mock.Anything).Return(func(ctx context.Context, _ service.ImagePrompt) (service.ImageOutput, error) {
		<-ctx.Done()
		return service.ImageOutput{}, ctx.Err()
	}).Once()

	start := time.Now()
	out := pipeline.NewImageSynthesizer(gen, ver, 20*time.Millisecond, time.Second, zap.NewNop()).
		SynthesizePage(context.Background(), model.PageDraft{Index: 1, Text: "slow"}, "", 5, "")
	assert.Empty(t, out.ImageURI)
	assert.Less(t, time.Since(start), time.Second)
}

func TestScenePrompts(t *testing.T) {
	p := pipeline.NewScenePrompt("A fox.", 7, "  Bright crayons.  ")
	assert.True(t, strings.HasPrefix(p, "Bright crayons. A children's storybook illustration"))
	assert.Contains(t, p, "7-year-old")
	assert.Contains(t, p, "DO NOT include any text")

	assert.True(t, strings.HasPrefix(pipeline.NewScenePrompt("A fox.", 7, ""), "A children's storybook illustration"))

	c := pipeline.ContinuationPrompt("A fox.", 7)
	assert.Contains(t, c, "previous image")
	assert.Contains(t, c, `"A fox."`)
}

func TestIsWellFormedScript(t *testing.T) {
	cases := map[string]bool{
		"Narrator: Once upon a time.":                 true,
		"Narrator: Hi.\n\nFox: Hello!\nCharacter: Hm.": true,
		"":                             false,
		"   \n  ":                      false,
		"Narrator: ok\njust prose":     false,
		"Narrator:":                    false,
		": nothing":                    false,
		strings.Repeat("x", 41) + ": too long speaker": false,
		strings.Repeat("x", 40) + ": fine":             true,
	}
	for script, want := range cases {
		assert.Equal(t, want, pipeline.IsWellFormedScript(script), "%q", script)
	}
}

func TestDialogueTransformer(t *testing.T) {
	t.Run("accepts well formed", func(t *testing.T) {
		gen := mocks.NewMockDialogueGenerator(t)
		gen.On("TransformDialogue", mock.Anything, "Fox said hi.", 5).Return("Narrator: Fox spoke.\nFox: Hi!\n", nil).Once()
		d := pipeline.NewDialogueTransformer(gen, time.Second, zap.NewNop())
		assert.Equal(t, "Narrator: Fox spoke.\nFox: Hi!", d.ToDialogue(context.Background(), "Fox said hi.", 5))
	})

	fallbackCases := map[string]func(*mocks.MockDialogueGenerator){
		"error": func(g *mocks.MockDialogueGenerator) {
			g.On("TransformDialogue", mock.Anything, mock.Anything, mock.Anything).Return("", errors.New("500")).Once()
		},
		"malformed": func(g *mocks.MockDialogueGenerator) {
			g.On("TransformDialogue", mock.Anything, mock.Anything, mock.Anything).Return("Here is your script!", nil).Once()
		},
		"timeout": func(g *mocks.MockDialogueGenerator) {
			g.On("TransformDialogue", mock.Anything, mock.Anything, mock.Anything).
				Return(func(ctx context.Context, _ string, _ int) (string, error) {
					<-ctx.Done()
					return "", ctx.Err()
				}).Once()
		},
	}
	for name, setup := range fallbackCases {
		t.Run("fallback on "+name, func(t *testing.T) {
			gen := mocks.NewMockDialogueGenerator(t)
			setup(gen)
			d := pipeline.NewDialogueTransformer(gen, 20*time.Millisecond, zap.NewNop())
			assert.Equal(t, "Narrator: The owl hooted.", d.ToDialogue(context.Background(), "The owl hooted.", 5))
		})
	}
}

func TestVoiceSynthesizer(t *testing.T) {
	wav := model.EncodeDataURI("audio/wav", []byte("RIFF"))
	cases := []struct {
		name     string
		ret      interface{}
		err      error
		wantKind model.MediaKind
	}{
		{name: "ok", ret: wav, wantKind: model.MediaOK},
		{name: "empty", ret: "", wantKind: model.MediaUnavailable},
		{name: "placeholder", ret: "data:audio/wav;base64,placeholder-audio-generation-failed-no-url", wantKind: model.MediaUnavailable},
		{name: "image instead of audio", ret: pngURI("x"), wantKind: model.MediaUnavailable},
		{name: "call error", ret: "", err: errors.New("connection reset"), wantKind: model.MediaFailed},
		{name: "panic", ret: func(context.Context, string, model.VoiceProfile, int) (string, error) { panic("boom") }, wantKind: model.MediaFailed},
		{name: "timeout", ret: func(ctx context.Context, _ string, _ model.VoiceProfile, _ int) (string, error) {
			<-ctx.Done()
			return "", ctx.Err()
		}, wantKind: model.MediaUnavailable},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			synth := mocks.NewMockSpeechSynthesizer(t)
			call := synth.On("SynthesizeSpeech", mock.Anything, "Narrator: Hi.", model.VoiceFemale, 6)
			if _, plain := tc.ret.(string); plain {
				call.Return(tc.ret, tc.err).Once()
			} else {
				call.Return(tc.ret).Once()
			}

			v := pipeline.NewVoiceSynthesizer(synth, 20*time.Millisecond, zap.NewNop())
			res := v.SynthesizeVoice(context.Background(), "Narrator: Hi.", model.VoiceFemale, 6)
			assert.Equal(t, tc.wantKind, res.Kind)
			if tc.wantKind == model.MediaOK {
				assert.Equal(t, wav, res.Value)
			} else {
				assert.Empty(t, res.Value)
				assert.NotEmpty(t, res.Reason)
			}
		})
	}
}

func TestAnimationStage(t *testing.T) {
	gifURI := model.EncodeDataURI("image/gif", []byte("GIF89a"))

	t.Run("skips pages without image", func(t *testing.T) {
		animator := mocks.NewMockAnimator(t)
		res := pipeline.NewAnimationStage(animator, time.Second, zap.NewNop()).Animate(context.Background(), "", "text", 5)
		assert.Equal(t, model.MediaUnavailable, res.Kind)
		assert.Equal(t, pipeline.ReasonNoImage, res.Reason)
		animator.AssertNotCalled(t, "SynthesizeAnimation", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("ok", func(t *testing.T) {
		animator := mocks.NewMockAnimator(t)
		animator.On("SynthesizeAnimation", mock.Anything, pngURI("1"), "text", 5).Return(gifURI, nil).Once()
		res := pipeline.NewAnimationStage(animator, time.Second, zap.NewNop()).Animate(context.Background(), pngURI("1"), "text", 5)
		assert.True(t, res.OK())
		assert.Equal(t, gifURI, res.Value)
	})

	t.Run("still image is not an animation", func(t *testing.T) {
		animator := mocks.NewMockAnimator(t)
		animator.On("SynthesizeAnimation", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(pngURI("2"), nil).Once()
		res := pipeline.NewAnimationStage(animator, time.Second, zap.NewNop()).Animate(context.Background(), pngURI("1"), "text", 5)
		assert.Equal(t, model.MediaUnavailable, res.Kind)
	})

	t.Run("error is hard failure", func(t *testing.T) {
		animator := mocks.NewMockAnimator(t)
		animator.On("SynthesizeAnimation", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return("", errors.New("decode")).Once()
		res := pipeline.NewAnimationStage(animator, time.Second, zap.NewNop()).Animate(context.Background(), pngURI("1"), "text", 5)
		assert.True(t, res.Retryable())
	})
}
