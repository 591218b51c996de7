package model_test

import (
	"encoding/json"
	"testing"
	"time"

	"storybook-server/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStage_CanAdvanceTo(t *testing.T) {
	order := []model.Stage{
		model.StageInitial,
		model.StageStoryRewritten,
		model.StagePagesImaged,
		model.StagePagesVoiced,
		model.StagePagesAnimated,
		model.StageComplete,
	}

	for i := 0; i < len(order)-1; i++ {
		assert.True(t, order[i].CanAdvanceTo(order[i+1]), "%s -> %s", order[i], order[i+1])
		assert.False(t, order[i+1].CanAdvanceTo(order[i]), "backwards %s -> %s", order[i+1], order[i])
	}

	t.Run("no skipping", func(t *testing.T) {
		assert.False(t, model.StageInitial.CanAdvanceTo(model.StagePagesImaged))
		assert.False(t, model.StageStoryRewritten.CanAdvanceTo(model.StageComplete))
	})

	t.Run("failed only from initial", func(t *testing.T) {
		assert.True(t, model.StageInitial.CanAdvanceTo(model.StageFailed))
		assert.False(t, model.StagePagesImaged.CanAdvanceTo(model.StageFailed))
		assert.False(t, model.StageFailed.CanAdvanceTo(model.StageComplete))
	})

	t.Run("complete is terminal", func(t *testing.T) {
		_, ok := model.StageComplete.Next()
		assert.False(t, ok)
		assert.True(t, model.StageComplete.IsTerminal())
		assert.True(t, model.StageFailed.IsTerminal())
		assert.False(t, model.StagePagesVoiced.IsTerminal())
	})
}

func TestStage_JSON(t *testing.T) {
	data, err := json.Marshal(model.StagePagesVoiced)
	require.NoError(t, err)
	assert.JSONEq(t, `"pages_voiced"`, string(data))

	var st model.Stage
	require.NoError(t, json.Unmarshal([]byte(`"complete"`), &st))
	assert.Equal(t, model.StageComplete, st)

	assert.ErrorIs(t, json.Unmarshal([]byte(`"published"`), &st), model.ErrInvalidInput)
}

func TestPipelineRun_Lifecycle(t *testing.T) {
	now := time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)
	run := model.NewPipelineRun("run-1", model.GenerationRequest{UserID: "u1"}, now)

	require.ErrorIs(t, run.SetPages([]model.PageDraft{{Index: 1, Text: "a"}}), model.ErrInvalidStageTransition)

	require.NoError(t, run.Advance(model.StageStoryRewritten))
	require.NoError(t, run.SetPages([]model.PageDraft{{Index: 1, Text: "a"}, {Index: 2, Text: "b"}}))
	require.ErrorIs(t, run.SetPages(nil), model.ErrInvalidStageTransition, "pages are fixed once set")
	require.Len(t, run.Pages, 2)
	assert.True(t, run.Pages[1].Flags.ImagePending)

	require.ErrorIs(t, run.Advance(model.StagePagesVoiced), model.ErrInvalidStageTransition)
	require.ErrorIs(t, run.HandOff(now), model.ErrInvalidStageTransition)

	assert.Equal(t, 30, run.RaiseProgress(30))
	assert.Equal(t, 30, run.RaiseProgress(20), "progress never decreases")

	for _, st := range []model.Stage{model.StagePagesImaged, model.StagePagesVoiced, model.StagePagesAnimated, model.StageComplete} {
		require.NoError(t, run.Advance(st))
	}
	assert.Equal(t, 100, run.RaiseProgress(250))

	require.NoError(t, run.HandOff(now.Add(time.Minute)))
	assert.True(t, run.HandedOff())
	assert.ErrorIs(t, run.HandOff(now), model.ErrRunHandedOff)
	assert.ErrorIs(t, run.Advance(model.StageFailed), model.ErrRunHandedOff)
	require.NotNil(t, run.CompletedAt)
}

func TestPipelineRun_Fail(t *testing.T) {
	now := time.Now()
	run := model.NewPipelineRun("run-2", model.GenerationRequest{}, now)
	require.NoError(t, run.Fail("rewrite returned error text", now))
	stage, _ := run.Snapshot()
	assert.Equal(t, model.StageFailed, stage)
	assert.Equal(t, "rewrite returned error text", run.FailureReason)

	rewritten := model.NewPipelineRun("run-3", model.GenerationRequest{}, now)
	require.NoError(t, rewritten.Advance(model.StageStoryRewritten))
	assert.ErrorIs(t, rewritten.Fail("late", now), model.ErrInvalidStageTransition)
}
