package payload

import (
	"testing"

	"ugc-forge/app/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func issueFields(t *testing.T, err error) []string {
	t.Helper()
	ve, ok := AsValidationError(err)
	require.True(t, ok, "expected a validation error, got %v", err)
	fields := make([]string, 0, len(ve.Issues))
	for _, i := range ve.Issues {
		fields = append(fields, i.Field)
	}
	return fields
}

func TestClassify(t *testing.T) {
	assert.Equal(t, KindPipelineStage, Classify("pipeline_voice"))
	assert.Equal(t, KindContent, Classify("lipsync"))
	assert.Equal(t, KindContent, Classify(""))
	assert.Equal(t, KindContent, Classify("voice_pipeline"))
}

func TestParseContentUpdate(t *testing.T) {
	n, err := Parse([]byte(`{"file_id":"f1","status":"completed","progress":100,"download_url":"https://x/y.mp4","metadata":{"pipeline_id":"p1"}}`))
	require.NoError(t, err)

	require.Equal(t, KindContent, n.Kind)
	require.NotNil(t, n.Content)
	assert.Nil(t, n.Pipeline)
	assert.Equal(t, "f1", n.Content.FileID)
	assert.Equal(t, "completed", n.Content.EffectiveStatus())
	assert.Equal(t, 100, *n.Content.Progress)
	assert.Equal(t, "https://x/y.mp4", n.Content.DownloadURL)
	assert.Equal(t, "p1", n.Content.Metadata["pipeline_id"])
}

func TestGenerationStatusWinsOverStatus(t *testing.T) {
	n, err := Parse([]byte(`{"type":"talking_head","file_id":"f1","status":"processing","generation_status":"failed"}`))
	require.NoError(t, err)
	assert.Equal(t, "failed", n.Content.EffectiveStatus())

	n, err = Parse([]byte(`{"file_id":"f1","generation_status":"completed"}`))
	require.NoError(t, err)
	assert.Equal(t, "completed", n.Content.EffectiveStatus())
}

func TestParseContentUpdateRejectsInvalidFields(t *testing.T) {
	_, err := Parse([]byte(`{"status":"done","progress":140,"download_url":"ftp://x/y","credits_cost":0}`))
	fields := issueFields(t, err)

	assert.ElementsMatch(t, []string{"file_id", "status", "progress", "download_url", "credits_cost"}, fields)
}

func TestParseContentUpdateRequiresStatus(t *testing.T) {
	_, err := Parse([]byte(`{"file_id":"f1"}`))
	assert.Equal(t, []string{"status"}, issueFields(t, err))
}

func TestParseRejectsWrongJSONTypes(t *testing.T) {
	_, err := Parse([]byte(`{"file_id":"f1","status":"processing","progress":"half"}`))
	assert.Equal(t, []string{"progress"}, issueFields(t, err))

	_, err = Parse([]byte(`{"type":7,"file_id":"f1"}`))
	assert.Equal(t, []string{"type"}, issueFields(t, err))

	_, err = Parse([]byte(`[1,2]`))
	assert.Equal(t, []string{"body"}, issueFields(t, err))

	_, err = Parse([]byte(`{"file_id":`))
	assert.Equal(t, []string{"body"}, issueFields(t, err))
}

func TestParsePipelineStageUpdate(t *testing.T) {
	n, err := Parse([]byte(`{"type":"pipeline_voice","pipeline_id":"p1","status":"completed","output":{"url":"https://x/a.mp3","duration_seconds":12}}`))
	require.NoError(t, err)

	require.Equal(t, KindPipelineStage, n.Kind)
	require.NotNil(t, n.Pipeline)
	assert.Equal(t, model.StageVoice, n.Pipeline.Stage)
	assert.Equal(t, "https://x/a.mp3", n.Pipeline.Output.URL)
	assert.Equal(t, 12.0, *n.Pipeline.Output.DurationSeconds)
}

func TestParsePipelineStageAliases(t *testing.T) {
	for typ, stage := range map[string]model.Stage{
		"pipeline_first_frame": model.StageFirstFrame,
		"pipeline_last_frame":  model.StageLastFrame,
		"pipeline_final_video": model.StageFinalVideo,
		"pipeline_lipsync":     model.StageFinalVideo,
		"pipeline_animate":     model.StageFinalVideo,
	} {
		n, err := Parse([]byte(`{"type":"` + typ + `","pipeline_id":"p1","output":{"url":"https://x/o"}}`))
		require.NoError(t, err, typ)
		assert.Equal(t, stage, n.Pipeline.Stage, typ)
		assert.Equal(t, model.GenerationStatusCompleted, n.Pipeline.Status, typ)
	}
}

func TestParsePipelineStatusInference(t *testing.T) {
	n, err := Parse([]byte(`{"type":"pipeline_voice","pipeline_id":"p1","error_message":"tts quota"}`))
	require.NoError(t, err)
	assert.Equal(t, model.GenerationStatusFailed, n.Pipeline.Status)

	_, err = Parse([]byte(`{"type":"pipeline_voice","pipeline_id":"p1"}`))
	assert.Equal(t, []string{"status"}, issueFields(t, err))
}

func TestParsePipelineStageUpdateRejectsInvalidFields(t *testing.T) {
	_, err := Parse([]byte(`{"type":"pipeline_thumbnail","status":"completed","output":{"url":"not a url","duration_seconds":-1}}`))
	fields := issueFields(t, err)

	assert.ElementsMatch(t, []string{"pipeline_id", "output.url", "output.duration_seconds", "type"}, fields)
}

func TestParsePipelineCompletedRequiresOutput(t *testing.T) {
	_, err := Parse([]byte(`{"type":"pipeline_first_frame","pipeline_id":"p1","status":"completed"}`))
	assert.Equal(t, []string{"output"}, issueFields(t, err))
}
