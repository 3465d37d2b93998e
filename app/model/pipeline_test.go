package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStageOutputSameResultIgnoresDataFormatting(t *testing.T) {
	d := 4.5
	stored := &StageOutput{URL: "https://cdn.example.com/a.mp4", DurationSeconds: &d, Data: json.RawMessage(`{"fps":30}`)}

	same := &StageOutput{URL: "https://cdn.example.com/a.mp4", DurationSeconds: &d, Data: json.RawMessage("{\n  \"fps\": 30\n}")}
	assert.True(t, stored.SameResult(same))

	other := &StageOutput{URL: "https://cdn.example.com/a.mp4", DurationSeconds: &d, Data: json.RawMessage(`{"fps": 24}`)}
	assert.False(t, stored.SameResult(other))

	noData := &StageOutput{URL: "https://cdn.example.com/a.mp4", DurationSeconds: &d}
	assert.False(t, stored.SameResult(noData))
	assert.True(t, noData.SameResult(&StageOutput{URL: "https://cdn.example.com/a.mp4", DurationSeconds: &d}))
}

func TestStageOutputRoundTripKeepsSameResult(t *testing.T) {
	in := &StageOutput{URL: "https://cdn.example.com/a.mp4", Data: json.RawMessage(`{ "fps" : 30 }`)}

	v, err := in.Value()
	assert.NoError(t, err)

	var out StageOutput
	assert.NoError(t, out.Scan(v))
	assert.True(t, in.SameResult(&out))
}
