package schedule

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMessage_SerializeRoundTrip(t *testing.T) {
	msg := NewMessage(
		MessageTypeRecurringNudge,
		NudgeName(-3),
		Recipient{Username: "awa", Email: "awa@test.localhost"},
		"fr",
		map[string]interface{}{
			"course_name": "Intro to Testing",
			"course_ids":  []interface{}{"course-v1:edX+DemoX+Demo", "course-v1:edX+DemoX+Demo2"},
			"show_upsell": false,
		},
	)
	require.NotEmpty(t, msg.ID)
	assert.Equal(t, "recurringnudge_day3", msg.Name)

	s, err := msg.Serialize()
	require.NoError(t, err)

	got, err := DeserializeMessage(s)
	require.NoError(t, err)
	assert.Equal(t, msg, got)
}

func TestMessage_SerializeRoundTrip_numericContext(t *testing.T) {
	msg := NewMessage(
		MessageTypeCourseUpdate,
		string(MessageTypeCourseUpdate),
		Recipient{Username: "awa", Email: "awa@test.localhost"},
		"en",
		map[string]interface{}{
			"week_num":     json.Number("2"),
			"week_summary": "This week we cover interfaces.",
			"course_ids":   []interface{}{"course-v1:edX+DemoX+Demo"},
		},
	)

	s, err := msg.Serialize()
	require.NoError(t, err)

	got, err := DeserializeMessage(s)
	require.NoError(t, err)
	assert.Equal(t, msg, got)
	assert.Equal(t, json.Number("2"), got.Context["week_num"])
}

func TestDeserializeMessage_invalid(t *testing.T) {
	_, err := DeserializeMessage("{not json")
	assert.Error(t, err)
}

func TestNudgeName(t *testing.T) {
	assert.Equal(t, "recurringnudge_day3", NudgeName(3))
	assert.Equal(t, "recurringnudge_day10", NudgeName(-10))
}
