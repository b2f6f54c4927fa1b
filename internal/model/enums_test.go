package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCodeKind(t *testing.T) {
	tests := []struct {
		input    string
		expected CodeKind
	}{
		{"day", CodeKindDay},
		{"MONTH", CodeKindMonth},
		{" year ", CodeKindYear},
		{"permanent", CodeKindPermanent},
		{"1", CodeKindMonth},
		{"3", CodeKindPermanent},
	}

	for _, tc := range tests {
		t.Run(tc.input, func(t *testing.T) {
			kind, err := ParseCodeKind(tc.input)
			require.NoError(t, err)
			assert.Equal(t, tc.expected, kind)
		})
	}

	for _, bad := range []string{"", "week", "4", "-1"} {
		_, err := ParseCodeKind(bad)
		assert.Error(t, err, bad)
	}
}

func TestCodeKindJSON(t *testing.T) {
	data, err := json.Marshal(struct {
		Kind CodeKind `json:"kind"`
	}{CodeKindYear})
	require.NoError(t, err)
	assert.JSONEq(t, `{"kind":"year"}`, string(data))

	var decoded struct {
		Kind CodeKind `json:"kind"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"kind":"month"}`), &decoded))
	assert.Equal(t, CodeKindMonth, decoded.Kind)

	assert.Error(t, json.Unmarshal([]byte(`{"kind":"fortnight"}`), &decoded))
}

func TestCodeKindString(t *testing.T) {
	assert.Equal(t, "day", CodeKindDay.String())
	assert.Equal(t, "kind(9)", CodeKind(9).String())
	assert.False(t, CodeKind(9).Valid())
}
