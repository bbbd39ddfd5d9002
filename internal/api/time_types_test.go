package api

import (
	"encoding/json/v2"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlexTime_Unmarshal(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  time.Time
	}{
		{
			name:  "rfc3339 string",
			input: `"2026-08-30T10:15:00Z"`,
			want:  time.Date(2026, 8, 30, 10, 15, 0, 0, time.UTC),
		},
		{
			name:  "rfc3339 with nanos and offset",
			input: `"2026-08-30T12:15:00.5+02:00"`,
			want:  time.Date(2026, 8, 30, 12, 15, 0, 500_000_000, time.FixedZone("", 2*3600)),
		},
		{
			name:  "epoch millis number",
			input: `1756548900000`,
			want:  time.UnixMilli(1756548900000),
		},
		{
			name:  "epoch millis string",
			input: `"1756548900000"`,
			want:  time.UnixMilli(1756548900000),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var ft FlexTime
			require.NoError(t, json.Unmarshal([]byte(tt.input), &ft))
			assert.True(t, ft.Time.Equal(tt.want), "got %v want %v", ft.Time, tt.want)
		})
	}
}

func TestFlexTime_UnmarshalRejectsGarbage(t *testing.T) {
	var ft FlexTime
	assert.Error(t, json.Unmarshal([]byte(`"yesterday"`), &ft))
	assert.Error(t, json.Unmarshal([]byte(`true`), &ft))
}

func TestFlexTime_MarshalRoundTrip(t *testing.T) {
	ft := FlexTime{Time: time.Date(2026, 8, 30, 10, 15, 0, 0, time.UTC)}

	data, err := json.Marshal(ft)
	require.NoError(t, err)
	assert.Equal(t, `"2026-08-30T10:15:00Z"`, string(data))

	var back FlexTime
	require.NoError(t, json.Unmarshal(data, &back))
	assert.True(t, back.Time.Equal(ft.Time))
}
