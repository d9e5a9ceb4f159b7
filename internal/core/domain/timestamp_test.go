package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTimestamp_Variants(t *testing.T) {
	want := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		name  string
		input string
		want  time.Time
	}{
		{"zulu suffix", "2024-05-01T10:00:00Z", want},
		{"colon offset", "2024-05-01T12:00:00+02:00", want},
		{"graph api offset", "2024-05-01T10:00:00+0000", want},
		{"negative offset", "2024-05-01T05:00:00-0500", want},
		{"hour offset", "2024-05-01T10:00:00+00", want},
		{"no offset is utc", "2024-05-01T10:00:00", want},
		{"space separator", "2024-05-01 10:00:00+00:00", want},
		{"postgres short offset", "2024-05-01 10:00:00+00", want},
		{"fractional seconds", "2024-05-01T10:00:00.250000Z", want.Add(250 * time.Millisecond)},
		{"fractional no offset", "2024-05-01T10:00:00.5", want.Add(500 * time.Millisecond)},
		{"date only", "2024-05-01", time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)},
		{"surrounding space", "  2024-05-01T10:00:00Z ", want},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseTimestamp(tt.input)
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(got), "want %s got %s", tt.want, got)
			assert.Equal(t, time.UTC, got.Location())
		})
	}
}

func TestParseTimestamp_Invalid(t *testing.T) {
	for _, input := range []string{"", "   ", "yesterday", "2024-13-45T99:00:00Z", "1714557600"} {
		_, err := ParseTimestamp(input)
		assert.ErrorIs(t, err, ErrInvalidInput, "input %q", input)
	}
}

func TestParseOptionalTimestamp(t *testing.T) {
	assert.Nil(t, ParseOptionalTimestamp(""))
	assert.Nil(t, ParseOptionalTimestamp("not a time"))

	got := ParseOptionalTimestamp("2024-05-01T10:00:00Z")
	require.NotNil(t, got)
	assert.Equal(t, 2024, got.Year())
}
