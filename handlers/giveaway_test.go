package handlers

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseGiveawayDuration(t *testing.T) {
	cases := []struct {
		in      string
		want    time.Duration
		wantErr bool
	}{
		{"30m", 30 * time.Minute, false},
		{"2h", 2 * time.Hour, false},
		{"7d", 7 * 24 * time.Hour, false},
		{"1m", time.Minute, false},
		{" 10m ", 10 * time.Minute, false},
		{"", 0, true},
		{"10", 0, true},
		{"m", 0, true},
		{"10s", 0, true},
		{"10w", 0, true},
		{"-5m", 0, true},
		{"1.5h", 0, true},
		{"2h30m", 0, true},
		{"0m", 0, true},
	}

	for _, tc := range cases {
		got, err := parseGiveawayDuration(tc.in)
		if tc.wantErr {
			assert.Error(t, err, "input %q", tc.in)
		} else {
			require.NoError(t, err, "input %q", tc.in)
			assert.Equal(t, tc.want, got, "input %q", tc.in)
		}
	}
}

func TestPickWinnersBounds(t *testing.T) {
	entrants := []string{"a", "b", "c", "d", "e"}

	winners := pickWinners(entrants, 3)
	assert.Len(t, winners, 3)

	seen := make(map[string]bool)
	for _, w := range winners {
		assert.False(t, seen[w], "winner %s drawn twice", w)
		seen[w] = true
		assert.Contains(t, entrants, w)
	}
}

func TestPickWinnersMoreThanEntrants(t *testing.T) {
	entrants := []string{"a", "b"}
	winners := pickWinners(entrants, 10)
	assert.ElementsMatch(t, entrants, winners)
}

func TestPickWinnersDoesNotMutateInput(t *testing.T) {
	entrants := []string{"a", "b", "c", "d"}
	original := []string{"a", "b", "c", "d"}
	_ = pickWinners(entrants, 2)
	assert.Equal(t, original, entrants)
}

func TestParseHexColor(t *testing.T) {
	c, err := parseHexColor("#ff0000")
	require.NoError(t, err)
	assert.Equal(t, 0xFF0000, c)

	c, err = parseHexColor("3498db")
	require.NoError(t, err)
	assert.Equal(t, 0x3498DB, c)

	_, err = parseHexColor("red")
	assert.Error(t, err)
	_, err = parseHexColor("#fff")
	assert.Error(t, err)
}
