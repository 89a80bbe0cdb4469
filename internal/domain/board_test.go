package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildBoard(t *testing.T) {
	red := NewCategory("Red", "🔴", StyleRed, intPtr(10))
	red.Members = []string{"u1", "u2", "u3", "u4", "u5", "u6", "u7"}
	blue := NewCategory("Blue", "🔵", StyleBlurple, nil)
	e := newTestEvent(red, blue)

	b := BuildBoard(e)
	require.Len(t, b.Fields, 2)

	assert.Equal(t, "Red (7/10)", b.Fields[0].Header())
	assert.Equal(t, []string{"u1", "u2", "u3", "u4", "u5"}, b.Fields[0].Members)
	assert.True(t, b.Fields[0].Truncated)

	assert.Equal(t, "Blue (0/∞)", b.Fields[1].Header())
	assert.Empty(t, b.Fields[1].Members)
	assert.False(t, b.Fields[1].Truncated)

	require.Len(t, b.Controls, 2)
	assert.Equal(t, "ev-1:Red", b.Controls[0].CustomID())
	assert.Equal(t, "ev-1:Blue", b.Controls[1].CustomID())
}

func TestParseCustomID(t *testing.T) {
	tests := []struct {
		name         string
		in           string
		wantEvent    string
		wantCategory string
		wantErr      bool
	}{
		{name: "simple", in: "ev-1:Red", wantEvent: "ev-1", wantCategory: "Red"},
		{name: "colon in category", in: "ev-1:Team: A", wantEvent: "ev-1", wantCategory: "Team: A"},
		{name: "no separator", in: "ev-1", wantErr: true},
		{name: "empty category", in: "ev-1:", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev, cat, err := ParseCustomID(tt.in)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrInvalidFormat)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantEvent, ev)
			assert.Equal(t, tt.wantCategory, cat)
		})
	}
}
