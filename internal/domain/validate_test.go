package domain

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateEvent(t *testing.T) {
	valid := func() *Event {
		return newTestEvent(NewCategory("Red", "🔴", StyleRed, intPtr(3)))
	}

	tests := []struct {
		name      string
		mutate    func(e *Event)
		max       int
		wantField string
	}{
		{name: "valid", mutate: func(e *Event) {}},
		{name: "title too long", mutate: func(e *Event) { e.Title = strings.Repeat("x", MaxTitleLen+1) }, wantField: "title"},
		{name: "no categories", mutate: func(e *Event) { e.Categories = CategorySet{} }, wantField: "categories"},
		{name: "bad style", mutate: func(e *Event) { e.Categories[0].Style = "Pink" }, wantField: "style"},
		{name: "capacity zero", mutate: func(e *Event) { e.Categories[0].Capacity = intPtr(0) }, wantField: "capacity"},
		{name: "capacity over limit", mutate: func(e *Event) { e.Categories[0].Capacity = intPtr(MaxCapacity + 1) }, wantField: "capacity"},
		{name: "too many roles", mutate: func(e *Event) { e.PermittedRoles = []string{"1", "2", "3", "4", "5", "6"} }, wantField: "permittedroles"},
		{
			name: "duplicate category",
			mutate: func(e *Event) {
				e.Categories = append(e.Categories, NewCategory("Red", "🟥", StyleGrey, nil))
			},
			wantField: "categories",
		},
		{
			name: "over configured category bound",
			mutate: func(e *Event) {
				e.Categories = append(e.Categories, NewCategory("Blue", "🔵", StyleGrey, nil))
			},
			max:       1,
			wantField: "categories",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := valid()
			tt.mutate(e)
			max := tt.max
			if max == 0 {
				max = DefaultMaxCategories
			}
			err := ValidateEvent(e, max)
			if tt.wantField == "" {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, ErrInvalidFormat)
			var inErr *InputError
			require.True(t, errors.As(err, &inErr))
			assert.Equal(t, tt.wantField, inErr.Field)
		})
	}
}
