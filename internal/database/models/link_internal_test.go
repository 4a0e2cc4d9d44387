package models

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

// wireError mimics the driver's wire-level error for classification tests;
// the real type cannot be constructed outside the driver package.
type wireError struct {
	fields map[byte]string
}

func (e wireError) Error() string { return "wire error" }

func (e wireError) Field(field byte) string { return e.fields[field] }

func TestIsPrimaryConflict(t *testing.T) {
	t.Parallel()

	primaryViolation := wireError{fields: map[byte]string{
		'C': "23505",
		'n': "idx_player_links_one_primary",
	}}

	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "one-primary index violation", err: primaryViolation, want: true},
		{
			name: "wrapped violation",
			err:  fmt.Errorf("failed to insert link: %w", primaryViolation),
			want: true,
		},
		{
			name: "unique violation on another index",
			err:  wireError{fields: map[byte]string{'C': "23505", 'n': "idx_player_links_pair"}},
			want: false,
		},
		{
			name: "different error code on the same index",
			err:  wireError{fields: map[byte]string{'C': "40001", 'n': "idx_player_links_one_primary"}},
			want: false,
		},
		{name: "plain error", err: errors.New("boom"), want: false},
		{name: "nil", err: nil, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.want, isPrimaryConflict(tt.err))
		})
	}
}
