package phone

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDigits(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "international with formatting", input: "+44 7911 123456", want: "447911123456"},
		{name: "us number", input: "+1 (202) 555-0143", want: "12025550143"},
		{name: "national keeps digits", input: "07911-123-456", want: "07911123456"},
		{name: "invalid international falls back", input: "+12", want: "12"},
		{name: "surrounding space", input: "  15551234567 ", want: "15551234567"},
		{name: "empty", input: "   ", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Digits(tt.input))
		})
	}
}
