package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestComputeItemID(t *testing.T) {
	tests := []struct {
		name     string
		path     string
		expected string
	}{
		{
			name:     "empty path",
			path:     "",
			expected: "e945ae3038085c1b3ba16bf433d3421b554c35d5",
		},
		{
			name:     "nested path",
			path:     "share/a/b",
			expected: "a8a6ffa6b671c6a41b513c5f2071840811c2c7a0",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id := ComputeItemID(tt.path)
			assert.Equal(t, tt.expected, id.Hex())
			assert.Equal(t, tt.expected, id.String())
		})
	}
}
