package ptr

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTo(t *testing.T) {
	s := "alba"
	p := To(s)
	assert.Equal(t, s, *p)
	assert.NotSame(t, &s, p)
}

func TestDeref(t *testing.T) {
	assert.Equal(t, int64(7), Deref(To(int64(7)), 0))
	assert.Equal(t, "-", Deref(nil, "-"))
}

func TestEqual(t *testing.T) {
	tests := []struct {
		name string
		a, b *int64
		want bool
	}{
		{"both nil", nil, nil, true},
		{"one nil", To(int64(1)), nil, false},
		{"same value", To(int64(1)), To(int64(1)), true},
		{"different value", To(int64(1)), To(int64(2)), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Equal(tt.a, tt.b))
		})
	}
}
