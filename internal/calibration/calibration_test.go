package calibration

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCorrectPower(t *testing.T) {
	tests := []struct {
		in   int
		want int
	}{
		{0, 0},
		{80, 0},
		{81, 325},
		{171, 415},
		{172, 426},
		{1100, 1410},
		{1101, 1531},
		{10500, 11340},
		{10501, 11361},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, CorrectPower(tt.in), "CorrectPower(%d)", tt.in)
	}
}

func TestToWatts(t *testing.T) {
	t.Run("noise floor reads zero", func(t *testing.T) {
		assert.Equal(t, 0, ToWatts(0))
		assert.Equal(t, 0, ToWatts(5))
	})

	t.Run("known samples", func(t *testing.T) {
		assert.Equal(t, 1, ToWatts(10))
		assert.Equal(t, 36, ToWatts(100))
	})

	t.Run("non-negative and monotonic", func(t *testing.T) {
		prev := ToWatts(0)
		for raw := 1; raw <= 1023; raw++ {
			w := ToWatts(raw)
			if w < 0 {
				t.Fatalf("ToWatts(%d) = %d, want >= 0", raw, w)
			}
			if w < prev {
				t.Fatalf("ToWatts(%d) = %d dropped below ToWatts(%d) = %d", raw, w, raw-1, prev)
			}
			prev = w
		}
	})
}

func TestComputeSWR(t *testing.T) {
	tests := []struct {
		name string
		fwd  int
		ref  int
		want int
	}{
		{"no forward power", 0, 0, 100},
		{"no forward power with reflection", 0, 12, 100},
		{"equal", 40, 40, 999},
		{"reflection above forward", 40, 41, 999},
		{"three to one", 100, 50, 300},
		{"perfect match", 100, 0, 100},
		{"truncates", 300, 20, 114},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ComputeSWR(tt.fwd, tt.ref))
		})
	}
}

func TestFormatSWR(t *testing.T) {
	assert.Equal(t, "1.00:1", FormatSWR(100))
	assert.Equal(t, "3.00:1", FormatSWR(300))
	assert.Equal(t, "1.05:1", FormatSWR(105))
	assert.Equal(t, "9.99:1", FormatSWR(999))
}
