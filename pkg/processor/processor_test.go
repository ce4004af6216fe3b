package processor

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeValues answers stored-value lookups from a fixture map.
type fakeValues map[int]float64

func (f fakeValues) GetDeviceValue(idx int) (float64, error) {
	v, ok := f[idx]
	if !ok {
		return 0, errors.Errorf("no device %d", idx)
	}
	return v, nil
}

func compareID(idx int) *int { return &idx }

func TestParseRequest(t *testing.T) {
	tests := []struct {
		name  string
		value string
		want  *Request
	}{
		{
			name:  "overwrite",
			value: "89:60:0",
			want:  &Request{TargetID: 89, CommandID: 60, Mode: Overwrite},
		},
		{
			name:  "subtract",
			value: "89:80:1:90",
			want:  &Request{TargetID: 89, CommandID: 80, Mode: Subtract, CompareID: compareID(90)},
		},
		{
			name:  "add",
			value: "89:68:2:90",
			want:  &Request{TargetID: 89, CommandID: 68, Mode: Add, CompareID: compareID(90)},
		},
		{
			name:  "hex command id",
			value: "89:0x3c:0",
			want:  &Request{TargetID: 89, CommandID: 0x3c, Mode: Overwrite},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := ParseRequest(tt.value)
			require.NoError(t, err)
			assert.Equal(t, tt.want, req)
		})
	}
}

func TestParseRequestInvalid(t *testing.T) {
	tests := []struct {
		name  string
		value string
	}{
		{name: "too few parts", value: "89:60"},
		{name: "too many parts", value: "89:60:1:90:91"},
		{name: "not a number", value: "89:sixty:0"},
		{name: "unknown mode", value: "89:60:3"},
		{name: "negative mode", value: "89:60:-1"},
		{name: "overwrite with compare idx", value: "89:60:0:90"},
		{name: "subtract without compare idx", value: "89:60:1"},
		{name: "add without compare idx", value: "89:60:2"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseRequest(tt.value)
			assert.ErrorIs(t, err, ErrInvalidRequest)
		})
	}
}

func TestProcessOverwrite(t *testing.T) {
	p := NewProcessor(fakeValues{})

	result, err := p.Process(&Request{TargetID: 89, CommandID: 60, Mode: Overwrite}, 12.34)
	require.NoError(t, err)
	assert.Equal(t, &Result{TargetID: 89, Value: 12.34}, result)

	// a second pass over the same value changes nothing
	again, err := p.Process(&Request{TargetID: 89, CommandID: 60, Mode: Overwrite}, 12.34)
	require.NoError(t, err)
	assert.Equal(t, result, again)
}

func TestProcessSubtract(t *testing.T) {
	p := NewProcessor(fakeValues{90: 2.0})

	result, err := p.Process(&Request{TargetID: 89, CommandID: 80, Mode: Subtract, CompareID: compareID(90)}, 5.5)
	require.NoError(t, err)
	assert.Equal(t, &Result{TargetID: 89, Value: 3.5}, result)
}

func TestProcessAdd(t *testing.T) {
	p := NewProcessor(fakeValues{89: 100.0, 90: 40.0})

	result, err := p.Process(&Request{TargetID: 89, CommandID: 68, Mode: Add, CompareID: compareID(90)}, 55.0)
	require.NoError(t, err)
	assert.Equal(t, &Result{TargetID: 89, Value: 115.0}, result)
}

func TestProcessRounds(t *testing.T) {
	p := NewProcessor(fakeValues{90: 0.004})

	result, err := p.Process(&Request{TargetID: 89, CommandID: 80, Mode: Subtract, CompareID: compareID(90)}, 1.2345)
	require.NoError(t, err)
	assert.Equal(t, 1.23, result.Value)
}

func TestProcessInvalidRequest(t *testing.T) {
	p := NewProcessor(fakeValues{})

	_, err := p.Process(&Request{TargetID: 89, CommandID: 60, Mode: Subtract}, 1.0)
	assert.ErrorIs(t, err, ErrInvalidRequest)

	_, err = p.Process(&Request{TargetID: 89, CommandID: 60, Mode: Overwrite, CompareID: compareID(90)}, 1.0)
	assert.ErrorIs(t, err, ErrInvalidRequest)
}

func TestProcessValueUnavailable(t *testing.T) {
	p := NewProcessor(fakeValues{})

	_, err := p.Process(&Request{TargetID: 89, CommandID: 80, Mode: Subtract, CompareID: compareID(90)}, 1.0)
	assert.ErrorIs(t, err, ErrValueUnavailable)

	_, err = p.Process(&Request{TargetID: 89, CommandID: 68, Mode: Add, CompareID: compareID(90)}, 1.0)
	assert.ErrorIs(t, err, ErrValueUnavailable)
}
