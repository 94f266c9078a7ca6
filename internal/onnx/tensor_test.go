package onnx

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewImageTensor(t *testing.T) {
	data := make([]float32, 3*4*5)
	tensor, err := NewImageTensor(data, 3, 4, 5)
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 3, 4, 5}, tensor.Shape)
	require.NoError(t, VerifyImageTensor(tensor))

	_, err = NewImageTensor(data[:10], 3, 4, 5)
	require.Error(t, err)

	_, err = NewImageTensor(nil, 3, 4, 5)
	require.Error(t, err)
}

func TestValidateNCHW(t *testing.T) {
	tests := []struct {
		name    string
		shape   []int64
		wantErr bool
	}{
		{"valid", []int64{1, 3, 640, 640}, false},
		{"rank3", []int64{3, 640, 640}, true},
		{"zero dim", []int64{1, 0, 640, 640}, true},
		{"negative", []int64{1, 3, -1, 640}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateNCHW(tt.shape)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestVerifyImageTensor_LengthMismatch(t *testing.T) {
	err := VerifyImageTensor(Tensor{Data: make([]float32, 5), Shape: []int64{1, 1, 2, 2}})
	require.Error(t, err)
}
