package batched

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewLayout(t *testing.T) {
	l := NewLayout(33, 2, 5)
	assert.Equal(t, 64, l.LDDA)
	assert.Equal(t, 64, l.LDDB)
	assert.Equal(t, 33, l.LDA)
	assert.Equal(t, int64(64*33*5), l.DeviceAElems())
	assert.Equal(t, int64(64*2*5), l.DeviceBElems())
	assert.Equal(t, int64(33*5), l.PivotElems())
	assert.Equal(t, int64(64*33*4), l.AStride())
	assert.Equal(t, int64(64*2*4), l.BStride())
	assert.Equal(t, int64(33*4), l.PivotStride())
	assert.False(t, l.Empty())
}

func TestNewLayoutSmallAndEmpty(t *testing.T) {
	assert.Equal(t, 32, NewLayout(1, 1, 1).LDDA)
	assert.Equal(t, 32, NewLayout(32, 1, 1).LDDA)

	l := NewLayout(0, 1, 4)
	assert.True(t, l.Empty())
	assert.Equal(t, 32, l.LDDA, "zero order still yields a legal leading dimension")
	assert.True(t, NewLayout(4, 0, 4).Empty())
	assert.True(t, NewLayout(4, 1, 0).Empty())
}
