package convert

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIntToInt32(t *testing.T) {
	got, err := IntToInt32(-100)
	require.NoError(t, err)
	assert.Equal(t, int32(-100), got)

	got, err = IntToInt32(math.MaxInt32)
	require.NoError(t, err)
	assert.Equal(t, int32(math.MaxInt32), got)

	_, err = IntToInt32(math.MaxInt32 + 1)
	require.Error(t, err)
	_, err = IntToInt32(math.MinInt32 - 1)
	require.Error(t, err)
}

func TestIntToInt32Clamped(t *testing.T) {
	assert.Equal(t, int32(25), IntToInt32Clamped(25))
	assert.Equal(t, int32(math.MaxInt32), IntToInt32Clamped(math.MaxInt32+10))
	assert.Equal(t, int32(math.MinInt32), IntToInt32Clamped(math.MinInt32-10))
}

func TestIntToUint32(t *testing.T) {
	got, err := IntToUint32(5)
	require.NoError(t, err)
	assert.Equal(t, uint32(5), got)

	_, err = IntToUint32(-1)
	require.Error(t, err)
	_, err = IntToUint32(math.MaxUint32 + 1)
	require.Error(t, err)
}

func TestIntToUint32Clamped(t *testing.T) {
	assert.Equal(t, uint32(0), IntToUint32Clamped(-3))
	assert.Equal(t, uint32(7), IntToUint32Clamped(7))
	assert.Equal(t, uint32(math.MaxUint32), IntToUint32Clamped(math.MaxUint32+1))
}
