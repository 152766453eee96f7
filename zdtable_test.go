package orange

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildZDTableEncoding(t *testing.T) {
	info := &PointCloudInfo{
		FocalLength:  2.0,
		DisparityToW: []float32{1, 2},
	}
	table, err := BuildZDTable(info, 2)
	require.NoError(t, err)

	// Z = focal / w, big endian: 2/1 = 2, 2/2 = 1.
	assert.Equal(t, []byte{0x00, 0x02, 0x00, 0x01}, table.Data)
	assert.Equal(t, uint16(1), table.ZNear)
	assert.Equal(t, uint16(2), table.ZFar)
	assert.Equal(t, 2, table.Entries())
	assert.Equal(t, uint16(2), table.Z(0))
	assert.Equal(t, uint16(1), table.Z(1))
}

func TestBuildZDTableMonotonic(t *testing.T) {
	// Increasing disparity divisors mean decreasing physical distance.
	info := &PointCloudInfo{FocalLength: 1000, DisparityToW: make([]float32, ZDTableSize11Bits)}
	for i := range info.DisparityToW {
		info.DisparityToW[i] = float32(i + 1)
	}
	table, err := BuildZDTable(info, ZDTableSize11Bits)
	require.NoError(t, err)
	require.Equal(t, ZDTableSize11Bits, table.Entries())

	for i := 1; i < table.Entries(); i++ {
		if table.Z(i) > table.Z(i-1) {
			t.Fatalf("Z[%d] = %d > Z[%d] = %d", i, table.Z(i), i-1, table.Z(i-1))
		}
	}
	assert.Equal(t, table.Z(table.Entries()-1), table.ZNear)
	assert.Equal(t, table.Z(0), table.ZFar)
}

func TestBuildZDTableClampsToUint16(t *testing.T) {
	info := &PointCloudInfo{
		FocalLength:  1e9,
		DisparityToW: []float32{1, 2},
	}
	table, err := BuildZDTable(info, 2)
	require.NoError(t, err)
	assert.Equal(t, uint16(0xFFFF), table.Z(0))
	assert.Equal(t, uint16(0xFFFF), table.ZFar)
}

func TestBuildZDTableNoCalibration(t *testing.T) {
	_, err := BuildZDTable(nil, ZDTableSize11Bits)
	assert.ErrorIs(t, err, ErrNoCalibration)

	_, err = BuildZDTable(&PointCloudInfo{FocalLength: 100}, ZDTableSize11Bits)
	assert.ErrorIs(t, err, ErrNoCalibration)
}

func TestBuildZDTableInvalidCalibration(t *testing.T) {
	short := &PointCloudInfo{FocalLength: 100, DisparityToW: []float32{1, 2, 3}}
	_, err := BuildZDTable(short, ZDTableSize11Bits)
	assert.ErrorIs(t, err, ErrInvalidCalibration)
	assert.NotErrorIs(t, err, ErrNoCalibration,
		"a malformed blob is a different failure than an absent one")

	zero := &PointCloudInfo{FocalLength: 100, DisparityToW: []float32{1, 0}}
	_, err = BuildZDTable(zero, 2)
	assert.ErrorIs(t, err, ErrInvalidCalibration)
}

func TestBuildZDTableDeterministic(t *testing.T) {
	info := &PointCloudInfo{FocalLength: 333.25, DisparityToW: make([]float32, 64)}
	for i := range info.DisparityToW {
		info.DisparityToW[i] = float32(i)/8 + 0.5
	}
	a, err := BuildZDTable(info, 64)
	require.NoError(t, err)
	b, err := BuildZDTable(info, 64)
	require.NoError(t, err)
	assert.True(t, bytes.Equal(a.Data, b.Data))
	assert.Equal(t, a.ZNear, b.ZNear)
	assert.Equal(t, a.ZFar, b.ZFar)
}
