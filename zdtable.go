package orange

import (
	"encoding/binary"
	"fmt"
	"math"
)

// PointCloudInfo is the per-device point-cloud geometry the ZD table is
// derived from. DisparityToW maps each disparity index to a world-space
// divisor; physical depth is FocalLength over that divisor.
type PointCloudInfo struct {
	FocalLength  float32
	DisparityToW []float32
}

// ZDTable is the calibration lookup table translating raw depth samples
// into physical distance. Entries are big-endian uint16 millimetre values;
// the table is immutable once built.
type ZDTable struct {
	Data  []byte
	ZNear uint16
	ZFar  uint16
}

// Entries returns the number of 16-bit entries in the table.
func (t *ZDTable) Entries() int { return len(t.Data) / 2 }

// Z returns entry i.
func (t *ZDTable) Z(i int) uint16 {
	return binary.BigEndian.Uint16(t.Data[2*i : 2*i+2])
}

// BuildZDTable derives a ZD table of tableSize entries from point-cloud
// geometry. It fails with ErrNoCalibration when info carries no data at
// all, and with ErrInvalidCalibration when the data cannot fill the table
// (short array or a zero disparity divisor). Identical inputs produce an
// identical table.
func BuildZDTable(info *PointCloudInfo, tableSize int) (*ZDTable, error) {
	if info == nil || len(info.DisparityToW) == 0 {
		return nil, ErrNoCalibration
	}
	if len(info.DisparityToW) < tableSize {
		return nil, fmt.Errorf("disparity array has %d entries, table needs %d: %w",
			len(info.DisparityToW), tableSize, ErrInvalidCalibration)
	}

	t := &ZDTable{
		Data:  make([]byte, 2*tableSize),
		ZNear: math.MaxUint16,
		ZFar:  0,
	}
	for i := 0; i < tableSize; i++ {
		w := info.DisparityToW[i]
		if w == 0 {
			return nil, fmt.Errorf("zero disparity divisor at index %d: %w", i, ErrInvalidCalibration)
		}
		z := float64(info.FocalLength) / float64(w)
		if z < 0 {
			z = 0
		}
		if z > math.MaxUint16 {
			z = math.MaxUint16
		}
		v := uint16(math.Round(z))
		binary.BigEndian.PutUint16(t.Data[2*i:], v)
		if v < t.ZNear {
			t.ZNear = v
		}
		if v > t.ZFar {
			t.ZFar = v
		}
	}
	return t, nil
}
