package orange

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFirmwareVersion(t *testing.T) {
	d, _, fakes := newFakeDevice(t)
	v, err := d.FirmwareVersion()
	require.NoError(t, err)
	assert.Equal(t, "ORANGE-FW-1.2.3", v, "trailing NULs must be stripped")
	assert.True(t, fakes[indexColorPath1].sawRequest(requestFirmwareVersion),
		"device info goes to the primary path")
}

func TestSerialNumber(t *testing.T) {
	d, _, _ := newFakeDevice(t)
	s, err := d.SerialNumber()
	require.NoError(t, err)
	assert.Equal(t, "80363TEST0042", s)
}

func TestPropertyRouting(t *testing.T) {
	d, _, fakes := newFakeDevice(t)

	v, err := d.Exposure()
	require.NoError(t, err)
	assert.EqualValues(t, 42, v)
	require.NoError(t, d.SetGain(7))
	assert.True(t, fakes[indexColorPath1].sawRequest(requestGetProperty))
	assert.True(t, fakes[indexColorPath1].sawRequest(requestSetProperty))
	assert.False(t, fakes[indexMonoPath].sawRequest(requestGetProperty),
		"camera properties must not touch the mono path")

	// IR controls live on the mono path.
	_, err = d.IRMode()
	require.NoError(t, err)
	require.NoError(t, d.SetIRValue(3))
	assert.True(t, fakes[indexMonoPath].sawRequest(requestGetProperty))
	assert.True(t, fakes[indexMonoPath].sawRequest(requestSetProperty))
}

func TestRegisterRouting(t *testing.T) {
	d, _, fakes := newFakeDevice(t)

	v, err := d.ReadFWRegister(0xE0)
	require.NoError(t, err)
	assert.EqualValues(t, 0x1234, v)
	require.NoError(t, d.WriteFWRegister(0xE0, 0x55AA))
	assert.True(t, fakes[indexColorPath1].sawRequest(requestReadFWReg))
	assert.True(t, fakes[indexColorPath1].sawRequest(requestWriteFWReg))

	v, err = d.ReadASICRegister(0xF306)
	require.NoError(t, err)
	assert.EqualValues(t, 0x1234, v)
	require.NoError(t, d.WriteASICRegister(0xF306, 1))
	assert.True(t, fakes[indexColorPath1].sawRequest(requestReadASICReg))
	assert.True(t, fakes[indexColorPath1].sawRequest(requestWriteASICReg))
}

func TestEnableInterleaveMode(t *testing.T) {
	d, _, fakes := newFakeDevice(t)
	require.True(t, d.IsInterleaveModeSupported())
	require.NoError(t, d.EnableInterleaveMode(true))
	assert.True(t, fakes[indexMonoPath].sawRequest(requestIRControl),
		"IR frame switching is a mono path control")
	assert.False(t, fakes[indexColorPath1].sawRequest(requestIRControl))
}

func TestReadPointCloudInfo(t *testing.T) {
	d, _, _ := newFakeDevice(t)
	info, err := d.readPointCloudInfo(0)
	require.NoError(t, err)
	assert.EqualValues(t, 100, info.FocalLength)
	require.Len(t, info.DisparityToW, ZDTableSize11Bits)
	assert.EqualValues(t, 1, info.DisparityToW[0])
	assert.EqualValues(t, ZDTableSize11Bits, info.DisparityToW[ZDTableSize11Bits-1])
}

func TestCloseReleasesAllHandles(t *testing.T) {
	d, _, _ := newFakeDevice(t)
	require.NoError(t, d.InitStream(ColorFormatYUY2, 1280, 720, 30,
		DepthFormat11Bits, 0, 0, DepthImgNonTransfer, ControlModeSNSync, 0,
		nil, nil, nil))
	require.NoError(t, d.Close(), "Close must tear down an open stream first")
	assert.Equal(t, ModeIdle, d.Mode())
}
