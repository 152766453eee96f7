//go:build integration

package orange

import (
	"log"
	"testing"
	"time"

	"github.com/kevmo314/go-orange/pkg/transfers"
)

// Requires a connected 80363 module with usable /dev/bus/usb permissions.

func TestDeviceInfo(t *testing.T) {
	dev, err := Open()
	if err != nil {
		t.Fatal(err)
	}
	defer dev.Close()

	fw, err := dev.FirmwareVersion()
	if err != nil {
		t.Fatal(err)
	}
	log.Printf("firmware version: %s", fw)

	sn, err := dev.SerialNumber()
	if err != nil {
		t.Fatal(err)
	}
	log.Printf("serial number: %s", sn)
}

func TestInterleaveCapture(t *testing.T) {
	dev, err := Open()
	if err != nil {
		t.Fatal(err)
	}
	defer dev.Close()

	colorFrames := 0
	depthFrames := 0
	err = dev.InitStream(ColorFormatYUY2, 1280, 720, 30,
		DepthFormat11BitsInterleave, 1280, 1280, DepthImgNonTransfer, ControlModeSNSync, 0,
		func(f *transfers.Frame) error {
			if f.Serial%2 != 1 {
				t.Errorf("color frame with even serial %d", f.Serial)
			}
			colorFrames++
			return nil
		},
		func(f *transfers.Frame) error {
			if f.Serial%2 != 0 {
				t.Errorf("depth frame with odd serial %d", f.Serial)
			}
			if f.ZDTable == nil {
				t.Error("depth frame missing ZD table")
			}
			depthFrames++
			return nil
		},
		nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := dev.EnableStream(); err != nil {
		t.Fatal(err)
	}

	time.Sleep(5 * time.Second)
	stats := dev.RouterStats()
	log.Printf("router stats: %+v", stats)

	if err := dev.CloseStream(); err != nil {
		t.Fatal(err)
	}
	if colorFrames == 0 || depthFrames == 0 {
		t.Fatalf("captured %d color / %d depth frames, want both > 0", colorFrames, depthFrames)
	}
}
