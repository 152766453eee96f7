package main

import (
	"flag"
	"fmt"
	"image"
	"image/color"
	"log"
	"strconv"
	"sync/atomic"
	"time"

	"golang.org/x/image/draw"

	"github.com/gdamore/tcell/v2"
	"github.com/hajimehoshi/ebiten/v2"
	"github.com/rivo/tview"

	orange "github.com/kevmo314/go-orange"
	"github.com/kevmo314/go-orange/pkg/transfers"
)

type streamPreset struct {
	name        string
	colorWidth  int
	colorHeight int
	fps         int
	depthFormat orange.DepthFormat
	depthWidth  int
	depthHeight int
}

var presets = []streamPreset{
	{"Interleave 1280x720 + depth", 1280, 720, 30, orange.DepthFormat11BitsInterleave, 1280, 1280},
	{"Interleave 640x400 + depth", 640, 400, 30, orange.DepthFormat11BitsInterleave, 640, 640},
	{"Color only 1280x720", 1280, 720, 30, orange.DepthFormat11Bits, 0, 0},
	{"Depth only 640x400", 0, 0, 30, orange.DepthFormat11Bits, 640, 400},
	{"Dual stream 1280x720 / 640x400", 1280, 720, 30, orange.DepthFormat11Bits, 640, 400},
}

type Display struct {
	frame atomic.Value
}

func (g *Display) Update() error { return nil }

func (g *Display) Draw(screen *ebiten.Image) {
	screen.DrawImage(g.frame.Load().(*ebiten.Image), &ebiten.DrawImageOptions{})
}

func (g *Display) Layout(outsideWidth, outsideHeight int) (int, int) {
	frame := g.frame.Load().(*ebiten.Image)
	return frame.Bounds().Dx(), frame.Bounds().Dy()
}

func main() {
	render := flag.Bool("render", false, "render depth frames to screen (requires a display)")
	flag.Parse()

	dev, err := orange.Open()
	if err != nil {
		panic(err)
	}
	defer dev.Close()

	app := tview.NewApplication()

	paths := tview.NewList().ShowSecondaryText(false)
	paths.SetBorder(true).SetTitle("USB Paths")

	categories := tview.NewList()
	categories.SetBorder(true).SetTitle("Action Categories")
	for _, c := range orange.Categories() {
		ep := dev.Resolve(c)
		categories.AddItem(c.String(), fmt.Sprintf("path base+%d", ep.Index), 0, nil)
		if c == orange.CategoryDeviceInfo || c == orange.CategoryIRControl {
			paths.AddItem(fmt.Sprintf("base+%d  %s", ep.Index, ep.Path), "", 0, nil)
		}
	}

	modes := tview.NewList()
	modes.SetBorder(true).SetTitle("Streaming Modes")

	controls := tview.NewList().ShowSecondaryText(false)
	controls.SetBorder(true).SetTitle("Controls")

	preview := tview.NewImage()
	preview.SetColors(256).SetDithering(tview.DitheringNone).SetBorder(true).SetTitle("Depth Preview")

	logText := tview.NewTextView()
	logText.SetMaxLines(10).SetBorder(true).SetTitle("Log")
	log.SetOutput(logText)

	secondColumn := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(modes, 0, 1, false).
		AddItem(controls, 0, 1, false)

	if fw, err := dev.FirmwareVersion(); err == nil {
		log.Printf("firmware: %s", fw)
	}
	if sn, err := dev.SerialNumber(); err == nil {
		log.Printf("serial: %s", sn)
	}

	active := &atomic.Uint32{}

	for _, p := range presets {
		modes.AddItem(p.name, fmt.Sprintf("depth format %#02x", uint32(p.depthFormat)), 0, func() {
			track := active.Add(1)
			if err := dev.CloseStream(); err != nil {
				log.Printf("error closing previous stream: %s", err)
				return
			}

			var g *Display
			if *render {
				g = &Display{}
			}
			t0 := time.Now().Add(-time.Second)
			depthCallback := func(f *transfers.Frame) error {
				if active.Load() != track {
					return nil
				}
				t1 := time.Now()
				if t1.Sub(t0) < 50*time.Millisecond {
					return nil
				}
				t0 = t1
				img := depthToGray(f)
				if g != nil {
					if g.frame.Swap(ebiten.NewImageFromImage(img)) == nil {
						go func() {
							if err := ebiten.RunGame(g); err != nil {
								log.Printf("ebiten error: %s", err)
							}
						}()
					}
					return nil
				}
				w := 64
				h := img.Bounds().Dy() * w / img.Bounds().Dx()
				preview.SetImage(resize(img, w, h))
				app.ForceDraw()
				return nil
			}
			colorCallback := func(f *transfers.Frame) error { return nil }

			err := dev.InitStream(orange.ColorFormatYUY2, p.colorWidth, p.colorHeight, p.fps,
				p.depthFormat, p.depthWidth, p.depthHeight,
				orange.DepthImgNonTransfer, orange.ControlModeSNSync, 0,
				colorCallback, depthCallback, nil)
			if err != nil {
				log.Printf("error initializing stream: %s", err)
				return
			}
			if err := dev.EnableStream(); err != nil {
				log.Printf("error enabling stream: %s", err)
				return
			}
			log.Printf("streaming in %s mode", dev.Mode())
			app.SetFocus(controls)
		})
	}

	controls.AddItem("Set IR value", "", 0, func() {
		input := tview.NewInputField()
		input.SetLabel("IR intensity (0-6): ").
			SetFieldWidth(4).
			SetAcceptanceFunc(tview.InputFieldInteger).
			SetDoneFunc(func(key tcell.Key) {
				v, err := strconv.ParseInt(input.GetText(), 10, 32)
				if err != nil {
					log.Printf("failed parsing value: %s", err)
					return
				}
				if err := dev.SetIRValue(int32(v)); err != nil {
					log.Printf("ir control failed: %s", err)
				}
				secondColumn.RemoveItem(input)
				app.SetFocus(controls)
			})
		secondColumn.AddItem(input, 0, 1, false)
		app.SetFocus(input)
	})
	controls.AddItem("Router stats", "", 0, func() {
		s := dev.RouterStats()
		log.Printf("routed %d (color %d / depth %d), read errors %d",
			s.Routed(), s.ColorRouted, s.DepthRouted, s.ReadErrors)
	})
	controls.AddItem("Stop stream", "", 0, func() {
		active.Add(1)
		if err := dev.CloseStream(); err != nil {
			log.Printf("error closing stream: %s", err)
		}
		log.Printf("stream closed")
	})

	firstColumn := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(paths, 0, 1, false).
		AddItem(categories, 0, 2, true)

	flex := tview.NewFlex().
		AddItem(firstColumn, 0, 1, true).
		AddItem(secondColumn, 0, 1, false)
	if !*render {
		flex.AddItem(preview, 0, 2, false)
	}

	root := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(flex, 0, 1, true).
		AddItem(logText, 10, 0, false)
	if err := app.SetRoot(root, true).Run(); err != nil {
		panic(err)
	}
}

// depthToGray maps raw little-endian depth samples onto an 8-bit grayscale
// image, scaled by the sample bit depth.
func depthToGray(f *transfers.Frame) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, f.Width, f.Height))
	shift := uint(3) // 11-bit samples
	if orange.DepthFormat(f.Format).Bits() == 14 {
		shift = 6
	}
	for y := 0; y < f.Height; y++ {
		for x := 0; x < f.Width; x++ {
			img.SetGray(x, y, color.Gray{Y: uint8(f.Depth(x, y) >> shift)})
		}
	}
	return img
}

func resize(img image.Image, w, h int) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.NearestNeighbor.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Over, nil)
	return dst
}
