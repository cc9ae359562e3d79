//go:build !tinygo && cgo

package hal

import (
	"image"
	"time"

	"libtock/internal/buildinfo"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
)

// buttonKeys maps digit keys 1..n to buttons 0..n-1.
var buttonKeys = [HostButtons]ebiten.Key{
	ebiten.KeyDigit1,
	ebiten.KeyDigit2,
	ebiten.KeyDigit3,
	ebiten.KeyDigit4,
}

// RunWindow starts a desktop window that displays the framebuffer and maps digit keys to buttons.
// It blocks until the window closes.
func RunWindow(newApp func(HAL) func() error) error {
	h := New().(*hostHAL)
	step := newApp(h)

	g := &hostGame{h: h, step: step}
	ebiten.SetWindowTitle("libtock simulator (" + buildinfo.Short() + ")")
	ebiten.SetWindowSize(h.fb.width*3, h.fb.height*3)
	ebiten.SetTPS(60)
	return ebiten.RunGame(g)
}

type hostGame struct {
	h       *hostHAL
	img     *image.RGBA
	fbImg   *ebiten.Image
	scratch []byte
	step    func() error
}

func (g *hostGame) pollButtons() {
	for i, key := range buttonKeys {
		if inpututil.IsKeyJustPressed(key) {
			g.h.buttons.emit(i, true)
		}
		if inpututil.IsKeyJustReleased(key) {
			g.h.buttons.emit(i, false)
		}
	}
}

func (g *hostGame) Update() error {
	g.pollButtons()
	g.h.t.catchUp(time.Now())
	if g.step != nil {
		if err := g.step(); err != nil {
			return err
		}
	}
	return nil
}

func (g *hostGame) Draw(screen *ebiten.Image) {
	fb := g.h.fb
	if g.img == nil {
		g.img = image.NewRGBA(image.Rect(0, 0, fb.width, fb.height))
		g.scratch = make([]byte, len(fb.buf))
		g.fbImg = ebiten.NewImage(fb.width, fb.height)
	}

	fb.snapshotRGB565(g.scratch)

	dst := g.img.Pix
	for i := 0; i+1 < len(g.scratch) && i*2+3 < len(dst); i += 2 {
		r, gg, b := RGB888(GetRGB565(g.scratch, i))
		j := i * 2
		dst[j], dst[j+1], dst[j+2], dst[j+3] = r, gg, b, 0xFF
	}

	g.fbImg.WritePixels(g.img.Pix)
	screen.DrawImage(g.fbImg, nil)
}

func (g *hostGame) Layout(outsideWidth, outsideHeight int) (int, int) {
	return g.h.fb.width, g.h.fb.height
}
