package reference

import (
	"image"
	"image/color"

	"deferred-shadows/internal/gbuffer"

	"github.com/go-gl/mathgl/mgl32"
)

// Image converts the lit frame to 8-bit colour, clamped and flipped so row
// 0 is the top.
func (f *Frame) Image() *image.RGBA {
	return toImage(f.Color, f.Width, f.Height)
}

// ChannelImage converts one G-buffer attachment the way the debug blit
// shows it: raw values clamped to [0, 1].
func (f *Frame) ChannelImage(t gbuffer.TextureType) *image.RGBA {
	return toImage(f.GBuffer[t], f.Width, f.Height)
}

// DebugImage lays the four attachments out in quadrants like the
// pipeline's debug view: position bottom-left, diffuse top-left, normal
// top-right, texcoord bottom-right.
func (f *Frame) DebugImage() *image.RGBA {
	w, h := f.Width, f.Height
	out := make([]mgl32.Vec3, w*h)
	hw, hh := w/2, h/2
	quads := []struct {
		t          gbuffer.TextureType
		right, top bool
	}{
		{gbuffer.Position, false, false},
		{gbuffer.Diffuse, false, true},
		{gbuffer.Normal, true, true},
		{gbuffer.TexCoord, true, false},
	}
	for _, q := range quads {
		x0, y0 := 0, 0
		if q.right {
			x0 = hw
		}
		if q.top {
			y0 = hh
		}
		src := f.GBuffer[q.t]
		// each quadrant is the whole attachment scaled by half
		for y := 0; y < hh; y++ {
			for x := 0; x < hw; x++ {
				out[(y0+y)*w+x0+x] = src[(y*h/hh)*w+x*w/hw]
			}
		}
	}
	return toImage(out, w, h)
}

// Image converts face of the depth map to greyscale, top row first.
func (m *DepthMap) Image(face int) *image.Gray {
	n := m.Resolution
	img := image.NewGray(image.Rect(0, 0, n, n))
	for y := 0; y < n; y++ {
		for x := 0; x < n; x++ {
			img.SetGray(x, n-1-y, color.Gray{Y: unit8(m.Faces[face][y*n+x])})
		}
	}
	return img
}

func toImage(px []mgl32.Vec3, w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := px[y*w+x]
			img.SetRGBA(x, h-1-y, color.RGBA{R: unit8(c[0]), G: unit8(c[1]), B: unit8(c[2]), A: 255})
		}
	}
	return img
}

func unit8(v float32) uint8 {
	v = mgl32.Clamp(v, 0, 1)
	return uint8(v*255 + 0.5)
}
