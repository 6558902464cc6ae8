package mesh

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	_ "image/png"
	"os"

	"deferred-shadows/internal/gpu"

	_ "golang.org/x/image/bmp"
)

// Checker draws a size x size image of cells x cells alternating squares.
func Checker(size, cells int, a, b color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, size, size))
	if cells < 1 {
		cells = 1
	}
	cell := size / cells
	if cell < 1 {
		cell = 1
	}
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			c := a
			if (x/cell+y/cell)%2 == 1 {
				c = b
			}
			img.SetRGBA(x, y, c)
		}
	}
	return img
}

// UploadTexture copies img into an RGBA8 texture.
func UploadTexture(dev gpu.Device, img image.Image) (gpu.Texture, error) {
	rgba, ok := img.(*image.RGBA)
	if !ok || rgba.Stride != 4*rgba.Rect.Dx() || rgba.Rect.Min != (image.Point{}) {
		rgba = image.NewRGBA(image.Rect(0, 0, img.Bounds().Dx(), img.Bounds().Dy()))
		draw.Draw(rgba, rgba.Bounds(), img, img.Bounds().Min, draw.Src)
	}
	size := rgba.Rect.Size()
	tex, err := dev.NewColorTexture(size.X, size.Y, gpu.FormatRGBA8, rgba.Pix)
	if err != nil {
		return 0, fmt.Errorf("upload texture: %w", err)
	}
	return tex, nil
}

// LoadTexture decodes a PNG or BMP file and uploads it.
func LoadTexture(dev gpu.Device, path string) (gpu.Texture, error) {
	file, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("failed to open texture file: %w", err)
	}
	defer file.Close()

	img, _, err := image.Decode(file)
	if err != nil {
		return 0, fmt.Errorf("failed to decode image %s: %w", path, err)
	}
	return UploadTexture(dev, img)
}
