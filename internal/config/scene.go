package config

import (
	"fmt"
	"path/filepath"
	"strings"
)

// SceneSettings shapes the default room: a cube of six planes with two
// solids inside.
type SceneSettings struct {
	RoomSize float32    `toml:"room_size"`
	Floor    [3]float32 `toml:"floor"` // floor and ceiling
	WallsX   [3]float32 `toml:"walls_x"`
	WallsZ   [3]float32 `toml:"walls_z"`
	Solids   [3]float32 `toml:"solids"`
	// Checker modulates the floor with a procedural checker texture.
	Checker bool `toml:"checker"`
	// FloorTexture is a PNG or BMP file for the floor. It replaces the
	// checker. Load resolves relative paths against the settings file.
	FloorTexture string `toml:"floor_texture,omitempty"`
}

func DefaultScene() SceneSettings {
	return SceneSettings{
		RoomSize: 15,
		Floor:    [3]float32{0.76, 0.75, 0.5},
		WallsX:   [3]float32{0.15, 0.48, 0.09},
		WallsZ:   [3]float32{0.63, 0.06, 0.04},
		Solids:   [3]float32{0.76, 0.75, 0.5},
	}
}

func (s SceneSettings) validate() error {
	if s.RoomSize <= 0 {
		return fmt.Errorf("%w: room size %g", ErrInvalid, s.RoomSize)
	}
	for _, c := range [][3]float32{s.Floor, s.WallsX, s.WallsZ, s.Solids} {
		for _, v := range c {
			if v < 0 || v > 1 {
				return fmt.Errorf("%w: colour %v outside [0, 1]", ErrInvalid, c)
			}
		}
	}
	if s.FloorTexture != "" {
		switch strings.ToLower(filepath.Ext(s.FloorTexture)) {
		case ".png", ".bmp":
		default:
			return fmt.Errorf("%w: floor texture %q is not a PNG or BMP file", ErrInvalid, s.FloorTexture)
		}
	}
	return nil
}
