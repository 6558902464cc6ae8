// Package config holds the renderer settings: window, shadows, camera,
// controls and the light list. Settings are plain values passed to whoever
// needs them; Default returns the stock scene and Load overlays a TOML file
// on top of it.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"deferred-shadows/internal/camera"
	"deferred-shadows/internal/light"
	"deferred-shadows/internal/shadow"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/pelletier/go-toml/v2"
)

var ErrInvalid = errors.New("config: invalid settings")

// Settings is the complete program configuration.
type Settings struct {
	Window   WindowSettings  `toml:"window"`
	Shadows  ShadowSettings  `toml:"shadows"`
	Camera   CameraSettings  `toml:"camera"`
	Controls ControlSettings `toml:"controls"`
	Debug    DebugSettings   `toml:"debug"`
	Scene    SceneSettings   `toml:"scene"`
	Lights   []LightSpec     `toml:"lights"`
}

type WindowSettings struct {
	Width  int    `toml:"width"`
	Height int    `toml:"height"`
	Title  string `toml:"title"`
	VSync  bool   `toml:"vsync"`
	// FPSLimit caps the frame rate when positive.
	FPSLimit int `toml:"fps_limit"`
}

type ShadowSettings struct {
	Enabled    bool `toml:"enabled"`
	Resolution int  `toml:"resolution"`
}

type CameraSettings struct {
	Eye          [3]float32 `toml:"eye"`
	Target       [3]float32 `toml:"target"`
	Up           [3]float32 `toml:"up"`
	FOV          float32    `toml:"fov"`
	Near         float32    `toml:"near"`
	Far          float32    `toml:"far"`
	Orthographic bool       `toml:"orthographic"`
}

// ControlSettings are per-second rates applied by the input handling.
type ControlSettings struct {
	MoveSpeed   float32 `toml:"move_speed"`   // units per second
	RotateSpeed float32 `toml:"rotate_speed"` // degrees per second
	// OrbitFactor scales RotateSpeed for the light animation.
	OrbitFactor float32 `toml:"orbit_factor"`
}

type DebugSettings struct {
	GBufferView bool `toml:"gbuffer_view"`
	Logging     bool `toml:"logging"`
	Profile     bool `toml:"profile"`
}

// LightSpec describes one light of the scene.
type LightSpec struct {
	Name        string            `toml:"name"`
	Type        light.Type        `toml:"type"`
	Position    [3]float32        `toml:"position"`
	Direction   [3]float32        `toml:"direction"`
	Radiance    [3]float32        `toml:"radiance"`
	Ambient     float32           `toml:"ambient"`
	Diffuse     float32           `toml:"diffuse"`
	Attenuation light.Attenuation `toml:"attenuation"`
	Cutoff      float32           `toml:"cutoff"` // degrees, spot only
	Shadow      bool              `toml:"shadow"`
	Orbit       bool              `toml:"orbit"`
}

// Default returns the stock configuration: a 900x600 window, 1024² shadow
// maps, the camera at (5,0,5) looking at the origin and the four lights of
// the default room.
func Default() Settings {
	return Settings{
		Window:  WindowSettings{Width: 900, Height: 600, Title: "deferred shadows", VSync: true},
		Shadows: ShadowSettings{Enabled: true, Resolution: 1024},
		Camera: CameraSettings{
			Eye:    [3]float32{5, 0, 5},
			Target: [3]float32{0, 0, 0},
			Up:     [3]float32{0, 1, 0},
			FOV:    camera.DefaultFOV,
			Near:   shadow.Near,
			Far:    shadow.Far,
		},
		Controls: ControlSettings{MoveSpeed: 2, RotateSpeed: 40, OrbitFactor: 0.5},
		Scene:    DefaultScene(),
		Lights:   DefaultLights(),
	}
}

// DefaultLights is a white directional light and three coloured point
// lights around the centre of the room. The blue one orbits.
func DefaultLights() []LightSpec {
	point := func(name string, pos, rad [3]float32) LightSpec {
		return LightSpec{
			Name:        name,
			Type:        light.Point,
			Position:    pos,
			Radiance:    rad,
			Diffuse:     0.2,
			Attenuation: light.Attenuation{Exp: 1},
			Shadow:      true,
		}
	}
	blue := point("blue", [3]float32{0, 0, 3}, [3]float32{0, 0, 1})
	blue.Orbit = true
	return []LightSpec{
		{
			Name:      "sun",
			Type:      light.Directional,
			Position:  [3]float32{-7, 0, 0},
			Direction: [3]float32{1, 0, 0},
			Radiance:  [3]float32{1, 1, 1},
			Ambient:   0.1,
			Diffuse:   0.5,
			Shadow:    true,
		},
		point("green", [3]float32{0, 1.5, 5}, [3]float32{0, 1, 0}),
		point("red", [3]float32{2, 0, 5}, [3]float32{1, 0, 0}),
		blue,
	}
}

// Load reads a TOML file over the defaults. Tables and keys absent from the
// file keep their default values; a lights array replaces the default
// lights entirely.
func Load(path string) (Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Settings{}, fmt.Errorf("config: %w", err)
	}
	s, err := Decode(bytes.NewReader(data))
	if err != nil {
		return Settings{}, fmt.Errorf("config: %s: %w", path, err)
	}
	if tex := s.Scene.FloorTexture; tex != "" && !filepath.IsAbs(tex) {
		s.Scene.FloorTexture = filepath.Join(filepath.Dir(path), tex)
	}
	return s, nil
}

// Decode reads TOML from r over the defaults and validates the result.
// Unknown keys are rejected.
func Decode(r io.Reader) (Settings, error) {
	s := Default()
	// lights are replaced, not merged element by element
	s.Lights = nil
	dec := toml.NewDecoder(r).DisallowUnknownFields()
	if err := dec.Decode(&s); err != nil {
		var derr *toml.DecodeError
		if errors.As(err, &derr) {
			row, col := derr.Position()
			return Settings{}, fmt.Errorf("line %d column %d: %w", row, col, err)
		}
		return Settings{}, err
	}
	if s.Lights == nil {
		s.Lights = DefaultLights()
	}
	if err := s.Validate(); err != nil {
		return Settings{}, err
	}
	return s, nil
}

// Encode writes s as TOML.
func Encode(w io.Writer, s Settings) error {
	return toml.NewEncoder(w).Encode(s)
}

// Validate reports every problem at once, joined, each wrapping ErrInvalid.
func (s Settings) Validate() error {
	var errs []error
	bad := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalid}, args...)...))
	}
	if s.Window.Width <= 0 || s.Window.Height <= 0 {
		bad("window size %dx%d", s.Window.Width, s.Window.Height)
	}
	if s.Window.FPSLimit < 0 {
		bad("fps limit %d", s.Window.FPSLimit)
	}
	if s.Shadows.Resolution <= 0 {
		bad("shadow resolution %d", s.Shadows.Resolution)
	}
	c := s.Camera
	if c.Near <= 0 || c.Near >= c.Far {
		bad("camera clip near %g far %g", c.Near, c.Far)
	}
	if c.FOV <= 0 || c.FOV >= 180 {
		bad("camera fov %g", c.FOV)
	}
	if mgl32.Vec3(c.Eye).Sub(c.Target).Len() < 1e-6 {
		bad("camera eye equals target")
	} else if mgl32.Vec3(c.Up).Cross(mgl32.Vec3(c.Eye).Sub(c.Target)).Len() < 1e-6 {
		bad("camera up is parallel to the line of sight")
	}
	if s.Controls.MoveSpeed < 0 || s.Controls.RotateSpeed < 0 {
		bad("negative control speed")
	}
	if err := s.Scene.validate(); err != nil {
		errs = append(errs, err)
	}
	for i, l := range s.Lights {
		if err := l.validate(); err != nil {
			errs = append(errs, fmt.Errorf("light %d (%s): %w", i, l.Name, err))
		}
	}
	return errors.Join(errs...)
}

func (l LightSpec) validate() error {
	switch {
	case l.Type < light.Directional || l.Type > light.Spot:
		return fmt.Errorf("%w: type %d", ErrInvalid, l.Type)
	case l.Diffuse < 0 || l.Ambient < 0:
		return fmt.Errorf("%w: negative intensity", ErrInvalid)
	case l.Type == light.Directional && mgl32.Vec3(l.Direction).Len() < 1e-6:
		return fmt.Errorf("%w: directional light needs a direction", ErrInvalid)
	case l.Type == light.Spot && l.Shadow:
		return fmt.Errorf("%w: %w", ErrInvalid, light.ErrShadowUnsupported)
	}
	return nil
}

// Build turns the spec into a light.
func (l LightSpec) Build() *light.Light {
	opts := []light.Option{
		light.WithPosition(l.Position),
		light.WithRadiance(l.Radiance),
		light.WithAmbient(l.Ambient),
		light.WithDiffuse(l.Diffuse),
		light.WithAttenuation(l.Attenuation),
		light.WithCutoff(l.Cutoff),
	}
	if mgl32.Vec3(l.Direction).Len() > 0 {
		opts = append(opts, light.WithDirection(l.Direction))
	}
	if l.Shadow {
		opts = append(opts, light.WithShadow())
	}
	return light.New(l.Type, opts...)
}

// BuildLights creates a registry holding every configured light, in order.
// The returned slice lists the lights to orbit.
func (s Settings) BuildLights() (*light.Registry, []*light.Light, error) {
	reg := light.NewRegistry()
	var orbiting []*light.Light
	for _, spec := range s.Lights {
		l := spec.Build()
		if err := reg.Add(l); err != nil {
			return nil, nil, err
		}
		if spec.Orbit {
			orbiting = append(orbiting, l)
		}
	}
	return reg, orbiting, nil
}

// BuildCamera creates the main camera for a viewport of the given aspect.
func (c CameraSettings) BuildCamera(aspect float32) (*camera.Camera, error) {
	cam := camera.New()
	if err := cam.LookAt(c.Eye, c.Target, c.Up); err != nil {
		return nil, err
	}
	if err := cam.SetFOV(c.FOV); err != nil {
		return nil, err
	}
	if err := cam.SetAspect(aspect); err != nil {
		return nil, err
	}
	if err := cam.SetDepthClip(c.Near, c.Far); err != nil {
		return nil, err
	}
	if c.Orthographic {
		cam.SetOrtho()
	}
	return cam, nil
}
