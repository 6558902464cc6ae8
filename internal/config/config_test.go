package config

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"deferred-shadows/internal/camera"
	"deferred-shadows/internal/light"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	s := Default()
	require.NoError(t, s.Validate())

	assert.Equal(t, 900, s.Window.Width)
	assert.Equal(t, 600, s.Window.Height)
	assert.Equal(t, 1024, s.Shadows.Resolution)
	assert.True(t, s.Shadows.Enabled)
	assert.Equal(t, [3]float32{5, 0, 5}, s.Camera.Eye)
	assert.Equal(t, float32(1), s.Camera.Near)
	assert.Equal(t, float32(50), s.Camera.Far)
	assert.Equal(t, float32(2), s.Controls.MoveSpeed)
	assert.Equal(t, float32(40), s.Controls.RotateSpeed)
	assert.Equal(t, float32(0.5), s.Controls.OrbitFactor)
	assert.False(t, s.Debug.GBufferView)

	require.Len(t, s.Lights, 4)
	assert.Equal(t, light.Directional, s.Lights[0].Type)
	for _, l := range s.Lights[1:] {
		assert.Equal(t, light.Point, l.Type)
	}
}

func TestDecodeOverlaysDefaults(t *testing.T) {
	s, err := Decode(strings.NewReader(`
[window]
width = 640

[shadows]
enabled = false
`))
	require.NoError(t, err)
	assert.Equal(t, 640, s.Window.Width)
	assert.Equal(t, 600, s.Window.Height, "unset keys keep their default")
	assert.False(t, s.Shadows.Enabled)
	assert.Equal(t, 1024, s.Shadows.Resolution)
	assert.Len(t, s.Lights, 4)
}

func TestDecodeReplacesLights(t *testing.T) {
	s, err := Decode(strings.NewReader(`
[[lights]]
name = "lamp"
type = "point"
position = [1.0, 2.0, 3.0]
radiance = [1.0, 0.5, 0.0]
diffuse = 0.8
shadow = true
attenuation = { constant = 1.0, linear = 0.1, exp = 0.01 }

[[lights]]
type = "spot"
direction = [1.0, -1.0, 0.0]
cutoff = 20.0
`))
	require.NoError(t, err)
	require.Len(t, s.Lights, 2)

	lamp := s.Lights[0]
	assert.Equal(t, "lamp", lamp.Name)
	assert.Equal(t, light.Point, lamp.Type)
	assert.Equal(t, [3]float32{1, 2, 3}, lamp.Position)
	assert.Equal(t, light.Attenuation{Constant: 1, Linear: 0.1, Exp: 0.01}, lamp.Attenuation)
	assert.True(t, lamp.Shadow)
	assert.Equal(t, light.Spot, s.Lights[1].Type)
	assert.Equal(t, float32(20), s.Lights[1].Cutoff)
}

func TestDecodeRejects(t *testing.T) {
	tests := []struct {
		name string
		toml string
	}{
		{"unknown key", "[window]\ncolour = 3\n"},
		{"unknown light type", "[[lights]]\ntype = \"laser\"\n"},
		{"syntax", "[window\n"},
		{"invalid value", "[window]\nwidth = -1\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(strings.NewReader(tt.toml))
			assert.Error(t, err)
		})
	}
}

func TestValidateReportsEveryProblem(t *testing.T) {
	s := Default()
	s.Window.Width = 0
	s.Camera.Near, s.Camera.Far = 10, 5
	s.Camera.Up = [3]float32{5, 0, 5}
	s.Scene.RoomSize = 0
	s.Lights = append(s.Lights, LightSpec{Name: "cone", Type: light.Spot, Shadow: true})

	err := s.Validate()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalid)
	assert.ErrorIs(t, err, light.ErrShadowUnsupported)
	for _, want := range []string{"window size 0x600", "near 10 far 5", "parallel", "room size", "cone"} {
		assert.Contains(t, err.Error(), want)
	}
}

func TestValidateLights(t *testing.T) {
	tests := []struct {
		name string
		spec LightSpec
		ok   bool
	}{
		{"point", LightSpec{Type: light.Point, Diffuse: 1}, true},
		{"directional without direction", LightSpec{Type: light.Directional}, false},
		{"negative diffuse", LightSpec{Type: light.Point, Diffuse: -1}, false},
		{"spot", LightSpec{Type: light.Spot, Direction: [3]float32{0, -1, 0}}, true},
		{"spot with shadow", LightSpec{Type: light.Spot, Shadow: true}, false},
		{"bad type", LightSpec{Type: light.Type(9)}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.spec.validate()
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrInvalid)
			}
		})
	}
}

func TestEncodeDecode(t *testing.T) {
	s := Default()
	s.Window.Title = "round trip"
	s.Lights[2].Orbit = true

	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, s))
	assert.Contains(t, buf.String(), `type = 'directional'`)

	got, err := Decode(&buf)
	require.NoError(t, err)
	assert.Equal(t, s, got)
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scene.toml")
	require.NoError(t, os.WriteFile(path, []byte("[debug]\ngbuffer_view = true\n"), 0o644))

	s, err := Load(path)
	require.NoError(t, err)
	assert.True(t, s.Debug.GBufferView)

	_, err = Load(filepath.Join(t.TempDir(), "missing.toml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoadResolvesFloorTexture(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "room.toml")
	require.NoError(t, os.WriteFile(path, []byte("[scene]\nfloor_texture = \"tiles.png\"\n"), 0o644))

	s, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "tiles.png"), s.Scene.FloorTexture)

	abs := filepath.Join(dir, "abs.bmp")
	require.NoError(t, os.WriteFile(path, []byte("[scene]\nfloor_texture = '"+abs+"'\n"), 0o644))
	s, err = Load(path)
	require.NoError(t, err)
	assert.Equal(t, abs, s.Scene.FloorTexture)

	require.NoError(t, os.WriteFile(path, []byte("[scene]\nfloor_texture = 'tiles.jpg'\n"), 0o644))
	_, err = Load(path)
	assert.ErrorIs(t, err, ErrInvalid)
	assert.ErrorContains(t, err, "tiles.jpg")
}

func TestBuildLights(t *testing.T) {
	reg, orbiting, err := Default().BuildLights()
	require.NoError(t, err)
	require.Equal(t, 4, reg.Len())

	all := reg.All()
	sun := all[0]
	assert.Equal(t, light.Directional, sun.Type())
	assert.Equal(t, mgl32.Vec3{1, 0, 0}, sun.Direction())
	assert.True(t, sun.WantsShadow())
	assert.Equal(t, float32(0.1), sun.AmbientIntensity())

	green := all[1]
	att, ok := green.Attenuation()
	require.True(t, ok)
	assert.Equal(t, light.Attenuation{Exp: 1}, att)
	assert.Equal(t, mgl32.Vec3{0, 1.5, 5}, green.Position())

	require.Len(t, orbiting, 1)
	assert.Equal(t, mgl32.Vec3{0, 0, 1}, orbiting[0].Radiance())
}

func TestBuildSpotKeepsCutoff(t *testing.T) {
	l := LightSpec{Type: light.Spot, Cutoff: 20, Direction: [3]float32{0, -2, 0}}.Build()
	cutoff, ok := l.Cutoff()
	require.True(t, ok)
	assert.Equal(t, float32(20), cutoff)
	assert.Equal(t, mgl32.Vec3{0, -1, 0}, l.Direction())
}

func TestBuildCamera(t *testing.T) {
	c := Default().Camera
	cam, err := c.BuildCamera(1.5)
	require.NoError(t, err)
	assert.Equal(t, mgl32.Vec3{5, 0, 5}, cam.Position())
	assert.Equal(t, float32(1.5), cam.Aspect())
	assert.Equal(t, float32(50), cam.Far())
	assert.Equal(t, camera.Perspective, cam.Kind())

	c.Orthographic = true
	cam, err = c.BuildCamera(1)
	require.NoError(t, err)
	assert.Equal(t, camera.Orthographic, cam.Kind())

	_, err = c.BuildCamera(0)
	assert.ErrorIs(t, err, camera.ErrInvalidAspect)
}
