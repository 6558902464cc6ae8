// Package light models the scene lights. A Light is a single record with a
// type tag; the fields that only some types carry (attenuation, cutoff) live
// in a per-type parameter value. A shadow-casting light exclusively owns its
// shadow map.
package light

import (
	"errors"
	"fmt"

	"deferred-shadows/internal/gpu"
	"deferred-shadows/internal/scene"
	"deferred-shadows/internal/shaders"
	"deferred-shadows/internal/shadow"

	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/google/uuid"
)

var ErrShadowUnsupported = errors.New("light: shadows are not supported for spot lights")

// Type tags a Light.
type Type int

const (
	Directional Type = iota
	Point
	Spot
)

func (t Type) String() string {
	switch t {
	case Directional:
		return "directional"
	case Point:
		return "point"
	case Spot:
		return "spot"
	}
	return fmt.Sprintf("Type(%d)", int(t))
}

func (t Type) MarshalText() ([]byte, error) { return []byte(t.String()), nil }

// UnmarshalText accepts the names produced by String.
func (t *Type) UnmarshalText(b []byte) error {
	for _, c := range []Type{Directional, Point, Spot} {
		if string(b) == c.String() {
			*t = c
			return nil
		}
	}
	return fmt.Errorf("light: unknown type %q", b)
}

// Attenuation is constant + linear·d + exp·d².
type Attenuation struct {
	Constant float32 `toml:"constant"`
	Linear   float32 `toml:"linear"`
	Exp      float32 `toml:"exp"`
}

// Vec3 packs the coefficients in shader order.
func (a Attenuation) Vec3() mgl32.Vec3 {
	return mgl32.Vec3{a.Constant, a.Linear, a.Exp}
}

// At evaluates the attenuation at distance d.
func (a Attenuation) At(d float32) float32 {
	return a.Constant + a.Linear*d + a.Exp*d*d
}

// params holds the fields specific to one light type.
type params interface {
	lightType() Type
}

type directionalParams struct{}

type pointParams struct {
	attenuation Attenuation
}

type spotParams struct {
	attenuation Attenuation
	cutoff      float32 // degrees
}

func (directionalParams) lightType() Type { return Directional }
func (pointParams) lightType() Type       { return Point }
func (spotParams) lightType() Type        { return Spot }

// Light is a directional, point or spot light.
type Light struct {
	id uuid.UUID

	radiance         mgl32.Vec3
	ambientIntensity float32
	diffuseIntensity float32
	position         mgl32.Vec3
	direction        mgl32.Vec3
	params           params

	wantsShadow bool
	shadow      *shadow.Map
}

// New builds a light of type typ. Unset fields default to a grey light at
// the origin pointing down -Y with no attenuation.
func New(typ Type, opts ...Option) *Light {
	l := &Light{
		id:        uuid.New(),
		radiance:  mgl32.Vec3{0.6, 0.6, 0.6},
		direction: mgl32.Vec3{0, -1, 0},
	}
	switch typ {
	case Point:
		l.params = pointParams{}
	case Spot:
		l.params = spotParams{}
	default:
		l.params = directionalParams{}
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *Light) ID() uuid.UUID             { return l.id }
func (l *Light) Type() Type                { return l.params.lightType() }
func (l *Light) Radiance() mgl32.Vec3      { return l.radiance }
func (l *Light) AmbientIntensity() float32 { return l.ambientIntensity }
func (l *Light) DiffuseIntensity() float32 { return l.diffuseIntensity }
func (l *Light) Position() mgl32.Vec3      { return l.position }
func (l *Light) Direction() mgl32.Vec3     { return l.direction }
func (l *Light) WantsShadow() bool         { return l.wantsShadow }
func (l *Light) SetPosition(p mgl32.Vec3)  { l.position = p }
func (l *Light) SetRadiance(r mgl32.Vec3)  { l.radiance = r }

// SetDirection stores d normalised. A zero vector is ignored.
func (l *Light) SetDirection(d mgl32.Vec3) {
	if d.Len() == 0 {
		return
	}
	l.direction = d.Normalize()
}

// Attenuation reports the coefficients of a point or spot light.
func (l *Light) Attenuation() (Attenuation, bool) {
	switch p := l.params.(type) {
	case pointParams:
		return p.attenuation, true
	case spotParams:
		return p.attenuation, true
	}
	return Attenuation{}, false
}

// Cutoff reports the cone angle of a spot light in degrees.
func (l *Light) Cutoff() (float32, bool) {
	if p, ok := l.params.(spotParams); ok {
		return p.cutoff, true
	}
	return 0, false
}

// EffectiveRadius bounds the region where a light contributes noticeably.
// It sizes the proxy sphere drawn for point lights.
func EffectiveRadius(radiance mgl32.Vec3, diffuse float32) float32 {
	m := math32.Max(radiance[0], math32.Max(radiance[1], radiance[2]))
	return 8*math32.Sqrt(math32.Max(m*diffuse, 0)) + 1
}

func (l *Light) EffectiveRadius() float32 {
	return EffectiveRadius(l.radiance, l.diffuseIntensity)
}

// Orbit rotates the light about the world Y axis by angle radians. Point and
// spot lights move; directional lights turn.
func (l *Light) Orbit(angle float32) {
	rot := mgl32.HomogRotate3DY(angle)
	l.position = mgl32.TransformCoordinate(l.position, rot)
	if l.Type() != Point {
		l.direction = mgl32.TransformNormal(l.direction, rot).Normalize()
	}
}

func (l *Light) String() string {
	return fmt.Sprintf("%s light %s", l.Type(), l.id.String()[:8])
}

// Shadow returns the owned shadow map, or nil.
func (l *Light) Shadow() *shadow.Map { return l.shadow }

// ShadowEnabled reports whether the light has a ready shadow map.
func (l *Light) ShadowEnabled() bool {
	return l.shadow != nil && l.shadow.Ready()
}

// ShadowKind maps the light type to its shadow rig.
func (l *Light) ShadowKind() (shadow.Kind, error) {
	switch l.Type() {
	case Directional:
		return shadow.Directional, nil
	case Point:
		return shadow.Omni, nil
	}
	return 0, ErrShadowUnsupported
}

// EnableShadow creates and initialises the light's shadow map, replacing
// any previous one. On failure the light is left without a shadow map.
func (l *Light) EnableShadow(dev gpu.Device, resolution int, depth shaders.Shader) error {
	kind, err := l.ShadowKind()
	if err != nil {
		return err
	}
	l.DisableShadow()
	m := shadow.New(kind)
	if err := m.Init(dev, resolution, depth); err != nil {
		return fmt.Errorf("%s: %w", l, err)
	}
	l.shadow = m
	l.wantsShadow = true
	return nil
}

// DisableShadow destroys the shadow map.
func (l *Light) DisableShadow() {
	if l.shadow != nil {
		l.shadow.Destroy()
		l.shadow = nil
	}
}

// ShadowPose is the world-space pose of the light's shadow camera.
// Directional lights look from their position along their direction.
func (l *Light) ShadowPose() shadow.Pose {
	p := shadow.Pose{Position: l.position, Up: mgl32.Vec3{0, 1, 0}}
	if l.Type() == Directional {
		p.Target = l.position.Add(l.direction)
		if math32.Abs(l.direction.Dot(p.Up)) > 0.99 {
			p.Up = mgl32.Vec3{0, 0, 1}
		}
	}
	return p
}

// CreateShadow re-renders the shadow map for objects seen by mainView.
func (l *Light) CreateShadow(objects []scene.Object, mainView mgl32.Mat4) error {
	if l.shadow == nil {
		return shadow.ErrNotReady
	}
	return l.shadow.Create(objects, mainView, l.ShadowPose())
}

// BindShadow exposes the shadow map on unit.
func (l *Light) BindShadow(unit int) error {
	if l.shadow == nil {
		return shadow.ErrNotReady
	}
	return l.shadow.BindAt(unit)
}

// UnbindShadow clears unit.
func (l *Light) UnbindShadow(unit int) {
	if l.shadow != nil {
		l.shadow.UnbindAt(unit)
	}
}

// Destroy releases everything the light owns.
func (l *Light) Destroy() {
	l.DisableShadow()
}
