// Package camera implements an orthonormal view frame with a cached view
// matrix and a projection built from an orthographic mapping optionally
// composed with a perspective term.
package camera

import (
	"errors"

	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

var (
	ErrDegenerateFrame = errors.New("camera: up vector is collinear with the view direction")
	ErrInvalidClip     = errors.New("camera: depth clip requires 0 < near < far")
	ErrInvalidFOV      = errors.New("camera: field of view must be in (0, 180) degrees")
	ErrInvalidAspect   = errors.New("camera: aspect ratio must be positive")
)

// ProjectionKind selects the final projection matrix.
type ProjectionKind int

const (
	Perspective ProjectionKind = iota
	Orthographic
)

func (k ProjectionKind) String() string {
	if k == Orthographic {
		return "orthographic"
	}
	return "perspective"
}

const (
	DefaultFOV    = 60 // degrees
	DefaultAspect = 1
	DefaultNear   = 1
	DefaultFar    = 30

	frameEpsilon = 1e-6
)

// Camera is a right-handed view frame. View points from the target back
// towards the eye, so the camera looks along -View.
type Camera struct {
	position mgl32.Vec3
	right    mgl32.Vec3
	up       mgl32.Vec3
	view     mgl32.Vec3

	fov    float32 // radians
	aspect float32
	near   float32
	far    float32
	kind   ProjectionKind

	worldView   mgl32.Mat4
	orthoMap    mgl32.Mat4
	perspective mgl32.Mat4
	projection  mgl32.Mat4
}

// New returns a perspective camera at the origin looking down -Z with +Y up.
func New() *Camera {
	c := &Camera{
		position: mgl32.Vec3{0, 0, 0},
		right:    mgl32.Vec3{1, 0, 0},
		up:       mgl32.Vec3{0, 1, 0},
		view:     mgl32.Vec3{0, 0, 1},
		fov:      mgl32.DegToRad(DefaultFOV),
		aspect:   DefaultAspect,
		near:     DefaultNear,
		far:      DefaultFar,
		kind:     Perspective,
	}
	c.updateView()
	c.updateProjection()
	return c
}

// LookAt places the camera at position facing target. The frame is left
// untouched and ErrDegenerateFrame returned when up is parallel to the line
// of sight or position equals target.
func (c *Camera) LookAt(position, target, up mgl32.Vec3) error {
	dir := position.Sub(target)
	if dir.Len() < frameEpsilon {
		return ErrDegenerateFrame
	}
	view := dir.Normalize()
	right := up.Cross(view)
	if right.Len() < frameEpsilon {
		return ErrDegenerateFrame
	}
	right = right.Normalize()

	c.position = position
	c.view = view
	c.right = right
	c.up = view.Cross(right).Normalize()
	c.updateView()
	return nil
}

func (c *Camera) SetPosition(p mgl32.Vec3) {
	c.position = p
	c.updateView()
}

// SetFOV sets the vertical field of view in degrees.
func (c *Camera) SetFOV(degrees float32) error {
	if !finite(degrees) || degrees <= 0 || degrees >= 180 {
		return ErrInvalidFOV
	}
	c.fov = mgl32.DegToRad(degrees)
	c.updateProjection()
	return nil
}

func (c *Camera) SetAspect(aspect float32) error {
	if !finite(aspect) || aspect <= 0 {
		return ErrInvalidAspect
	}
	c.aspect = aspect
	c.updateProjection()
	return nil
}

// SetDepthClip sets the near and far clip distances.
func (c *Camera) SetDepthClip(near, far float32) error {
	if !finite(near) || !finite(far) || near <= 0 || near >= far {
		return ErrInvalidClip
	}
	c.near, c.far = near, far
	c.updateProjection()
	return nil
}

func finite(x float32) bool { return !math32.IsNaN(x) && !math32.IsInf(x, 0) }

// SetProjectionKind selects the projection without touching the cached
// orthographic mapping or perspective term.
func (c *Camera) SetProjectionKind(k ProjectionKind) {
	c.kind = k
	c.selectProjection()
}

func (c *Camera) SetPerspective() { c.SetProjectionKind(Perspective) }
func (c *Camera) SetOrtho()       { c.SetProjectionKind(Orthographic) }

// MoveForward moves towards the target, along -View.
func (c *Camera) MoveForward(d float32) {
	c.position = c.position.Sub(c.view.Mul(d))
	c.updateView()
}

func (c *Camera) MoveUp(d float32) {
	c.position = c.position.Add(c.up.Mul(d))
	c.updateView()
}

func (c *Camera) StrafeRight(d float32) {
	c.position = c.position.Add(c.right.Mul(d))
	c.updateView()
}

// RotateRight yaws the camera by angle radians about its up axis.
func (c *Camera) RotateRight(angle float32) {
	c.view = rotate(c.view, c.up, angle)
	c.right = c.up.Cross(c.view).Normalize()
	c.up = c.view.Cross(c.right).Normalize()
	c.view = c.view.Normalize()
	c.updateView()
}

// RotateUp pitches the camera by angle radians about its right axis.
func (c *Camera) RotateUp(angle float32) {
	c.view = rotate(c.view, c.right, angle)
	c.up = c.view.Cross(c.right).Normalize()
	c.right = c.up.Cross(c.view).Normalize()
	c.view = c.view.Normalize()
	c.updateView()
}

// Spin rolls the camera by angle radians about its view axis.
func (c *Camera) Spin(angle float32) {
	c.up = rotate(c.up, c.view, angle)
	c.right = c.up.Cross(c.view).Normalize()
	c.view = c.right.Cross(c.up).Normalize()
	c.up = c.up.Normalize()
	c.updateView()
}

func rotate(v, axis mgl32.Vec3, angle float32) mgl32.Vec3 {
	return mgl32.QuatRotate(angle, axis.Normalize()).Rotate(v)
}

func (c *Camera) Position() mgl32.Vec3        { return c.position }
func (c *Camera) Right() mgl32.Vec3           { return c.right }
func (c *Camera) Up() mgl32.Vec3              { return c.up }
func (c *Camera) ViewDir() mgl32.Vec3         { return c.view }
func (c *Camera) Kind() ProjectionKind        { return c.kind }
func (c *Camera) Aspect() float32             { return c.aspect }
func (c *Camera) Near() float32               { return c.near }
func (c *Camera) Far() float32                { return c.far }
func (c *Camera) View() mgl32.Mat4            { return c.worldView }
func (c *Camera) Projection() mgl32.Mat4      { return c.projection }
func (c *Camera) OrthoMapping() mgl32.Mat4    { return c.orthoMap }
func (c *Camera) PerspectiveTerm() mgl32.Mat4 { return c.perspective }

// FOV returns the vertical field of view in degrees.
func (c *Camera) FOV() float32 { return mgl32.RadToDeg(c.fov) }

func (c *Camera) updateView() {
	r, u, v, p := c.right, c.up, c.view, c.position
	c.worldView = mgl32.Mat4{
		r[0], u[0], v[0], 0,
		r[1], u[1], v[1], 0,
		r[2], u[2], v[2], 0,
		-r.Dot(p), -u.Dot(p), -v.Dot(p), 1,
	}
}

// updateProjection rebuilds both cached terms. The perspective term maps
// view space into homogeneous coordinates whose w is the eye distance; the
// orthographic mapping then scales the near-plane window [-r,r]x[-t,t] and
// the depth range [-n,-f] into the NDC cube.
func (c *Camera) updateProjection() {
	n, f := c.near, c.far
	t := n * math32.Tan(c.fov/2)
	r := c.aspect * t

	c.perspective = mgl32.Mat4{
		n, 0, 0, 0,
		0, n, 0, 0,
		0, 0, n + f, -1,
		0, 0, n * f, 0,
	}
	c.orthoMap = mgl32.Mat4{
		1 / r, 0, 0, 0,
		0, 1 / t, 0, 0,
		0, 0, 2 / (n - f), 0,
		0, 0, (n + f) / (n - f), 1,
	}
	c.selectProjection()
}

func (c *Camera) selectProjection() {
	if c.kind == Orthographic {
		c.projection = c.orthoMap
		return
	}
	c.projection = c.orthoMap.Mul4(c.perspective)
}
