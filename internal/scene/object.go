// Package scene holds the objects the renderer draws. An object pairs a
// shared, read-only geometry with a material and an object-to-world
// transform. Geometry is owned elsewhere and must outlive every object that
// references it.
package scene

import (
	"deferred-shadows/internal/gpu"

	"github.com/go-gl/mathgl/mgl32"
)

// Renderable issues the draw calls for a piece of geometry using whatever
// program is currently bound.
type Renderable interface {
	Rasterize() error
}

// Material describes the surface of an object.
type Material struct {
	Albedo mgl32.Vec3
	// Texture modulates Albedo when non-zero.
	Texture gpu.Texture
	// DoubleSided objects cast shadows from both faces. Open surfaces such
	// as a lone plane need it when their front face points at a light.
	DoubleSided bool
}

// Object is what the pipeline consumes: a transform, a material and a way
// to draw itself.
type Object interface {
	ObjectToWorld() mgl32.Mat4
	Material() Material
	Renderable
}

// Instance is the standard Object.
type Instance struct {
	geometry      Renderable
	material      Material
	objectToWorld mgl32.Mat4
}

var _ Object = (*Instance)(nil)

// NewInstance references geom without taking ownership of it.
func NewInstance(geom Renderable, mat Material, objectToWorld mgl32.Mat4) *Instance {
	return &Instance{geometry: geom, material: mat, objectToWorld: objectToWorld}
}

func (o *Instance) ObjectToWorld() mgl32.Mat4 { return o.objectToWorld }
func (o *Instance) Material() Material        { return o.material }
func (o *Instance) Geometry() Renderable      { return o.geometry }

func (o *Instance) Rasterize() error {
	return o.geometry.Rasterize()
}
