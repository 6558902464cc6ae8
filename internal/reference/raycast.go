package reference

import (
	"errors"
	"fmt"

	"deferred-shadows/internal/mesh"
	"deferred-shadows/internal/scene"

	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

// ErrNoGeometry is returned for objects whose geometry has no CPU copy.
var ErrNoGeometry = errors.New("reference: object has no CPU geometry")

const epsilon = 1e-6

// Facing selects which triangles a ray may hit.
type Facing int

const (
	// FrontFaces accepts triangles wound counter-clockwise towards the ray
	// origin, as the geometry pass sees them with back-face culling.
	FrontFaces Facing = iota
	// BackFaces mirrors the front-face culling of the shadow pass. Triangles
	// of double-sided materials are hit from both sides.
	BackFaces
)

// geometrySource is implemented by meshes that keep their CPU geometry.
type geometrySource interface {
	Geometry() *mesh.Geometry
}

type triangle struct {
	p      [3]mgl32.Vec3
	n      [3]mgl32.Vec3
	uv     [3]mgl32.Vec2
	albedo mgl32.Vec3

	// twoSided triangles are hit from either side when casting BackFaces.
	twoSided bool
}

// Ray is a segment from Origin to Origin+Dir*t for t in [0, 1].
type Ray struct {
	Origin mgl32.Vec3
	Dir    mgl32.Vec3
}

func (r Ray) At(t float32) mgl32.Vec3 { return r.Origin.Add(r.Dir.Mul(t)) }

// Hit stores the result of a cast.
type Hit struct {
	T        float32
	Position mgl32.Vec3
	Normal   mgl32.Vec3
	TexCoord mgl32.Vec2
	Albedo   mgl32.Vec3
	Hit      bool
}

// soup is every triangle of a scene in one coordinate space.
type soup []triangle

// buildSoup transforms every object by space·objectToWorld.
func buildSoup(objects []scene.Object, space mgl32.Mat4) (soup, error) {
	var out soup
	for i, obj := range objects {
		g, err := geometryOf(obj)
		if err != nil {
			return nil, fmt.Errorf("object %d: %w", i, err)
		}
		m := space.Mul4(obj.ObjectToWorld())
		normalMat := m.Mat3().Inv().Transpose()
		mat := obj.Material()
		for t := 0; t < g.TriangleCount(); t++ {
			a, b, c := g.Triangle(t)
			tri := triangle{albedo: mat.Albedo, twoSided: mat.DoubleSided}
			for k, v := range [3]mesh.Vertex{a, b, c} {
				tri.p[k] = mgl32.TransformCoordinate(v.Position, m)
				tri.n[k] = normalMat.Mul3x1(v.Normal)
				tri.uv[k] = v.TexCoord
			}
			out = append(out, tri)
		}
	}
	return out, nil
}

func geometryOf(obj scene.Object) (*mesh.Geometry, error) {
	if inst, ok := obj.(*scene.Instance); ok {
		if src, ok := inst.Geometry().(geometrySource); ok && src.Geometry() != nil {
			return src.Geometry(), nil
		}
	}
	if src, ok := obj.(geometrySource); ok && src.Geometry() != nil {
		return src.Geometry(), nil
	}
	return nil, ErrNoGeometry
}

// Cast returns the closest triangle of the requested facing along r.
func (s soup) Cast(r Ray, facing Facing) Hit {
	best := Hit{T: math32.MaxFloat32}
	for i := range s {
		t, u, v, ok := intersect(r, &s[i], facing)
		if !ok || t >= best.T {
			continue
		}
		tri := &s[i]
		w := 1 - u - v
		best = Hit{
			T:        t,
			Position: r.At(t),
			Normal:   tri.n[0].Mul(w).Add(tri.n[1].Mul(u)).Add(tri.n[2].Mul(v)),
			TexCoord: tri.uv[0].Mul(w).Add(tri.uv[1].Mul(u)).Add(tri.uv[2].Mul(v)),
			Albedo:   tri.albedo,
			Hit:      true,
		}
	}
	if best.Hit && best.Normal.Len() > epsilon {
		best.Normal = best.Normal.Normalize()
	}
	return best
}

// intersect is the Möller-Trumbore test restricted to t in [0, 1].
func intersect(r Ray, tri *triangle, facing Facing) (t, u, v float32, ok bool) {
	e1 := tri.p[1].Sub(tri.p[0])
	e2 := tri.p[2].Sub(tri.p[0])
	pv := r.Dir.Cross(e2)
	det := e1.Dot(pv)
	// det = -dir·normal, positive when the triangle faces the ray origin
	switch facing {
	case FrontFaces:
		if det < epsilon {
			return 0, 0, 0, false
		}
	case BackFaces:
		if det > -epsilon && !(tri.twoSided && det > epsilon) {
			return 0, 0, 0, false
		}
	}
	inv := 1 / det
	tv := r.Origin.Sub(tri.p[0])
	u = tv.Dot(pv) * inv
	if u < 0 || u > 1 {
		return 0, 0, 0, false
	}
	qv := tv.Cross(e1)
	v = r.Dir.Dot(qv) * inv
	if v < 0 || u+v > 1 {
		return 0, 0, 0, false
	}
	t = e2.Dot(qv) * inv
	if t < 0 || t > 1 {
		return 0, 0, 0, false
	}
	return t, u, v, true
}

// pixelRay spans the view frustum through the centre of pixel (x, y) of a
// w×h target, from the near to the far plane of proj. Row 0 is the bottom.
func pixelRay(invProj mgl32.Mat4, x, y, w, h int) Ray {
	ndcX := (float32(x)+0.5)/float32(w)*2 - 1
	ndcY := (float32(y)+0.5)/float32(h)*2 - 1
	near := mgl32.TransformCoordinate(mgl32.Vec3{ndcX, ndcY, -1}, invProj)
	far := mgl32.TransformCoordinate(mgl32.Vec3{ndcX, ndcY, 1}, invProj)
	return Ray{Origin: near, Dir: far.Sub(near)}
}
