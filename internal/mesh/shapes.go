package mesh

import (
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

// All generators wind front faces counter-clockwise seen from outside.

// Plane is the 2x2 square y=0, x,z in [-1,1], facing +Y.
func Plane() *Geometry {
	n := mgl32.Vec3{0, 1, 0}
	return &Geometry{
		Vertices: []Vertex{
			{mgl32.Vec3{-1, 0, -1}, n, mgl32.Vec2{0, 0}},
			{mgl32.Vec3{-1, 0, 1}, n, mgl32.Vec2{0, 1}},
			{mgl32.Vec3{1, 0, 1}, n, mgl32.Vec2{1, 1}},
			{mgl32.Vec3{1, 0, -1}, n, mgl32.Vec2{1, 0}},
		},
		Indices: []uint32{0, 1, 2, 2, 3, 0},
	}
}

// Quad covers clip space, x,y in [-1,1] at z=0, facing +Z. Drawn with
// identity matrices it fills the viewport.
func Quad() *Geometry {
	n := mgl32.Vec3{0, 0, 1}
	return &Geometry{
		Vertices: []Vertex{
			{mgl32.Vec3{-1, -1, 0}, n, mgl32.Vec2{0, 0}},
			{mgl32.Vec3{1, -1, 0}, n, mgl32.Vec2{1, 0}},
			{mgl32.Vec3{1, 1, 0}, n, mgl32.Vec2{1, 1}},
			{mgl32.Vec3{-1, 1, 0}, n, mgl32.Vec2{0, 1}},
		},
		Indices: []uint32{0, 1, 2, 2, 3, 0},
	}
}

// Octahedron has unit-distance vertices on the axes and flat-shaded faces.
func Octahedron() *Geometry {
	top, bottom := mgl32.Vec3{0, 1, 0}, mgl32.Vec3{0, -1, 0}
	ring := [4]mgl32.Vec3{{1, 0, 0}, {0, 0, -1}, {-1, 0, 0}, {0, 0, 1}}

	g := &Geometry{}
	face := func(a, b, c mgl32.Vec3) {
		n := b.Sub(a).Cross(c.Sub(a)).Normalize()
		base := uint32(len(g.Vertices))
		g.Vertices = append(g.Vertices,
			Vertex{a, n, mgl32.Vec2{0.5, 1}},
			Vertex{b, n, mgl32.Vec2{0, 0}},
			Vertex{c, n, mgl32.Vec2{1, 0}},
		)
		g.Indices = append(g.Indices, base, base+1, base+2)
	}
	for i := range ring {
		face(top, ring[i], ring[(i+1)%4])
	}
	for i := range ring {
		face(bottom, ring[(i+1)%4], ring[i])
	}
	return g
}

// Sphere is a unit sphere of stacks latitude bands and slices longitude
// segments. Normals equal positions.
func Sphere(slices, stacks int) *Geometry {
	if slices < 3 {
		slices = 3
	}
	if stacks < 2 {
		stacks = 2
	}
	g := &Geometry{}
	for i := 0; i <= stacks; i++ {
		theta := math32.Pi * float32(i) / float32(stacks)
		st, ct := math32.Sincos(theta)
		for j := 0; j <= slices; j++ {
			phi := 2 * math32.Pi * float32(j) / float32(slices)
			sp, cp := math32.Sincos(phi)
			p := mgl32.Vec3{st * sp, ct, st * cp}
			g.Vertices = append(g.Vertices, Vertex{
				Position: p,
				Normal:   p,
				TexCoord: mgl32.Vec2{float32(j) / float32(slices), float32(i) / float32(stacks)},
			})
		}
	}
	row := uint32(slices + 1)
	for i := 0; i < stacks; i++ {
		for j := 0; j < slices; j++ {
			a := uint32(i)*row + uint32(j)
			b := a + row
			c := b + 1
			d := a + 1
			if i != stacks-1 {
				g.Indices = append(g.Indices, a, b, c)
			}
			if i != 0 {
				g.Indices = append(g.Indices, a, c, d)
			}
		}
	}
	return g
}
