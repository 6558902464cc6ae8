// Package mesh builds triangle geometry on the CPU and uploads it to the GPU.
//
// Geometry is a plain vertex slice plus an index slice; every index is
// checked against the vertex count before upload, so nothing downstream
// deals in raw offsets.
package mesh

import (
	"errors"
	"fmt"

	"deferred-shadows/internal/gpu"

	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

var (
	ErrEmpty        = errors.New("mesh: empty geometry")
	ErrIndexRange   = errors.New("mesh: index out of range")
	ErrNotTriangles = errors.New("mesh: index count is not a multiple of 3")
)

// Layout is position(3), normal(3), texcoord(2) at attribute locations
// 0, 1 and 2.
var Layout = gpu.VertexLayout{3, 3, 2}

type Vertex struct {
	Position mgl32.Vec3
	Normal   mgl32.Vec3
	TexCoord mgl32.Vec2
}

// Geometry is an indexed triangle list.
type Geometry struct {
	Vertices []Vertex
	Indices  []uint32
}

// Validate checks that the geometry describes whole triangles and that
// every index refers to a vertex.
func (g *Geometry) Validate() error {
	if len(g.Vertices) == 0 || len(g.Indices) == 0 {
		return ErrEmpty
	}
	if len(g.Indices)%3 != 0 {
		return fmt.Errorf("%w: %d", ErrNotTriangles, len(g.Indices))
	}
	n := uint32(len(g.Vertices))
	for i, idx := range g.Indices {
		if idx >= n {
			return fmt.Errorf("%w: indices[%d] = %d, %d vertices", ErrIndexRange, i, idx, n)
		}
	}
	return nil
}

func (g *Geometry) TriangleCount() int { return len(g.Indices) / 3 }

// Triangle returns the three vertices of triangle i.
func (g *Geometry) Triangle(i int) (a, b, c Vertex) {
	return g.Vertices[g.Indices[3*i]], g.Vertices[g.Indices[3*i+1]], g.Vertices[g.Indices[3*i+2]]
}

// Interleave packs the vertices in Layout order.
func (g *Geometry) Interleave() []float32 {
	out := make([]float32, 0, len(g.Vertices)*Layout.Stride())
	for _, v := range g.Vertices {
		out = append(out,
			v.Position[0], v.Position[1], v.Position[2],
			v.Normal[0], v.Normal[1], v.Normal[2],
			v.TexCoord[0], v.TexCoord[1],
		)
	}
	return out
}

// Bounds returns the axis-aligned box around the vertices.
func (g *Geometry) Bounds() (lo, hi mgl32.Vec3) {
	if len(g.Vertices) == 0 {
		return
	}
	lo, hi = g.Vertices[0].Position, g.Vertices[0].Position
	for _, v := range g.Vertices[1:] {
		for k := 0; k < 3; k++ {
			lo[k] = math32.Min(lo[k], v.Position[k])
			hi[k] = math32.Max(hi[k], v.Position[k])
		}
	}
	return lo, hi
}

// Transform returns a copy with positions mapped by m and normals by its
// inverse transpose.
func (g *Geometry) Transform(m mgl32.Mat4) *Geometry {
	normalMat := m.Inv().Transpose()
	out := &Geometry{
		Vertices: make([]Vertex, len(g.Vertices)),
		Indices:  append([]uint32(nil), g.Indices...),
	}
	for i, v := range g.Vertices {
		n := mgl32.TransformNormal(v.Normal, normalMat)
		if n.Len() > 0 {
			n = n.Normalize()
		}
		out.Vertices[i] = Vertex{
			Position: mgl32.TransformCoordinate(v.Position, m),
			Normal:   n,
			TexCoord: v.TexCoord,
		}
	}
	return out
}
