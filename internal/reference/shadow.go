package reference

import (
	"fmt"

	"deferred-shadows/internal/camera"
	"deferred-shadows/internal/light"
	"deferred-shadows/internal/scene"
	"deferred-shadows/internal/shadow"

	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

// DepthMap is the CPU rendition of one light's shadow map. Each face holds
// resolution² linear depths, row 0 at the bottom, cleared to 1.
type DepthMap struct {
	Kind       shadow.Kind
	Resolution int
	Faces      [][]float32

	cameras []*camera.Camera
}

// renderDepth aims the same camera rig the GPU path uses and ray casts
// every texel of every face.
func renderDepth(l *light.Light, objects []scene.Object, mainView mgl32.Mat4, res int) (*DepthMap, error) {
	kind, err := l.ShadowKind()
	if err != nil {
		return nil, err
	}
	rig := shadow.New(kind)
	if err := rig.Aim(mainView, l.ShadowPose()); err != nil {
		return nil, err
	}

	dm := &DepthMap{Kind: kind, Resolution: res, cameras: rig.Cameras()}
	for i, cam := range dm.cameras {
		tris, err := buildSoup(objects, cam.View().Mul4(mainView))
		if err != nil {
			return nil, fmt.Errorf("%s face %d: %w", l, i, err)
		}
		invProj := cam.Projection().Inv()
		face := make([]float32, res*res)
		for y := 0; y < res; y++ {
			for x := 0; x < res; x++ {
				face[y*res+x] = 1
				h := tris.Cast(pixelRay(invProj, x, y, res, res), BackFaces)
				if h.Hit {
					face[y*res+x] = math32.Min(h.Position.Len()/shadow.Far+shadow.DepthBias, 1)
				}
			}
		}
		dm.Faces = append(dm.Faces, face)
	}
	return dm, nil
}

// Visibility returns 1 if pos (main view space) is lit by the light at
// lightPos, 0 if it lies behind the stored depth. lightPos is ignored for
// directional maps. Points outside the map are lit.
func (m *DepthMap) Visibility(pos, lightPos mgl32.Vec3) float32 {
	face := 0
	if m.Kind == shadow.Omni {
		face = cubeFace(pos.Sub(lightPos))
	}
	cam := m.cameras[face]
	sp := mgl32.TransformCoordinate(pos, cam.View())
	clip := cam.Projection().Mul4x1(sp.Vec4(1))
	if clip.W() <= 0 {
		return 1
	}
	u := clip.X()/clip.W()*0.5 + 0.5
	v := clip.Y()/clip.W()*0.5 + 0.5
	if u < 0 || u > 1 || v < 0 || v > 1 {
		return 1
	}
	ref := sp.Len() / shadow.Far
	if ref <= m.At(face, u, v) {
		return 1
	}
	return 0
}

// At samples face at texture coordinates (u, v) with nearest filtering.
func (m *DepthMap) At(face int, u, v float32) float32 {
	x := clampIndex(int(u*float32(m.Resolution)), m.Resolution)
	y := clampIndex(int(v*float32(m.Resolution)), m.Resolution)
	return m.Faces[face][y*m.Resolution+x]
}

// cubeFace picks the face whose camera sees direction d, in +X, -X, +Y,
// -Y, +Z, -Z order.
func cubeFace(d mgl32.Vec3) int {
	ax, ay, az := math32.Abs(d[0]), math32.Abs(d[1]), math32.Abs(d[2])
	switch {
	case ax >= ay && ax >= az:
		if d[0] >= 0 {
			return 0
		}
		return 1
	case ay >= az:
		if d[1] >= 0 {
			return 2
		}
		return 3
	default:
		if d[2] >= 0 {
			return 4
		}
		return 5
	}
}

func clampIndex(i, n int) int {
	if i < 0 {
		return 0
	}
	if i >= n {
		return n - 1
	}
	return i
}
