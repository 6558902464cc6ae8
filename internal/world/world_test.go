package world

import (
	"image"
	"image/color"
	"math"
	"os"
	"path/filepath"
	"testing"

	"deferred-shadows/internal/camera"
	"deferred-shadows/internal/config"
	"deferred-shadows/internal/gpu"
	"deferred-shadows/internal/gpu/gputest"
	"deferred-shadows/internal/light"
	"deferred-shadows/internal/mesh"
	"deferred-shadows/internal/scene"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/bmp"
)

func placed(t *testing.T, o scene.Object) *mesh.Geometry {
	t.Helper()
	inst, ok := o.(*scene.Instance)
	require.True(t, ok)
	m, ok := inst.Geometry().(*mesh.Mesh)
	require.True(t, ok)
	return m.Geometry().Transform(o.ObjectToWorld())
}

func TestRoomFacesInwards(t *testing.T) {
	w, err := Build(nil, config.DefaultScene())
	require.NoError(t, err)
	defer w.Destroy()

	objects := w.Objects()
	require.Len(t, objects, 8)

	for i, o := range objects[:6] {
		g := placed(t, o)
		lo, hi := g.Bounds()
		center := lo.Add(hi).Mul(0.5)
		assert.InDelta(t, 7.5, center.Len(), 1e-4, "wall %d sits on the box", i)
		n := g.Vertices[0].Normal
		assert.InDelta(t, -1, n.Dot(center.Normalize()), 1e-4, "wall %d faces the centre", i)
		assert.InDelta(t, 15*math.Sqrt2, hi.Sub(lo).Len(), 1e-3, "wall %d spans the room", i)
	}

	floor := placed(t, objects[0])
	lo, hi := floor.Bounds()
	assert.Equal(t, mgl32.Vec3{-7.5, -7.5, -7.5}, lo)
	assert.Equal(t, mgl32.Vec3{7.5, -7.5, 7.5}, hi)

	green := config.DefaultScene().WallsX
	assert.Equal(t, mgl32.Vec3(green), objects[2].Material().Albedo)
	assert.Equal(t, mgl32.Vec3(green), objects[3].Material().Albedo)

	lo, hi = placed(t, objects[7]).Bounds()
	assert.InDelta(t, 0, lo[1], 1e-5, "octahedron rests at y=0")
	assert.InDelta(t, 3, hi[1], 1e-5)
}

func TestRoomOnDevice(t *testing.T) {
	dev := gputest.New()
	s := config.DefaultScene()
	s.Checker = true
	w, err := Build(dev, s)
	require.NoError(t, err)

	assert.Len(t, dev.Arrays, 3, "plane, sphere and octahedron are shared")
	tex := w.Objects()[0].Material().Texture
	require.NotZero(t, tex)
	assert.Equal(t, gpu.FormatRGBA8, dev.Textures[tex].Format)
	assert.Zero(t, w.Objects()[1].Material().Texture, "only the floor is textured")

	require.NoError(t, w.Objects()[6].Rasterize())
	assert.Equal(t, 1, dev.Count("DrawIndexed"))

	w.Destroy()
	assert.Zero(t, dev.Live())
	assert.Empty(t, w.Objects())
}

func TestBuildFailureReleasesMeshes(t *testing.T) {
	dev := gputest.New()
	dev.FailAt("NewVertexArray", 3, gpu.ErrAllocation)
	_, err := Build(dev, config.DefaultScene())
	assert.ErrorIs(t, err, gpu.ErrAllocation)
	assert.ErrorContains(t, err, "octahedron")
	assert.Zero(t, dev.Live())

	dev = gputest.New()
	dev.FailOn("NewColorTexture", gpu.ErrAllocation)
	s := config.DefaultScene()
	s.Checker = true
	_, err = Build(dev, s)
	assert.ErrorIs(t, err, gpu.ErrAllocation)
	assert.Zero(t, dev.Live())
}

func writeTile(t *testing.T, w, h int) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, color.RGBA{R: 200, G: 200, B: 200, A: 255})
		}
	}
	img.SetRGBA(0, 0, color.RGBA{R: 255, A: 255})
	path := filepath.Join(t.TempDir(), "tile.bmp")
	file, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, bmp.Encode(file, img))
	require.NoError(t, file.Close())
	return path
}

func TestFloorTextureFromFile(t *testing.T) {
	dev := gputest.New()
	s := config.DefaultScene()
	s.Checker = true
	s.FloorTexture = writeTile(t, 12, 5)
	w, err := Build(dev, s)
	require.NoError(t, err)

	tex := w.Objects()[0].Material().Texture
	require.NotZero(t, tex)
	info := dev.Textures[tex]
	assert.Equal(t, 12, info.Width, "file takes precedence over the checker")
	assert.Equal(t, 5, info.Height)
	assert.Equal(t, gpu.FormatRGBA8, info.Format)

	w.Destroy()
	assert.Zero(t, dev.Live())
}

func TestFloorTextureMissingFile(t *testing.T) {
	dev := gputest.New()
	s := config.DefaultScene()
	s.FloorTexture = filepath.Join(t.TempDir(), "nope.png")
	_, err := Build(dev, s)
	assert.ErrorIs(t, err, os.ErrNotExist)
	assert.ErrorContains(t, err, "floor texture")
	assert.Zero(t, dev.Live())
}

func TestDetachedRoomIgnoresFloorTexture(t *testing.T) {
	s := config.DefaultScene()
	s.FloorTexture = "missing.png"
	w, err := Build(nil, s)
	require.NoError(t, err)
	assert.Zero(t, w.Objects()[0].Material().Texture)
}

func TestContext(t *testing.T) {
	w, err := Build(nil, config.DefaultScene())
	require.NoError(t, err)
	cam := camera.New()
	reg := light.NewRegistry()

	ctx := w.Context(cam, reg)
	assert.Same(t, cam, ctx.Camera)
	assert.Same(t, reg, ctx.Lights)
	assert.Len(t, ctx.Objects, 8)

	_, ok := w.Meshes().Get("sphere")
	assert.True(t, ok)
}
