package shadow

import (
	"errors"
	"testing"

	"deferred-shadows/internal/gpu"
	"deferred-shadows/internal/gpu/gputest"
	"deferred-shadows/internal/scene"
	"deferred-shadows/internal/shaders"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// markerGeometry notes each draw on the device together with the culling
// state it was drawn with.
type markerGeometry struct {
	dev  *gputest.Device
	name string
}

func (g *markerGeometry) Rasterize() error {
	g.dev.Note("Rasterize", g.name, g.dev.Cull)
	return nil
}

func setup(t *testing.T) (*gputest.Device, shaders.Shader) {
	t.Helper()
	dev := gputest.New()
	m, err := shaders.NewManager(dev)
	require.NoError(t, err)
	return dev, m.Depth()
}

func objects(dev *gputest.Device) []scene.Object {
	return []scene.Object{
		scene.NewInstance(&markerGeometry{dev: dev, name: "floor"}, scene.Material{}, mgl32.Scale3D(10, 1, 10)),
		scene.NewInstance(&markerGeometry{dev: dev, name: "box"}, scene.Material{}, mgl32.Translate3D(0, 1, 0)),
	}
}

func vecNear(t *testing.T, want, got mgl32.Vec3, msg ...any) {
	t.Helper()
	for i := range want {
		assert.InDelta(t, want[i], got[i], 1e-5, msg...)
	}
}

func TestNewBuildsRigPerKind(t *testing.T) {
	dir := New(Directional)
	require.Len(t, dir.Cameras(), 1)
	assert.Equal(t, 1, Directional.Faces())

	omni := New(Omni)
	require.Len(t, omni.Cameras(), 6)
	assert.Equal(t, 6, Omni.Faces())

	for _, m := range []*Map{dir, omni} {
		assert.False(t, m.Ready())
		for _, c := range m.Cameras() {
			assert.InDelta(t, 90, c.FOV(), 1e-4)
			assert.Equal(t, float32(1), c.Aspect())
			assert.Equal(t, float32(Near), c.Near())
			assert.Equal(t, float32(Far), c.Far())
		}
	}
}

func TestOmniRigMatchesCubeFaceConvention(t *testing.T) {
	// camera right/up for each face so that screen s/t follow the cube map
	// face orientation of the texture lookup
	want := [6]struct{ look, right, up mgl32.Vec3 }{
		{mgl32.Vec3{1, 0, 0}, mgl32.Vec3{0, 0, -1}, mgl32.Vec3{0, -1, 0}},
		{mgl32.Vec3{-1, 0, 0}, mgl32.Vec3{0, 0, 1}, mgl32.Vec3{0, -1, 0}},
		{mgl32.Vec3{0, 1, 0}, mgl32.Vec3{1, 0, 0}, mgl32.Vec3{0, 0, 1}},
		{mgl32.Vec3{0, -1, 0}, mgl32.Vec3{1, 0, 0}, mgl32.Vec3{0, 0, -1}},
		{mgl32.Vec3{0, 0, 1}, mgl32.Vec3{1, 0, 0}, mgl32.Vec3{0, -1, 0}},
		{mgl32.Vec3{0, 0, -1}, mgl32.Vec3{-1, 0, 0}, mgl32.Vec3{0, -1, 0}},
	}
	for i, c := range New(Omni).Cameras() {
		vecNear(t, want[i].look, c.ViewDir().Mul(-1), "face %d look", i)
		vecNear(t, want[i].right, c.Right(), "face %d right", i)
		vecNear(t, want[i].up, c.Up(), "face %d up", i)
	}
}

func TestInitReadiness(t *testing.T) {
	for _, kind := range []Kind{Directional, Omni} {
		t.Run(kind.String(), func(t *testing.T) {
			dev, depth := setup(t)
			m := New(kind)
			require.False(t, m.Ready())

			require.NoError(t, m.Init(dev, 1024, depth))
			assert.True(t, m.Ready())
			assert.Equal(t, 1024, m.Resolution())

			info, ok := dev.Textures[m.Texture()]
			require.True(t, ok)
			assert.True(t, info.Depth)
			assert.Equal(t, m.TextureKind(), info.Kind)
			assert.Equal(t, 1024, info.Width)

			assert.Equal(t, kind.Faces(), dev.Count("AttachDepth"))
			assert.Equal(t, kind.Faces(), dev.Count("CheckFramebuffer"))
			faces := dev.Filter("AttachDepth")
			if kind == Omni {
				for i, c := range faces {
					assert.Equal(t, gpu.CubeFace(i), c.Args[2])
				}
			} else {
				assert.Equal(t, gpu.NoFace, faces[0].Args[2])
			}
			assert.Equal(t, gpu.Framebuffer(0), dev.DrawFB)
		})
	}
}

func TestInitFailureLeavesMapUnready(t *testing.T) {
	cases := []struct {
		name   string
		kind   Kind
		inject func(d *gputest.Device)
		want   error
	}{
		{"texture", Omni, func(d *gputest.Device) { d.FailOn("NewDepthTexture", gpu.ErrAllocation) }, gpu.ErrAllocation},
		{"framebuffer", Directional, func(d *gputest.Device) { d.FailOn("NewFramebuffer", gpu.ErrAllocation) }, gpu.ErrAllocation},
		{"fifth face incomplete", Omni, func(d *gputest.Device) {
			d.FailAt("CheckFramebuffer", 5, gpu.ErrIncompleteFramebuffer)
		}, gpu.ErrIncompleteFramebuffer},
		{"directional incomplete", Directional, func(d *gputest.Device) {
			d.FailOn("CheckFramebuffer", gpu.ErrIncompleteFramebuffer)
		}, gpu.ErrIncompleteFramebuffer},
		{"backend error", Directional, func(d *gputest.Device) {
			d.SetBackendError(errors.New("out of memory"))
		}, gpu.ErrBackend},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			dev, depth := setup(t)
			programs := len(dev.Programs)
			tc.inject(dev)

			m := New(tc.kind)
			err := m.Init(dev, 512, depth)
			assert.ErrorIs(t, err, tc.want)
			assert.False(t, m.Ready())
			assert.Empty(t, dev.Textures)
			assert.Empty(t, dev.Framebuffers)
			assert.Len(t, dev.Programs, programs)
		})
	}
}

func TestInitRejectsBadResolution(t *testing.T) {
	dev, depth := setup(t)
	m := New(Directional)
	assert.ErrorIs(t, m.Init(dev, 0, depth), gpu.ErrAllocation)
	assert.False(t, m.Ready())
}

func TestCreateRequiresInit(t *testing.T) {
	dev, _ := setup(t)
	m := New(Omni)
	err := m.Create(objects(dev), mgl32.Ident4(), Pose{Position: mgl32.Vec3{0, 3, 0}})
	assert.ErrorIs(t, err, ErrNotReady)
	assert.ErrorIs(t, m.BindAt(shaders.ShadowUnit), ErrNotReady)
}

func TestCreateRendersEveryFace(t *testing.T) {
	dev, depth := setup(t)
	m := New(Omni)
	require.NoError(t, m.Init(dev, 256, depth))
	objs := objects(dev)
	dev.Reset()

	view := mgl32.LookAtV(mgl32.Vec3{5, 0, 5}, mgl32.Vec3{}, mgl32.Vec3{0, 1, 0})
	require.NoError(t, m.Create(objs, view, Pose{Position: mgl32.Vec3{0, 4, 0}}))
	assert.Equal(t, uint64(1), m.Generation())

	draws := dev.Filter("Rasterize")
	require.Len(t, draws, 12)
	for _, d := range draws {
		assert.Equal(t, gpu.CullFront, d.Args[1], "depth pass culls front faces")
	}
	assert.Equal(t, 6, dev.Count("Clear"))
	assert.Equal(t, [2]int{256, 256}, dev.ViewportWH)

	// the sync point follows the last draw
	assert.Greater(t, dev.Index("Barrier"), dev.LastIndex("Rasterize"))

	// state is handed back for the geometry pass
	assert.Equal(t, gpu.CullBack, dev.Cull)
	assert.Equal(t, gpu.Framebuffer(0), dev.DrawFB)
	assert.Equal(t, gpu.Program(0), dev.Program)

	// every camera sits at the light position in view space
	lightInView := mgl32.TransformCoordinate(mgl32.Vec3{0, 4, 0}, view)
	for _, c := range m.Cameras() {
		vecNear(t, lightInView, c.Position())
	}
}

func TestCreateDrawsDoubleSidedWithoutCulling(t *testing.T) {
	dev, depth := setup(t)
	m := New(Directional)
	require.NoError(t, m.Init(dev, 64, depth))
	objs := []scene.Object{
		scene.NewInstance(&markerGeometry{dev: dev, name: "floor"}, scene.Material{}, mgl32.Scale3D(10, 1, 10)),
		scene.NewInstance(&markerGeometry{dev: dev, name: "sheet"}, scene.Material{DoubleSided: true}, mgl32.Translate3D(0, 3, 0)),
		scene.NewInstance(&markerGeometry{dev: dev, name: "box"}, scene.Material{}, mgl32.Translate3D(0, 1, 0)),
	}
	dev.Reset()

	pose := Pose{Position: mgl32.Vec3{0, 10, 0}, Target: mgl32.Vec3{0, 9, 0}, Up: mgl32.Vec3{0, 0, -1}}
	require.NoError(t, m.Create(objs, mgl32.Ident4(), pose))

	draws := dev.Filter("Rasterize")
	require.Len(t, draws, 3)
	assert.Equal(t, gpu.CullFront, draws[0].Args[1])
	assert.Equal(t, gpu.CullNone, draws[1].Args[1])
	assert.Equal(t, gpu.CullFront, draws[2].Args[1])
	assert.Equal(t, gpu.CullBack, dev.Cull)
}

func TestCreateModelViewComposesLightAndMainView(t *testing.T) {
	dev, depth := setup(t)
	m := New(Directional)
	require.NoError(t, m.Init(dev, 256, depth))
	objs := objects(dev)

	view := mgl32.Translate3D(0, 0, -10)
	pose := Pose{Position: mgl32.Vec3{0, 10, 0}, Target: mgl32.Vec3{0, 9, 0}, Up: mgl32.Vec3{0, 0, -1}}
	require.NoError(t, m.Create(objs, view, pose))

	cam := m.Cameras()[0]
	vecNear(t, mgl32.Vec3{0, 10, -10}, cam.Position())
	vecNear(t, mgl32.Vec3{0, 1, 0}, cam.ViewDir())

	var last mgl32.Mat4
	for _, c := range dev.Filter("UniformMat4") {
		if c.Args[0] == "ModelView" {
			last = c.Args[1].(mgl32.Mat4)
		}
	}
	want := cam.View().Mul4(view).Mul4(objs[1].ObjectToWorld())
	for i := range want {
		assert.InDelta(t, want[i], last[i], 1e-5)
	}
}

func TestCreateSkipsUnchangedPose(t *testing.T) {
	dev, depth := setup(t)
	m := New(Omni)
	require.NoError(t, m.Init(dev, 128, depth))
	objs := objects(dev)
	pose := Pose{Position: mgl32.Vec3{1, 2, 3}}

	require.NoError(t, m.Create(objs, mgl32.Ident4(), pose))
	dev.Reset()
	require.NoError(t, m.Create(objs, mgl32.Ident4(), pose))
	assert.Zero(t, dev.Count("Rasterize"))
	assert.Equal(t, uint64(1), m.Generation())

	m.Invalidate()
	require.NoError(t, m.Create(objs, mgl32.Ident4(), pose))
	assert.Equal(t, 12, dev.Count("Rasterize"))

	// moving the main camera moves the light in view space
	dev.Reset()
	require.NoError(t, m.Create(objs, mgl32.Translate3D(0, 0, -1), pose))
	assert.Equal(t, 12, dev.Count("Rasterize"))
	assert.Equal(t, uint64(3), m.Generation())
}

func TestCreateAbortsOnFirstError(t *testing.T) {
	dev, depth := setup(t)
	m := New(Omni)
	require.NoError(t, m.Init(dev, 128, depth))
	objs := objects(dev)
	pose := Pose{Position: mgl32.Vec3{0, 3, 0}}

	dev.Reset()
	dev.FailAt("AttachDepth", 3, gpu.ErrBackend)
	err := m.Create(objs, mgl32.Ident4(), pose)
	require.ErrorIs(t, err, gpu.ErrBackend)

	// faces 0 and 1 were drawn, nothing after the failure
	assert.Equal(t, 4, dev.Count("Rasterize"))
	assert.Equal(t, 2, dev.Count("Clear"))
	assert.Zero(t, dev.Count("Barrier"))
	assert.Equal(t, uint64(0), m.Generation())
	assert.True(t, m.Ready(), "a frame failure does not unready the map")

	assert.Equal(t, gpu.CullBack, dev.Cull)
	assert.Equal(t, gpu.Framebuffer(0), dev.DrawFB)
	assert.Equal(t, gpu.Program(0), dev.Program)

	// the next frame starts cleanly even though the pose is unchanged
	dev.ClearFailures()
	dev.Reset()
	require.NoError(t, m.Create(objs, mgl32.Ident4(), pose))
	assert.Equal(t, 12, dev.Count("Rasterize"))
}

func TestCreateAbortsOnDrawError(t *testing.T) {
	dev, depth := setup(t)
	m := New(Directional)
	require.NoError(t, m.Init(dev, 128, depth))
	boom := errors.New("draw failed")
	objs := []scene.Object{
		scene.NewInstance(failingGeometry{boom}, scene.Material{}, mgl32.Ident4()),
		scene.NewInstance(&markerGeometry{dev: dev, name: "after"}, scene.Material{}, mgl32.Ident4()),
	}
	pose := Pose{Position: mgl32.Vec3{0, 5, 0}, Target: mgl32.Vec3{0, 4, 0}, Up: mgl32.Vec3{0, 0, -1}}

	err := m.Create(objs, mgl32.Ident4(), pose)
	assert.ErrorIs(t, err, boom)
	assert.Zero(t, dev.Count("Rasterize"))
}

type failingGeometry struct{ err error }

func (g failingGeometry) Rasterize() error { return g.err }

func TestCreateRejectsDegenerateDirectionalPose(t *testing.T) {
	dev, depth := setup(t)
	m := New(Directional)
	require.NoError(t, m.Init(dev, 128, depth))

	pose := Pose{Position: mgl32.Vec3{0, 5, 0}, Target: mgl32.Vec3{0, 4, 0}, Up: mgl32.Vec3{0, 1, 0}}
	err := m.Create(objects(dev), mgl32.Ident4(), pose)
	assert.Error(t, err)
	assert.Zero(t, dev.Count("Rasterize"))
}

func TestBindAtAndUnbindAt(t *testing.T) {
	dev, depth := setup(t)
	m := New(Omni)
	require.NoError(t, m.Init(dev, 64, depth))

	require.NoError(t, m.BindAt(shaders.ShadowUnit))
	assert.Equal(t, m.Texture(), dev.Units[shaders.ShadowUnit])
	bind := dev.Filter("BindTexture")
	assert.Equal(t, gpu.TextureCube, bind[len(bind)-1].Args[1])

	m.UnbindAt(shaders.ShadowUnit)
	_, bound := dev.Units[shaders.ShadowUnit]
	assert.False(t, bound)
}

func TestDestroyAndReinit(t *testing.T) {
	dev, depth := setup(t)
	m := New(Directional)
	require.NoError(t, m.Init(dev, 64, depth))
	m.Destroy()
	assert.False(t, m.Ready())
	assert.Empty(t, dev.Textures)
	assert.Empty(t, dev.Framebuffers)

	require.NoError(t, m.Init(dev, 128, depth))
	assert.True(t, m.Ready())
	require.NoError(t, m.Init(dev, 256, depth), "re-init replaces resources")
	assert.Len(t, dev.Textures, 1)
	assert.Len(t, dev.Framebuffers, 1)
}
