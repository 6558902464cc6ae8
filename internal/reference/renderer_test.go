package reference

import (
	"testing"

	"deferred-shadows/internal/camera"
	"deferred-shadows/internal/gbuffer"
	"deferred-shadows/internal/light"
	"deferred-shadows/internal/mesh"
	"deferred-shadows/internal/pipeline"
	"deferred-shadows/internal/scene"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const frameW, frameH = 64, 48

// occluderScene is a 20x20 floor with a closed occluder hovering over its
// centre, seen from above and in front.
func occluderScene(t *testing.T, lights ...*light.Light) *pipeline.Context {
	t.Helper()
	cam := camera.New()
	require.NoError(t, cam.LookAt(mgl32.Vec3{0, 8, 6}, mgl32.Vec3{}, mgl32.Vec3{0, 1, 0}))
	require.NoError(t, cam.SetAspect(float32(frameW)/frameH))

	floor := mesh.Detached("floor", mesh.Plane())
	occluder := mesh.Detached("occluder", mesh.Octahedron())
	reg := light.NewRegistry()
	for _, l := range lights {
		require.NoError(t, reg.Add(l))
	}
	return &pipeline.Context{
		Camera: cam,
		Objects: []scene.Object{
			scene.NewInstance(floor, scene.Material{Albedo: mgl32.Vec3{1, 1, 1}}, mgl32.Scale3D(10, 1, 10)),
			scene.NewInstance(occluder, scene.Material{Albedo: mgl32.Vec3{0.5, 0.5, 0.5}},
				mgl32.Translate3D(0, 3, 0).Mul4(mgl32.Scale3D(1, 0.5, 1))),
		},
		Lights: reg,
	}
}

func sun(shadowed bool) *light.Light {
	opts := []light.Option{
		light.WithPosition(mgl32.Vec3{0, 10, 0}),
		light.WithDirection(mgl32.Vec3{0, -1, 0}),
		light.WithRadiance(mgl32.Vec3{1, 1, 1}),
		light.WithAmbient(0.1),
		light.WithDiffuse(0.5),
	}
	if shadowed {
		opts = append(opts, light.WithShadow())
	}
	return light.New(light.Directional, opts...)
}

// pixelOf projects a world point to the pixel that sees it.
func pixelOf(t *testing.T, cam *camera.Camera, p mgl32.Vec3) (int, int) {
	t.Helper()
	ndc := mgl32.TransformCoordinate(p, cam.Projection().Mul4(cam.View()))
	x := int((ndc[0]*0.5 + 0.5) * frameW)
	y := int((ndc[1]*0.5 + 0.5) * frameH)
	require.True(t, x >= 0 && x < frameW && y >= 0 && y < frameH, "%v is off screen", p)
	return x, y
}

func render(t *testing.T, ctx *pipeline.Context, shadows bool) *Frame {
	t.Helper()
	r, err := New(Options{Width: frameW, Height: frameH, ShadowResolution: 128, ShadowsEnabled: shadows})
	require.NoError(t, err)
	f, err := r.Render(ctx)
	require.NoError(t, err)
	return f
}

func TestDirectionalShadowOccludesReceiver(t *testing.T) {
	l := sun(true)
	ctx := occluderScene(t, l)
	f := render(t, ctx, true)
	require.Contains(t, f.Shadows, l.ID())

	hx, hy := pixelOf(t, ctx.Camera, mgl32.Vec3{0, 0, 0})
	hidden := f.Contribution(l, hx, hy)
	require.True(t, hidden.Covered)
	assert.Equal(t, float32(0), hidden.Visibility)
	assert.Equal(t, mgl32.Vec3{}, hidden.Diffuse, "diffuse must be exactly zero behind the occluder")
	assert.InDelta(t, 0.1, hidden.Ambient[0], 1e-6, "ambient is not shadowed")

	lx, ly := pixelOf(t, ctx.Camera, mgl32.Vec3{3, 0, 0})
	lit := f.Contribution(l, lx, ly)
	assert.Equal(t, float32(1), lit.Visibility)
	assert.Greater(t, lit.Diffuse[0], float32(0))
	assert.InDelta(t, 0.5, lit.Diffuse[0], 1e-3, "floor faces the light head on")

	assert.Greater(t, f.Color[ly*frameW+lx][0], f.Color[hy*frameW+hx][0])
}

// sheetScene replaces the closed occluder with a single plane at y=3.
func sheetScene(t *testing.T, l *light.Light, mat scene.Material, objectToWorld mgl32.Mat4) *pipeline.Context {
	t.Helper()
	ctx := occluderScene(t, l)
	sheet := mesh.Detached("sheet", mesh.Plane())
	ctx.Objects[1] = scene.NewInstance(sheet, mat, objectToWorld)
	return ctx
}

func TestPlaneOccluderShadows(t *testing.T) {
	grey := mgl32.Vec3{0.5, 0.5, 0.5}
	up := mgl32.Translate3D(0, 3, 0)
	down := up.Mul4(mgl32.HomogRotate3DX(mgl32.DegToRad(180)))

	tests := []struct {
		name      string
		mat       scene.Material
		transform mgl32.Mat4
		shadowed  bool
	}{
		{"double-sided facing the light", scene.Material{Albedo: grey, DoubleSided: true}, up, true},
		{"double-sided facing away", scene.Material{Albedo: grey, DoubleSided: true}, down, true},
		{"single-sided facing away", scene.Material{Albedo: grey}, down, true},
		// front faces are culled from the depth pass
		{"single-sided facing the light", scene.Material{Albedo: grey}, up, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := sun(true)
			ctx := sheetScene(t, l, tt.mat, tt.transform)
			f := render(t, ctx, true)

			x, y := pixelOf(t, ctx.Camera, mgl32.Vec3{0, 0, 0.5})
			c := f.Contribution(l, x, y)
			require.True(t, c.Covered)
			if tt.shadowed {
				assert.Equal(t, float32(0), c.Visibility)
				assert.Equal(t, mgl32.Vec3{}, c.Diffuse)
			} else {
				assert.Equal(t, float32(1), c.Visibility)
				assert.InDelta(t, 0.5, c.Diffuse[0], 1e-3)
			}

			lx, ly := pixelOf(t, ctx.Camera, mgl32.Vec3{3, 0, 0})
			assert.Equal(t, float32(1), f.Contribution(l, lx, ly).Visibility)
		})
	}
}

func TestShadowsDisabledLightsReceiver(t *testing.T) {
	l := sun(true)
	ctx := occluderScene(t, l)
	f := render(t, ctx, false)
	assert.Empty(t, f.Shadows)

	x, y := pixelOf(t, ctx.Camera, mgl32.Vec3{0, 0, 0})
	c := f.Contribution(l, x, y)
	assert.Equal(t, float32(1), c.Visibility)
	assert.Greater(t, c.Diffuse[0], float32(0))
}

func TestPointShadowUsesCubeMap(t *testing.T) {
	l := light.New(light.Point,
		light.WithPosition(mgl32.Vec3{0, 6, 0}),
		light.WithRadiance(mgl32.Vec3{1, 1, 1}),
		light.WithDiffuse(1),
		light.WithShadow())
	ctx := occluderScene(t, l)
	f := render(t, ctx, true)
	require.Len(t, f.Shadows[l.ID()].Faces, 6)

	hx, hy := pixelOf(t, ctx.Camera, mgl32.Vec3{0, 0, 0})
	hidden := f.Contribution(l, hx, hy)
	require.True(t, hidden.Covered)
	assert.Equal(t, mgl32.Vec3{}, hidden.Diffuse)

	lx, ly := pixelOf(t, ctx.Camera, mgl32.Vec3{3, 0, 0})
	lit := f.Contribution(l, lx, ly)
	require.True(t, lit.Covered)
	assert.Greater(t, lit.Diffuse[0], float32(0))
}

func TestPointLightVolumeBoundsContribution(t *testing.T) {
	// radius 8·sqrt(0.01)+1 = 1.8
	l := light.New(light.Point,
		light.WithPosition(mgl32.Vec3{-3, 0.5, 0}),
		light.WithRadiance(mgl32.Vec3{1, 1, 1}),
		light.WithDiffuse(0.01))
	require.InDelta(t, 1.8, l.EffectiveRadius(), 1e-5)
	ctx := occluderScene(t, l)
	f := render(t, ctx, true)

	x, y := pixelOf(t, ctx.Camera, mgl32.Vec3{-3, 0, 0})
	assert.True(t, f.Contribution(l, x, y).Covered)
	x, y = pixelOf(t, ctx.Camera, mgl32.Vec3{3, 0, 0})
	assert.False(t, f.Contribution(l, x, y).Covered)
	assert.Equal(t, mgl32.Vec3{}, f.Color[y*frameW+x])
}

func TestAttenuationNeverAmplifies(t *testing.T) {
	near := light.New(light.Point,
		light.WithPosition(mgl32.Vec3{0, 0.2, 0}),
		light.WithRadiance(mgl32.Vec3{1, 1, 1}),
		light.WithDiffuse(1),
		light.WithAttenuation(light.Attenuation{Exp: 1}))
	ctx := occluderScene(t, near)
	ctx.Objects = ctx.Objects[:1]
	f := render(t, ctx, false)

	x, y := pixelOf(t, ctx.Camera, mgl32.Vec3{0, 0, 0})
	c := f.Contribution(near, x, y)
	// at d ~ 0.2 the attenuation term is far below 1 and must not boost
	assert.LessOrEqual(t, c.Diffuse[0], float32(1.0001))
}

func TestGBufferChannels(t *testing.T) {
	ctx := occluderScene(t, sun(false))
	f := render(t, ctx, false)

	x, y := pixelOf(t, ctx.Camera, mgl32.Vec3{2, 0, 2})
	i := y*frameW + x
	view := ctx.Camera.View()

	assert.Equal(t, mgl32.Vec3{1, 1, 1}, f.GBuffer[gbuffer.Diffuse][i])
	n := f.GBuffer[gbuffer.Normal][i]
	want := mgl32.TransformNormal(mgl32.Vec3{0, 1, 0}, view)
	for k := range want {
		assert.InDelta(t, want[k], n[k], 1e-4)
	}
	world := mgl32.TransformCoordinate(f.GBuffer[gbuffer.Position][i], view.Inv())
	assert.InDelta(t, 0, world[1], 1e-3, "position lies on the floor")
	assert.InDelta(t, 2, world[0], 0.5)
	assert.InDelta(t, 2, world[2], 0.5)

	uv := f.GBuffer[gbuffer.TexCoord][i]
	assert.InDelta(t, 0.6, uv[0], 0.05)
	assert.Zero(t, uv[2])
}

func TestEmptySceneIsBlack(t *testing.T) {
	ctx := occluderScene(t, sun(true))
	ctx.Objects = nil
	f := render(t, ctx, true)
	for i := range f.Color {
		require.Equal(t, mgl32.Vec3{}, f.Color[i])
		require.Equal(t, mgl32.Vec3{}, f.GBuffer[gbuffer.Normal][i])
	}
}

func TestSpotLightsAreSkipped(t *testing.T) {
	spot := light.New(light.Spot, light.WithPosition(mgl32.Vec3{-20, 20, 5}), light.WithCutoff(20))
	ctx := occluderScene(t, sun(false), spot)
	f := render(t, ctx, true)
	assert.Equal(t, 1, f.LightsDrawn)
	assert.Equal(t, 1, f.LightsSkipped)
	assert.False(t, f.Contribution(spot, frameW/2, frameH/2).Covered)
}

func TestRenderErrors(t *testing.T) {
	_, err := New(Options{Width: 0, Height: 10})
	assert.ErrorIs(t, err, ErrInvalidSize)

	r, err := New(Options{Width: 8, Height: 8, ShadowsEnabled: true})
	require.NoError(t, err)

	_, err = r.Render(&pipeline.Context{})
	assert.Error(t, err)

	ctx := occluderScene(t, light.New(light.Spot, light.WithShadow()))
	_, err = r.Render(ctx)
	assert.ErrorIs(t, err, light.ErrShadowUnsupported)

	ctx = occluderScene(t)
	ctx.Objects = append(ctx.Objects, scene.NewInstance(opaque{}, scene.Material{}, mgl32.Ident4()))
	_, err = r.Render(ctx)
	assert.ErrorIs(t, err, ErrNoGeometry)
}

// opaque draws on the GPU only.
type opaque struct{}

func (opaque) Rasterize() error { return nil }

func TestImages(t *testing.T) {
	l := sun(true)
	ctx := occluderScene(t, l)
	f := render(t, ctx, true)

	img := f.Image()
	assert.Equal(t, frameW, img.Bounds().Dx())
	assert.Equal(t, frameH, img.Bounds().Dy())
	// row 0 of the frame is the bottom row of the image
	c := f.Color[3]
	assert.Equal(t, unit8(c[0]), img.RGBAAt(3, frameH-1).R)

	diffuse := f.ChannelImage(gbuffer.Diffuse)
	x, y := pixelOf(t, ctx.Camera, mgl32.Vec3{3, 0, 0})
	assert.Equal(t, uint8(255), diffuse.RGBAAt(x, frameH-1-y).G)

	dbg := f.DebugImage()
	assert.Equal(t, img.Bounds(), dbg.Bounds())

	depth := f.Shadows[l.ID()].Image(0)
	assert.Equal(t, 128, depth.Bounds().Dx())
	// the centre of the map sees the occluder, the corners see nothing
	assert.Less(t, depth.GrayAt(64, 64).Y, uint8(255))
	assert.Equal(t, uint8(255), depth.GrayAt(0, 0).Y)
}
