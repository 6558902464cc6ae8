// Package shadow renders per-light depth maps. A directional light owns one
// camera and a 2D depth texture; an omnidirectional (point) light owns six
// axis-aligned cameras and a cube depth texture.
//
// Shadow cameras live in the main camera's view space: Create transforms the
// light pose by the main view matrix before re-aiming the rig, so the light
// passes can compare G-buffer positions (also view space) directly against
// the stored depth.
package shadow

import (
	"errors"
	"fmt"

	"deferred-shadows/internal/camera"
	"deferred-shadows/internal/gpu"
	"deferred-shadows/internal/scene"
	"deferred-shadows/internal/shaders"

	"github.com/go-gl/mathgl/mgl32"
)

const (
	Near = 1.0
	Far  = 50.0

	// FOV of every shadow camera in degrees; six of them tile a cube.
	FOV = 90

	DefaultResolution = 512

	// DepthBias is added to the stored linear depth to suppress acne.
	DepthBias = 0.0125
)

var ErrNotReady = errors.New("shadow: map not initialised")

// Kind selects the camera rig and texture type.
type Kind int

const (
	Directional Kind = iota
	Omni
)

func (k Kind) String() string {
	switch k {
	case Directional:
		return "directional"
	case Omni:
		return "omni"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Faces returns how many depth images the kind renders.
func (k Kind) Faces() int {
	if k == Omni {
		return 6
	}
	return 1
}

func (k Kind) textureKind() gpu.TextureKind {
	if k == Omni {
		return gpu.TextureCube
	}
	return gpu.Texture2D
}

// Pose places a light in world space. Omni maps use only Position.
type Pose struct {
	Position mgl32.Vec3
	Target   mgl32.Vec3
	Up       mgl32.Vec3
}

// faceTargets and faceUps follow the cube map face order +X, -X, +Y, -Y,
// +Z, -Z with the up vectors the texture lookup expects.
var (
	faceTargets = [6]mgl32.Vec3{
		{1, 0, 0}, {-1, 0, 0},
		{0, 1, 0}, {0, -1, 0},
		{0, 0, 1}, {0, 0, -1},
	}
	faceUps = [6]mgl32.Vec3{
		{0, -1, 0}, {0, -1, 0},
		{0, 0, 1}, {0, 0, -1},
		{0, -1, 0}, {0, -1, 0},
	}
)

var defaultPose = Pose{
	Position: mgl32.Vec3{0, 0, 0},
	Target:   mgl32.Vec3{0, 0, -1},
	Up:       mgl32.Vec3{0, 1, 0},
}

// Map is a shadow map and the cameras that render it.
type Map struct {
	kind    Kind
	cameras []*camera.Camera

	dev        gpu.Device
	depth      shaders.Shader
	texture    gpu.Texture
	fbo        gpu.Framebuffer
	resolution int
	ready      bool

	// camera-space pose of the last completed render
	rendered   Pose
	dirty      bool
	generation uint64
}

// New builds the camera rig for kind from the default light pose. No GPU
// resources are allocated until Init.
func New(kind Kind) *Map {
	m := &Map{kind: kind, resolution: DefaultResolution, dirty: true}
	switch kind {
	case Omni:
		for i := range faceTargets {
			m.cameras = append(m.cameras, rigCamera(defaultPose.Position, faceTargets[i], faceUps[i]))
		}
	default:
		m.cameras = append(m.cameras, rigCamera(defaultPose.Position, defaultPose.Target, defaultPose.Up))
	}
	return m
}

func rigCamera(pos, target, up mgl32.Vec3) *camera.Camera {
	c := camera.New()
	// constant inputs; failure means the tables above are wrong
	if err := c.LookAt(pos, target, up); err != nil {
		panic(fmt.Sprintf("shadow: bad rig %v -> %v: %v", pos, target, err))
	}
	if err := c.SetFOV(FOV); err != nil {
		panic(err)
	}
	if err := c.SetAspect(1); err != nil {
		panic(err)
	}
	if err := c.SetDepthClip(Near, Far); err != nil {
		panic(err)
	}
	return c
}

func (m *Map) Kind() Kind                   { return m.kind }
func (m *Map) Ready() bool                  { return m.ready }
func (m *Map) Resolution() int              { return m.resolution }
func (m *Map) Texture() gpu.Texture         { return m.texture }
func (m *Map) Cameras() []*camera.Camera    { return m.cameras }
func (m *Map) Near() float32                { return Near }
func (m *Map) Far() float32                 { return Far }
func (m *Map) Generation() uint64           { return m.generation }
func (m *Map) TextureKind() gpu.TextureKind { return m.kind.textureKind() }

// Init allocates the depth texture and framebuffer and verifies that every
// face forms a complete framebuffer. The map is ready only if all of that
// succeeds; on failure nothing stays allocated. Calling Init on a ready map
// reallocates it.
func (m *Map) Init(dev gpu.Device, resolution int, depth shaders.Shader) error {
	if resolution <= 0 {
		return fmt.Errorf("shadow: resolution %d: %w", resolution, gpu.ErrAllocation)
	}
	if m.ready {
		m.Destroy()
	}
	m.dev = dev
	m.depth = depth
	m.resolution = resolution

	if err := m.allocate(); err != nil {
		m.release()
		return fmt.Errorf("shadow: init %s map %dx%d: %w", m.kind, resolution, resolution, err)
	}
	m.ready = true
	m.dirty = true
	return nil
}

func (m *Map) allocate() error {
	tex, err := m.dev.NewDepthTexture(m.kind.textureKind(), m.resolution, m.resolution)
	if err != nil {
		return err
	}
	m.texture = tex

	fbo, err := m.dev.NewFramebuffer()
	if err != nil {
		return err
	}
	m.fbo = fbo

	if err := m.dev.DrawBuffers(fbo, 0); err != nil {
		return err
	}
	for i := 0; i < m.kind.Faces(); i++ {
		if err := m.dev.AttachDepth(fbo, tex, m.face(i)); err != nil {
			return err
		}
		if err := m.dev.CheckFramebuffer(fbo); err != nil {
			return fmt.Errorf("face %d: %w", i, err)
		}
	}
	m.dev.BindFramebuffer(gpu.BothFramebuffers, 0)
	return gpu.Check(m.dev, "shadow init")
}

func (m *Map) face(i int) gpu.CubeFace {
	if m.kind == Omni {
		return gpu.CubeFace(i)
	}
	return gpu.NoFace
}

// Aim moves the rig to the light pose expressed in the space of mainView.
// Omni cameras keep their axis-aligned orientation and only move; the
// directional camera is re-aimed from Position towards Target.
func (m *Map) Aim(mainView mgl32.Mat4, pose Pose) error {
	local := toView(mainView, pose)
	switch m.kind {
	case Omni:
		for _, c := range m.cameras {
			c.SetPosition(local.Position)
		}
	default:
		if err := m.cameras[0].LookAt(local.Position, local.Target, local.Up); err != nil {
			return fmt.Errorf("shadow: aim directional camera: %w", err)
		}
	}
	return nil
}

func toView(view mgl32.Mat4, p Pose) Pose {
	return Pose{
		Position: mgl32.TransformCoordinate(p.Position, view),
		Target:   mgl32.TransformCoordinate(p.Target, view),
		Up:       mgl32.TransformNormal(p.Up, view),
	}
}

// Invalidate forces the next Create to re-render even if the light has not
// moved relative to the main camera.
func (m *Map) Invalidate() { m.dirty = true }

// Create re-renders the depth map for objects as seen from the light. It is
// a no-op when the light pose in main-camera space is unchanged since the
// last complete render; callers that move objects call Invalidate. The
// first failing backend call aborts the remaining faces; the map keeps
// whatever was written and is re-rendered next time.
func (m *Map) Create(objects []scene.Object, mainView mgl32.Mat4, pose Pose) error {
	if !m.ready {
		return ErrNotReady
	}
	local := toView(mainView, pose)
	if !m.dirty && poseEqual(local, m.rendered) {
		return nil
	}
	if err := m.Aim(mainView, pose); err != nil {
		return err
	}

	m.dirty = true
	if err := m.render(objects, mainView); err != nil {
		return fmt.Errorf("shadow: create %s map: %w", m.kind, err)
	}
	m.rendered = local
	m.dirty = false
	m.generation++
	return nil
}

// depthCulling culls front faces so the stored depth is that of the far
// side of closed meshes. Double-sided objects are drawn with both faces.
func depthCulling(obj scene.Object) gpu.CullMode {
	if obj.Material().DoubleSided {
		return gpu.CullNone
	}
	return gpu.CullFront
}

func (m *Map) render(objects []scene.Object, mainView mgl32.Mat4) error {
	dev := m.dev
	dev.BindFramebuffer(gpu.DrawFramebuffer, m.fbo)
	dev.Viewport(0, 0, m.resolution, m.resolution)
	cull := gpu.CullFront
	dev.SetCulling(cull)
	dev.SetDepth(true, true)
	defer func() {
		dev.SetCulling(gpu.CullBack)
		dev.BindFramebuffer(gpu.DrawFramebuffer, 0)
	}()
	if err := gpu.Check(dev, "shadow state"); err != nil {
		return err
	}

	if err := m.depth.Bind(false); err != nil {
		return err
	}
	defer m.depth.Unbind()

	u := shaders.Uniforms{ShadowFar: Far, DepthBias: DepthBias}
	for i, cam := range m.cameras {
		if err := dev.AttachDepth(m.fbo, m.texture, m.face(i)); err != nil {
			return fmt.Errorf("face %d: %w", i, err)
		}
		if err := dev.CheckFramebuffer(m.fbo); err != nil {
			return fmt.Errorf("face %d: %w", i, err)
		}
		dev.Clear(gpu.ClearDepth)
		if err := gpu.Check(dev, "shadow clear"); err != nil {
			return fmt.Errorf("face %d: %w", i, err)
		}

		u.Projection = cam.Projection()
		lightView := cam.View().Mul4(mainView)
		for j, obj := range objects {
			if want := depthCulling(obj); want != cull {
				dev.SetCulling(want)
				cull = want
			}
			u.ModelView = lightView.Mul4(obj.ObjectToWorld())
			if err := m.depth.SetUniforms(&u, false); err != nil {
				return fmt.Errorf("face %d object %d: %w", i, j, err)
			}
			if err := obj.Rasterize(); err != nil {
				return fmt.Errorf("face %d object %d: %w", i, j, err)
			}
			if err := gpu.Check(dev, "shadow draw"); err != nil {
				return fmt.Errorf("face %d object %d: %w", i, j, err)
			}
		}
	}
	// the light passes sample this texture next
	dev.Barrier()
	return nil
}

func poseEqual(a, b Pose) bool {
	return a.Position.ApproxEqual(b.Position) &&
		a.Target.ApproxEqual(b.Target) &&
		a.Up.ApproxEqual(b.Up)
}

// BindAt exposes the depth texture on a texture unit for sampling.
func (m *Map) BindAt(unit int) error {
	if !m.ready {
		return ErrNotReady
	}
	m.dev.BindTexture(unit, m.kind.textureKind(), m.texture)
	return gpu.Check(m.dev, "shadow bind")
}

// UnbindAt clears the texture unit bound by BindAt.
func (m *Map) UnbindAt(unit int) {
	if m.dev == nil {
		return
	}
	m.dev.BindTexture(unit, m.kind.textureKind(), 0)
}

// Destroy releases the GPU resources. The camera rig survives, so the map
// can be initialised again.
func (m *Map) Destroy() {
	m.release()
	m.ready = false
	m.dirty = true
}

func (m *Map) release() {
	if m.dev == nil {
		return
	}
	if m.fbo != 0 {
		m.dev.DeleteFramebuffer(m.fbo)
		m.fbo = 0
	}
	if m.texture != 0 {
		m.dev.DeleteTexture(m.texture)
		m.texture = 0
	}
}
