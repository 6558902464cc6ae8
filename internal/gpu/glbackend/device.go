// Package glbackend implements gpu.Device on OpenGL 4.1 core.
package glbackend

import (
	"fmt"

	"deferred-shadows/internal/gpu"

	"github.com/go-gl/gl/v4.1-core/gl"
	"github.com/go-gl/mathgl/mgl32"
)

// Device drives the current OpenGL context. gl.Init must have been called on
// the owning thread before New.
type Device struct {
	arrays map[gpu.VertexArray]vertexArray
}

var _ gpu.Device = (*Device)(nil)

// New returns a device for the current context.
func New() *Device {
	gl.FrontFace(gl.CCW)
	gl.CullFace(gl.BACK)
	gl.Enable(gl.DEPTH_TEST)
	return &Device{arrays: make(map[gpu.VertexArray]vertexArray)}
}

// NewDepthTexture allocates a DEPTH_COMPONENT32F texture configured for
// hardware depth comparison (LEQUAL against the reference value).
func (d *Device) NewDepthTexture(kind gpu.TextureKind, width, height int) (gpu.Texture, error) {
	var tex uint32
	gl.GenTextures(1, &tex)
	if tex == 0 {
		return 0, fmt.Errorf("depth texture: %w", gpu.ErrAllocation)
	}
	target := textureTarget(kind)
	gl.BindTexture(target, tex)

	switch kind {
	case gpu.TextureCube:
		for face := uint32(0); face < 6; face++ {
			gl.TexImage2D(gl.TEXTURE_CUBE_MAP_POSITIVE_X+face, 0, gl.DEPTH_COMPONENT32F,
				int32(width), int32(height), 0, gl.DEPTH_COMPONENT, gl.FLOAT, nil)
		}
		gl.TexParameteri(target, gl.TEXTURE_WRAP_R, gl.CLAMP_TO_EDGE)
	default:
		gl.TexImage2D(target, 0, gl.DEPTH_COMPONENT32F,
			int32(width), int32(height), 0, gl.DEPTH_COMPONENT, gl.FLOAT, nil)
	}

	gl.TexParameteri(target, gl.TEXTURE_MIN_FILTER, gl.LINEAR)
	gl.TexParameteri(target, gl.TEXTURE_MAG_FILTER, gl.LINEAR)
	gl.TexParameteri(target, gl.TEXTURE_WRAP_S, gl.CLAMP_TO_EDGE)
	gl.TexParameteri(target, gl.TEXTURE_WRAP_T, gl.CLAMP_TO_EDGE)
	gl.TexParameteri(target, gl.TEXTURE_COMPARE_MODE, gl.COMPARE_REF_TO_TEXTURE)
	gl.TexParameteri(target, gl.TEXTURE_COMPARE_FUNC, gl.LEQUAL)
	gl.BindTexture(target, 0)

	if err := d.Err(); err != nil {
		gl.DeleteTextures(1, &tex)
		return 0, fmt.Errorf("depth texture %dx%d: %w: %v", width, height, gpu.ErrAllocation, err)
	}
	return gpu.Texture(tex), nil
}

// NewColorTexture allocates a 2D texture. pixels may be nil for render targets.
func (d *Device) NewColorTexture(width, height int, format gpu.ColorFormat, pixels []byte) (gpu.Texture, error) {
	var tex uint32
	gl.GenTextures(1, &tex)
	if tex == 0 {
		return 0, fmt.Errorf("color texture: %w", gpu.ErrAllocation)
	}
	gl.BindTexture(gl.TEXTURE_2D, tex)

	data := gl.Ptr(nil)
	if len(pixels) > 0 {
		data = gl.Ptr(pixels)
	}
	switch format {
	case gpu.FormatRGB32F:
		gl.TexImage2D(gl.TEXTURE_2D, 0, gl.RGB32F, int32(width), int32(height), 0, gl.RGB, gl.FLOAT, data)
		gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MIN_FILTER, gl.NEAREST)
		gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MAG_FILTER, gl.NEAREST)
	case gpu.FormatRGBA8:
		gl.TexImage2D(gl.TEXTURE_2D, 0, gl.RGBA, int32(width), int32(height), 0, gl.RGBA, gl.UNSIGNED_BYTE, data)
		gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MIN_FILTER, gl.LINEAR)
		gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MAG_FILTER, gl.LINEAR)
		gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_S, gl.REPEAT)
		gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_T, gl.REPEAT)
	}
	gl.BindTexture(gl.TEXTURE_2D, 0)

	if err := d.Err(); err != nil {
		gl.DeleteTextures(1, &tex)
		return 0, fmt.Errorf("color texture %dx%d: %w: %v", width, height, gpu.ErrAllocation, err)
	}
	return gpu.Texture(tex), nil
}

func (d *Device) DeleteTexture(tex gpu.Texture) {
	if tex == 0 {
		return
	}
	t := uint32(tex)
	gl.DeleteTextures(1, &t)
}

func (d *Device) NewFramebuffer() (gpu.Framebuffer, error) {
	var fb uint32
	gl.GenFramebuffers(1, &fb)
	if fb == 0 {
		return 0, fmt.Errorf("framebuffer: %w", gpu.ErrAllocation)
	}
	return gpu.Framebuffer(fb), nil
}

func (d *Device) DeleteFramebuffer(fb gpu.Framebuffer) {
	if fb == 0 {
		return
	}
	f := uint32(fb)
	gl.DeleteFramebuffers(1, &f)
}

func (d *Device) AttachColor(fb gpu.Framebuffer, slot int, tex gpu.Texture) error {
	gl.BindFramebuffer(gl.DRAW_FRAMEBUFFER, uint32(fb))
	gl.FramebufferTexture2D(gl.DRAW_FRAMEBUFFER, gl.COLOR_ATTACHMENT0+uint32(slot), gl.TEXTURE_2D, uint32(tex), 0)
	return gpu.Check(d, "attach color")
}

func (d *Device) AttachDepth(fb gpu.Framebuffer, tex gpu.Texture, face gpu.CubeFace) error {
	gl.BindFramebuffer(gl.DRAW_FRAMEBUFFER, uint32(fb))
	target := uint32(gl.TEXTURE_2D)
	if face != gpu.NoFace {
		target = gl.TEXTURE_CUBE_MAP_POSITIVE_X + uint32(face)
	}
	gl.FramebufferTexture2D(gl.DRAW_FRAMEBUFFER, gl.DEPTH_ATTACHMENT, target, uint32(tex), 0)
	return gpu.Check(d, "attach depth")
}

func (d *Device) DrawBuffers(fb gpu.Framebuffer, count int) error {
	gl.BindFramebuffer(gl.DRAW_FRAMEBUFFER, uint32(fb))
	if count == 0 {
		gl.DrawBuffer(gl.NONE)
		gl.ReadBuffer(gl.NONE)
		return gpu.Check(d, "draw buffers")
	}
	bufs := make([]uint32, count)
	for i := range bufs {
		bufs[i] = gl.COLOR_ATTACHMENT0 + uint32(i)
	}
	gl.DrawBuffers(int32(count), &bufs[0])
	return gpu.Check(d, "draw buffers")
}

func (d *Device) CheckFramebuffer(fb gpu.Framebuffer) error {
	gl.BindFramebuffer(gl.DRAW_FRAMEBUFFER, uint32(fb))
	status := gl.CheckFramebufferStatus(gl.DRAW_FRAMEBUFFER)
	if status != gl.FRAMEBUFFER_COMPLETE {
		return fmt.Errorf("framebuffer %d status 0x%x: %w", fb, status, gpu.ErrIncompleteFramebuffer)
	}
	return nil
}

func (d *Device) BindFramebuffer(target gpu.FramebufferTarget, fb gpu.Framebuffer) {
	switch target {
	case gpu.DrawFramebuffer:
		gl.BindFramebuffer(gl.DRAW_FRAMEBUFFER, uint32(fb))
	case gpu.ReadFramebuffer:
		gl.BindFramebuffer(gl.READ_FRAMEBUFFER, uint32(fb))
	default:
		gl.BindFramebuffer(gl.FRAMEBUFFER, uint32(fb))
	}
}

func (d *Device) ReadBuffer(slot int) {
	gl.ReadBuffer(gl.COLOR_ATTACHMENT0 + uint32(slot))
}

func (d *Device) Blit(src, dst gpu.Rect) {
	gl.BlitFramebuffer(
		int32(src.X0), int32(src.Y0), int32(src.X1), int32(src.Y1),
		int32(dst.X0), int32(dst.Y0), int32(dst.X1), int32(dst.Y1),
		gl.COLOR_BUFFER_BIT, gl.LINEAR)
}

func (d *Device) Viewport(x, y, width, height int) {
	gl.Viewport(int32(x), int32(y), int32(width), int32(height))
}

func (d *Device) Clear(mask gpu.ClearMask) {
	var bits uint32
	if mask&gpu.ClearColor != 0 {
		gl.ClearColor(0, 0, 0, 1)
		bits |= gl.COLOR_BUFFER_BIT
	}
	if mask&gpu.ClearDepth != 0 {
		gl.ClearDepth(1)
		bits |= gl.DEPTH_BUFFER_BIT
	}
	gl.Clear(bits)
}

func (d *Device) SetCulling(mode gpu.CullMode) {
	switch mode {
	case gpu.CullNone:
		gl.Disable(gl.CULL_FACE)
	case gpu.CullBack:
		gl.Enable(gl.CULL_FACE)
		gl.CullFace(gl.BACK)
	case gpu.CullFront:
		gl.Enable(gl.CULL_FACE)
		gl.CullFace(gl.FRONT)
	}
}

func (d *Device) SetDepth(test, write bool) {
	if test {
		gl.Enable(gl.DEPTH_TEST)
		gl.DepthFunc(gl.LESS)
	} else {
		gl.Disable(gl.DEPTH_TEST)
	}
	gl.DepthMask(write)
}

func (d *Device) SetBlend(mode gpu.BlendMode) {
	switch mode {
	case gpu.BlendAdditive:
		gl.Enable(gl.BLEND)
		gl.BlendEquation(gl.FUNC_ADD)
		gl.BlendFunc(gl.ONE, gl.ONE)
	default:
		gl.Disable(gl.BLEND)
	}
}

func (d *Device) BindTexture(unit int, kind gpu.TextureKind, tex gpu.Texture) {
	gl.ActiveTexture(gl.TEXTURE0 + uint32(unit))
	gl.BindTexture(textureTarget(kind), uint32(tex))
}

func (d *Device) Barrier() {
	gl.Finish()
}

// Err drains the GL error queue and reports the first code seen.
func (d *Device) Err() error {
	first := uint32(gl.NO_ERROR)
	for {
		code := gl.GetError()
		if code == gl.NO_ERROR {
			break
		}
		if first == gl.NO_ERROR {
			first = code
		}
	}
	if first == gl.NO_ERROR {
		return nil
	}
	return fmt.Errorf("%w: gl error 0x%x", gpu.ErrBackend, first)
}

func textureTarget(kind gpu.TextureKind) uint32 {
	if kind == gpu.TextureCube {
		return gl.TEXTURE_CUBE_MAP
	}
	return gl.TEXTURE_2D
}

func (d *Device) UniformLocation(p gpu.Program, name string) int32 {
	return gl.GetUniformLocation(uint32(p), gl.Str(name+"\x00"))
}

func (d *Device) UniformInt(loc int32, v int32)       { gl.Uniform1i(loc, v) }
func (d *Device) UniformFloat(loc int32, v float32)   { gl.Uniform1f(loc, v) }
func (d *Device) UniformVec2(loc int32, v mgl32.Vec2) { gl.Uniform2f(loc, v[0], v[1]) }
func (d *Device) UniformVec3(loc int32, v mgl32.Vec3) { gl.Uniform3f(loc, v[0], v[1], v[2]) }
func (d *Device) UniformMat4(loc int32, m mgl32.Mat4) { gl.UniformMatrix4fv(loc, 1, false, &m[0]) }
func (d *Device) UseProgram(p gpu.Program)            { gl.UseProgram(uint32(p)) }
func (d *Device) DeleteProgram(p gpu.Program)         { gl.DeleteProgram(uint32(p)) }
