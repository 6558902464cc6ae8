// Package gpu describes the graphics backend the renderer is written against.
//
// Every resource the pipeline touches (depth textures, G-buffer attachments,
// framebuffers, shader programs, vertex arrays) is allocated and driven
// through Device. The OpenGL implementation lives in gpu/glbackend; tests use
// the recording implementation in gpu/gputest.
package gpu

import "github.com/go-gl/mathgl/mgl32"

// Handles are opaque backend names. Zero is never a valid resource.
type (
	Texture     uint32
	Framebuffer uint32
	Program     uint32
	VertexArray uint32
)

// TextureKind selects between a flat texture and a six-face cube map.
type TextureKind int

const (
	Texture2D TextureKind = iota
	TextureCube
)

func (k TextureKind) String() string {
	switch k {
	case Texture2D:
		return "2d"
	case TextureCube:
		return "cube"
	}
	return "unknown"
}

// CubeFace indexes the faces of a cube map in +X, -X, +Y, -Y, +Z, -Z order.
type CubeFace int

const (
	FacePositiveX CubeFace = iota
	FaceNegativeX
	FacePositiveY
	FaceNegativeY
	FacePositiveZ
	FaceNegativeZ

	// NoFace attaches a 2D texture.
	NoFace CubeFace = -1
)

// ColorFormat is the storage format of a color attachment or sampled texture.
type ColorFormat int

const (
	FormatRGB32F ColorFormat = iota
	FormatRGBA8
)

// FramebufferTarget selects which framebuffer binding point is changed.
type FramebufferTarget int

const (
	DrawFramebuffer FramebufferTarget = iota
	ReadFramebuffer
	BothFramebuffers
)

// ClearMask selects the buffers cleared by Device.Clear.
type ClearMask uint32

const (
	ClearColor ClearMask = 1 << iota
	ClearDepth
)

// CullMode is the face culling state.
type CullMode int

const (
	CullNone CullMode = iota
	CullBack
	CullFront
)

// BlendMode is the framebuffer blend state.
type BlendMode int

const (
	BlendNone BlendMode = iota
	// BlendAdditive sums each draw onto the existing contents (ONE, ONE).
	BlendAdditive
)

// Rect is a pixel rectangle, X1/Y1 exclusive.
type Rect struct {
	X0, Y0, X1, Y1 int
}

// VertexLayout describes an interleaved float32 vertex buffer. Each entry is
// the component count of one attribute, bound to consecutive locations.
type VertexLayout []int

// Stride returns the size of one vertex in float32 components.
func (l VertexLayout) Stride() int {
	n := 0
	for _, c := range l {
		n += c
	}
	return n
}

// Device is the graphics backend. Calls are made from a single thread that
// owns the context. Methods without an error result report failures through
// Err, which returns and clears the most recent backend error.
type Device interface {
	NewDepthTexture(kind TextureKind, width, height int) (Texture, error)
	NewColorTexture(width, height int, format ColorFormat, pixels []byte) (Texture, error)
	DeleteTexture(tex Texture)

	NewFramebuffer() (Framebuffer, error)
	DeleteFramebuffer(fb Framebuffer)
	// AttachColor and AttachDepth leave fb bound as the draw framebuffer.
	AttachColor(fb Framebuffer, slot int, tex Texture) error
	AttachDepth(fb Framebuffer, tex Texture, face CubeFace) error
	// DrawBuffers enables color attachments 0..count-1; zero disables color output.
	DrawBuffers(fb Framebuffer, count int) error
	CheckFramebuffer(fb Framebuffer) error
	BindFramebuffer(target FramebufferTarget, fb Framebuffer)
	ReadBuffer(slot int)
	Blit(src, dst Rect)

	NewProgram(vertexSrc, fragmentSrc string) (Program, error)
	DeleteProgram(p Program)
	UseProgram(p Program)
	UniformLocation(p Program, name string) int32
	UniformInt(loc int32, v int32)
	UniformFloat(loc int32, v float32)
	UniformVec2(loc int32, v mgl32.Vec2)
	UniformVec3(loc int32, v mgl32.Vec3)
	UniformMat4(loc int32, m mgl32.Mat4)

	NewVertexArray(layout VertexLayout, vertices []float32, indices []uint32) (VertexArray, error)
	DeleteVertexArray(va VertexArray)
	DrawIndexed(va VertexArray, count int)

	Viewport(x, y, width, height int)
	Clear(mask ClearMask)
	SetCulling(mode CullMode)
	SetDepth(test, write bool)
	SetBlend(mode BlendMode)
	BindTexture(unit int, kind TextureKind, tex Texture)

	// Barrier blocks until all previously submitted work has completed, so
	// that a resource written by one pass can be read by the next.
	Barrier()

	Err() error
}
