// Package gputest provides a recording gpu.Device for tests.
package gputest

import (
	"fmt"
	"strings"

	"deferred-shadows/internal/gpu"

	"github.com/go-gl/mathgl/mgl32"
)

// Call is one recorded device call.
type Call struct {
	Op   string
	Args []any
}

func (c Call) String() string {
	if len(c.Args) == 0 {
		return c.Op
	}
	parts := make([]string, len(c.Args))
	for i, a := range c.Args {
		parts[i] = fmt.Sprint(a)
	}
	return c.Op + "(" + strings.Join(parts, ", ") + ")"
}

// TextureInfo describes an allocated texture.
type TextureInfo struct {
	Kind          gpu.TextureKind
	Depth         bool
	Format        gpu.ColorFormat
	Width, Height int
}

// FramebufferInfo tracks what is attached to a framebuffer.
type FramebufferInfo struct {
	Color       map[int]gpu.Texture
	Depth       gpu.Texture
	DepthFace   gpu.CubeFace
	DrawBuffers int
}

type failure struct {
	err   error
	after int // fail on the nth call; 0 fails every call
}

// Device records every call made to it and tracks the pipeline state that
// the renderer is expected to set. It allocates increasing handles and never
// fails unless told to.
type Device struct {
	Calls []Call

	Cull       gpu.CullMode
	DepthTest  bool
	DepthWrite bool
	Blend      gpu.BlendMode
	DrawFB     gpu.Framebuffer
	ReadFB     gpu.Framebuffer
	Program    gpu.Program
	Units      map[int]gpu.Texture
	ViewportWH [2]int

	Textures     map[gpu.Texture]TextureInfo
	Framebuffers map[gpu.Framebuffer]*FramebufferInfo
	Programs     map[gpu.Program][2]string
	Arrays       map[gpu.VertexArray]int

	// Uniforms holds the last value written at each location of each program.
	Uniforms map[gpu.Program]map[string]any
	// MissingUniforms lists names UniformLocation reports as -1.
	MissingUniforms map[string]bool

	next     uint32
	failures map[string]*failure
	pends    map[string]*failure
	counts   map[string]int
	pending  error
	locNames map[int32]string
	locProg  map[int32]gpu.Program
	nextLoc  int32
}

var _ gpu.Device = (*Device)(nil)

// New returns an empty recording device.
func New() *Device {
	return &Device{
		Units:           make(map[int]gpu.Texture),
		Textures:        make(map[gpu.Texture]TextureInfo),
		Framebuffers:    make(map[gpu.Framebuffer]*FramebufferInfo),
		Programs:        make(map[gpu.Program][2]string),
		Arrays:          make(map[gpu.VertexArray]int),
		Uniforms:        make(map[gpu.Program]map[string]any),
		MissingUniforms: make(map[string]bool),
		failures:        make(map[string]*failure),
		pends:           make(map[string]*failure),
		counts:          make(map[string]int),
		locNames:        make(map[int32]string),
		locProg:         make(map[int32]gpu.Program),
	}
}

// FailOn makes every call to op return err.
func (d *Device) FailOn(op string, err error) {
	d.failures[op] = &failure{err: err}
}

// FailAt makes only the nth (1-based) call to op return err.
func (d *Device) FailAt(op string, n int, err error) {
	d.failures[op] = &failure{err: err, after: n}
}

// PendAt queues err for the next Err call when op is called the nth
// (1-based) time. It fails operations that have no error result.
func (d *Device) PendAt(op string, n int, err error) {
	d.pends[op] = &failure{err: err, after: n}
}

// SetBackendError queues an error to be returned by the next Err call.
func (d *Device) SetBackendError(err error) {
	d.pending = err
}

// Reset forgets recorded calls and call counts, so FailAt counts from the
// next call. Allocated resources, pipeline state and failures are kept.
func (d *Device) Reset() {
	d.Calls = nil
	d.counts = make(map[string]int)
}

// ClearFailures removes every injected failure.
func (d *Device) ClearFailures() {
	d.failures = make(map[string]*failure)
	d.pends = make(map[string]*failure)
}

// Ops returns the recorded operation names in order.
func (d *Device) Ops() []string {
	ops := make([]string, len(d.Calls))
	for i, c := range d.Calls {
		ops[i] = c.Op
	}
	return ops
}

// Count returns how many times op was recorded.
func (d *Device) Count(op string) int {
	n := 0
	for _, c := range d.Calls {
		if c.Op == op {
			n++
		}
	}
	return n
}

// Index returns the position of the first call to op, or -1.
func (d *Device) Index(op string) int {
	for i, c := range d.Calls {
		if c.Op == op {
			return i
		}
	}
	return -1
}

// LastIndex returns the position of the last call to op, or -1.
func (d *Device) LastIndex(op string) int {
	for i := len(d.Calls) - 1; i >= 0; i-- {
		if d.Calls[i].Op == op {
			return i
		}
	}
	return -1
}

// Filter returns the recorded calls to op.
func (d *Device) Filter(op string) []Call {
	var out []Call
	for _, c := range d.Calls {
		if c.Op == op {
			out = append(out, c)
		}
	}
	return out
}

// Note records a marker call. Test doubles built on top of the device use it
// to interleave their own events with device calls.
func (d *Device) Note(op string, args ...any) {
	d.record(op, args...)
}

// Uniform returns the last value set for name while p was in use.
func (d *Device) Uniform(p gpu.Program, name string) (any, bool) {
	u, ok := d.Uniforms[p]
	if !ok {
		return nil, false
	}
	v, ok := u[name]
	return v, ok
}

// Live reports the number of resources currently allocated.
func (d *Device) Live() int {
	return len(d.Textures) + len(d.Framebuffers) + len(d.Programs) + len(d.Arrays)
}

func (d *Device) record(op string, args ...any) error {
	d.Calls = append(d.Calls, Call{Op: op, Args: args})
	d.counts[op]++
	if p, ok := d.pends[op]; ok && (p.after == 0 || p.after == d.counts[op]) {
		d.pending = p.err
	}
	if f, ok := d.failures[op]; ok {
		if f.after == 0 || f.after == d.counts[op] {
			return f.err
		}
	}
	return nil
}

func (d *Device) handle() uint32 {
	d.next++
	return d.next
}

func (d *Device) NewDepthTexture(kind gpu.TextureKind, width, height int) (gpu.Texture, error) {
	if err := d.record("NewDepthTexture", kind, width, height); err != nil {
		return 0, err
	}
	if width <= 0 || height <= 0 {
		return 0, fmt.Errorf("depth texture %dx%d: %w", width, height, gpu.ErrAllocation)
	}
	t := gpu.Texture(d.handle())
	d.Textures[t] = TextureInfo{Kind: kind, Depth: true, Width: width, Height: height}
	return t, nil
}

func (d *Device) NewColorTexture(width, height int, format gpu.ColorFormat, pixels []byte) (gpu.Texture, error) {
	if err := d.record("NewColorTexture", width, height, format); err != nil {
		return 0, err
	}
	if width <= 0 || height <= 0 {
		return 0, fmt.Errorf("color texture %dx%d: %w", width, height, gpu.ErrAllocation)
	}
	t := gpu.Texture(d.handle())
	d.Textures[t] = TextureInfo{Kind: gpu.Texture2D, Format: format, Width: width, Height: height}
	return t, nil
}

func (d *Device) DeleteTexture(tex gpu.Texture) {
	d.record("DeleteTexture", tex)
	delete(d.Textures, tex)
}

func (d *Device) NewFramebuffer() (gpu.Framebuffer, error) {
	if err := d.record("NewFramebuffer"); err != nil {
		return 0, err
	}
	fb := gpu.Framebuffer(d.handle())
	d.Framebuffers[fb] = &FramebufferInfo{Color: make(map[int]gpu.Texture), DepthFace: gpu.NoFace}
	return fb, nil
}

func (d *Device) DeleteFramebuffer(fb gpu.Framebuffer) {
	d.record("DeleteFramebuffer", fb)
	delete(d.Framebuffers, fb)
}

func (d *Device) AttachColor(fb gpu.Framebuffer, slot int, tex gpu.Texture) error {
	d.DrawFB = fb
	if err := d.record("AttachColor", fb, slot, tex); err != nil {
		return err
	}
	if info, ok := d.Framebuffers[fb]; ok {
		info.Color[slot] = tex
	}
	return nil
}

func (d *Device) AttachDepth(fb gpu.Framebuffer, tex gpu.Texture, face gpu.CubeFace) error {
	d.DrawFB = fb
	if err := d.record("AttachDepth", fb, tex, face); err != nil {
		return err
	}
	if info, ok := d.Framebuffers[fb]; ok {
		info.Depth = tex
		info.DepthFace = face
	}
	return nil
}

func (d *Device) DrawBuffers(fb gpu.Framebuffer, count int) error {
	d.DrawFB = fb
	if err := d.record("DrawBuffers", fb, count); err != nil {
		return err
	}
	if info, ok := d.Framebuffers[fb]; ok {
		info.DrawBuffers = count
	}
	return nil
}

func (d *Device) CheckFramebuffer(fb gpu.Framebuffer) error {
	d.DrawFB = fb
	if err := d.record("CheckFramebuffer", fb); err != nil {
		return err
	}
	info, ok := d.Framebuffers[fb]
	if !ok || (info.Depth == 0 && len(info.Color) == 0) {
		return fmt.Errorf("framebuffer %d: %w", fb, gpu.ErrIncompleteFramebuffer)
	}
	return nil
}

func (d *Device) BindFramebuffer(target gpu.FramebufferTarget, fb gpu.Framebuffer) {
	d.record("BindFramebuffer", target, fb)
	switch target {
	case gpu.DrawFramebuffer:
		d.DrawFB = fb
	case gpu.ReadFramebuffer:
		d.ReadFB = fb
	default:
		d.DrawFB, d.ReadFB = fb, fb
	}
}

func (d *Device) ReadBuffer(slot int) { d.record("ReadBuffer", slot) }

func (d *Device) Blit(src, dst gpu.Rect) { d.record("Blit", src, dst) }

func (d *Device) NewProgram(vertexSrc, fragmentSrc string) (gpu.Program, error) {
	if err := d.record("NewProgram"); err != nil {
		return 0, err
	}
	p := gpu.Program(d.handle())
	d.Programs[p] = [2]string{vertexSrc, fragmentSrc}
	d.Uniforms[p] = make(map[string]any)
	return p, nil
}

func (d *Device) DeleteProgram(p gpu.Program) {
	d.record("DeleteProgram", p)
	delete(d.Programs, p)
}

func (d *Device) UseProgram(p gpu.Program) {
	d.record("UseProgram", p)
	d.Program = p
}

func (d *Device) UniformLocation(p gpu.Program, name string) int32 {
	d.record("UniformLocation", p, name)
	if d.MissingUniforms[name] {
		return -1
	}
	for loc, n := range d.locNames {
		if n == name && d.locProg[loc] == p {
			return loc
		}
	}
	loc := d.nextLoc
	d.nextLoc++
	d.locNames[loc] = name
	d.locProg[loc] = p
	return loc
}

func (d *Device) setUniform(op string, loc int32, v any) {
	d.record(op, d.locNames[loc], v)
	if loc < 0 {
		return
	}
	// Values land on whichever program is in use, as on a real context.
	p := d.Program
	if d.Uniforms[p] == nil {
		d.Uniforms[p] = make(map[string]any)
	}
	d.Uniforms[p][d.locNames[loc]] = v
}

func (d *Device) UniformInt(loc int32, v int32)       { d.setUniform("UniformInt", loc, v) }
func (d *Device) UniformFloat(loc int32, v float32)   { d.setUniform("UniformFloat", loc, v) }
func (d *Device) UniformVec2(loc int32, v mgl32.Vec2) { d.setUniform("UniformVec2", loc, v) }
func (d *Device) UniformVec3(loc int32, v mgl32.Vec3) { d.setUniform("UniformVec3", loc, v) }
func (d *Device) UniformMat4(loc int32, m mgl32.Mat4) { d.setUniform("UniformMat4", loc, m) }

func (d *Device) NewVertexArray(layout gpu.VertexLayout, vertices []float32, indices []uint32) (gpu.VertexArray, error) {
	if err := d.record("NewVertexArray", layout.Stride(), len(vertices), len(indices)); err != nil {
		return 0, err
	}
	if len(vertices) == 0 || len(indices) == 0 {
		return 0, fmt.Errorf("vertex array: empty geometry: %w", gpu.ErrAllocation)
	}
	va := gpu.VertexArray(d.handle())
	d.Arrays[va] = len(indices)
	return va, nil
}

func (d *Device) DeleteVertexArray(va gpu.VertexArray) {
	d.record("DeleteVertexArray", va)
	delete(d.Arrays, va)
}

func (d *Device) DrawIndexed(va gpu.VertexArray, count int) {
	d.record("DrawIndexed", va, count)
}

func (d *Device) Viewport(x, y, width, height int) {
	d.record("Viewport", x, y, width, height)
	d.ViewportWH = [2]int{width, height}
}

func (d *Device) Clear(mask gpu.ClearMask) { d.record("Clear", mask) }

func (d *Device) SetCulling(mode gpu.CullMode) {
	d.record("SetCulling", mode)
	d.Cull = mode
}

func (d *Device) SetDepth(test, write bool) {
	d.record("SetDepth", test, write)
	d.DepthTest, d.DepthWrite = test, write
}

func (d *Device) SetBlend(mode gpu.BlendMode) {
	d.record("SetBlend", mode)
	d.Blend = mode
}

func (d *Device) BindTexture(unit int, kind gpu.TextureKind, tex gpu.Texture) {
	d.record("BindTexture", unit, kind, tex)
	if tex == 0 {
		delete(d.Units, unit)
		return
	}
	d.Units[unit] = tex
}

func (d *Device) Barrier() { d.record("Barrier") }

func (d *Device) Err() error {
	err := d.pending
	d.pending = nil
	return err
}
