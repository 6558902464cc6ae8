// Package gbuffer manages the offscreen render targets of the geometry pass:
// four RGB32F color attachments and a depth attachment on one framebuffer.
package gbuffer

import (
	"errors"
	"fmt"

	"deferred-shadows/internal/gpu"
)

var ErrNotReady = errors.New("gbuffer: not initialised")

// TextureType names a color attachment. Its value is both the attachment
// slot and the texture unit it is bound to for reading.
type TextureType int

const (
	Position TextureType = iota
	Diffuse
	Normal
	TexCoord

	NumTextures = 4
)

func (t TextureType) String() string {
	switch t {
	case Position:
		return "position"
	case Diffuse:
		return "diffuse"
	case Normal:
		return "normal"
	case TexCoord:
		return "texcoord"
	}
	return fmt.Sprintf("TextureType(%d)", int(t))
}

type GBuffer struct {
	dev      gpu.Device
	fbo      gpu.Framebuffer
	textures [NumTextures]gpu.Texture
	depth    gpu.Texture

	width, height int
	ready         bool
}

func New(dev gpu.Device) *GBuffer {
	return &GBuffer{dev: dev}
}

func (g *GBuffer) Ready() bool                       { return g.ready }
func (g *GBuffer) Size() (int, int)                  { return g.width, g.height }
func (g *GBuffer) Framebuffer() gpu.Framebuffer      { return g.fbo }
func (g *GBuffer) Texture(t TextureType) gpu.Texture { return g.textures[t] }
func (g *GBuffer) DepthTexture() gpu.Texture         { return g.depth }

// Init allocates the attachments at width x height and validates the
// framebuffer. Nothing stays allocated on failure. A ready buffer is
// released and reallocated.
func (g *GBuffer) Init(width, height int) error {
	if width <= 0 || height <= 0 {
		return fmt.Errorf("gbuffer: size %dx%d: %w", width, height, gpu.ErrAllocation)
	}
	if g.ready {
		g.Destroy()
	}
	g.width, g.height = width, height
	if err := g.allocate(); err != nil {
		g.release()
		return fmt.Errorf("gbuffer: init %dx%d: %w", width, height, err)
	}
	g.ready = true
	return nil
}

func (g *GBuffer) allocate() error {
	fbo, err := g.dev.NewFramebuffer()
	if err != nil {
		return err
	}
	g.fbo = fbo

	for i := range g.textures {
		tex, err := g.dev.NewColorTexture(g.width, g.height, gpu.FormatRGB32F, nil)
		if err != nil {
			return fmt.Errorf("%s: %w", TextureType(i), err)
		}
		g.textures[i] = tex
		if err := g.dev.AttachColor(fbo, i, tex); err != nil {
			return fmt.Errorf("%s: %w", TextureType(i), err)
		}
	}

	depth, err := g.dev.NewDepthTexture(gpu.Texture2D, g.width, g.height)
	if err != nil {
		return fmt.Errorf("depth: %w", err)
	}
	g.depth = depth
	if err := g.dev.AttachDepth(fbo, depth, gpu.NoFace); err != nil {
		return fmt.Errorf("depth: %w", err)
	}

	if err := g.dev.DrawBuffers(fbo, NumTextures); err != nil {
		return err
	}
	if err := g.dev.CheckFramebuffer(fbo); err != nil {
		return err
	}
	g.dev.BindFramebuffer(gpu.DrawFramebuffer, 0)
	return gpu.Check(g.dev, "gbuffer init")
}

// Resize reallocates the attachments if the size changed.
func (g *GBuffer) Resize(width, height int) error {
	if g.ready && width == g.width && height == g.height {
		return nil
	}
	return g.Init(width, height)
}

// BindForWriting makes the G-buffer the draw target.
func (g *GBuffer) BindForWriting() error {
	if !g.ready {
		return ErrNotReady
	}
	g.dev.BindFramebuffer(gpu.DrawFramebuffer, g.fbo)
	return gpu.Check(g.dev, "gbuffer bind for writing")
}

// BindForReading restores the default draw target and exposes each
// attachment on the texture unit matching its TextureType.
func (g *GBuffer) BindForReading() error {
	if !g.ready {
		return ErrNotReady
	}
	g.dev.BindFramebuffer(gpu.DrawFramebuffer, 0)
	for i, tex := range g.textures {
		g.dev.BindTexture(i, gpu.Texture2D, tex)
	}
	return gpu.Check(g.dev, "gbuffer bind for reading")
}

// UnbindTextures clears the units set by BindForReading.
func (g *GBuffer) UnbindTextures() {
	for i := range g.textures {
		g.dev.BindTexture(i, gpu.Texture2D, 0)
	}
}

// BindForBlit makes the G-buffer the read framebuffer and the default
// framebuffer the draw target, for copying attachments to the screen.
func (g *GBuffer) BindForBlit() error {
	if !g.ready {
		return ErrNotReady
	}
	g.dev.BindFramebuffer(gpu.DrawFramebuffer, 0)
	g.dev.BindFramebuffer(gpu.ReadFramebuffer, g.fbo)
	return gpu.Check(g.dev, "gbuffer bind for blit")
}

// SetReadBuffer selects the attachment that Blit copies from.
func (g *GBuffer) SetReadBuffer(t TextureType) {
	g.dev.ReadBuffer(int(t))
}

func (g *GBuffer) Destroy() {
	g.release()
	g.ready = false
}

func (g *GBuffer) release() {
	if g.fbo != 0 {
		g.dev.DeleteFramebuffer(g.fbo)
		g.fbo = 0
	}
	for i, tex := range g.textures {
		if tex != 0 {
			g.dev.DeleteTexture(tex)
			g.textures[i] = 0
		}
	}
	if g.depth != 0 {
		g.dev.DeleteTexture(g.depth)
		g.depth = 0
	}
}
