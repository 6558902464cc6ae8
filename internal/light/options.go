package light

import "github.com/go-gl/mathgl/mgl32"

// Option configures a Light during New.
type Option func(*Light)

// WithPosition sets the world-space position.
func WithPosition(p mgl32.Vec3) Option {
	return func(l *Light) {
		l.position = p
	}
}

// WithDirection sets the direction the light travels. It is normalised.
func WithDirection(d mgl32.Vec3) Option {
	return func(l *Light) {
		l.SetDirection(d)
	}
}

// WithRadiance sets the RGB radiance.
func WithRadiance(r mgl32.Vec3) Option {
	return func(l *Light) {
		l.radiance = r
	}
}

func WithAmbient(intensity float32) Option {
	return func(l *Light) {
		l.ambientIntensity = intensity
	}
}

func WithDiffuse(intensity float32) Option {
	return func(l *Light) {
		l.diffuseIntensity = intensity
	}
}

// WithAttenuation sets the distance falloff. Ignored for directional lights.
func WithAttenuation(a Attenuation) Option {
	return func(l *Light) {
		switch p := l.params.(type) {
		case pointParams:
			p.attenuation = a
			l.params = p
		case spotParams:
			p.attenuation = a
			l.params = p
		}
	}
}

// WithCutoff sets a spot light's cone angle in degrees.
func WithCutoff(degrees float32) Option {
	return func(l *Light) {
		if p, ok := l.params.(spotParams); ok {
			p.cutoff = degrees
			l.params = p
		}
	}
}

// WithShadow marks the light as a shadow caster. The shadow map itself is
// created when the pipeline initialises.
func WithShadow() Option {
	return func(l *Light) {
		l.wantsShadow = true
	}
}
