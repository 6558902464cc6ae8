package light

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

var ErrDuplicate = errors.New("light: already registered")

// Registry keeps lights in insertion order. The light stage draws them in
// that order.
type Registry struct {
	order []*Light
	byID  map[uuid.UUID]*Light
}

func NewRegistry() *Registry {
	return &Registry{byID: make(map[uuid.UUID]*Light)}
}

func (r *Registry) Add(l *Light) error {
	if _, ok := r.byID[l.ID()]; ok {
		return fmt.Errorf("%s: %w", l, ErrDuplicate)
	}
	r.byID[l.ID()] = l
	r.order = append(r.order, l)
	return nil
}

// Remove drops the light and destroys its shadow map.
func (r *Registry) Remove(id uuid.UUID) bool {
	l, ok := r.byID[id]
	if !ok {
		return false
	}
	delete(r.byID, id)
	for i, o := range r.order {
		if o == l {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	l.Destroy()
	return true
}

func (r *Registry) Len() int { return len(r.order) }

// All returns the lights in insertion order. The slice is a copy.
func (r *Registry) All() []*Light {
	out := make([]*Light, len(r.order))
	copy(out, r.order)
	return out
}

func (r *Registry) OfType(t Type) []*Light {
	var out []*Light
	for _, l := range r.order {
		if l.Type() == t {
			out = append(out, l)
		}
	}
	return out
}

// ShadowCasters returns the lights whose shadow map is ready.
func (r *Registry) ShadowCasters() []*Light {
	var out []*Light
	for _, l := range r.order {
		if l.ShadowEnabled() {
			out = append(out, l)
		}
	}
	return out
}

// Destroy releases every light's resources and empties the registry.
func (r *Registry) Destroy() {
	for _, l := range r.order {
		l.Destroy()
	}
	r.order = nil
	r.byID = make(map[uuid.UUID]*Light)
}
