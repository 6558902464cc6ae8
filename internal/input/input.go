// Package input maps physical keys to the renderer's logical actions and
// applies them to the frame context once per frame.
package input

import (
	"sync"

	"github.com/go-gl/glfw/v3.3/glfw"
)

// Action represents a logical control, not a physical key
type Action int

const (
	ActionMoveForward Action = iota
	ActionMoveBackward
	ActionStrafeLeft
	ActionStrafeRight
	ActionMoveUp
	ActionMoveDown
	ActionRotateUp
	ActionRotateDown
	ActionRotateLeft
	ActionRotateRight
	ActionSpinLeft
	ActionSpinRight
	ActionToggleShadows
	ActionOrthographic
	ActionPerspective
	ActionToggleDebugView
	ActionToggleProfiling
	ActionQuit
	ActionCount // Sentinel value for array sizing
)

var actionNames = [ActionCount]string{
	"move-forward", "move-backward", "strafe-left", "strafe-right", "move-up", "move-down",
	"rotate-up", "rotate-down", "rotate-left", "rotate-right", "spin-left", "spin-right",
	"toggle-shadows", "orthographic", "perspective", "toggle-debug-view", "toggle-profiling", "quit",
}

func (a Action) String() string {
	if a < 0 || a >= ActionCount {
		return "unknown"
	}
	return actionNames[a]
}

// Manager tracks key state per action. Key events may arrive from the
// window callback while the frame loop reads the state.
type Manager struct {
	mu sync.RWMutex

	// one key can map to several actions
	keyToActions map[glfw.Key][]Action

	currentState [ActionCount]bool

	// reset by PostUpdate
	justPressed  [ActionCount]bool
	justReleased [ActionCount]bool
}

// NewManager creates a Manager with the default bindings.
func NewManager() *Manager {
	m := &Manager{keyToActions: make(map[glfw.Key][]Action)}

	m.BindKey(glfw.KeyW, ActionMoveForward)
	m.BindKey(glfw.KeyS, ActionMoveBackward)
	m.BindKey(glfw.KeyA, ActionStrafeLeft)
	m.BindKey(glfw.KeyD, ActionStrafeRight)
	m.BindKey(glfw.KeyQ, ActionMoveUp)
	m.BindKey(glfw.KeyE, ActionMoveDown)

	m.BindKey(glfw.KeyKP8, ActionRotateUp)
	m.BindKey(glfw.KeyKP5, ActionRotateDown)
	m.BindKey(glfw.KeyKP4, ActionRotateLeft)
	m.BindKey(glfw.KeyKP6, ActionRotateRight)
	m.BindKey(glfw.KeyKP7, ActionSpinLeft)
	m.BindKey(glfw.KeyKP9, ActionSpinRight)
	// laptops without a keypad
	m.BindKey(glfw.KeyUp, ActionRotateUp)
	m.BindKey(glfw.KeyDown, ActionRotateDown)
	m.BindKey(glfw.KeyLeft, ActionRotateLeft)
	m.BindKey(glfw.KeyRight, ActionRotateRight)

	m.BindKey(glfw.KeyF1, ActionToggleShadows)
	m.BindKey(glfw.KeyO, ActionOrthographic)
	m.BindKey(glfw.KeyP, ActionPerspective)
	m.BindKey(glfw.KeyB, ActionToggleDebugView)
	m.BindKey(glfw.KeyV, ActionToggleProfiling)
	m.BindKey(glfw.KeyEscape, ActionQuit)

	return m
}

// BindKey adds action to the actions triggered by key.
func (m *Manager) BindKey(key glfw.Key, action Action) {
	if action < 0 || action >= ActionCount {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.keyToActions[key] = append(m.keyToActions[key], action)
}

// UnbindKey removes all action bindings for a key
func (m *Manager) UnbindKey(key glfw.Key) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.keyToActions, key)
}

// Bindings lists the keys bound to action.
func (m *Manager) Bindings(action Action) []glfw.Key {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var keys []glfw.Key
	for k, acts := range m.keyToActions {
		for _, a := range acts {
			if a == action {
				keys = append(keys, k)
				break
			}
		}
	}
	return keys
}

// HandleKeyEvent updates the state of every action bound to key. Edges are
// recorded as the event arrives so a press and release within one frame
// still reports JustPressed.
func (m *Manager) HandleKeyEvent(key glfw.Key, action glfw.Action) {
	pressed := action == glfw.Press || action == glfw.Repeat

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, act := range m.keyToActions[key] {
		if pressed && !m.currentState[act] {
			m.justPressed[act] = true
		}
		if !pressed && m.currentState[act] {
			m.justReleased[act] = true
		}
		m.currentState[act] = pressed
	}
}

// SetKeyCallback routes the window's key events to m.
func (m *Manager) SetKeyCallback(window *glfw.Window) {
	window.SetKeyCallback(func(_ *glfw.Window, key glfw.Key, _ int, action glfw.Action, _ glfw.ModifierKey) {
		m.HandleKeyEvent(key, action)
	})
}

// PostUpdate must be called at the end of each frame, after all input
// checks are done.
func (m *Manager) PostUpdate() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.justPressed = [ActionCount]bool{}
	m.justReleased = [ActionCount]bool{}
}

// IsActive reports whether the action is held down.
func (m *Manager) IsActive(action Action) bool {
	if action < 0 || action >= ActionCount {
		return false
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.currentState[action]
}

// JustPressed reports whether the action was pressed during this frame.
func (m *Manager) JustPressed(action Action) bool {
	if action < 0 || action >= ActionCount {
		return false
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.justPressed[action]
}

func (m *Manager) JustReleased(action Action) bool {
	if action < 0 || action >= ActionCount {
		return false
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.justReleased[action]
}
