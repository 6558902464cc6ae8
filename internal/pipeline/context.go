package pipeline

import (
	"errors"
	"fmt"

	"deferred-shadows/internal/camera"
	"deferred-shadows/internal/light"
	"deferred-shadows/internal/scene"
)

// Context is everything a frame is rendered from. The program owns it and
// passes it to the coordinator and to its input handling; nothing in the
// pipeline keeps global state.
type Context struct {
	Camera  *camera.Camera
	Objects []scene.Object
	Lights  *light.Registry
}

func (c *Context) validate() error {
	if c == nil || c.Camera == nil || c.Lights == nil {
		return errors.New("pipeline: context needs a camera and a light registry")
	}
	return nil
}

// StageError records a failed stage of one frame.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string { return fmt.Sprintf("%s stage: %v", e.Stage, e.Err) }
func (e *StageError) Unwrap() error { return e.Err }

// FrameReport describes what one RenderFrame call did. Failures are
// recorded rather than returned: a failed pass only degrades its frame.
type FrameReport struct {
	Frame uint64

	ShadowMapsRendered int
	ShadowFailures     []error

	GeometryDone bool
	ObjectsDrawn int

	LightsDrawn   int
	LightsSkipped int

	DebugView bool
	Errors    []*StageError
}

// Err joins every failure of the frame, or nil.
func (r *FrameReport) Err() error {
	errs := make([]error, 0, len(r.ShadowFailures)+len(r.Errors))
	errs = append(errs, r.ShadowFailures...)
	for _, e := range r.Errors {
		errs = append(errs, e)
	}
	return errors.Join(errs...)
}

func (r *FrameReport) fail(stage string, err error) {
	r.Errors = append(r.Errors, &StageError{Stage: stage, Err: err})
}
