package main

import (
	"time"

	"deferred-shadows/internal/pipeline"

	"github.com/go-gl/glfw/v3.3/glfw"
)

// Run drives frames until the window closes or Esc is pressed.
func (a *App) Run() {
	frames := 0
	degraded := 0
	lastFPSCheck := time.Now()
	lastTime := time.Now()

	for !a.window.ShouldClose() {
		now := time.Now()
		dt := float32(now.Sub(lastTime).Seconds())
		lastTime = now

		res := a.controller.Update(a.ctx, a.pipeline, dt)
		if res.Quit {
			a.window.SetShouldClose(true)
		}
		if res.ToggleProfile {
			a.showProfile = !a.showProfile
		}

		report := a.pipeline.RenderFrame(a.ctx)
		if report.Err() != nil {
			degraded++
		}
		frames++

		a.window.SwapBuffers()
		glfw.PollEvents()

		if time.Since(lastFPSCheck) >= time.Second {
			// retry the G-buffer after a failed resize
			if !a.pipeline.Ready() {
				a.resize(a.window.GetFramebufferSize())
			}
			a.logSecond(frames, degraded, report)
			frames, degraded = 0, 0
			lastFPSCheck = time.Now()
		}
		a.limiter.Wait()
	}
}

func (a *App) logSecond(frames, degraded int, last pipeline.FrameReport) {
	if degraded > 0 {
		a.log.Warnf("%d of %d frames degraded, last: %v", degraded, frames, last.Err())
	}
	if !a.showProfile {
		return
	}
	a.log.Infof("FPS: %d, lights %d drawn %d skipped, shadow maps %d, passes %s",
		frames, last.LightsDrawn, last.LightsSkipped, last.ShadowMapsRendered, a.prof.TopN(5))
}
