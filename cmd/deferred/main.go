// Command deferred renders the shadowed room interactively.
//
// Controls: W/S forward/back, A/D strafe, Q/E up/down, keypad 8/5/4/6 (or
// arrows) rotate, keypad 7/9 spin, F1 shadows, O/P orthographic/perspective,
// B G-buffer view, V pass timings, Esc quit.
package main

import (
	"flag"
	"runtime"

	"deferred-shadows/internal/config"
	"deferred-shadows/internal/logging"

	"github.com/go-gl/glfw/v3.3/glfw"
	"github.com/xlab/closer"
)

func init() {
	// GL calls must come from the thread that created the context
	runtime.LockOSThread()
}

func main() {
	defer closer.Close()

	configPath := flag.String("config", "", "TOML settings file (defaults when empty)")
	debug := flag.Bool("debug", false, "debug logging")
	gbufferView := flag.Bool("gbuffer", false, "start in G-buffer view")
	noShadows := flag.Bool("no-shadows", false, "start with shadows off")
	flag.Parse()

	settings := config.Default()
	if *configPath != "" {
		var err error
		if settings, err = config.Load(*configPath); err != nil {
			closer.Fatalln(err)
		}
	}
	if *gbufferView {
		settings.Debug.GBufferView = true
	}
	if *noShadows {
		settings.Shadows.Enabled = false
	}
	log := logging.New("deferred", *debug || settings.Debug.Logging)

	if err := glfw.Init(); err != nil {
		closer.Fatalln(err)
	}
	closer.Bind(glfw.Terminate)

	window, err := setupWindow(settings.Window)
	if err != nil {
		closer.Fatalln(err)
	}

	app, err := setupApp(window, settings, log)
	if err != nil {
		closer.Fatalln(err)
	}
	closer.Bind(app.Destroy)

	app.Run()
}
