// Command shadowdump renders the configured room on the CPU and writes the
// lit frame, the G-buffer attachments and every shadow map as BMP files.
package main

import (
	"flag"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"time"

	"deferred-shadows/internal/config"
	"deferred-shadows/internal/gbuffer"
	"deferred-shadows/internal/light"
	"deferred-shadows/internal/logging"
	"deferred-shadows/internal/reference"
	"deferred-shadows/internal/world"

	"github.com/google/uuid"
	"github.com/xlab/closer"
	"golang.org/x/image/bmp"
)

func main() {
	defer closer.Close()

	configPath := flag.String("config", "", "TOML settings file (defaults when empty)")
	out := flag.String("out", "shadowdump", "output directory")
	width := flag.Int("width", 0, "frame width (window width when 0)")
	height := flag.Int("height", 0, "frame height (window height when 0)")
	resolution := flag.Int("shadow-res", 256, "shadow map resolution")
	noShadows := flag.Bool("no-shadows", false, "render without shadows")
	only := flag.String("light", "", "render only the light with this name")
	debug := flag.Bool("debug", false, "debug logging")
	flag.Parse()

	log := logging.New("shadowdump", *debug)

	settings := config.Default()
	if *configPath != "" {
		var err error
		if settings, err = config.Load(*configPath); err != nil {
			closer.Fatalln(err)
		}
	}
	if *width > 0 {
		settings.Window.Width = *width
	}
	if *height > 0 {
		settings.Window.Height = *height
	}
	settings.Shadows.Resolution = *resolution
	if *noShadows {
		settings.Shadows.Enabled = false
	}

	if err := run(settings, *out, *only, log); err != nil {
		closer.Fatalln(err)
	}
}

// run renders s and dumps the images into outDir. A non-empty only keeps
// just the light of that name.
func run(s config.Settings, outDir, only string, log logging.Logger) error {
	if err := s.Validate(); err != nil {
		return err
	}
	room, err := world.Build(nil, s.Scene)
	if err != nil {
		return err
	}
	closer.Bind(room.Destroy)

	lights, _, err := s.BuildLights()
	if err != nil {
		return err
	}
	names := make(map[uuid.UUID]string)
	for i, l := range lights.All() {
		names[l.ID()] = lightName(s.Lights[i].Name, i)
	}
	if only != "" {
		if err := keepOnly(lights, names, only); err != nil {
			return err
		}
		log.Infof("rendering light %q only", only)
	}

	cam, err := s.Camera.BuildCamera(float32(s.Window.Width) / float32(s.Window.Height))
	if err != nil {
		return err
	}

	r, err := reference.New(reference.Options{
		Width:            s.Window.Width,
		Height:           s.Window.Height,
		ShadowResolution: s.Shadows.Resolution,
		ShadowsEnabled:   s.Shadows.Enabled,
	})
	if err != nil {
		return err
	}

	start := time.Now()
	frame, err := r.Render(room.Context(cam, lights))
	if err != nil {
		return err
	}
	log.Infof("rendered %dx%d in %s: %d lights drawn, %d skipped, %d shadow maps",
		frame.Width, frame.Height, time.Since(start).Round(time.Millisecond),
		frame.LightsDrawn, frame.LightsSkipped, len(frame.Shadows))

	written, err := dump(outDir, frame, names)
	for _, path := range written {
		log.Debugf("wrote %s", path)
	}
	if err != nil {
		return err
	}
	log.Infof("wrote %d images to %s", len(written), outDir)
	return nil
}

// keepOnly removes every light not called name from the registry.
func keepOnly(lights *light.Registry, names map[uuid.UUID]string, name string) error {
	found := false
	for _, l := range lights.All() {
		if names[l.ID()] == name {
			found = true
			continue
		}
		lights.Remove(l.ID())
	}
	if !found {
		return fmt.Errorf("no light named %q", name)
	}
	return nil
}

func lightName(name string, i int) string {
	if name == "" {
		return fmt.Sprintf("light%d", i)
	}
	return name
}

// dump writes the images of f into dir and returns the paths written, in
// order, up to the first failure.
func dump(dir string, f *reference.Frame, names map[uuid.UUID]string) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	var written []string
	write := func(name string, img image.Image) error {
		path := filepath.Join(dir, name+".bmp")
		if err := writeBMP(path, img); err != nil {
			return err
		}
		written = append(written, path)
		return nil
	}

	if err := write("frame", f.Image()); err != nil {
		return written, err
	}
	if err := write("gbuffer", f.DebugImage()); err != nil {
		return written, err
	}
	for t := gbuffer.Position; t < gbuffer.NumTextures; t++ {
		if err := write("gbuffer-"+t.String(), f.ChannelImage(t)); err != nil {
			return written, err
		}
	}
	for id, dm := range f.Shadows {
		name, ok := names[id]
		if !ok {
			name = id.String()
		}
		for face := range dm.Faces {
			if err := write(fmt.Sprintf("shadow-%s-%d", name, face), dm.Image(face)); err != nil {
				return written, err
			}
		}
	}
	return written, nil
}

func writeBMP(path string, img image.Image) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := bmp.Encode(file, img); err != nil {
		file.Close()
		return fmt.Errorf("encode %s: %w", path, err)
	}
	return file.Close()
}
