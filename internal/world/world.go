// Package world assembles the demo room: a closed box of six planes with a
// squashed sphere and an octahedron inside.
package world

import (
	"fmt"
	"image/color"

	"deferred-shadows/internal/camera"
	"deferred-shadows/internal/config"
	"deferred-shadows/internal/gpu"
	"deferred-shadows/internal/light"
	"deferred-shadows/internal/mesh"
	"deferred-shadows/internal/pipeline"
	"deferred-shadows/internal/scene"

	"github.com/go-gl/mathgl/mgl32"
)

const (
	sphereSlices = 32
	sphereStacks = 16

	checkerSize  = 256
	checkerCells = 8
)

// World owns the room geometry and the objects referencing it.
type World struct {
	dev     gpu.Device
	meshes  *mesh.Library
	objects []*scene.Instance
	texture gpu.Texture
}

// Build creates the room described by s. With a nil dev the meshes stay on
// the CPU, which is enough for the reference renderer.
func Build(dev gpu.Device, s config.SceneSettings) (*World, error) {
	w := &World{dev: dev, meshes: mesh.NewLibrary()}

	add := func(name string, g *mesh.Geometry) (*mesh.Mesh, error) {
		if dev == nil {
			return w.meshes.AddDetached(name, g), nil
		}
		m, err := w.meshes.Add(dev, name, g)
		if err != nil {
			return nil, fmt.Errorf("world: %s: %w", name, err)
		}
		return m, nil
	}

	plane, err := add("plane", mesh.Plane())
	if err != nil {
		w.Destroy()
		return nil, err
	}
	sphere, err := add("sphere", mesh.Sphere(sphereSlices, sphereStacks))
	if err != nil {
		w.Destroy()
		return nil, err
	}
	octa, err := add("octahedron", mesh.Octahedron())
	if err != nil {
		w.Destroy()
		return nil, err
	}

	floor := scene.Material{Albedo: s.Floor}
	if dev != nil {
		if w.texture, err = floorTexture(dev, s); err != nil {
			w.Destroy()
			return nil, fmt.Errorf("world: floor texture: %w", err)
		}
		floor.Texture = w.texture
	}

	half := s.RoomSize / 2
	// the plane is 2x2, so scaling by half gives a side of RoomSize
	size := mgl32.Scale3D(half, 1, half)
	at := func(x, y, z float32, rot mgl32.Mat4) mgl32.Mat4 {
		return mgl32.Translate3D(x, y, z).Mul4(rot).Mul4(size)
	}
	quarter := mgl32.DegToRad(90)

	walls := []struct {
		m   mgl32.Mat4
		mat scene.Material
	}{
		{at(0, -half, 0, mgl32.Ident4()), floor},
		{at(0, half, 0, mgl32.HomogRotate3DZ(2*quarter)), scene.Material{Albedo: s.Floor}},
		{at(half, 0, 0, mgl32.HomogRotate3DZ(quarter)), scene.Material{Albedo: s.WallsX}},
		{at(-half, 0, 0, mgl32.HomogRotate3DZ(-quarter)), scene.Material{Albedo: s.WallsX}},
		{at(0, 0, half, mgl32.HomogRotate3DX(-quarter)), scene.Material{Albedo: s.WallsZ}},
		{at(0, 0, -half, mgl32.HomogRotate3DX(quarter)), scene.Material{Albedo: s.WallsZ}},
	}
	for _, wall := range walls {
		w.objects = append(w.objects, scene.NewInstance(plane, wall.mat, wall.m))
	}

	solid := scene.Material{Albedo: s.Solids}
	w.objects = append(w.objects,
		scene.NewInstance(sphere, solid, mgl32.Scale3D(2.5, 0.75, 1.5)),
		scene.NewInstance(octa, solid, mgl32.Translate3D(0, 1.5, 0).Mul4(mgl32.Scale3D(1, 1.5, 1))),
	)
	return w, nil
}

// floorTexture loads the configured image, falls back to the checker, or
// returns zero for an untextured floor.
func floorTexture(dev gpu.Device, s config.SceneSettings) (gpu.Texture, error) {
	switch {
	case s.FloorTexture != "":
		return mesh.LoadTexture(dev, s.FloorTexture)
	case s.Checker:
		img := mesh.Checker(checkerSize, checkerCells,
			color.RGBA{R: 255, G: 255, B: 255, A: 255}, color.RGBA{R: 160, G: 160, B: 160, A: 255})
		return mesh.UploadTexture(dev, img)
	}
	return 0, nil
}

// Objects returns the room's objects in draw order: floor, ceiling, four
// walls, sphere, octahedron.
func (w *World) Objects() []scene.Object {
	out := make([]scene.Object, len(w.objects))
	for i, o := range w.objects {
		out[i] = o
	}
	return out
}

func (w *World) Meshes() *mesh.Library { return w.meshes }

// Context pairs the room with a camera and lights for the pipeline.
func (w *World) Context(cam *camera.Camera, lights *light.Registry) *pipeline.Context {
	return &pipeline.Context{Camera: cam, Objects: w.Objects(), Lights: lights}
}

// Destroy drops the objects and releases the meshes and the floor texture.
func (w *World) Destroy() {
	w.objects = nil
	w.meshes.Destroy()
	if w.texture != 0 {
		w.dev.DeleteTexture(w.texture)
		w.texture = 0
	}
}
