package testbed

import (
	"github.com/go-gl/mathgl/mgl32"

	"github.com/spaghettifunk/vkframe/engine"
	"github.com/spaghettifunk/vkframe/engine/core"
	"github.com/spaghettifunk/vkframe/engine/math"
	"github.com/spaghettifunk/vkframe/engine/renderer/metadata"
)

type gameState struct {
	clock *core.Clock

	width  uint32
	height uint32
}

// Two textured quads, one half a unit behind the other.
func quadsMesh() *metadata.Mesh {
	corners := [4]struct {
		xy    mgl32.Vec2
		color mgl32.Vec3
		uv    mgl32.Vec2
	}{
		{mgl32.Vec2{-0.5, -0.5}, mgl32.Vec3{1, 0, 0}, mgl32.Vec2{1, 0}},
		{mgl32.Vec2{0.5, -0.5}, mgl32.Vec3{0, 1, 0}, mgl32.Vec2{0, 0}},
		{mgl32.Vec2{0.5, 0.5}, mgl32.Vec3{0, 0, 1}, mgl32.Vec2{0, 1}},
		{mgl32.Vec2{-0.5, 0.5}, mgl32.Vec3{1, 1, 1}, mgl32.Vec2{1, 1}},
	}

	mesh := &metadata.Mesh{
		Name:    "spinning_quads",
		Indices: []uint16{0, 1, 2, 2, 3, 0, 4, 5, 6, 6, 7, 4},
	}
	for _, z := range []float32{0, -0.5} {
		for _, c := range corners {
			mesh.Vertices = append(mesh.Vertices, metadata.Vertex{
				Position: c.xy.Vec3(z),
				Color:    c.color,
				TexCoord: c.uv,
			})
		}
	}
	return mesh
}

// NewSpinningQuads returns the game drawing two quads that turn around Z at
// a fixed rate.
func NewSpinningQuads() *engine.Game {
	state := &gameState{clock: core.NewClock()}

	g := &engine.Game{
		ApplicationConfig: &engine.ApplicationConfig{
			Name:       "vkframe testbed",
			ClearColor: [4]float32{0, 0, 0, 1},
		},
		Mesh:  quadsMesh(),
		State: state,
	}

	g.FnInitialize = func() error {
		core.LogInfo("Starting testbed, %d vertices and %d indices.", len(g.Mesh.Vertices), len(g.Mesh.Indices))
		state.clock.Start()
		return nil
	}
	g.FnUniforms = func(extent metadata.Extent) metadata.UniformBufferObject {
		state.clock.Update()
		return math.FrameUniforms(state.clock.Elapsed(), extent)
	}
	g.FnOnResize = func(width, height uint32) error {
		state.width, state.height = width, height
		return nil
	}

	return g
}
