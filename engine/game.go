package engine

import (
	"github.com/spaghettifunk/vkframe/engine/renderer"
	"github.com/spaghettifunk/vkframe/engine/renderer/metadata"
)

/**
 * @brief What a game hands to the engine: the mesh to draw and the source
 * of its per-frame uniforms. The hooks are optional.
 */
type Game struct {
	ApplicationConfig *ApplicationConfig
	Mesh              *metadata.Mesh
	State             interface{}
	FnInitialize      Initialize
	FnUpdate          Update
	FnUniforms        renderer.UniformSource
	FnOnResize        OnResize
}

type Initialize func() error
type Update func(deltaTime float64) error
type OnResize func(width uint32, height uint32) error
