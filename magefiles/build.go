//go:build mage

package main

import (
	"os"

	"github.com/magefile/mage/mg"
)

type Build mg.Namespace

var shaderTargets = map[string]string{
	"shaders/shader.vert": "assets/shaders/vert.spv",
	"shaders/shader.frag": "assets/shaders/frag.spv",
}

// Compiles the GLSL sources into the SPIR-V modules the engine loads.
func (Build) Shaders() error {
	return buildShaders()
}

func buildShaders() error {
	if err := os.MkdirAll("assets/shaders", 0o755); err != nil {
		return err
	}
	for src, dst := range shaderTargets {
		if _, err := executeCmd("glslc", withArgs(src, "-o", dst), withStream()); err != nil {
			return err
		}
	}
	return nil
}
