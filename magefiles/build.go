//go:build mage

package main

import (
	"fmt"
	"path/filepath"

	"github.com/magefile/mage/mg"
)

type Build mg.Namespace

var shaderStages = []string{"vert", "frag"}

// Compiles the GLSL shaders under assets/shaders into SPIR-V.
func (Build) Shaders() error {
	for _, stage := range shaderStages {
		src := filepath.Join(shaderDir, fmt.Sprintf("%s.%s", shaderName, stage))
		if _, err := executeCmd("glslc", withArgs(src, "-o", src+".spv"), withStream()); err != nil {
			return err
		}
	}
	return nil
}

// Builds the renderer binary into bin/.
func (Build) Engine() error {
	mg.Deps(Build.Shaders)
	if _, err := executeCmd("go", withArgs("build", "-o", filepath.Join("bin", binaryName), "."), withStream()); err != nil {
		return err
	}
	return nil
}
