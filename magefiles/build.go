//go:build mage

package main

import (
	"fmt"

	"github.com/magefile/mage/mg"
)

type Build mg.Namespace

// Compiles every GLSL stage under shaders/ to <name>.<stage>.spv for the vulkan backend.
func (Build) Shaders() error {
	return buildShaders()
}

// Builds the engine testbed binary into bin/.
func (Build) Engine() error {
	fmt.Println("Building testbed...")
	if _, err := executeCmd("go", withArgs("build", "-o", "bin/tessera", "."), withStream()); err != nil {
		return err
	}
	return nil
}

type Test mg.Namespace

// Runs the unit tests with invariant checks enabled.
func (Test) All() error {
	_, err := executeCmd("go", withArgs("test", "-race", "-tags", "debug", "./..."), withStream())
	return err
}
