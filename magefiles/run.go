//go:build mage

package main

import (
	"fmt"

	"github.com/magefile/mage/mg"
)

type Run mg.Namespace

// Runs the testbed with the headless backend and tessera.toml.
func (Run) Testbed() error {
	fmt.Println("Run testbed...")
	if _, err := executeCmd("go", withArgs("run", ".", "-config", "tessera.toml"), withStream()); err != nil {
		return err
	}
	return nil
}
