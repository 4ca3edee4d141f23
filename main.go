/*
This is an example of application that will use the
engine package to test things out
*/
package main

import (
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/spaghettifunk/tessera/engine"
	"github.com/spaghettifunk/tessera/engine/core"
	"github.com/spaghettifunk/tessera/engine/renderer/headless"
	"github.com/spaghettifunk/tessera/testbed"
)

func main() {
	configPath := flag.String("config", "tessera.toml", "path to the engine configuration")
	flag.Parse()

	config, err := core.LoadConfig(*configPath)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			core.LogFatal("invalid configuration: %s", err)
		}
		core.LogWarn("no configuration at %s, using defaults", *configPath)
		config = core.DefaultConfig()
	}
	core.SetLogLevel(config.Application.LogLevel)

	tb := testbed.NewTestGame(config)

	// the headless backend records draws without a device; an application
	// owning a Vulkan device hands a vulkan.Backend to engine.New instead
	e, err := engine.New(tb.Game, headless.New())
	if err != nil {
		core.LogFatal(err.Error())
	}

	if err := e.Initialize(); err != nil {
		core.LogFatal(err.Error())
	}

	// signal channel to capture system calls
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT, syscall.SIGQUIT)

	// the frame loop owns the renderer, so a signal only asks it to stop
	go func() {
		<-sigCh
		e.Quit()
	}()

	// run engine
	runErr := e.Run()
	if err := e.Shutdown(); err != nil {
		core.LogError(err.Error())
	}
	if runErr != nil {
		core.LogFatal(runErr.Error())
	}
}
