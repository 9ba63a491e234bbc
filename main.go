/*
Renders a textured, rotating scene with Vulkan. The scene, window and
renderer settings come from a TOML config file.
*/
package main

import (
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/spaghettifunk/texture-renderer/engine"
	"github.com/spaghettifunk/texture-renderer/engine/core"
)

func main() {
	configPath := flag.String("config", "config.toml", "path to the renderer config file")
	flag.Parse()

	cfg, err := engine.LoadConfig(*configPath)
	if err != nil {
		core.LogFatal("%s", err)
	}

	e := engine.New(cfg)
	defer func() {
		if err := e.Shutdown(); err != nil {
			core.LogError("shutdown failed: %s", err)
		}
	}()

	if err := e.Initialize(); err != nil {
		core.LogError("initialization failed: %s", err)
		return
	}

	// signal channel to capture system calls
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT, syscall.SIGQUIT)
	go func() {
		<-sigCh
		e.Stop()
	}()

	// run engine
	if err := e.Run(); err != nil {
		core.LogError("%s", err)
	}
}
