/*
Draws the testbed scene through the engine. Settings come from config.toml
in the working directory when present.
*/
package main

import (
	"github.com/spaghettifunk/vkframe/engine"
	"github.com/spaghettifunk/vkframe/engine/core"
	"github.com/spaghettifunk/vkframe/testbed"
)

func main() {
	cfg, err := core.LoadConfig("config.toml")
	if err != nil {
		core.LogFatal("%s", err)
	}
	level, err := core.ParseLogLevel(cfg.Log.Level)
	if err != nil {
		core.LogFatal("%s", err)
	}
	if err := core.SetLogLevel(level); err != nil {
		core.LogFatal("%s", err)
	}

	e, err := engine.New(testbed.NewSpinningQuads(), cfg)
	if err != nil {
		core.LogFatal("%s", err)
	}

	if err := e.Initialize(); err != nil {
		core.LogFatal("%+v", err)
	}

	runErr := e.Run()
	if err := e.Shutdown(); err != nil {
		core.LogError("Shutdown: %s", err)
	}
	if runErr != nil {
		core.LogFatal("%s (%s)", runErr, core.KindOf(runErr))
	}
}
