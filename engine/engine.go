package engine

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/cockroachdb/errors"

	"github.com/spaghettifunk/vkframe/engine/assets"
	"github.com/spaghettifunk/vkframe/engine/core"
	"github.com/spaghettifunk/vkframe/engine/platform"
	"github.com/spaghettifunk/vkframe/engine/renderer"
	"github.com/spaghettifunk/vkframe/engine/renderer/metadata"
	"github.com/spaghettifunk/vkframe/engine/renderer/vulkan"
)

// Pump cycle length while the window is minimized.
const SUSPENDED_SLEEP_MS uint64 = 25

type Stage uint8

const (
	// Engine is in an uninitialized state
	EngineStageUninitialized Stage = iota
	// Engine is currently initializing
	EngineStageInitializing
	// Engine initialization is complete
	EngineStageInitialized
	// Engine is currently running
	EngineStageRunning
	// Engine is in the process of shutting down
	EngineStageShuttingDown
	// Everything has been released
	EngineStageShutdown
)

type Engine struct {
	currentStage Stage
	gameInstance *Game
	config       *core.Config

	events       *core.EventSystem
	platform     *platform.Platform
	assetManager *assets.AssetManager
	backend      *vulkan.VulkanBackend
	renderer     *renderer.Renderer

	clock    *core.Clock
	metrics  *core.Metrics
	lastTime float64
	lastLog  float64

	// First error raised by an event handler, checked after each dispatch.
	handlerErr error
}

func New(g *Game, cfg *core.Config) (*Engine, error) {
	if g == nil || g.Mesh == nil || g.FnUniforms == nil {
		return nil, errors.New("a game with a mesh and a uniform source is required")
	}
	if cfg == nil {
		cfg = core.DefaultConfig()
	}
	if g.ApplicationConfig == nil {
		g.ApplicationConfig = &ApplicationConfig{
			Name:       cfg.Window.Title,
			ClearColor: renderer.DefaultConfig().ClearColor,
		}
	}

	events := core.NewEventSystem()
	return &Engine{
		currentStage: EngineStageUninitialized,
		gameInstance: g,
		config:       cfg,
		events:       events,
		platform:     platform.New(events),
		assetManager: assets.NewAssetManager(),
		clock:        core.NewClock(),
		metrics:      core.NewMetrics(),
	}, nil
}

/**
 * @brief Opens the window, loads the static assets, brings the Vulkan
 * backend up and builds the renderer. Whatever was started is torn down
 * again when a step fails.
 */
func (e *Engine) Initialize() (err error) {
	if e.currentStage != EngineStageUninitialized {
		return errors.New("engine already initialized")
	}
	e.currentStage = EngineStageInitializing
	defer func() {
		if err != nil {
			if serr := e.Shutdown(); serr != nil {
				core.LogError("Shutdown after failed initialization: %s", serr)
			}
		}
	}()

	if err := e.registerEvents(); err != nil {
		return err
	}

	winCfg := e.config.Window
	if err := e.platform.Startup(winCfg.Title, winCfg.Width, winCfg.Height); err != nil {
		return core.FatalSetup(err)
	}

	if err := e.assetManager.Initialize(e.config.Assets.Dir, e.config.Assets.Watch); err != nil {
		return core.FatalSetup(err)
	}
	static, err := e.assetManager.LoadStatic(context.Background(), e.config.Assets)
	if err != nil {
		return core.FatalSetup(err)
	}

	e.backend = vulkan.New(e.platform, e.config.Renderer.Validation)
	if err := e.backend.Initialize(e.gameInstance.ApplicationConfig.Name); err != nil {
		e.backend = nil
		return err
	}

	e.renderer = renderer.New(e.backend, e.gameInstance.FnUniforms, renderer.Config{
		PreferMailbox: e.config.Renderer.PreferMailbox,
		ClearColor:    e.gameInstance.ApplicationConfig.ClearColor,
	})
	width, height := e.platform.FramebufferSize()
	sceneAssets := renderer.SceneAssets{
		VertexShader:   static.VertexShader,
		FragmentShader: static.FragmentShader,
		Mesh:           e.gameInstance.Mesh,
		Texture:        static.Texture,
	}
	if err := e.renderer.Initialize(sceneAssets, metadata.Extent{Width: width, Height: height}); err != nil {
		e.renderer = nil
		return err
	}

	if e.gameInstance.FnInitialize != nil {
		if err := e.gameInstance.FnInitialize(); err != nil {
			return errors.Wrap(err, "game failed to initialize")
		}
	}

	e.currentStage = EngineStageInitialized
	core.LogInfo("Engine initialized.")
	return nil
}

// registerEvents hooks the engine handlers into the event system.
func (e *Engine) registerEvents() error {
	handlers := []struct {
		code    core.EventCode
		onEvent core.FnOnEvent
	}{
		{core.EventCodeApplicationQuit, e.onEvent},
		{core.EventCodeKeyPressed, e.onKey},
		{core.EventCodeResized, e.onResized},
		{core.EventCodeToggleFullscreen, e.onEvent},
	}
	for _, h := range handlers {
		if err := e.events.Register(h.code, e, h.onEvent); err != nil {
			return core.FatalSetup(errors.Wrapf(err, "failed to register handler for event code %d", h.code))
		}
	}
	return nil
}

/**
 * @brief Runs the main loop until the window closes, a quit is requested or
 * a frame fails. The failure, if any, is returned.
 */
func (e *Engine) Run() error {
	if e.currentStage != EngineStageInitialized {
		return errors.New("engine is not initialized")
	}
	e.currentStage = EngineStageRunning

	// signal channel to capture system calls
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case sig := <-sigCh:
			core.LogInfo("Received %s, quitting.", sig)
			if err := e.events.Post(core.EventContext{Type: core.EventCodeApplicationQuit, Sender: e}); err != nil {
				core.LogWarn("Unable to post quit: %s", err)
			}
		case <-done:
		}
	}()

	ctx := context.Background()
	e.clock.Start()
	e.clock.Update()
	e.lastTime = e.clock.Elapsed()

	var runErr error
	for e.platform.PumpMessages() {
		e.events.Dispatch()
		if e.handlerErr != nil {
			runErr = e.handlerErr
			break
		}

		if e.renderer.Suspended() {
			e.platform.Sleep(SUSPENDED_SLEEP_MS)
			continue
		}

		e.clock.Update()
		now := e.clock.Elapsed()
		delta := now - e.lastTime
		e.lastTime = now

		if e.gameInstance.FnUpdate != nil {
			if err := e.gameInstance.FnUpdate(delta); err != nil {
				runErr = errors.Wrap(err, "game update failed")
				break
			}
		}

		if err := e.renderer.OnFrame(ctx); err != nil {
			runErr = err
			break
		}
		e.reportMetrics(now, delta)
	}

	e.currentStage = EngineStageShuttingDown
	stats := e.renderer.Stats()
	core.LogInfo("Main loop finished after %d frames (%d rebuilds).", stats.FrameNumber, stats.Rebuilds)
	return runErr
}

func (e *Engine) reportMetrics(now, delta float64) {
	e.metrics.Update(delta)
	if now-e.lastLog < 1 {
		return
	}
	e.lastLog = now
	core.LogDebug("FPS: %.0f, frame time: %.2f ms, frame %d.", e.metrics.FPS(), e.metrics.FrameTime(), e.renderer.Stats().FrameNumber)
}

/**
 * @brief Releases everything in reverse order of creation. Safe to call
 * after a partial Initialize and more than once.
 */
func (e *Engine) Shutdown() error {
	if e.currentStage == EngineStageShutdown {
		return nil
	}
	e.currentStage = EngineStageShuttingDown

	var errs error
	if e.backend != nil {
		if err := e.backend.WaitIdle(); err != nil {
			errs = errors.CombineErrors(errs, err)
		}
	}
	if e.renderer != nil {
		if err := e.renderer.Shutdown(); err != nil {
			errs = errors.CombineErrors(errs, err)
		}
		e.renderer = nil
	}
	if e.backend != nil {
		e.backend.Destroy()
		e.backend = nil
	}
	if e.platform.Window != nil {
		if err := e.platform.Shutdown(); err != nil {
			errs = errors.CombineErrors(errs, err)
		}
	}
	if err := e.assetManager.Shutdown(); err != nil {
		errs = errors.CombineErrors(errs, err)
	}
	e.events.Shutdown()

	e.currentStage = EngineStageShutdown
	core.LogInfo("Engine shut down.")
	return errs
}

func (e *Engine) onEvent(ctx core.EventContext, listener interface{}) bool {
	switch ctx.Type {
	case core.EventCodeApplicationQuit:
		core.LogInfo("EVENT_CODE_APPLICATION_QUIT received, shutting down.")
		e.platform.RequestClose()
		return true
	case core.EventCodeToggleFullscreen:
		e.platform.ToggleFullscreen()
		return true
	}
	return false
}

func (e *Engine) onKey(ctx core.EventContext, listener interface{}) bool {
	key, ok := ctx.Data.(core.KeyEvent)
	if !ok {
		return false
	}
	if key.KeyCode == core.KEY_F11 {
		e.platform.ToggleFullscreen()
		return true
	}
	return false
}

func (e *Engine) onResized(ctx core.EventContext, listener interface{}) bool {
	size, ok := ctx.Data.(core.ResizeEvent)
	if !ok || e.renderer == nil || e.handlerErr != nil {
		return false
	}
	if err := e.renderer.OnResize(size.Width, size.Height); err != nil {
		e.handlerErr = err
		return true
	}
	if e.gameInstance.FnOnResize != nil {
		if err := e.gameInstance.FnOnResize(size.Width, size.Height); err != nil {
			e.handlerErr = errors.Wrap(err, "game resize failed")
		}
	}
	return true
}
