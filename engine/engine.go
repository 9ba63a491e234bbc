package engine

import (
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/spaghettifunk/texture-renderer/engine/assets"
	"github.com/spaghettifunk/texture-renderer/engine/core"
	"github.com/spaghettifunk/texture-renderer/engine/math"
	"github.com/spaghettifunk/texture-renderer/engine/platform"
	"github.com/spaghettifunk/texture-renderer/engine/renderer"
	"github.com/spaghettifunk/texture-renderer/engine/renderer/components"
	"github.com/spaghettifunk/texture-renderer/engine/renderer/vulkan"
)

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
)

// Seconds between two frame time reports.
const metricsInterval = 5.0

// One per scene asset: mesh, texture and the two shader stages.
const jobWorkers = 4

type Engine struct {
	currentStage Stage
	config       *Config
	isRunning    atomic.Bool
	isSuspended  bool
	isPaused     bool
	wireframe    bool
	platform     *platform.Platform
	assetManager *assets.AssetManager
	jobs         *core.JobSystem
	backend      renderer.Backend
	renderer     renderer.RenderCore
	camera       *components.Camera
	width        uint32
	height       uint32
	clock        *core.Clock
	lastTime     float64
	lastReport   float64
	heldKeys     map[core.KeyCode]bool

	// Set from the asset watcher goroutine.
	reloadRequested atomic.Bool
}

func New(cfg *Config) *Engine {
	return &Engine{
		currentStage: EngineStageUninitialized,
		config:       cfg,
		clock:        core.NewClock(),
		platform:     platform.New(),
		assetManager: assets.NewAssetManager(),
		camera:       NewCameraFromConfig(cfg.Camera),
		width:        cfg.Window.Width,
		height:       cfg.Window.Height,
		wireframe:    cfg.Renderer.Wireframe,
		heldKeys:     make(map[core.KeyCode]bool),
	}
}

func (e *Engine) Initialize() error {
	e.currentStage = EngineStageInitializing

	level, err := core.ParseLogLevel(e.config.Log.Level)
	if err != nil {
		return err
	}
	core.SetLogLevel(level)

	// initialize events
	if !core.EventInitialize() {
		return fmt.Errorf("failed to initialize the event system")
	}
	e.registerEvents()

	if err := core.MetricsInitialize(); err != nil {
		return err
	}

	jobs, err := core.NewJobSystem(jobWorkers, jobWorkers)
	if err != nil {
		return err
	}
	e.jobs = jobs

	window := e.config.Window
	if err := e.platform.Startup(window.Name, window.X, window.Y, window.Width, window.Height); err != nil {
		return err
	}
	// The framebuffer can be larger than the window on high density displays.
	e.width, e.height = e.platform.FramebufferSize()

	if err := e.assetManager.Initialize(e.config.Assets.Dir, e.config.Assets.Watch); err != nil {
		return err
	}

	backend := vulkan.New(e.platform, vulkan.BackendConfig{
		ApplicationName: window.Name,
		Width:           e.width,
		Height:          e.height,
		FramesInFlight:  e.config.Renderer.FramesInFlight,
		Validation:      e.config.Renderer.Validation,
		VSync:           e.config.Renderer.VSync,
		DiscreteGPU:     e.config.Renderer.DiscreteGPU,
	})
	e.backend = backend
	if err := backend.Initialize(); err != nil {
		return err
	}

	tr := vulkan.NewTextureRenderer(backend.SwapchainContext(), e.config.RendererOptions())
	e.renderer = tr
	if err := tr.Initialize(); err != nil {
		return err
	}

	if err := e.loadScene(); err != nil {
		return err
	}

	e.currentStage = EngineStageInitialized
	return nil
}

func (e *Engine) registerEvents() {
	core.EventRegister(core.EVENT_CODE_APPLICATION_QUIT, e, e.onEvent)
	core.EventRegister(core.EVENT_CODE_KEY_PRESSED, e, e.onKey)
	core.EventRegister(core.EVENT_CODE_KEY_RELEASED, e, e.onKey)
	core.EventRegister(core.EVENT_CODE_RESIZED, e, e.onResized)
	core.EventRegister(core.EVENT_CODE_ASSET_CHANGED, e, e.onAssetChanged)
}

func (e *Engine) loadScene() error {
	data, err := LoadSceneData(e.assetManager, e.jobs, e.config.Scene, e.camera)
	if err != nil {
		return err
	}
	if err := e.renderer.BuildScene(data); err != nil {
		return err
	}
	return e.renderer.BuildPipeline()
}

func (e *Engine) Run() error {
	if e.currentStage != EngineStageInitialized {
		return core.ErrNotInitialized
	}
	e.currentStage = EngineStageRunning
	e.isRunning.Store(true)

	e.clock.Start()
	e.clock.Update()
	e.lastTime = e.clock.Elapsed()

	for e.isRunning.Load() {
		e.platform.PumpMessages()

		if e.isSuspended {
			// Nothing to draw into, block until the window comes back.
			e.platform.WaitMessages()
			continue
		}

		// Update clock and get delta time.
		e.clock.Update()
		currentTime := e.clock.Elapsed()
		delta := currentTime - e.lastTime
		frameStartTime := e.platform.GetAbsoluteTime()

		if e.reloadRequested.CompareAndSwap(true, false) {
			if err := e.reloadScene(); err != nil {
				return err
			}
		}

		e.update(delta)
		if err := e.drawFrame(delta); err != nil {
			core.LogError("Frame failed, shutting down: %s", err)
			e.isRunning.Store(false)
			return err
		}

		frameElapsedTime := e.platform.GetAbsoluteTime() - frameStartTime
		core.MetricsUpdate(frameElapsedTime)
		if currentTime-e.lastReport >= metricsInterval {
			fps, ms := core.MetricsFrame()
			core.LogDebug("%.0f fps, %.3f ms per frame.", fps, ms)
			e.lastReport = currentTime
		}

		// Update last time
		e.lastTime = currentTime
	}
	return nil
}

// Stop makes Run return after the current frame. Safe to call from any goroutine.
func (e *Engine) Stop() {
	e.isRunning.Store(false)
}

// reloadScene rebuilds the scene from disk. When an asset cannot be loaded the current
// scene is kept.
func (e *Engine) reloadScene() error {
	data, err := LoadSceneData(e.assetManager, e.jobs, e.config.Scene, e.camera)
	if err != nil {
		core.LogWarn("Scene reload skipped: %s", err)
		return nil
	}
	if err := e.renderer.BuildScene(data); err != nil {
		return err
	}
	if err := e.renderer.BuildPipeline(); err != nil {
		return err
	}
	core.LogInfo("Scene reloaded.")
	return nil
}

func (e *Engine) update(delta float64) {
	amount := e.config.Camera.Speed * float32(delta)
	if e.heldKeys[core.KEY_UP] {
		e.camera.MoveForward(amount)
	}
	if e.heldKeys[core.KEY_DOWN] {
		e.camera.MoveBackward(amount)
	}
	if e.heldKeys[core.KEY_LEFT] {
		e.camera.MoveLeft(amount)
	}
	if e.heldKeys[core.KEY_RIGHT] {
		e.camera.MoveRight(amount)
	}
}

// drawFrame runs one begin, update, submit and present cycle.
func (e *Engine) drawFrame(delta float64) error {
	if e.isPaused {
		delta = 0
	}

	frame, err := e.backend.BeginFrame(delta)
	if err != nil {
		return e.handleFrameError("begin frame", err)
	}
	if err := e.renderer.UpdateUniforms(frame); err != nil {
		return e.handleFrameError("update uniforms", err)
	}
	if err := e.renderer.Render(frame); err != nil {
		return e.handleFrameError("render", err)
	}
	if err := e.backend.EndFrame(frame); err != nil {
		return e.handleFrameError("end frame", err)
	}
	return nil
}

// handleFrameError recovers from a swapchain that went out of date. Any other error is
// returned and ends the loop.
func (e *Engine) handleFrameError(op string, err error) error {
	switch {
	case errors.Is(err, core.ErrSwapchainBooting):
		// The frame is skipped. The backend may have recreated the swapchain already.
		return e.renderer.RebuildCommandSequences()
	case errors.Is(err, core.ErrNeedsRebuild):
		core.LogDebug("%s: %s, recreating the swapchain.", op, err)
		if err := e.backend.RecreateSwapchain(); err != nil && !errors.Is(err, core.ErrSwapchainBooting) {
			return err
		}
		return e.renderer.RebuildCommandSequences()
	}
	return fmt.Errorf("%s failed: %w", op, err)
}

func (e *Engine) Shutdown() error {
	if e.currentStage == EngineStageShuttingDown {
		return nil
	}
	e.currentStage = EngineStageShuttingDown
	e.isRunning.Store(false)

	var errs []error
	if e.renderer != nil {
		errs = append(errs, e.renderer.Destroy())
	}
	if e.backend != nil {
		errs = append(errs, e.backend.Shutdown())
	}
	errs = append(errs, e.assetManager.Shutdown())
	if e.jobs != nil {
		errs = append(errs, e.jobs.Shutdown())
	}
	errs = append(errs, core.EventShutdown())
	if e.platform != nil {
		errs = append(errs, e.platform.Shutdown())
	}
	return errors.Join(errs...)
}

// GetFramebufferSize returns the width and height (in this order)
// of the application Framebuffer
func (e *Engine) GetFramebufferSize() (uint32, uint32) {
	return e.width, e.height
}

func (e *Engine) onEvent(code core.SystemEventCode, sender interface{}, listener interface{}, context core.EventContext) bool {
	if code == core.EVENT_CODE_APPLICATION_QUIT {
		core.LogInfo("EVENT_CODE_APPLICATION_QUIT received, shutting down.")
		e.Stop()
		return true
	}
	return false
}

func (e *Engine) onKey(code core.SystemEventCode, sender interface{}, listener interface{}, context core.EventContext) bool {
	keyCode := core.KeyFromContext(context)

	if code == core.EVENT_CODE_KEY_RELEASED {
		delete(e.heldKeys, keyCode)
		return false
	}
	e.heldKeys[keyCode] = true

	switch keyCode {
	case core.KEY_ESCAPE:
		// NOTE: Technically firing an event to itself, but there may be other listeners.
		core.EventFire(core.EVENT_CODE_APPLICATION_QUIT, e, core.EventContext{})
		// Block anything else from processing this.
		return true
	case core.KEY_F:
		if err := e.renderer.SetWireframe(!e.wireframe); err != nil {
			core.LogError("failed to toggle wireframe: %s", err)
			return true
		}
		e.wireframe = !e.wireframe
		core.LogInfo("Wireframe %t.", e.wireframe)
		return true
	case core.KEY_P:
		e.isPaused = !e.isPaused
		core.LogInfo("Rotation paused: %t.", e.isPaused)
		return true
	case core.KEY_R:
		cfg := e.config.Camera
		e.camera.SetPosition(math.NewVec3(cfg.Position[0], cfg.Position[1], cfg.Position[2]))
		e.camera.SetTarget(math.NewVec3(cfg.Target[0], cfg.Target[1], cfg.Target[2]))
		return true
	}
	return false
}

func (e *Engine) onResized(code core.SystemEventCode, sender interface{}, listener interface{}, context core.EventContext) bool {
	width := context.Data.U32[0]
	height := context.Data.U32[1]

	// Check if different. If so, trigger a resize event.
	if width == e.width && height == e.height {
		return false
	}
	e.width = width
	e.height = height
	core.LogDebug("Window resize: %d, %d", width, height)

	// Handle minimization
	if width == 0 || height == 0 {
		core.LogInfo("Window minimized, suspending application.")
		e.isSuspended = true
		return true
	}
	if e.isSuspended {
		core.LogInfo("Window restored, resuming application.")
		e.isSuspended = false
	}
	e.backend.Resized(width, height)
	return true
}

func (e *Engine) onAssetChanged(code core.SystemEventCode, sender interface{}, listener interface{}, context core.EventContext) bool {
	core.LogInfo("Asset %s changed, reloading the scene.", context.Data.C[0])
	e.reloadRequested.Store(true)
	return true
}
