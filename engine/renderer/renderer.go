package renderer

import (
	"github.com/cockroachdb/errors"

	"github.com/spaghettifunk/vkframe/engine/core"
	"github.com/spaghettifunk/vkframe/engine/renderer/metadata"
)

/** @brief Renderer settings that are fixed for the session. */
type Config struct {
	PreferMailbox bool
	ClearColor    [4]float32
}

func DefaultConfig() Config {
	return Config{
		PreferMailbox: true,
		ClearColor:    [4]float32{0, 0, 0, 1},
	}
}

/**
 * @brief Ties the resource factory, the swapchain builder, the frame
 * scheduler and the resize coordinator together. All methods must be called
 * from the rendering thread.
 */
type Renderer struct {
	device   Device
	factory  *ResourceFactory
	uniforms UniformSource

	preferMailbox bool
	clearColor    [4]float32
	surfaceFormat metadata.SurfaceFormat

	static         *StaticResources
	swapchain      *SwapchainState
	slots          []*FrameSlot
	commandBuffers []metadata.CommandBuffer

	current    uint32
	state      FrameState
	hostExtent metadata.Extent
	stats      FrameStats

	initialized bool
}

func New(device Device, uniforms UniformSource, cfg Config) *Renderer {
	return &Renderer{
		device:        device,
		factory:       NewResourceFactory(device),
		uniforms:      uniforms,
		preferMailbox: cfg.PreferMailbox,
		clearColor:    cfg.ClearColor,
	}
}

// Initialize creates the static resources, the frame slots and the first
// swapchain generation at extent. A zero extent starts suspended. Failures
// are marked as setup errors and leave nothing allocated.
func (r *Renderer) Initialize(assets SceneAssets, extent metadata.Extent) error {
	if r.initialized {
		return core.FatalSetup(errors.New("renderer already initialized"))
	}
	if r.uniforms == nil {
		return core.FatalSetup(errors.New("no uniform source provided"))
	}

	formats, err := r.device.SurfaceFormats()
	if err != nil {
		return core.FatalSetup(errors.Wrap(err, "failed to query surface formats"))
	}
	if r.surfaceFormat, err = ChooseSurfaceFormat(formats); err != nil {
		return core.FatalSetup(err)
	}
	depthFormat, err := ChooseDepthFormat(r.device)
	if err != nil {
		return core.FatalSetup(err)
	}

	var cleanup releaser
	defer cleanup.release()

	r.static, err = BuildStaticResources(r.device, r.factory, assets, r.surfaceFormat.Format, depthFormat)
	if err != nil {
		return core.FatalSetup(err)
	}
	cleanup.add(func() {
		r.static.Destroy(r.device)
		r.static = nil
	})

	r.slots, r.commandBuffers, err = createFrameSlots(r.device, r.factory, r.static)
	if err != nil {
		return core.FatalSetup(err)
	}
	cleanup.add(r.destroySlots)

	r.hostExtent = extent
	r.state = FrameIdle
	if !extent.IsZero() {
		r.swapchain, err = BuildSwapchain(r.device, r.factory, r.swapchainConfig(), extent)
		if err != nil {
			return core.FatalSetup(err)
		}
	}
	if r.swapchain == nil {
		r.suspend()
	}

	cleanup.disarm()
	r.current = 0
	r.initialized = true
	core.LogInfo(
		"Renderer initialized: surface format %d, depth format %d, %d frames in flight.",
		r.surfaceFormat.Format, depthFormat, MaxFramesInFlight,
	)
	return nil
}

// Shutdown waits for the device and releases everything the renderer
// created. Calling it again, or before Initialize, does nothing.
func (r *Renderer) Shutdown() error {
	if !r.initialized {
		return nil
	}
	var waitErr error
	if err := r.device.WaitIdle(); err != nil {
		// Keep going, the objects have to be released regardless.
		waitErr = errors.Wrap(err, "failed to wait for device idle on shutdown")
		core.LogError(waitErr.Error())
	}
	r.swapchain.Destroy(r.device)
	r.swapchain = nil
	r.destroySlots()
	r.static.Destroy(r.device)
	r.static = nil
	r.initialized = false
	core.LogInfo("Renderer shut down after %d frames.", r.stats.FrameNumber)
	return waitErr
}

func (r *Renderer) destroySlots() {
	for _, slot := range r.slots {
		slot.destroy(r.device)
	}
	r.slots = nil
	if len(r.commandBuffers) > 0 {
		r.device.FreeCommandBuffers(r.commandBuffers)
		r.commandBuffers = nil
	}
}

// Cursor returns the index of the frame slot the next frame will use.
func (r *Renderer) Cursor() uint32 {
	return r.current
}

func (r *Renderer) State() FrameState {
	return r.state
}

func (r *Renderer) Suspended() bool {
	return r.state == FrameSuspended
}

// Swapchain returns the current swapchain generation, nil while suspended.
func (r *Renderer) Swapchain() *SwapchainState {
	return r.swapchain
}

func (r *Renderer) Stats() FrameStats {
	return r.stats
}

func (r *Renderer) Slots() []*FrameSlot {
	return r.slots
}
