package renderer

import (
	"github.com/cockroachdb/errors"

	"github.com/spaghettifunk/vkframe/engine/core"
	"github.com/spaghettifunk/vkframe/engine/renderer/metadata"
)

// OnResize handles a size change reported by the host. A notification with
// the size already in use does nothing. A zero size suspends rendering until
// a later notification with a positive size.
func (r *Renderer) OnResize(width, height uint32) error {
	extent := metadata.Extent{Width: width, Height: height}
	if !r.initialized {
		r.hostExtent = extent
		return nil
	}
	if extent == r.hostExtent && (r.swapchain != nil || extent.IsZero()) {
		return nil
	}
	core.LogDebug("Resize requested: %dx%d -> %dx%d.", r.hostExtent.Width, r.hostExtent.Height, width, height)
	r.hostExtent = extent
	return r.recreate(extent)
}

// recreate tears the current swapchain generation down and builds the next
// one at extent. The frame slots and the static resources survive, and the
// frame cursor is left where it is.
func (r *Renderer) recreate(extent metadata.Extent) error {
	// Nothing may still reference the old swapchain objects.
	if err := r.device.WaitIdle(); err != nil {
		return core.FatalFrame(errors.Wrap(err, "failed to wait for device idle before rebuild"))
	}
	r.swapchain.Destroy(r.device)
	r.swapchain = nil
	r.stats.Rebuilds++

	if extent.IsZero() {
		r.suspend()
		return nil
	}
	sc, err := BuildSwapchain(r.device, r.factory, r.swapchainConfig(), extent)
	if err != nil {
		return core.FatalFrame(errors.Wrap(err, "failed to rebuild swapchain"))
	}
	if sc == nil {
		// The surface reports no area even though the host does.
		r.suspend()
		return nil
	}
	r.swapchain = sc
	if r.state == FrameSuspended {
		core.LogInfo("Window restored, resuming rendering.")
	}
	r.state = FrameIdle
	return nil
}

func (r *Renderer) suspend() {
	if r.state != FrameSuspended {
		core.LogInfo("Window minimized, suspending rendering.")
	}
	r.state = FrameSuspended
}

func (r *Renderer) swapchainConfig() SwapchainConfig {
	return SwapchainConfig{
		Format:        r.surfaceFormat,
		DepthFormat:   r.static.DepthFormat,
		RenderPass:    r.static.RenderPass,
		PreferMailbox: r.preferMailbox,
	}
}
