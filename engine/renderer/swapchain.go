package renderer

import (
	stdmath "math"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"

	"github.com/spaghettifunk/vkframe/engine/core"
	"github.com/spaghettifunk/vkframe/engine/math"
	"github.com/spaghettifunk/vkframe/engine/renderer/metadata"
)

/** @brief The most swapchain images the builder will accept from a driver. */
const MaxSwapchainImages = 8

/** @brief Depth formats in order of preference. */
var depthFormatCandidates = []metadata.Format{
	metadata.FormatD32Sfloat,
	metadata.FormatD32SfloatS8Uint,
	metadata.FormatD24UnormS8Uint,
}

/**
 * @brief One generation of the swapchain and everything sized after it.
 * Images are owned by the swapchain; views, the depth buffer and the
 * framebuffers are owned by this state.
 */
type SwapchainState struct {
	/** @brief Identifies the generation in logs. */
	Generation   uuid.UUID
	Handle       metadata.Swapchain
	Format       metadata.SurfaceFormat
	PresentMode  metadata.PresentMode
	Extent       metadata.Extent
	Images       []metadata.Image
	Views        []metadata.ImageView
	Depth        *ImageResource
	Framebuffers []metadata.Framebuffer
}

// ImageCount returns the number of presentable images of this generation.
func (s *SwapchainState) ImageCount() int {
	if s == nil {
		return 0
	}
	return len(s.Images)
}

// Destroy releases the framebuffers, the depth buffer, the image views and
// finally the swapchain. It is idempotent and safe on a nil state.
func (s *SwapchainState) Destroy(device Device) {
	if s == nil {
		return
	}
	for i, fb := range s.Framebuffers {
		if fb != 0 {
			device.DestroyFramebuffer(fb)
			s.Framebuffers[i] = 0
		}
	}
	s.Framebuffers = nil

	s.Depth.Destroy(device)
	s.Depth = nil

	for i, view := range s.Views {
		if view != 0 {
			device.DestroyImageView(view)
			s.Views[i] = 0
		}
	}
	s.Views = nil
	s.Images = nil

	if s.Handle != 0 {
		device.DestroySwapchain(s.Handle)
		s.Handle = 0
	}
}

// ChooseImageCount asks for one image more than the minimum so the
// application never waits on the driver, within the surface limits. It never
// goes below the surface minimum, even past MaxSwapchainImages.
func ChooseImageCount(caps metadata.SurfaceCapabilities) uint32 {
	count := caps.MinImageCount + 1
	if caps.MaxImageCount > 0 && count > caps.MaxImageCount {
		count = caps.MaxImageCount
	}
	if count > MaxSwapchainImages {
		count = MaxSwapchainImages
	}
	if count < caps.MinImageCount {
		count = caps.MinImageCount
	}
	return count
}

// ChooseSurfaceFormat prefers 8-bit BGRA sRGB with the sRGB non-linear color
// space and falls back to the first format offered.
func ChooseSurfaceFormat(formats []metadata.SurfaceFormat) (metadata.SurfaceFormat, error) {
	if len(formats) == 0 {
		return metadata.SurfaceFormat{}, errors.New("surface reports no formats")
	}
	for _, f := range formats {
		if f.Format == metadata.FormatB8G8R8A8Srgb && f.ColorSpace == metadata.ColorSpaceSrgbNonlinear {
			return f, nil
		}
	}
	return formats[0], nil
}

// ChoosePresentMode returns mailbox when offered and allowed, fifo otherwise.
// Fifo is always supported.
func ChoosePresentMode(modes []metadata.PresentMode, preferMailbox bool) metadata.PresentMode {
	if preferMailbox {
		for _, m := range modes {
			if m == metadata.PresentModeMailbox {
				return m
			}
		}
	}
	return metadata.PresentModeFifo
}

// ChooseExtent uses the surface's current extent unless the surface lets the
// swapchain decide, in which case desired is clamped to the allowed range.
func ChooseExtent(caps metadata.SurfaceCapabilities, desired metadata.Extent) metadata.Extent {
	if caps.CurrentExtent.Width != stdmath.MaxUint32 {
		return caps.CurrentExtent
	}
	return metadata.Extent{
		Width:  math.Clamp(desired.Width, caps.MinImageExtent.Width, caps.MaxImageExtent.Width),
		Height: math.Clamp(desired.Height, caps.MinImageExtent.Height, caps.MaxImageExtent.Height),
	}
}

// ChooseSharingMode shares swapchain images between both queue families when
// graphics and presentation happen on different families.
func ChooseSharingMode(graphics, present uint32) (metadata.SharingMode, []uint32) {
	if graphics != present {
		return metadata.SharingModeConcurrent, []uint32{graphics, present}
	}
	return metadata.SharingModeExclusive, nil
}

// ChooseDepthFormat returns the first supported depth format.
func ChooseDepthFormat(device Device) (metadata.Format, error) {
	format := metadata.FormatUndefined
	for _, candidate := range depthFormatCandidates {
		if device.SupportsDepthFormat(candidate) {
			format = candidate
			break
		}
	}
	if format == metadata.FormatUndefined {
		return format, core.ResourceExhausted(errors.New("no supported depth format"))
	}
	return format, nil
}

/** @brief The surface independent inputs of a swapchain build. */
type SwapchainConfig struct {
	Format        metadata.SurfaceFormat
	DepthFormat   metadata.Format
	RenderPass    metadata.RenderPass
	PreferMailbox bool
}

// BuildSwapchain creates a new swapchain generation sized after desired. A
// zero sized result is reported with a nil state and no error: nothing is
// created while the surface has no area. On failure everything created so
// far is released.
func BuildSwapchain(device Device, factory *ResourceFactory, cfg SwapchainConfig, desired metadata.Extent) (*SwapchainState, error) {
	caps, err := device.SurfaceCapabilities()
	if err != nil {
		return nil, errors.Wrap(err, "failed to query surface capabilities")
	}
	extent := ChooseExtent(caps, desired)
	if extent.IsZero() {
		return nil, nil
	}

	formats, err := device.SurfaceFormats()
	if err != nil {
		return nil, errors.Wrap(err, "failed to query surface formats")
	}
	format, err := ChooseSurfaceFormat(formats)
	if err != nil {
		return nil, err
	}
	if format != cfg.Format {
		return nil, errors.Newf("surface format changed from %d to %d", cfg.Format.Format, format.Format)
	}
	modes, err := device.PresentModes()
	if err != nil {
		return nil, errors.Wrap(err, "failed to query present modes")
	}
	graphics, present := device.QueueFamilies()
	sharing, families := ChooseSharingMode(graphics, present)

	state := &SwapchainState{
		Generation:  uuid.New(),
		Format:      format,
		PresentMode: ChoosePresentMode(modes, cfg.PreferMailbox),
		Extent:      extent,
	}
	var cleanup releaser
	defer cleanup.release()
	cleanup.add(func() { state.Destroy(device) })

	state.Handle, err = device.CreateSwapchain(metadata.SwapchainInfo{
		MinImageCount: ChooseImageCount(caps),
		Format:        format,
		PresentMode:   state.PresentMode,
		Extent:        extent,
		SharingMode:   sharing,
		QueueFamilies: families,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to create swapchain")
	}

	// The driver may hand out more images than requested.
	state.Images, err = device.SwapchainImages(state.Handle)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get swapchain images")
	}
	if len(state.Images) == 0 || len(state.Images) > MaxSwapchainImages {
		return nil, errors.Newf("swapchain returned %d images, supported range is 1..%d", len(state.Images), MaxSwapchainImages)
	}

	state.Views = make([]metadata.ImageView, 0, len(state.Images))
	for i, image := range state.Images {
		view, err := device.CreateImageView(image, format.Format, metadata.ImageAspectColor)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to create view for swapchain image %d", i)
		}
		state.Views = append(state.Views, view)
	}

	aspect := metadata.ImageAspectDepth
	if cfg.DepthFormat.HasStencil() {
		aspect |= metadata.ImageAspectStencil
	}
	state.Depth, err = factory.CreateImage(
		extent,
		cfg.DepthFormat,
		metadata.ImageUsageDepthStencilAttachment,
		metadata.MemoryPropertyDeviceLocal,
		aspect,
	)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create depth buffer")
	}

	state.Framebuffers = make([]metadata.Framebuffer, 0, len(state.Views))
	for i, view := range state.Views {
		fb, err := device.CreateFramebuffer(cfg.RenderPass, []metadata.ImageView{view, state.Depth.View}, extent)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to create framebuffer %d", i)
		}
		state.Framebuffers = append(state.Framebuffers, fb)
	}

	cleanup.disarm()
	core.LogDebug(
		"Swapchain %s created: %dx%d, %d images, present mode %s.",
		state.Generation, extent.Width, extent.Height, len(state.Images), state.PresentMode,
	)
	return state, nil
}
