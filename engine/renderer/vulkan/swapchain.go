package vulkan

import (
	"github.com/cockroachdb/errors"
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/vkframe/engine/core"
	"github.com/spaghettifunk/vkframe/engine/renderer/metadata"
)

type vulkanSwapchain struct {
	Handle vk.Swapchain
	// Registered lazily by SwapchainImages and dropped with the swapchain.
	images []metadata.Image
}

func querySurfaceCapabilities(physicalDevice vk.PhysicalDevice, surface vk.Surface) (vk.SurfaceCapabilities, error) {
	var capabilities vk.SurfaceCapabilities
	if err := vulkanError(vk.GetPhysicalDeviceSurfaceCapabilities(physicalDevice, surface, &capabilities), "vkGetPhysicalDeviceSurfaceCapabilitiesKHR"); err != nil {
		return capabilities, err
	}
	capabilities.Deref()
	capabilities.CurrentExtent.Deref()
	capabilities.MinImageExtent.Deref()
	capabilities.MaxImageExtent.Deref()
	return capabilities, nil
}

func querySurfaceFormats(physicalDevice vk.PhysicalDevice, surface vk.Surface) ([]vk.SurfaceFormat, error) {
	var count uint32
	if err := vulkanError(vk.GetPhysicalDeviceSurfaceFormats(physicalDevice, surface, &count, nil), "vkGetPhysicalDeviceSurfaceFormatsKHR"); err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, nil
	}
	formats := make([]vk.SurfaceFormat, count)
	if err := vulkanError(vk.GetPhysicalDeviceSurfaceFormats(physicalDevice, surface, &count, formats), "vkGetPhysicalDeviceSurfaceFormatsKHR"); err != nil {
		return nil, err
	}
	for i := range formats {
		formats[i].Deref()
	}
	return formats[:count], nil
}

func queryPresentModes(physicalDevice vk.PhysicalDevice, surface vk.Surface) ([]vk.PresentMode, error) {
	var count uint32
	if err := vulkanError(vk.GetPhysicalDeviceSurfacePresentModes(physicalDevice, surface, &count, nil), "vkGetPhysicalDeviceSurfacePresentModesKHR"); err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, nil
	}
	modes := make([]vk.PresentMode, count)
	if err := vulkanError(vk.GetPhysicalDeviceSurfacePresentModes(physicalDevice, surface, &count, modes), "vkGetPhysicalDeviceSurfacePresentModesKHR"); err != nil {
		return nil, err
	}
	return modes[:count], nil
}

func toExtent(e vk.Extent2D) metadata.Extent {
	return metadata.Extent{Width: e.Width, Height: e.Height}
}

func (vb *VulkanBackend) SurfaceCapabilities() (metadata.SurfaceCapabilities, error) {
	capabilities, err := querySurfaceCapabilities(vb.context.Device.PhysicalDevice, vb.context.Surface)
	if err != nil {
		return metadata.SurfaceCapabilities{}, err
	}
	return metadata.SurfaceCapabilities{
		MinImageCount:  capabilities.MinImageCount,
		MaxImageCount:  capabilities.MaxImageCount,
		CurrentExtent:  toExtent(capabilities.CurrentExtent),
		MinImageExtent: toExtent(capabilities.MinImageExtent),
		MaxImageExtent: toExtent(capabilities.MaxImageExtent),
	}, nil
}

func (vb *VulkanBackend) SurfaceFormats() ([]metadata.SurfaceFormat, error) {
	formats, err := querySurfaceFormats(vb.context.Device.PhysicalDevice, vb.context.Surface)
	if err != nil {
		return nil, err
	}
	out := make([]metadata.SurfaceFormat, len(formats))
	for i, f := range formats {
		out[i] = metadata.SurfaceFormat{
			Format:     metadata.Format(f.Format),
			ColorSpace: metadata.ColorSpace(f.ColorSpace),
		}
	}
	return out, nil
}

func (vb *VulkanBackend) PresentModes() ([]metadata.PresentMode, error) {
	modes, err := queryPresentModes(vb.context.Device.PhysicalDevice, vb.context.Surface)
	if err != nil {
		return nil, err
	}
	out := make([]metadata.PresentMode, len(modes))
	for i, m := range modes {
		out[i] = metadata.PresentMode(m)
	}
	return out, nil
}

func (vb *VulkanBackend) QueueFamilies() (graphics, present uint32) {
	return uint32(vb.context.Device.GraphicsQueueIndex), uint32(vb.context.Device.PresentQueueIndex)
}

func (vb *VulkanBackend) SupportsDepthFormat(format metadata.Format) bool {
	var properties vk.FormatProperties
	vk.GetPhysicalDeviceFormatProperties(vb.context.Device.PhysicalDevice, vk.Format(format), &properties)
	properties.Deref()

	flags := vk.FormatFeatureFlags(vk.FormatFeatureDepthStencilAttachmentBit)
	return properties.OptimalTilingFeatures&flags == flags
}

func (vb *VulkanBackend) CreateSwapchain(info metadata.SwapchainInfo) (metadata.Swapchain, error) {
	// The transform has to match the surface as it is right now.
	capabilities, err := querySurfaceCapabilities(vb.context.Device.PhysicalDevice, vb.context.Surface)
	if err != nil {
		return 0, err
	}

	swapchainCreateInfo := vk.SwapchainCreateInfo{
		SType:            vk.StructureTypeSwapchainCreateInfo,
		Surface:          vb.context.Surface,
		MinImageCount:    info.MinImageCount,
		ImageFormat:      vk.Format(info.Format.Format),
		ImageColorSpace:  vk.ColorSpace(info.Format.ColorSpace),
		ImageExtent:      vk.Extent2D{Width: info.Extent.Width, Height: info.Extent.Height},
		ImageArrayLayers: 1,
		ImageUsage:       vk.ImageUsageFlags(vk.ImageUsageColorAttachmentBit),
		ImageSharingMode: vk.SharingMode(info.SharingMode),
		PreTransform:     capabilities.CurrentTransform,
		CompositeAlpha:   vk.CompositeAlphaOpaqueBit,
		PresentMode:      vk.PresentMode(info.PresentMode),
		Clipped:          vk.True,
		OldSwapchain:     nil,
	}
	if info.SharingMode == metadata.SharingModeConcurrent {
		swapchainCreateInfo.QueueFamilyIndexCount = uint32(len(info.QueueFamilies))
		swapchainCreateInfo.PQueueFamilyIndices = info.QueueFamilies
	}

	var handle vk.Swapchain
	err = vb.lockPool.SafeCall(SwapchainManagement, func() error {
		return vulkanError(vk.CreateSwapchain(vb.logicalDevice(), &swapchainCreateInfo, vb.context.Allocator, &handle), "vkCreateSwapchainKHR")
	})
	if err != nil {
		return 0, err
	}

	core.LogDebug("Vulkan swapchain created: %dx%d, %s.", info.Extent.Width, info.Extent.Height, info.PresentMode)
	return vb.handles.swapchains.add(&vulkanSwapchain{Handle: handle}), nil
}

func (vb *VulkanBackend) SwapchainImages(swapchain metadata.Swapchain) ([]metadata.Image, error) {
	sc, ok := vb.handles.swapchains.get(swapchain)
	if !ok {
		return nil, errors.Newf("unknown swapchain %d", swapchain)
	}
	if sc.images != nil {
		return sc.images, nil
	}

	var count uint32
	if err := vulkanError(vk.GetSwapchainImages(vb.logicalDevice(), sc.Handle, &count, nil), "vkGetSwapchainImagesKHR"); err != nil {
		return nil, err
	}
	images := make([]vk.Image, count)
	if err := vulkanError(vk.GetSwapchainImages(vb.logicalDevice(), sc.Handle, &count, images), "vkGetSwapchainImagesKHR"); err != nil {
		return nil, err
	}

	sc.images = make([]metadata.Image, count)
	for i := uint32(0); i < count; i++ {
		sc.images[i] = vb.handles.images.add(&vulkanImage{Handle: images[i], SwapchainOwned: true})
	}
	return sc.images, nil
}

func (vb *VulkanBackend) DestroySwapchain(swapchain metadata.Swapchain) {
	sc, ok := vb.handles.swapchains.remove(swapchain)
	if !ok {
		return
	}
	// Only the bookkeeping of the images goes, the images themselves are
	// owned by the swapchain and destroyed with it.
	for _, image := range sc.images {
		vb.handles.images.remove(image)
	}
	_ = vb.lockPool.SafeCall(SwapchainManagement, func() error {
		vk.DestroySwapchain(vb.logicalDevice(), sc.Handle, vb.context.Allocator)
		return nil
	})
}

func (vb *VulkanBackend) AcquireNextImage(swapchain metadata.Swapchain, timeout uint64, signal metadata.Semaphore) (uint32, metadata.SurfaceStatus, error) {
	sc, ok := vb.handles.swapchains.get(swapchain)
	if !ok {
		return 0, metadata.SurfaceOptimal, errors.Newf("unknown swapchain %d", swapchain)
	}
	semaphore, ok := vb.handles.semaphores.get(signal)
	if !ok {
		return 0, metadata.SurfaceOptimal, errors.Newf("unknown semaphore %d", signal)
	}

	var imageIndex uint32
	result := vk.AcquireNextImage(vb.logicalDevice(), sc.Handle, timeout, semaphore, vk.NullFence, &imageIndex)
	switch result {
	case vk.Success:
		return imageIndex, metadata.SurfaceOptimal, nil
	case vk.Suboptimal:
		return imageIndex, metadata.SurfaceSuboptimal, nil
	case vk.ErrorOutOfDate:
		return 0, metadata.SurfaceOutOfDate, nil
	case vk.Timeout, vk.NotReady:
		return 0, metadata.SurfaceOptimal, errors.Newf("vkAcquireNextImageKHR returned %s", VulkanResultString(result, false))
	}
	return 0, metadata.SurfaceOptimal, vulkanError(result, "vkAcquireNextImageKHR")
}

func (vb *VulkanBackend) Present(info metadata.PresentInfo) (metadata.SurfaceStatus, error) {
	sc, ok := vb.handles.swapchains.get(info.Swapchain)
	if !ok {
		return metadata.SurfaceOptimal, errors.Newf("unknown swapchain %d", info.Swapchain)
	}
	semaphore, ok := vb.handles.semaphores.get(info.WaitSemaphore)
	if !ok {
		return metadata.SurfaceOptimal, errors.Newf("unknown semaphore %d", info.WaitSemaphore)
	}

	// Return the image to the swapchain for presentation.
	presentInfo := vk.PresentInfo{
		SType:              vk.StructureTypePresentInfo,
		WaitSemaphoreCount: 1,
		PWaitSemaphores:    []vk.Semaphore{semaphore},
		SwapchainCount:     1,
		PSwapchains:        []vk.Swapchain{sc.Handle},
		PImageIndices:      []uint32{info.ImageIndex},
		PResults:           nil,
	}

	var result vk.Result
	device := vb.context.Device
	_ = vb.lockPool.SafeQueueCall(uint32(device.PresentQueueIndex), func() error {
		result = vk.QueuePresent(device.PresentQueue, &presentInfo)
		return nil
	})

	switch result {
	case vk.Success:
		return metadata.SurfaceOptimal, nil
	case vk.Suboptimal:
		return metadata.SurfaceSuboptimal, nil
	case vk.ErrorOutOfDate:
		return metadata.SurfaceOutOfDate, nil
	}
	return metadata.SurfaceOptimal, vulkanError(result, "vkQueuePresentKHR")
}
