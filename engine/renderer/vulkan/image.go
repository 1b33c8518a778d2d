package vulkan

import (
	"github.com/cockroachdb/errors"
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/vkframe/engine/core"
	"github.com/spaghettifunk/vkframe/engine/math"
	"github.com/spaghettifunk/vkframe/engine/renderer/metadata"
)

/** @brief The anisotropy requested for the texture sampler, capped by the device limit. */
const samplerAnisotropy float32 = 16

type vulkanImage struct {
	Handle vk.Image
	// Owned by a swapchain; destroyed together with it.
	SwapchainOwned bool
}

func (vb *VulkanBackend) CreateImage(info metadata.ImageInfo) (metadata.Image, metadata.MemoryRequirements, error) {
	imageCreateInfo := vk.ImageCreateInfo{
		SType:     vk.StructureTypeImageCreateInfo,
		ImageType: vk.ImageType2d,
		Extent: vk.Extent3D{
			Width:  info.Extent.Width,
			Height: info.Extent.Height,
			Depth:  1,
		},
		MipLevels:     1,
		ArrayLayers:   1,
		Format:        vk.Format(info.Format),
		Tiling:        vk.ImageTilingOptimal,
		InitialLayout: vk.ImageLayoutUndefined,
		Usage:         vk.ImageUsageFlags(info.Usage),
		Samples:       vk.SampleCount1Bit,
		SharingMode:   vk.SharingModeExclusive,
	}

	var image vk.Image
	if err := vulkanError(vk.CreateImage(vb.logicalDevice(), &imageCreateInfo, vb.context.Allocator, &image), "vkCreateImage"); err != nil {
		return 0, metadata.MemoryRequirements{}, err
	}

	var requirements vk.MemoryRequirements
	vk.GetImageMemoryRequirements(vb.logicalDevice(), image, &requirements)
	requirements.Deref()

	return vb.handles.images.add(&vulkanImage{Handle: image}), toMemoryRequirements(requirements), nil
}

func (vb *VulkanBackend) DestroyImage(image metadata.Image) {
	img, ok := vb.handles.images.get(image)
	if !ok {
		return
	}
	if img.SwapchainOwned {
		core.LogWarn("Image %d belongs to a swapchain and is not destroyed.", image)
		return
	}
	vb.handles.images.remove(image)
	vk.DestroyImage(vb.logicalDevice(), img.Handle, vb.context.Allocator)
}

func (vb *VulkanBackend) BindImageMemory(image metadata.Image, memory metadata.DeviceMemory) error {
	img, ok := vb.handles.images.get(image)
	if !ok {
		return errors.Newf("unknown image %d", image)
	}
	m, ok := vb.handles.memories.get(memory)
	if !ok {
		return errors.Newf("unknown device memory %d", memory)
	}
	return vulkanError(vk.BindImageMemory(vb.logicalDevice(), img.Handle, m.Handle, 0), "vkBindImageMemory")
}

func (vb *VulkanBackend) CreateImageView(image metadata.Image, format metadata.Format, aspect metadata.ImageAspectFlags) (metadata.ImageView, error) {
	img, ok := vb.handles.images.get(image)
	if !ok {
		return 0, errors.Newf("unknown image %d", image)
	}

	viewInfo := vk.ImageViewCreateInfo{
		SType:    vk.StructureTypeImageViewCreateInfo,
		Image:    img.Handle,
		ViewType: vk.ImageViewType2d,
		Format:   vk.Format(format),
		SubresourceRange: vk.ImageSubresourceRange{
			AspectMask:     vk.ImageAspectFlags(aspect),
			BaseMipLevel:   0,
			LevelCount:     1,
			BaseArrayLayer: 0,
			LayerCount:     1,
		},
	}

	var view vk.ImageView
	if err := vulkanError(vk.CreateImageView(vb.logicalDevice(), &viewInfo, vb.context.Allocator, &view), "vkCreateImageView"); err != nil {
		return 0, err
	}
	return vb.handles.views.add(view), nil
}

func (vb *VulkanBackend) DestroyImageView(view metadata.ImageView) {
	if handle, ok := vb.handles.views.remove(view); ok {
		vk.DestroyImageView(vb.logicalDevice(), handle, vb.context.Allocator)
	}
}

// CreateSampler creates the linear, repeating, anisotropic texture sampler.
func (vb *VulkanBackend) CreateSampler() (metadata.Sampler, error) {
	samplerInfo := vk.SamplerCreateInfo{
		SType:                   vk.StructureTypeSamplerCreateInfo,
		MagFilter:               vk.FilterLinear,
		MinFilter:               vk.FilterLinear,
		AddressModeU:            vk.SamplerAddressModeRepeat,
		AddressModeV:            vk.SamplerAddressModeRepeat,
		AddressModeW:            vk.SamplerAddressModeRepeat,
		AnisotropyEnable:        vk.True,
		MaxAnisotropy:           math.Clamp(samplerAnisotropy, 1, vb.context.Device.MaxSamplerAnisotropy),
		BorderColor:             vk.BorderColorIntOpaqueBlack,
		UnnormalizedCoordinates: vk.False,
		CompareEnable:           vk.False,
		CompareOp:               vk.CompareOpAlways,
		MipmapMode:              vk.SamplerMipmapModeLinear,
		MipLodBias:              0,
		MinLod:                  0,
		MaxLod:                  0,
	}

	var sampler vk.Sampler
	if err := vulkanError(vk.CreateSampler(vb.logicalDevice(), &samplerInfo, vb.context.Allocator, &sampler), "vkCreateSampler"); err != nil {
		return 0, err
	}
	return vb.handles.samplers.add(sampler), nil
}

func (vb *VulkanBackend) DestroySampler(sampler metadata.Sampler) {
	if handle, ok := vb.handles.samplers.remove(sampler); ok {
		vk.DestroySampler(vb.logicalDevice(), handle, vb.context.Allocator)
	}
}
