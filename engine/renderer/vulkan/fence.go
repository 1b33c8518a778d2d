package vulkan

import (
	"github.com/cockroachdb/errors"
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/vkframe/engine/core"
	"github.com/spaghettifunk/vkframe/engine/renderer/metadata"
)

func (vb *VulkanBackend) CreateFence(signaled bool) (metadata.Fence, error) {
	fenceCreateInfo := vk.FenceCreateInfo{
		SType: vk.StructureTypeFenceCreateInfo,
	}
	// Make sure to signal the fence if required.
	if signaled {
		fenceCreateInfo.Flags = vk.FenceCreateFlags(vk.FenceCreateSignaledBit)
	}

	var fence vk.Fence
	if err := vulkanError(vk.CreateFence(vb.logicalDevice(), &fenceCreateInfo, vb.context.Allocator, &fence), "vkCreateFence"); err != nil {
		return 0, err
	}
	return vb.handles.fences.add(fence), nil
}

func (vb *VulkanBackend) DestroyFence(fence metadata.Fence) {
	if handle, ok := vb.handles.fences.remove(fence); ok {
		vk.DestroyFence(vb.logicalDevice(), handle, vb.context.Allocator)
	}
}

func (vb *VulkanBackend) CreateSemaphore() (metadata.Semaphore, error) {
	semaphoreCreateInfo := vk.SemaphoreCreateInfo{
		SType: vk.StructureTypeSemaphoreCreateInfo,
	}

	var semaphore vk.Semaphore
	if err := vulkanError(vk.CreateSemaphore(vb.logicalDevice(), &semaphoreCreateInfo, vb.context.Allocator, &semaphore), "vkCreateSemaphore"); err != nil {
		return 0, err
	}
	return vb.handles.semaphores.add(semaphore), nil
}

func (vb *VulkanBackend) DestroySemaphore(semaphore metadata.Semaphore) {
	if handle, ok := vb.handles.semaphores.remove(semaphore); ok {
		vk.DestroySemaphore(vb.logicalDevice(), handle, vb.context.Allocator)
	}
}

func (vb *VulkanBackend) WaitForFence(fence metadata.Fence, timeout uint64) error {
	handle, ok := vb.handles.fences.get(fence)
	if !ok {
		return errors.Newf("unknown fence %d", fence)
	}

	result := vk.WaitForFences(vb.logicalDevice(), 1, []vk.Fence{handle}, vk.True, timeout)
	switch result {
	case vk.Success:
		return nil
	case vk.Timeout:
		core.LogWarn("vkWaitForFences - Timed out")
		return errors.Newf("timed out after %dns waiting for fence %d", timeout, fence)
	}
	return vulkanError(result, "vkWaitForFences")
}

func (vb *VulkanBackend) ResetFence(fence metadata.Fence) error {
	handle, ok := vb.handles.fences.get(fence)
	if !ok {
		return errors.Newf("unknown fence %d", fence)
	}
	return vulkanError(vk.ResetFences(vb.logicalDevice(), 1, []vk.Fence{handle}), "vkResetFences")
}
