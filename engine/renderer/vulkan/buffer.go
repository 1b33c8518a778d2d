package vulkan

import (
	"unsafe"

	"github.com/cockroachdb/errors"
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/vkframe/engine/core"
	"github.com/spaghettifunk/vkframe/engine/renderer/metadata"
)

type vulkanMemory struct {
	Handle vk.DeviceMemory
	Size   uint64
	Mapped bool
}

func toMemoryRequirements(req vk.MemoryRequirements) metadata.MemoryRequirements {
	return metadata.MemoryRequirements{
		Size:           uint64(req.Size),
		Alignment:      uint64(req.Alignment),
		MemoryTypeBits: req.MemoryTypeBits,
	}
}

func (vb *VulkanBackend) MemoryTypes() []metadata.MemoryType {
	return vb.context.Device.MemoryTypes
}

func (vb *VulkanBackend) CreateBuffer(size uint64, usage metadata.BufferUsageFlags) (metadata.Buffer, metadata.MemoryRequirements, error) {
	bufferInfo := vk.BufferCreateInfo{
		SType:       vk.StructureTypeBufferCreateInfo,
		Size:        vk.DeviceSize(size),
		Usage:       vk.BufferUsageFlags(usage),
		SharingMode: vk.SharingModeExclusive, // NOTE: Only used in one queue.
	}

	var buffer vk.Buffer
	if err := vulkanError(vk.CreateBuffer(vb.logicalDevice(), &bufferInfo, vb.context.Allocator, &buffer), "vkCreateBuffer"); err != nil {
		return 0, metadata.MemoryRequirements{}, err
	}

	var requirements vk.MemoryRequirements
	vk.GetBufferMemoryRequirements(vb.logicalDevice(), buffer, &requirements)
	requirements.Deref()

	return vb.handles.buffers.add(buffer), toMemoryRequirements(requirements), nil
}

func (vb *VulkanBackend) DestroyBuffer(buffer metadata.Buffer) {
	if handle, ok := vb.handles.buffers.remove(buffer); ok {
		vk.DestroyBuffer(vb.logicalDevice(), handle, vb.context.Allocator)
	}
}

func (vb *VulkanBackend) AllocateMemory(size uint64, memoryTypeIndex uint32) (metadata.DeviceMemory, error) {
	allocateInfo := vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		AllocationSize:  vk.DeviceSize(size),
		MemoryTypeIndex: memoryTypeIndex,
	}

	var memory vk.DeviceMemory
	if err := vulkanError(vk.AllocateMemory(vb.logicalDevice(), &allocateInfo, vb.context.Allocator, &memory), "vkAllocateMemory"); err != nil {
		return 0, err
	}
	return vb.handles.memories.add(&vulkanMemory{Handle: memory, Size: size}), nil
}

func (vb *VulkanBackend) FreeMemory(memory metadata.DeviceMemory) {
	m, ok := vb.handles.memories.remove(memory)
	if !ok {
		return
	}
	if m.Mapped {
		core.LogWarn("Freeing device memory %d while it is still mapped.", memory)
		vk.UnmapMemory(vb.logicalDevice(), m.Handle)
	}
	vk.FreeMemory(vb.logicalDevice(), m.Handle, vb.context.Allocator)
}

func (vb *VulkanBackend) BindBufferMemory(buffer metadata.Buffer, memory metadata.DeviceMemory) error {
	handle, ok := vb.handles.buffers.get(buffer)
	if !ok {
		return errors.Newf("unknown buffer %d", buffer)
	}
	m, ok := vb.handles.memories.get(memory)
	if !ok {
		return errors.Newf("unknown device memory %d", memory)
	}
	return vulkanError(vk.BindBufferMemory(vb.logicalDevice(), handle, m.Handle, 0), "vkBindBufferMemory")
}

func (vb *VulkanBackend) MapMemory(memory metadata.DeviceMemory, size uint64) ([]byte, error) {
	m, ok := vb.handles.memories.get(memory)
	if !ok {
		return nil, errors.Newf("unknown device memory %d", memory)
	}
	if m.Mapped {
		return nil, errors.Newf("device memory %d is already mapped", memory)
	}
	if size > m.Size {
		return nil, errors.Newf("cannot map %d bytes of a %d byte allocation", size, m.Size)
	}

	var data unsafe.Pointer
	if err := vulkanError(vk.MapMemory(vb.logicalDevice(), m.Handle, 0, vk.DeviceSize(size), 0, &data), "vkMapMemory"); err != nil {
		return nil, err
	}
	m.Mapped = true
	return unsafe.Slice((*byte)(data), size), nil
}

func (vb *VulkanBackend) UnmapMemory(memory metadata.DeviceMemory) {
	m, ok := vb.handles.memories.get(memory)
	if !ok || !m.Mapped {
		return
	}
	vk.UnmapMemory(vb.logicalDevice(), m.Handle)
	m.Mapped = false
}
