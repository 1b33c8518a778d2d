package vulkan

import (
	"github.com/cockroachdb/errors"
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/vkframe/engine/renderer/metadata"
)

/** @brief A descriptor set and the pool it was allocated from. */
type vulkanDescriptorSet struct {
	Handle vk.DescriptorSet
	// The set goes away together with this pool.
	Pool metadata.DescriptorPool
	// Binding number per descriptor type, taken from the layout.
	uniformBinding uint32
	samplerBinding uint32
}

/** @brief A descriptor set layout and the bindings it was created from. */
type vulkanSetLayout struct {
	Handle   vk.DescriptorSetLayout
	Bindings []metadata.DescriptorBinding
}

func (vb *VulkanBackend) CreateDescriptorSetLayout(bindings []metadata.DescriptorBinding) (metadata.DescriptorSetLayout, error) {
	layoutBindings := make([]vk.DescriptorSetLayoutBinding, len(bindings))
	for i, b := range bindings {
		layoutBindings[i] = vk.DescriptorSetLayoutBinding{
			Binding:            b.Binding,
			DescriptorType:     vk.DescriptorType(b.Type),
			DescriptorCount:    1,
			StageFlags:         vk.ShaderStageFlags(b.Stages),
			PImmutableSamplers: nil,
		}
	}

	layoutInfo := vk.DescriptorSetLayoutCreateInfo{
		SType:        vk.StructureTypeDescriptorSetLayoutCreateInfo,
		BindingCount: uint32(len(layoutBindings)),
		PBindings:    layoutBindings,
	}

	var layout vk.DescriptorSetLayout
	if err := vulkanError(vk.CreateDescriptorSetLayout(vb.logicalDevice(), &layoutInfo, vb.context.Allocator, &layout), "vkCreateDescriptorSetLayout"); err != nil {
		return 0, err
	}
	stored := append([]metadata.DescriptorBinding(nil), bindings...)
	return vb.handles.setLayouts.add(&vulkanSetLayout{Handle: layout, Bindings: stored}), nil
}

func (vb *VulkanBackend) DestroyDescriptorSetLayout(layout metadata.DescriptorSetLayout) {
	if l, ok := vb.handles.setLayouts.remove(layout); ok {
		vk.DestroyDescriptorSetLayout(vb.logicalDevice(), l.Handle, vb.context.Allocator)
	}
}

/**
 * @brief Creates a pool sized for maxSets sets with the given bindings: every
 * binding contributes maxSets descriptors of its type.
 */
func (vb *VulkanBackend) CreateDescriptorPool(bindings []metadata.DescriptorBinding, maxSets uint32) (metadata.DescriptorPool, error) {
	counts := make(map[metadata.DescriptorType]uint32)
	order := make([]metadata.DescriptorType, 0, len(bindings))
	for _, b := range bindings {
		if _, seen := counts[b.Type]; !seen {
			order = append(order, b.Type)
		}
		counts[b.Type] += maxSets
	}

	poolSizes := make([]vk.DescriptorPoolSize, len(order))
	for i, t := range order {
		poolSizes[i] = vk.DescriptorPoolSize{
			Type:            vk.DescriptorType(t),
			DescriptorCount: counts[t],
		}
	}

	poolInfo := vk.DescriptorPoolCreateInfo{
		SType:         vk.StructureTypeDescriptorPoolCreateInfo,
		MaxSets:       maxSets,
		PoolSizeCount: uint32(len(poolSizes)),
		PPoolSizes:    poolSizes,
	}

	var pool vk.DescriptorPool
	err := vb.lockPool.SafeCall(ResourceManagement, func() error {
		return vulkanError(vk.CreateDescriptorPool(vb.logicalDevice(), &poolInfo, vb.context.Allocator, &pool), "vkCreateDescriptorPool")
	})
	if err != nil {
		return 0, err
	}
	return vb.handles.descriptorPools.add(pool), nil
}

// DestroyDescriptorPool also invalidates every set allocated from the pool.
func (vb *VulkanBackend) DestroyDescriptorPool(pool metadata.DescriptorPool) {
	handle, ok := vb.handles.descriptorPools.remove(pool)
	if !ok {
		return
	}
	vb.handles.descriptorSets.removeIf(func(s vulkanDescriptorSet) bool {
		return s.Pool == pool
	})
	_ = vb.lockPool.SafeCall(ResourceManagement, func() error {
		vk.DestroyDescriptorPool(vb.logicalDevice(), handle, vb.context.Allocator)
		return nil
	})
}

func (vb *VulkanBackend) AllocateDescriptorSets(pool metadata.DescriptorPool, layout metadata.DescriptorSetLayout, count uint32) ([]metadata.DescriptorSet, error) {
	if count == 0 {
		return nil, nil
	}
	poolHandle, ok := vb.handles.descriptorPools.get(pool)
	if !ok {
		return nil, errors.Newf("unknown descriptor pool %d", pool)
	}
	setLayout, ok := vb.handles.setLayouts.get(layout)
	if !ok {
		return nil, errors.Newf("unknown descriptor set layout %d", layout)
	}

	allocateInfo := vk.DescriptorSetAllocateInfo{
		SType:              vk.StructureTypeDescriptorSetAllocateInfo,
		DescriptorPool:     poolHandle,
		DescriptorSetCount: 1,
		PSetLayouts:        []vk.DescriptorSetLayout{setLayout.Handle},
	}

	sets := make([]vk.DescriptorSet, count)
	err := vb.lockPool.SafeCall(ResourceManagement, func() error {
		for i := range sets {
			if err := vulkanError(vk.AllocateDescriptorSets(vb.logicalDevice(), &allocateInfo, &sets[i]), "vkAllocateDescriptorSets"); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	set := vulkanDescriptorSet{Pool: pool}
	for _, b := range setLayout.Bindings {
		switch b.Type {
		case metadata.DescriptorTypeUniformBuffer:
			set.uniformBinding = b.Binding
		case metadata.DescriptorTypeCombinedImageSampler:
			set.samplerBinding = b.Binding
		}
	}

	out := make([]metadata.DescriptorSet, count)
	for i, s := range sets {
		set.Handle = s
		out[i] = vb.handles.descriptorSets.add(set)
	}
	return out, nil
}

/**
 * @brief Points the set at a uniform buffer range and a sampled image. Either
 * part is skipped when its handle is null.
 */
func (vb *VulkanBackend) UpdateDescriptorSet(set metadata.DescriptorSet, write metadata.DescriptorWrite) {
	s, ok := vb.handles.descriptorSets.get(set)
	if !ok {
		return
	}

	writes := make([]vk.WriteDescriptorSet, 0, 2)
	if buffer, ok := vb.handles.buffers.get(write.UniformBuffer); ok {
		writes = append(writes, vk.WriteDescriptorSet{
			SType:           vk.StructureTypeWriteDescriptorSet,
			DstSet:          s.Handle,
			DstBinding:      s.uniformBinding,
			DstArrayElement: 0,
			DescriptorCount: 1,
			DescriptorType:  vk.DescriptorTypeUniformBuffer,
			PBufferInfo: []vk.DescriptorBufferInfo{{
				Buffer: buffer,
				Offset: 0,
				Range:  vk.DeviceSize(write.UniformRange),
			}},
		})
	}
	view, hasView := vb.handles.views.get(write.ImageView)
	sampler, hasSampler := vb.handles.samplers.get(write.Sampler)
	if hasView && hasSampler {
		writes = append(writes, vk.WriteDescriptorSet{
			SType:           vk.StructureTypeWriteDescriptorSet,
			DstSet:          s.Handle,
			DstBinding:      s.samplerBinding,
			DstArrayElement: 0,
			DescriptorCount: 1,
			DescriptorType:  vk.DescriptorTypeCombinedImageSampler,
			PImageInfo: []vk.DescriptorImageInfo{{
				Sampler:     sampler,
				ImageView:   view,
				ImageLayout: vk.ImageLayoutShaderReadOnlyOptimal,
			}},
		})
	}
	if len(writes) == 0 {
		return
	}
	vk.UpdateDescriptorSets(vb.logicalDevice(), uint32(len(writes)), writes, 0, nil)
}

func (vb *VulkanBackend) CmdBindDescriptorSet(cb metadata.CommandBuffer, layout metadata.PipelineLayout, set metadata.DescriptorSet) {
	handle, ok := vb.recording(cb)
	if !ok {
		return
	}
	pipelineLayout, ok := vb.handles.pipelineLayouts.get(layout)
	if !ok {
		return
	}
	s, ok := vb.handles.descriptorSets.get(set)
	if !ok {
		return
	}
	vk.CmdBindDescriptorSets(handle, vk.PipelineBindPointGraphics, pipelineLayout, 0, 1, []vk.DescriptorSet{s.Handle}, 0, nil)
}
