package vulkan

import (
	"github.com/cockroachdb/errors"
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/vkframe/engine/renderer/metadata"
)

/**
 * @brief Creates a shader module from SPIR-V code. The code length has to be
 * a multiple of four bytes.
 */
func (vb *VulkanBackend) CreateShaderModule(code []byte) (metadata.ShaderModule, error) {
	if len(code) == 0 || len(code)%4 != 0 {
		return 0, errors.Newf("invalid SPIR-V code size %d", len(code))
	}

	createInfo := vk.ShaderModuleCreateInfo{
		SType:    vk.StructureTypeShaderModuleCreateInfo,
		CodeSize: uint(len(code)),
		PCode:    sliceUint32(code),
	}

	var module vk.ShaderModule
	if err := vulkanError(vk.CreateShaderModule(vb.logicalDevice(), &createInfo, vb.context.Allocator, &module), "vkCreateShaderModule"); err != nil {
		return 0, err
	}
	return vb.handles.shaderModules.add(module), nil
}

func (vb *VulkanBackend) DestroyShaderModule(module metadata.ShaderModule) {
	if handle, ok := vb.handles.shaderModules.remove(module); ok {
		vk.DestroyShaderModule(vb.logicalDevice(), handle, vb.context.Allocator)
	}
}
