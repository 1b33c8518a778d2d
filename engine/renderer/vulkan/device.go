package vulkan

import (
	"runtime"

	"github.com/cockroachdb/errors"
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/vkframe/engine/core"
	"github.com/spaghettifunk/vkframe/engine/renderer/metadata"
)

const portabilitySubsetExtension = "VK_KHR_portability_subset"

type VulkanDevice struct {
	PhysicalDevice     vk.PhysicalDevice
	LogicalDevice      vk.Device
	GraphicsQueueIndex int32
	PresentQueueIndex  int32

	GraphicsQueue vk.Queue
	PresentQueue  vk.Queue

	GraphicsCommandPool vk.CommandPool

	Properties vk.PhysicalDeviceProperties
	Features   vk.PhysicalDeviceFeatures
	Memory     vk.PhysicalDeviceMemoryProperties

	// The memory type table in the renderer's terms, in index order.
	MemoryTypes []metadata.MemoryType
	// Upper bound for the sampler's anisotropy.
	MaxSamplerAnisotropy float32

	lockPool *VulkanLockPool
}

type VulkanPhysicalDeviceRequirements struct {
	Graphics             bool
	Present              bool
	DeviceExtensionNames []string
	SamplerAnisotropy    bool
	DiscreteGPU          bool
}

type VulkanPhysicalDeviceQueueFamilyInfo struct {
	GraphicsFamilyIndex int32
	PresentFamilyIndex  int32
}

func DeviceCreate(context *VulkanContext) error {
	if err := SelectPhysicalDevice(context); err != nil {
		return err
	}
	device := context.Device

	core.LogInfo("Creating logical device...")

	// NOTE: Do not create additional queues for shared indices.
	indices := []uint32{uint32(device.GraphicsQueueIndex)}
	if device.PresentQueueIndex != device.GraphicsQueueIndex {
		indices = append(indices, uint32(device.PresentQueueIndex))
	}

	queueCreateInfos := make([]vk.DeviceQueueCreateInfo, len(indices))
	for i := range indices {
		queueCreateInfos[i] = vk.DeviceQueueCreateInfo{
			SType:            vk.StructureTypeDeviceQueueCreateInfo,
			QueueFamilyIndex: indices[i],
			QueueCount:       1,
			PQueuePriorities: []float32{1.0},
		}
	}

	// Request device features.
	deviceFeatures := vk.PhysicalDeviceFeatures{
		SamplerAnisotropy: vk.True,
	}

	extensionNames := []string{vk.KhrSwapchainExtensionName}
	available, err := deviceExtensions(device.PhysicalDevice)
	if err != nil {
		return err
	}
	if available[portabilitySubsetExtension] {
		core.LogInfo("Adding required extension '%s'.", portabilitySubsetExtension)
		extensionNames = append(extensionNames, portabilitySubsetExtension)
	}

	deviceCreateInfo := vk.DeviceCreateInfo{
		SType:                   vk.StructureTypeDeviceCreateInfo,
		QueueCreateInfoCount:    uint32(len(queueCreateInfos)),
		PQueueCreateInfos:       queueCreateInfos,
		PEnabledFeatures:        []vk.PhysicalDeviceFeatures{deviceFeatures},
		EnabledExtensionCount:   uint32(len(extensionNames)),
		PpEnabledExtensionNames: VulkanSafeStrings(extensionNames),
		// Deprecated and ignored, so pass nothing.
		EnabledLayerCount:   0,
		PpEnabledLayerNames: nil,
	}

	var logicalDevice vk.Device
	if err := vulkanError(vk.CreateDevice(device.PhysicalDevice, &deviceCreateInfo, context.Allocator, &logicalDevice), "vkCreateDevice"); err != nil {
		return err
	}
	device.LogicalDevice = logicalDevice
	core.LogInfo("Logical device created.")

	// Get queues.
	var graphicsQueue, presentQueue vk.Queue
	vk.GetDeviceQueue(device.LogicalDevice, uint32(device.GraphicsQueueIndex), 0, &graphicsQueue)
	vk.GetDeviceQueue(device.LogicalDevice, uint32(device.PresentQueueIndex), 0, &presentQueue)
	device.GraphicsQueue = graphicsQueue
	device.PresentQueue = presentQueue
	device.lockPool.SetQueueFamily(uint32(device.GraphicsQueueIndex))
	device.lockPool.SetQueueFamily(uint32(device.PresentQueueIndex))
	core.LogInfo("Queues obtained.")

	// Create command pool for graphics queue.
	poolCreateInfo := vk.CommandPoolCreateInfo{
		SType:            vk.StructureTypeCommandPoolCreateInfo,
		QueueFamilyIndex: uint32(device.GraphicsQueueIndex),
		Flags:            vk.CommandPoolCreateFlags(vk.CommandPoolCreateResetCommandBufferBit),
	}
	var pool vk.CommandPool
	if err := vulkanError(vk.CreateCommandPool(device.LogicalDevice, &poolCreateInfo, context.Allocator, &pool), "vkCreateCommandPool"); err != nil {
		return err
	}
	device.GraphicsCommandPool = pool
	core.LogInfo("Graphics command pool created.")

	return nil
}

func DeviceDestroy(context *VulkanContext) {
	device := context.Device
	if device == nil {
		return
	}
	// Unset queues
	device.GraphicsQueue = nil
	device.PresentQueue = nil

	if device.GraphicsCommandPool != nil {
		core.LogInfo("Destroying command pools...")
		vk.DestroyCommandPool(device.LogicalDevice, device.GraphicsCommandPool, context.Allocator)
		device.GraphicsCommandPool = nil
	}

	// Destroy logical device
	if device.LogicalDevice != nil {
		core.LogInfo("Destroying logical device...")
		vk.DestroyDevice(device.LogicalDevice, context.Allocator)
		device.LogicalDevice = nil
	}

	// Physical devices are not destroyed.
	device.PhysicalDevice = nil
	device.GraphicsQueueIndex = -1
	device.PresentQueueIndex = -1
}

func SelectPhysicalDevice(context *VulkanContext) error {
	var physicalDeviceCount uint32
	if err := vulkanError(vk.EnumeratePhysicalDevices(context.Instance, &physicalDeviceCount, nil), "vkEnumeratePhysicalDevices"); err != nil {
		return err
	}
	if physicalDeviceCount == 0 {
		return errors.New("no devices which support Vulkan were found")
	}

	physicalDevices := make([]vk.PhysicalDevice, physicalDeviceCount)
	if err := vulkanError(vk.EnumeratePhysicalDevices(context.Instance, &physicalDeviceCount, physicalDevices), "vkEnumeratePhysicalDevices"); err != nil {
		return err
	}

	requirements := VulkanPhysicalDeviceRequirements{
		Graphics:             true,
		Present:              true,
		SamplerAnisotropy:    true,
		DiscreteGPU:          true,
		DeviceExtensionNames: []string{vk.KhrSwapchainExtensionName},
	}
	if runtime.GOOS == "darwin" {
		requirements.DiscreteGPU = false
	}

	// A discrete GPU wins; otherwise the first device meeting the other
	// requirements is taken.
	selected := -1
	var selectedQueues VulkanPhysicalDeviceQueueFamilyInfo
	for _, discreteOnly := range []bool{requirements.DiscreteGPU, false} {
		req := requirements
		req.DiscreteGPU = discreteOnly
		for i := range physicalDevices {
			var properties vk.PhysicalDeviceProperties
			vk.GetPhysicalDeviceProperties(physicalDevices[i], &properties)
			properties.Deref()

			var features vk.PhysicalDeviceFeatures
			vk.GetPhysicalDeviceFeatures(physicalDevices[i], &features)
			features.Deref()

			queues, ok := PhysicalDeviceMeetsRequirements(physicalDevices[i], context.Surface, &properties, &features, &req)
			if ok {
				selected = i
				selectedQueues = queues
				break
			}
		}
		if selected >= 0 || !requirements.DiscreteGPU {
			break
		}
		core.LogInfo("No discrete GPU meets the requirements, trying every device.")
	}
	if selected < 0 {
		return errors.New("no physical devices were found which meet the requirements")
	}

	device := context.Device
	device.PhysicalDevice = physicalDevices[selected]
	device.GraphicsQueueIndex = selectedQueues.GraphicsFamilyIndex
	device.PresentQueueIndex = selectedQueues.PresentFamilyIndex

	var properties vk.PhysicalDeviceProperties
	vk.GetPhysicalDeviceProperties(device.PhysicalDevice, &properties)
	properties.Deref()
	properties.Limits.Deref()
	var features vk.PhysicalDeviceFeatures
	vk.GetPhysicalDeviceFeatures(device.PhysicalDevice, &features)
	features.Deref()
	var memory vk.PhysicalDeviceMemoryProperties
	vk.GetPhysicalDeviceMemoryProperties(device.PhysicalDevice, &memory)
	memory.Deref()

	// Keep a copy of properties, features and memory info for later use.
	device.Properties = properties
	device.Features = features
	device.Memory = memory
	device.MaxSamplerAnisotropy = properties.Limits.MaxSamplerAnisotropy

	logDeviceInfo(&properties, &memory)

	device.MemoryTypes = make([]metadata.MemoryType, memory.MemoryTypeCount)
	for i := uint32(0); i < memory.MemoryTypeCount; i++ {
		memory.MemoryTypes[i].Deref()
		device.MemoryTypes[i] = metadata.MemoryType{
			PropertyFlags: metadata.MemoryPropertyFlags(memory.MemoryTypes[i].PropertyFlags),
			HeapIndex:     memory.MemoryTypes[i].HeapIndex,
		}
	}

	core.LogInfo("Physical device selected.")
	return nil
}

func logDeviceInfo(properties *vk.PhysicalDeviceProperties, memory *vk.PhysicalDeviceMemoryProperties) {
	core.LogInfo("Selected device: '%s'.", fixedString(properties.DeviceName[:]))
	// GPU type, etc.
	switch properties.DeviceType {
	case vk.PhysicalDeviceTypeIntegratedGpu:
		core.LogInfo("GPU type is Integrated.")
	case vk.PhysicalDeviceTypeDiscreteGpu:
		core.LogInfo("GPU type is Discrete.")
	case vk.PhysicalDeviceTypeVirtualGpu:
		core.LogInfo("GPU type is Virtual.")
	case vk.PhysicalDeviceTypeCpu:
		core.LogInfo("GPU type is CPU.")
	default:
		core.LogInfo("GPU type is Unknown.")
	}

	core.LogInfo(
		"GPU Driver version: %d.%d.%d",
		vk.Version(properties.DriverVersion).Major(),
		vk.Version(properties.DriverVersion).Minor(),
		vk.Version(properties.DriverVersion).Patch(),
	)
	core.LogInfo(
		"Vulkan API version: %d.%d.%d",
		vk.Version(properties.ApiVersion).Major(),
		vk.Version(properties.ApiVersion).Minor(),
		vk.Version(properties.ApiVersion).Patch(),
	)

	// Memory information
	for j := uint32(0); j < memory.MemoryHeapCount; j++ {
		memory.MemoryHeaps[j].Deref()
		memorySizeGib := float64(memory.MemoryHeaps[j].Size) / 1024.0 / 1024.0 / 1024.0
		if vk.MemoryHeapFlagBits(memory.MemoryHeaps[j].Flags)&vk.MemoryHeapDeviceLocalBit != 0 {
			core.LogInfo("Local GPU memory: %.2f GiB", memorySizeGib)
		} else {
			core.LogInfo("Shared System memory: %.2f GiB", memorySizeGib)
		}
	}
}

func PhysicalDeviceMeetsRequirements(
	device vk.PhysicalDevice,
	surface vk.Surface,
	properties *vk.PhysicalDeviceProperties,
	features *vk.PhysicalDeviceFeatures,
	requirements *VulkanPhysicalDeviceRequirements,
) (VulkanPhysicalDeviceQueueFamilyInfo, bool) {
	queueInfo := VulkanPhysicalDeviceQueueFamilyInfo{
		GraphicsFamilyIndex: -1,
		PresentFamilyIndex:  -1,
	}
	name := fixedString(properties.DeviceName[:])

	if requirements.DiscreteGPU && properties.DeviceType != vk.PhysicalDeviceTypeDiscreteGpu {
		core.LogInfo("Device '%s' is not a discrete GPU, and one is required. Skipping.", name)
		return queueInfo, false
	}

	var queueFamilyCount uint32
	vk.GetPhysicalDeviceQueueFamilyProperties(device, &queueFamilyCount, nil)
	queueFamilies := make([]vk.QueueFamilyProperties, queueFamilyCount)
	vk.GetPhysicalDeviceQueueFamilyProperties(device, &queueFamilyCount, queueFamilies)

	for i := uint32(0); i < queueFamilyCount; i++ {
		queueFamilies[i].Deref()
		graphics := vk.QueueFlagBits(queueFamilies[i].QueueFlags)&vk.QueueGraphicsBit != 0
		if graphics && queueInfo.GraphicsFamilyIndex < 0 {
			queueInfo.GraphicsFamilyIndex = int32(i)
		}

		var supportsPresent vk.Bool32 = vk.False
		if res := vk.GetPhysicalDeviceSurfaceSupport(device, i, surface, &supportsPresent); res != vk.Success {
			return queueInfo, false
		}
		// Prefer a family that does both, so the swapchain can be exclusive.
		if supportsPresent == vk.True && (queueInfo.PresentFamilyIndex < 0 || (graphics && queueInfo.GraphicsFamilyIndex == int32(i))) {
			queueInfo.PresentFamilyIndex = int32(i)
		}
	}

	core.LogDebug("Device '%s': graphics family %d, present family %d.", name, queueInfo.GraphicsFamilyIndex, queueInfo.PresentFamilyIndex)
	if (requirements.Graphics && queueInfo.GraphicsFamilyIndex < 0) || (requirements.Present && queueInfo.PresentFamilyIndex < 0) {
		core.LogInfo("Device '%s' lacks the required queues, skipping.", name)
		return queueInfo, false
	}

	// Query swapchain support.
	formats, err := querySurfaceFormats(device, surface)
	if err != nil {
		return queueInfo, false
	}
	modes, err := queryPresentModes(device, surface)
	if err != nil {
		return queueInfo, false
	}
	if len(formats) == 0 || len(modes) == 0 {
		core.LogInfo("Required swapchain support not present, skipping device.")
		return queueInfo, false
	}

	// Device extensions.
	if len(requirements.DeviceExtensionNames) > 0 {
		available, err := deviceExtensions(device)
		if err != nil {
			return queueInfo, false
		}
		for _, required := range requirements.DeviceExtensionNames {
			if !available[required] {
				core.LogInfo("Required extension not found: '%s', skipping device.", required)
				return queueInfo, false
			}
		}
	}

	// Sampler anisotropy
	if requirements.SamplerAnisotropy && features.SamplerAnisotropy == vk.False {
		core.LogInfo("Device does not support samplerAnisotropy, skipping.")
		return queueInfo, false
	}

	core.LogInfo("Device '%s' meets the requirements.", name)
	return queueInfo, true
}

// deviceExtensions returns the set of extension names the device offers.
func deviceExtensions(device vk.PhysicalDevice) (map[string]bool, error) {
	var count uint32
	if err := vulkanError(vk.EnumerateDeviceExtensionProperties(device, "", &count, nil), "vkEnumerateDeviceExtensionProperties"); err != nil {
		return nil, err
	}
	available := make(map[string]bool, count)
	if count == 0 {
		return available, nil
	}
	extensions := make([]vk.ExtensionProperties, count)
	if err := vulkanError(vk.EnumerateDeviceExtensionProperties(device, "", &count, extensions), "vkEnumerateDeviceExtensionProperties"); err != nil {
		return nil, err
	}
	for i := range extensions {
		extensions[i].Deref()
		available[fixedString(extensions[i].ExtensionName[:])] = true
	}
	return available, nil
}
