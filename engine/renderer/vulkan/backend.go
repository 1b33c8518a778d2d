package vulkan

import (
	"runtime"
	"unsafe"

	"github.com/cockroachdb/errors"
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/vkframe/engine/core"
	"github.com/spaghettifunk/vkframe/engine/renderer"
)

var _ renderer.Device = (*VulkanBackend)(nil)

/**
 * @brief The window system side the backend needs: the loader entry point,
 * the instance extensions the window requires and surface creation.
 */
type Window interface {
	InstanceProcAddr() unsafe.Pointer
	RequiredInstanceExtensions() []string
	/** @brief Creates a VkSurfaceKHR for instance and returns its raw handle. */
	CreateSurface(instance interface{}) (uintptr, error)
}

/**
 * @brief Implements the renderer's device contract on top of Vulkan. The
 * renderer only ever sees opaque handles; the Vulkan objects behind them
 * live in the handle tables.
 */
type VulkanBackend struct {
	window  Window
	context *VulkanContext
	handles *handleTables

	lockPool *VulkanLockPool

	debug bool
}

func New(window Window, debug bool) *VulkanBackend {
	return &VulkanBackend{
		window: window,
		context: &VulkanContext{
			Allocator: nil,
		},
		handles:  newHandleTables(),
		lockPool: NewVulkanLockPool(),
		debug:    debug,
	}
}

func (vb *VulkanBackend) logicalDevice() vk.Device {
	return vb.context.Device.LogicalDevice
}

/**
 * @brief Creates the instance, the optional validation callback, the surface
 * and the device. Any failure is a fatal setup error; whatever was created
 * up to that point is destroyed again.
 */
func (vb *VulkanBackend) Initialize(appName string) (err error) {
	defer func() {
		if err != nil {
			vb.Destroy()
			err = core.FatalSetup(err)
		}
	}()

	procAddr := vb.window.InstanceProcAddr()
	if procAddr == nil {
		return errors.New("GetInstanceProcAddress is nil")
	}
	vk.SetGetInstanceProcAddr(procAddr)

	if err := vk.Init(); err != nil {
		return errors.Wrap(err, "failed to initialize vk")
	}

	// TODO: custom allocator.
	vb.context.Allocator = nil

	// Setup Vulkan instance.
	appInfo := &vk.ApplicationInfo{
		SType:              vk.StructureTypeApplicationInfo,
		ApiVersion:         uint32(vk.MakeVersion(1, 0, 0)),
		ApplicationVersion: uint32(vk.MakeVersion(1, 0, 0)),
		PApplicationName:   VulkanSafeString(appName),
		PEngineName:        VulkanSafeString("vkframe"),
	}

	createInfo := vk.InstanceCreateInfo{
		SType:            vk.StructureTypeInstanceCreateInfo,
		PApplicationInfo: appInfo,
	}

	// Obtain a list of required extensions
	requiredExtensions := []string{"VK_KHR_surface"} // Generic surface extension
	requiredExtensions = append(requiredExtensions, vb.window.RequiredInstanceExtensions()...)

	if runtime.GOOS == "darwin" {
		requiredExtensions = append(requiredExtensions,
			"VK_KHR_portability_enumeration",
			"VK_KHR_get_physical_device_properties2",
		)
		// VK_INSTANCE_CREATE_ENUMERATE_PORTABILITY_BIT_KHR
		createInfo.Flags |= 1
	}

	if vb.debug {
		requiredExtensions = append(requiredExtensions, vk.ExtDebugReportExtensionName) // debug utilities
		core.LogInfo("Required extensions:")
		for _, name := range requiredExtensions {
			core.LogInfo(name)
		}
	}

	createInfo.EnabledExtensionCount = uint32(len(requiredExtensions))
	createInfo.PpEnabledExtensionNames = VulkanSafeStrings(requiredExtensions)

	// Validation layers.
	requiredValidationLayerNames := []string{}

	// If validation should be done, get a list of the required validation layer names
	// and make sure they exist. Validation layers should only be enabled on non-release builds.
	if vb.debug {
		core.LogInfo("Validation layers enabled. Enumerating...")

		// The list of validation layers required.
		requiredValidationLayerNames = []string{"VK_LAYER_KHRONOS_validation"}
		if err := checkValidationLayers(requiredValidationLayerNames); err != nil {
			return err
		}
		core.LogInfo("All required validation layers are present.")
	}

	createInfo.EnabledLayerCount = uint32(len(requiredValidationLayerNames))
	createInfo.PpEnabledLayerNames = VulkanSafeStrings(requiredValidationLayerNames)

	var instance vk.Instance
	if err := vulkanError(vk.CreateInstance(&createInfo, vb.context.Allocator, &instance), "vkCreateInstance"); err != nil {
		return err
	}
	vb.context.Instance = instance
	if err := vk.InitInstance(vb.context.Instance); err != nil {
		return errors.Wrap(err, "failed to initialize the Vulkan instance")
	}

	core.LogInfo("Vulkan Instance created.")

	// Debugger
	if vb.debug {
		core.LogDebug("Creating Vulkan debugger...")

		debugCreateInfo := vk.DebugReportCallbackCreateInfo{
			SType:       vk.StructureTypeDebugReportCallbackCreateInfo,
			Flags:       vk.DebugReportFlags(vk.DebugReportErrorBit | vk.DebugReportWarningBit | vk.DebugReportPerformanceWarningBit),
			PfnCallback: dbgCallbackFunc,
			PNext:       nil,
		}

		var dbg vk.DebugReportCallback
		if err := vulkanError(vk.CreateDebugReportCallback(vb.context.Instance, &debugCreateInfo, nil, &dbg), "vkCreateDebugReportCallbackEXT"); err != nil {
			return err
		}
		vb.context.debugMessenger = dbg

		core.LogDebug("Vulkan debugger created.")
	}

	// Surface
	core.LogDebug("Creating Vulkan surface...")
	surface, err := vb.window.CreateSurface(vb.context.Instance)
	if err != nil {
		return errors.Wrap(err, "failed to create platform surface")
	}
	if surface == 0 {
		return errors.New("failed to create platform surface")
	}
	vb.context.Surface = vk.SurfaceFromPointer(surface)
	core.LogDebug("Vulkan surface created.")

	// Device creation
	vb.context.Device = &VulkanDevice{
		GraphicsQueueIndex: -1,
		PresentQueueIndex:  -1,
		lockPool:           vb.lockPool,
	}
	if err := DeviceCreate(vb.context); err != nil {
		return errors.Wrap(err, "failed to create device")
	}

	core.LogInfo("Vulkan backend initialized successfully.")
	return nil
}

func checkValidationLayers(required []string) error {
	// Obtain a list of available validation layers
	var availableLayerCount uint32
	if err := vulkanError(vk.EnumerateInstanceLayerProperties(&availableLayerCount, nil), "vkEnumerateInstanceLayerProperties"); err != nil {
		return err
	}
	availableLayers := make([]vk.LayerProperties, availableLayerCount)
	if err := vulkanError(vk.EnumerateInstanceLayerProperties(&availableLayerCount, availableLayers), "vkEnumerateInstanceLayerProperties"); err != nil {
		return err
	}

	// Verify all required layers are available.
	for _, name := range required {
		core.LogInfo("Searching for layer: %s...", name)
		found := false
		for j := range availableLayers {
			availableLayers[j].Deref()
			if name == fixedString(availableLayers[j].LayerName[:]) {
				found = true
				core.LogInfo("Found.")
				break
			}
		}
		if !found {
			return errors.Newf("required validation layer is missing: %s", name)
		}
	}
	return nil
}

/**
 * @brief Waits for the device to go idle and destroys the device, the
 * surface and the instance. Objects the renderer still owns are reported.
 * Safe to call on a partially initialized backend.
 */
func (vb *VulkanBackend) Destroy() {
	if vb.context.Device != nil && vb.context.Device.LogicalDevice != nil {
		if err := vb.WaitIdle(); err != nil {
			core.LogWarn("vkDeviceWaitIdle failed during shutdown: %s", err)
		}
		if live := vb.handles.live(); live > 0 {
			core.LogWarn("%d Vulkan objects are still alive at shutdown.", live)
		}
	}

	// Destroy in the opposite order of creation.
	core.LogDebug("Destroying Vulkan device...")
	DeviceDestroy(vb.context)
	vb.context.Device = nil

	if vb.context.Surface != vk.NullSurface {
		core.LogDebug("Destroying Vulkan surface...")
		vk.DestroySurface(vb.context.Instance, vb.context.Surface, vb.context.Allocator)
		vb.context.Surface = vk.NullSurface
	}

	if vb.context.debugMessenger != vk.NullDebugReportCallback {
		core.LogDebug("Destroying Vulkan debugger...")
		vk.DestroyDebugReportCallback(vb.context.Instance, vb.context.debugMessenger, vb.context.Allocator)
		vb.context.debugMessenger = vk.NullDebugReportCallback
	}

	if vb.context.Instance != nil {
		core.LogDebug("Destroying Vulkan instance...")
		vk.DestroyInstance(vb.context.Instance, vb.context.Allocator)
		vb.context.Instance = nil
	}
}

// WaitIdle holds both queue locks so no submission or presentation can race
// with the wait.
func (vb *VulkanBackend) WaitIdle() error {
	device := vb.context.Device
	wait := func() error {
		return vulkanError(vk.DeviceWaitIdle(device.LogicalDevice), "vkDeviceWaitIdle")
	}
	graphics, present := uint32(device.GraphicsQueueIndex), uint32(device.PresentQueueIndex)
	if graphics == present {
		return vb.lockPool.SafeQueueCall(graphics, wait)
	}
	return vb.lockPool.SafeQueueCall(graphics, func() error {
		return vb.lockPool.SafeQueueCall(present, wait)
	})
}

func dbgCallbackFunc(flags vk.DebugReportFlags, objectType vk.DebugReportObjectType, object uint64, location uint64, messageCode int32, pLayerPrefix string, pMessage string, pUserData unsafe.Pointer) vk.Bool32 {
	switch {
	case flags&vk.DebugReportFlags(vk.DebugReportErrorBit) != 0:
		core.LogError("ERROR: [%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	case flags&vk.DebugReportFlags(vk.DebugReportWarningBit) != 0:
		core.LogWarn("WARNING: [%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	case flags&vk.DebugReportFlags(vk.DebugReportPerformanceWarningBit) != 0:
		core.LogWarn("PERFORMANCE WARNING: [%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	case flags&vk.DebugReportFlags(vk.DebugReportDebugBit) != 0:
		core.LogDebug("DEBUG: [%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	default:
		core.LogInfo("INFORMATION: [%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	}
	return vk.Bool32(vk.False)
}
