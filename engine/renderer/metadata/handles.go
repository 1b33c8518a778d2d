package metadata

/**
 * @brief An opaque reference to an object owned by the graphics backend.
 * The zero value never refers to a live object.
 */
type Handle uint64

/** @brief The null handle. */
const NullHandle Handle = 0

type (
	Buffer              Handle
	DeviceMemory        Handle
	Image               Handle
	ImageView           Handle
	Sampler             Handle
	Framebuffer         Handle
	RenderPass          Handle
	Swapchain           Handle
	Fence               Handle
	Semaphore           Handle
	CommandBuffer       Handle
	ShaderModule        Handle
	DescriptorSetLayout Handle
	DescriptorPool      Handle
	DescriptorSet       Handle
	PipelineLayout      Handle
	Pipeline            Handle
)
