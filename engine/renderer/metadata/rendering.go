package metadata

/** @brief Determines face culling mode during rendering. */
type FaceCullMode int

const (
	/** @brief No faces are culled. */
	FaceCullModeNone FaceCullMode = 0x0
	/** @brief Only front faces are culled. */
	FaceCullModeFront FaceCullMode = 0x1
	/** @brief Only back faces are culled. */
	FaceCullModeBack FaceCullMode = 0x2
	/** @brief Both front and back faces are culled. */
	FaceCullModeFrontAndBack FaceCullMode = 0x3
)

/**
 * @brief What the presentation engine reported about the swapchain when an
 * image was acquired or presented.
 */
type SurfaceStatus int

const (
	/** @brief The swapchain matches the surface. */
	SurfaceOptimal SurfaceStatus = iota
	/** @brief The swapchain still works but no longer matches the surface exactly. */
	SurfaceSuboptimal
	/** @brief The swapchain can no longer be used with the surface. */
	SurfaceOutOfDate
)

func (s SurfaceStatus) String() string {
	switch s {
	case SurfaceOptimal:
		return "optimal"
	case SurfaceSuboptimal:
		return "suboptimal"
	case SurfaceOutOfDate:
		return "out-of-date"
	default:
		return "unknown"
	}
}

/** @brief Clear values used when a render pass begins. */
type ClearValues struct {
	Color   [4]float32
	Depth   float32
	Stencil uint32
}

/** @brief A single queue submission of one command buffer. */
type SubmitInfo struct {
	CommandBuffer CommandBuffer
	/** @brief Semaphore waited on before WaitStage executes. May be null. */
	WaitSemaphore Semaphore
	WaitStage     PipelineStageFlags
	/** @brief Semaphore signaled on completion. May be null. */
	SignalSemaphore Semaphore
	/** @brief Fence signaled on completion. May be null. */
	Fence Fence
}

/** @brief A single presentation request. */
type PresentInfo struct {
	WaitSemaphore Semaphore
	Swapchain     Swapchain
	ImageIndex    uint32
}

/** @brief An image layout transition recorded into a command buffer. */
type ImageBarrier struct {
	Image     Image
	Aspect    ImageAspectFlags
	OldLayout ImageLayout
	NewLayout ImageLayout
	SrcAccess AccessFlags
	DstAccess AccessFlags
	SrcStage  PipelineStageFlags
	DstStage  PipelineStageFlags
}

/** @brief A single descriptor binding of a descriptor-set layout. */
type DescriptorBinding struct {
	Binding uint32
	Type    DescriptorType
	Stages  ShaderStageFlags
}

/** @brief The resources written into a descriptor set. */
type DescriptorWrite struct {
	UniformBuffer Buffer
	UniformRange  uint64
	ImageView     ImageView
	Sampler       Sampler
}

/** @brief Describes one vertex attribute inside the single vertex binding. */
type VertexAttribute struct {
	Location uint32
	Format   Format
	Offset   uint32
}

/** @brief Everything needed to build the fixed graphics pipeline. */
type PipelineInfo struct {
	RenderPass     RenderPass
	Layout         PipelineLayout
	VertexShader   ShaderModule
	FragmentShader ShaderModule
	VertexStride   uint32
	Attributes     []VertexAttribute
	CullMode       FaceCullMode
	DepthTest      bool
	DepthWrite     bool
}

/** @brief The attachments of the single render pass. */
type RenderPassInfo struct {
	ColorFormat Format
	DepthFormat Format
}
