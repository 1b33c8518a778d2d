package metadata

// The numeric values of the enums and flags in this file are the ones defined
// by the Vulkan registry, so a backend can convert them with a plain cast.

/** @brief A pixel format. */
type Format int32

const (
	FormatUndefined         Format = 0
	FormatB5G6R5UnormPack16 Format = 5
	FormatR8G8B8A8Unorm     Format = 37
	FormatB8G8R8A8Unorm     Format = 44
	FormatB8G8R8A8Srgb      Format = 50
	FormatR32G32Sfloat      Format = 103
	FormatR32G32B32Sfloat   Format = 106
	FormatD32Sfloat         Format = 126
	FormatD24UnormS8Uint    Format = 129
	FormatD32SfloatS8Uint   Format = 130
)

// HasStencil reports whether a depth format also carries a stencil component.
func (f Format) HasStencil() bool {
	return f == FormatD32SfloatS8Uint || f == FormatD24UnormS8Uint
}

/** @brief The color space a presentation engine interprets surface images in. */
type ColorSpace int32

const (
	ColorSpaceSrgbNonlinear ColorSpace = 0
)

/** @brief A (format, color space) pair supported by a surface. */
type SurfaceFormat struct {
	Format     Format
	ColorSpace ColorSpace
}

/** @brief The presentation mode of a swapchain. */
type PresentMode int32

const (
	PresentModeImmediate   PresentMode = 0
	PresentModeMailbox     PresentMode = 1
	PresentModeFifo        PresentMode = 2
	PresentModeFifoRelaxed PresentMode = 3
)

func (m PresentMode) String() string {
	switch m {
	case PresentModeImmediate:
		return "IMMEDIATE"
	case PresentModeMailbox:
		return "MAILBOX"
	case PresentModeFifo:
		return "FIFO"
	case PresentModeFifoRelaxed:
		return "FIFO_RELAXED"
	default:
		return "UNKNOWN"
	}
}

/** @brief Memory property flags of a memory type. */
type MemoryPropertyFlags uint32

const (
	MemoryPropertyDeviceLocal  MemoryPropertyFlags = 0x1
	MemoryPropertyHostVisible  MemoryPropertyFlags = 0x2
	MemoryPropertyHostCoherent MemoryPropertyFlags = 0x4
	MemoryPropertyHostCached   MemoryPropertyFlags = 0x8
)

/** @brief Allowed usages of a buffer. */
type BufferUsageFlags uint32

const (
	BufferUsageTransferSrc   BufferUsageFlags = 0x1
	BufferUsageTransferDst   BufferUsageFlags = 0x2
	BufferUsageUniformBuffer BufferUsageFlags = 0x10
	BufferUsageIndexBuffer   BufferUsageFlags = 0x40
	BufferUsageVertexBuffer  BufferUsageFlags = 0x80
)

/** @brief Allowed usages of an image. */
type ImageUsageFlags uint32

const (
	ImageUsageTransferSrc            ImageUsageFlags = 0x1
	ImageUsageTransferDst            ImageUsageFlags = 0x2
	ImageUsageSampled                ImageUsageFlags = 0x4
	ImageUsageColorAttachment        ImageUsageFlags = 0x10
	ImageUsageDepthStencilAttachment ImageUsageFlags = 0x20
)

/** @brief Which aspects of an image a view or barrier covers. */
type ImageAspectFlags uint32

const (
	ImageAspectColor   ImageAspectFlags = 0x1
	ImageAspectDepth   ImageAspectFlags = 0x2
	ImageAspectStencil ImageAspectFlags = 0x4
)

/** @brief The layout of an image's memory. */
type ImageLayout int32

const (
	ImageLayoutUndefined                     ImageLayout = 0
	ImageLayoutColorAttachmentOptimal        ImageLayout = 2
	ImageLayoutDepthStencilAttachmentOptimal ImageLayout = 3
	ImageLayoutShaderReadOnlyOptimal         ImageLayout = 5
	ImageLayoutTransferDstOptimal            ImageLayout = 7
	ImageLayoutPresentSrc                    ImageLayout = 1000001002
)

/** @brief Pipeline stages, used for barriers and semaphore waits. */
type PipelineStageFlags uint32

const (
	PipelineStageTopOfPipe             PipelineStageFlags = 0x1
	PipelineStageEarlyFragmentTests    PipelineStageFlags = 0x100
	PipelineStageLateFragmentTests     PipelineStageFlags = 0x200
	PipelineStageFragmentShader        PipelineStageFlags = 0x80
	PipelineStageColorAttachmentOutput PipelineStageFlags = 0x400
	PipelineStageTransfer              PipelineStageFlags = 0x1000
)

/** @brief Memory access types, used for barriers. */
type AccessFlags uint32

const (
	AccessShaderRead                  AccessFlags = 0x20
	AccessColorAttachmentWrite        AccessFlags = 0x100
	AccessDepthStencilAttachmentWrite AccessFlags = 0x400
	AccessTransferWrite               AccessFlags = 0x1000
)

/** @brief Shader stages a descriptor is visible to. */
type ShaderStageFlags uint32

const (
	ShaderStageVertex   ShaderStageFlags = 0x1
	ShaderStageFragment ShaderStageFlags = 0x10
)

/** @brief The type of a descriptor binding. */
type DescriptorType int32

const (
	DescriptorTypeCombinedImageSampler DescriptorType = 1
	DescriptorTypeUniformBuffer        DescriptorType = 6
)

/** @brief How swapchain images are shared between queue families. */
type SharingMode int32

const (
	SharingModeExclusive  SharingMode = 0
	SharingModeConcurrent SharingMode = 1
)
