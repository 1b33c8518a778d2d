package metadata

/** @brief A two-dimensional size in pixels. */
type Extent struct {
	Width  uint32
	Height uint32
}

// IsZero reports whether either dimension is zero, which is the case while
// the window is minimized.
func (e Extent) IsZero() bool {
	return e.Width == 0 || e.Height == 0
}

/** @brief The parameters of a two-dimensional, single mip, optimally tiled image. */
type ImageInfo struct {
	Extent Extent
	Format Format
	Usage  ImageUsageFlags
}

/** @brief The memory requirements of a buffer or an image. */
type MemoryRequirements struct {
	Size      uint64
	Alignment uint64
	/** @brief Bit i is set if memory type i can back the resource. */
	MemoryTypeBits uint32
}

/** @brief One entry of the device's memory type table. */
type MemoryType struct {
	PropertyFlags MemoryPropertyFlags
	HeapIndex     uint32
}

/** @brief What the surface supports, as reported by the presentation engine. */
type SurfaceCapabilities struct {
	MinImageCount uint32
	/** @brief Zero means there is no limit. */
	MaxImageCount uint32
	/** @brief Width is math.MaxUint32 when the surface lets the swapchain decide. */
	CurrentExtent  Extent
	MinImageExtent Extent
	MaxImageExtent Extent
}

/** @brief Everything needed to create a swapchain. */
type SwapchainInfo struct {
	MinImageCount uint32
	Format        SurfaceFormat
	PresentMode   PresentMode
	Extent        Extent
	SharingMode   SharingMode
	/** @brief Queue family indices, only used with SharingModeConcurrent. */
	QueueFamilies []uint32
}
