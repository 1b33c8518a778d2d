package metadata

type ResourceType int

/** @brief Pre-defined resource types. */
const (
	/** @brief Not a resource the asset manager knows how to load. */
	ResourceTypeNone ResourceType = iota
	/** @brief Raw binary resource type. */
	ResourceTypeBinary
	/** @brief Pre-compiled SPIR-V shader blob. */
	ResourceTypeShader
	/** @brief Image resource type, decoded and converted to packed texels. */
	ResourceTypeImage
)

func (t ResourceType) String() string {
	switch t {
	case ResourceTypeBinary:
		return "binary"
	case ResourceTypeShader:
		return "shader"
	case ResourceTypeImage:
		return "image"
	default:
		return "none"
	}
}

/**
 * @brief A generic structure for a resource. All resource loaders
 * load data into these.
 */
type Resource struct {
	/** @brief The name of the resource. */
	Name string
	/** @brief The full file path of the resource. */
	FullPath string
	/** @brief The resource type. */
	Type ResourceType
	/** @brief The size of the resource data in bytes. */
	DataSize uint64
	/** @brief The resource data: []byte for shaders and binaries, *TextureData for images. */
	Data interface{}
}
