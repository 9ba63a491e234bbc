package resources

import "github.com/google/uuid"

type ResourceType int

/** @brief Pre-defined resource types. */
const (
	/** @brief Not a resource the engine loads. */
	ResourceTypeNone ResourceType = iota
	/** @brief Binary resource type, SPIR-V shader stages. */
	ResourceTypeBinary
	/** @brief Image resource type, decoded to RGBA8. */
	ResourceTypeImage
	/** @brief Mesh resource type, vertices and indices. */
	ResourceTypeMesh
)

func (t ResourceType) String() string {
	switch t {
	case ResourceTypeBinary:
		return "binary"
	case ResourceTypeImage:
		return "image"
	case ResourceTypeMesh:
		return "mesh"
	}
	return "none"
}

/** @brief Prefix of resources generated in code instead of read from disk. */
const BuiltinPrefix = "builtin:"

/**
 * @brief A generic structure for a resource. All resource loaders
 * load data into these.
 */
type Resource struct {
	ID uuid.UUID
	/** @brief The name of the resource. */
	Name string
	/** @brief The full file path of the resource, empty for builtins. */
	FullPath string
	Type     ResourceType
	/** @brief The size of the resource data in bytes. */
	DataSize uint64
	/**
	 * @brief The resource data: []uint32 for binaries, *renderer.TextureData
	 * for images and *renderer.MeshData for meshes.
	 */
	Data interface{}
}
