package assets

import "github.com/spaghettifunk/texture-renderer/engine/resources"

// Loader reads one resource type from disk.
type Loader interface {
	Load(path string, params interface{}) (*resources.Resource, error)
	Unload(*resources.Resource) error
}
