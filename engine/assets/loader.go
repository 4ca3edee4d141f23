package assets

type AssetType int

const (
	AssetTypeNone AssetType = iota
	// Shader binding descriptors, *.bindings.toml
	AssetTypeBindings
)

type Loader interface {
	// Load parses the asset at path. The result type depends on the loader.
	Load(path string) (interface{}, error)
}
