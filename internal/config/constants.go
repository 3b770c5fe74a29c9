package config

// Configuration sources looked up in every directory.
const (
	BabelrcFilename = ".babelrc"
	PackageFilename = "package.json"
	PackageField    = "babel"
)

// Option keys with structural meaning. Every other key is a scalar.
const (
	FieldPlugins = "plugins"
	FieldPresets = "presets"
	FieldEnv     = "env"
	FieldExtends = "extends"
	FieldBabelrc = "babelrc"
)
