package testutil

import "path/filepath"

// CompareDir is the project directory of the Compare fixture.
const CompareDir = "/project"

// CompareFixture returns a project with a .babelrc that extends a JSON5
// file, declares a "foo" env section, and sits next to a package.json whose
// babel field must be ignored. virtual.json holds caller options that extend
// two more files, one of them from inside their own "foo" section.
func CompareFixture() map[string]string {
	return map[string]string{
		"/project/.babelrc": `// project config
{
  extends: './extended-by-babelrc.json5',
  babelrc: false,
  sourceMaps: false,
  plugins: [['plugin', {label: 'plugin@babelrc'}]],
  presets: [['preset', {label: 'preset@babelrc'}]],
  env: {
    foo: {
      plugins: [['env-plugin', {label: 'plugin@babelrc.foo'}], 'plugin-default-opts'],
      presets: [['preset', {label: 'preset@babelrc.foo'}]],
    },
  },
}
`,
		"/project/extended-by-babelrc.json5": `{
  plugins: [['plugin', {label: 'plugin@extended-by-babelrc'}]],
  presets: [['preset', {label: 'preset@extended-by-babelrc'}]],
  env: {
    foo: {
      plugins: [['plugin', {label: 'plugin@extended-by-babelrc.foo'}]],
      presets: [['preset', {label: 'preset@extended-by-babelrc.foo'}]],
    },
  },
}
`,
		"/project/extended-by-virtual.json5": `{
  plugins: [['plugin', {label: 'plugin@extended-by-virtual'}]],
  presets: [['preset', {label: 'preset@extended-by-virtual'}]],
  env: {
    foo: {
      plugins: [['plugin', {label: 'plugin@extended-by-virtual.foo'}]],
      presets: [['preset', {label: 'preset@extended-by-virtual.foo'}]],
    },
  },
}
`,
		"/project/extended-by-virtual-foo.json5": `{
  plugins: [['plugin', {label: 'plugin@extended-by-virtual-foo'}]],
  presets: [['preset', {label: 'preset@extended-by-virtual-foo'}]],
}
`,
		"/project/package.json": `{
  "name": "compare",
  "babel": {"plugins": ["never-resolved"]}
}
`,
		"/project/virtual.json": `{
  "extends": "./extended-by-virtual.json5",
  "sourceMaps": true,
  "plugins": [["plugin", {"label": "plugin@virtual"}]],
  "presets": [["preset", {"label": "preset@virtual"}]],
  "env": {
    "foo": {
      "extends": "./extended-by-virtual-foo.json5",
      "plugins": [["plugin", {"label": "plugin@virtual.foo"}]],
      "presets": [["preset", {"label": "preset@virtual.foo"}]]
    }
  }
}
`,
		"/project/node_modules/plugin/index.js":              "module.exports = function plugin() {}\n",
		"/project/node_modules/preset/index.js":              "module.exports = {}\n",
		"/project/node_modules/env-plugin/index.js":          "module.exports = function envPlugin() {}\n",
		"/project/node_modules/plugin-default-opts/index.js": "module.exports = function pluginDefaultOpts() {}\n",
	}
}

// CompareModule returns the resolved index.js path of a Compare fixture
// module.
func CompareModule(name string) string {
	return filepath.Join(CompareDir, "node_modules", name, "index.js")
}
