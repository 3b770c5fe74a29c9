// Package codegen renders a reduced configuration tree as a standalone Lua
// module. The module exposes getOptions(), which picks the branch for the
// active environment at call time.
package codegen

import (
	"bytes"
	"fmt"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/ZebulonRouseFrantzich/rcchain/internal/chain"
	"github.com/ZebulonRouseFrantzich/rcchain/internal/config"
	"github.com/ZebulonRouseFrantzich/rcchain/internal/envname"
	"github.com/ZebulonRouseFrantzich/rcchain/internal/format"
	"github.com/ZebulonRouseFrantzich/rcchain/internal/luamod"
	"github.com/ZebulonRouseFrantzich/rcchain/internal/reduce"
)

// Header is the first line of every generated module.
const Header = "-- Code generated by rcchain. DO NOT EDIT."

// Generator generates Lua modules from reduced trees.
type Generator struct {
	indent string // Indentation string (default: two spaces)
}

// NewGenerator creates a new module generator.
func NewGenerator() *Generator {
	return &Generator{
		indent: "  ", // Two spaces
	}
}

// Generate renders tree. The same tree always yields the same text.
func (g *Generator) Generate(tree *reduce.Tree) string {
	var buf bytes.Buffer

	buf.WriteString(Header)
	buf.WriteString("\n\nlocal M = {}\n\n")

	// getenv treats empty variables as unset.
	buf.WriteString("local function getenv(name)\n")
	buf.WriteString(g.indent + "local value = os.getenv(name)\n")
	buf.WriteString(g.indent + "if value == nil or value == \"\" then\n")
	buf.WriteString(g.indent + g.indent + "return nil\n")
	buf.WriteString(g.indent + "end\n")
	buf.WriteString(g.indent + "return value\n")
	buf.WriteString("end\n\n")

	// Lua tables cannot hold nil or tell an empty list from an empty
	// object, so both are marked for the loader.
	buf.WriteString("local null = setmetatable({}, {" + luamod.MarkerField + " = \"" + luamod.MarkerNull + "\"})\n")
	buf.WriteString("local arrayMeta = {" + luamod.MarkerField + " = \"" + luamod.MarkerArray + "\"}\n")
	buf.WriteString("local function array(t)\n")
	buf.WriteString(g.indent + "return setmetatable(t, arrayMeta)\n")
	buf.WriteString("end\n\n")

	buf.WriteString("local function defaultOptions()\n")
	g.writeReturn(&buf, optionsTable(tree, tree.Scalars, nil, ""))
	buf.WriteString("end\n\n")

	buf.WriteString("local envOptions = {}\n")
	for _, name := range tree.EnvNames() {
		top := tree.Env[name]
		buf.WriteString("\nenvOptions[")
		buf.WriteString(quote(name, format.Strict))
		buf.WriteString("] = function()\n")
		g.writeReturn(&buf, optionsTable(top, tree.Scalars, top.Env[name], name))
		buf.WriteString("end\n")
	}

	buf.WriteString("\nfunction M.getOptions()\n")
	buf.WriteString(g.indent + "local envName = ")
	for _, v := range envname.Vars {
		buf.WriteString("getenv(" + quote(v, format.Strict) + ") or ")
	}
	buf.WriteString(quote(envname.Default, format.Strict) + "\n")
	buf.WriteString(g.indent + "local options = envOptions[envName]\n")
	buf.WriteString(g.indent + "if options ~= nil then\n")
	buf.WriteString(g.indent + g.indent + "return options()\n")
	buf.WriteString(g.indent + "end\n")
	buf.WriteString(g.indent + "return defaultOptions()\n")
	buf.WriteString("end\n\n")

	buf.WriteString("return M\n")
	return buf.String()
}

func (g *Generator) writeReturn(buf *bytes.Buffer, t *table) {
	buf.WriteString(g.indent)
	buf.WriteString("return ")
	g.writeNode(buf, t, 1)
	buf.WriteString("\n")
}

// Rendering model: tables hold keyed or positional fields; everything else
// is a literal rendered in its own format.

type table struct {
	fields []field
	array  bool
}

type field struct {
	key    string
	keyed  bool
	format format.Format
	value  any // *table or literal
}

type literal struct {
	value  any
	format format.Format
}

func (t *table) set(key string, f format.Format, value any) {
	t.fields = append(t.fields, field{key: key, keyed: true, format: f, value: value})
}

func (t *table) push(value any) {
	t.fields = append(t.fields, field{value: value})
}

// optionsTable builds one options object: lists's plugins and presets, the
// given scalars, and next nested under env[name].
func optionsTable(lists *reduce.Tree, scalars map[string]reduce.Scalar, next *reduce.Tree, name string) *table {
	t := &table{}
	if len(lists.Plugins) > 0 {
		t.set(config.FieldPlugins, lists.Format, refList(lists.Plugins))
	}
	if len(lists.Presets) > 0 {
		t.set(config.FieldPresets, lists.Format, refList(lists.Presets))
	}

	keys := make([]string, 0, len(scalars))
	for k := range scalars {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		s := scalars[k]
		t.set(k, s.Format, valueNode(s.Value, s.Format))
	}

	if next != nil {
		env := &table{}
		env.set(name, next.Format, optionsTable(next, next.Scalars, next.Env[name], name))
		t.set(config.FieldEnv, lists.Format, env)
	}
	return t
}

func refList(refs []chain.PluginRef) *table {
	t := &table{}
	for _, ref := range refs {
		t.push(refNode(ref))
	}
	return t
}

// refNode renders a plugin entry as its path, or as {path, options[, label]}.
// A label without options gets an empty options table so the label keeps
// its position.
func refNode(ref chain.PluginRef) any {
	path := literal{value: ref.Path, format: ref.Format}
	if !ref.HasOptions && ref.Label == "" {
		return path
	}

	t := &table{}
	t.push(path)
	if ref.HasOptions {
		t.push(valueNode(ref.Options, ref.Format))
	} else {
		t.push(&table{})
	}
	if ref.Label != "" {
		t.push(literal{value: ref.Label, format: ref.Format})
	}
	return t
}

// valueNode converts a decoded configuration value.
func valueNode(v any, f format.Format) any {
	switch val := v.(type) {
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		t := &table{}
		for _, k := range keys {
			t.set(k, f, valueNode(val[k], f))
		}
		return t
	case []any:
		t := &table{array: true}
		for _, item := range val {
			t.push(valueNode(item, f))
		}
		return t
	default:
		return literal{value: v, format: f}
	}
}

func (g *Generator) writeNode(buf *bytes.Buffer, n any, depth int) {
	switch node := n.(type) {
	case *table:
		if len(node.fields) == 0 {
			if node.array {
				buf.WriteString("array({})")
			} else {
				buf.WriteString("{}")
			}
			return
		}
		buf.WriteString("{\n")
		for _, f := range node.fields {
			buf.WriteString(strings.Repeat(g.indent, depth+1))
			if f.keyed {
				buf.WriteString(tableKey(f.key, f.format))
				buf.WriteString(" = ")
			}
			g.writeNode(buf, f.value, depth+1)
			buf.WriteString(",\n")
		}
		buf.WriteString(strings.Repeat(g.indent, depth))
		buf.WriteString("}")
	case literal:
		buf.WriteString(formatLiteral(node.value, node.format))
	}
}

var identifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

var luaKeywords = map[string]bool{
	"and": true, "break": true, "do": true, "else": true, "elseif": true,
	"end": true, "false": true, "for": true, "function": true, "goto": true,
	"if": true, "in": true, "local": true, "nil": true, "not": true,
	"or": true, "repeat": true, "return": true, "then": true, "true": true,
	"until": true, "while": true,
}

// tableKey renders a table key. Strict keys are always bracketed and
// double-quoted; relaxed keys are bare when they are legal identifiers.
func tableKey(key string, f format.Format) string {
	if f == format.Relaxed && identifier.MatchString(key) && !luaKeywords[key] {
		return key
	}
	return "[" + quote(key, f) + "]"
}

func formatLiteral(v any, f format.Format) string {
	switch val := v.(type) {
	case nil:
		return "null"
	case bool:
		return strconv.FormatBool(val)
	case string:
		return quote(val, f)
	case float64:
		return formatFloat(val)
	case float32:
		return formatFloat(float64(val))
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case uint64:
		return strconv.FormatUint(val, 10)
	default:
		return quote(fmt.Sprint(val), f)
	}
}

func formatFloat(v float64) string {
	switch {
	case math.IsNaN(v):
		return "(0/0)"
	case math.IsInf(v, 1):
		return "math.huge"
	case math.IsInf(v, -1):
		return "-math.huge"
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// quote quotes a string for Lua: double quotes in strict format, single
// quotes in relaxed format.
func quote(s string, f format.Format) string {
	q := byte('\'')
	if f == format.Strict {
		q = '"'
	}

	var b strings.Builder
	b.Grow(len(s) + 2)
	b.WriteByte(q)
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch c {
		case '\\':
			b.WriteString(`\\`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\t':
			b.WriteString(`\t`)
		case q:
			b.WriteByte('\\')
			b.WriteByte(c)
		default:
			if c < 0x20 || c == 0x7f {
				fmt.Fprintf(&b, "\\%03d", c)
			} else {
				b.WriteByte(c)
			}
		}
	}
	b.WriteByte(q)
	return b.String()
}
