package schema

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Definition is a compiled schema together with its source documents, which
// are kept to report the expected value of a violated rule.
type Definition struct {
	Key string

	root     any
	subs     map[string]map[string]any
	compiled *jsonschema.Schema
}

// Validate checks instance against the schema. Any Go value that encodes to
// JSON is accepted; a non-conforming instance yields a *Violation.
func (d *Definition) Validate(instance any) error {
	doc, err := normalize(instance)
	if err != nil {
		return fmt.Errorf("normalize instance: %w", err)
	}

	err = d.compiled.Validate(doc)
	if err == nil {
		return nil
	}

	verr, ok := err.(*jsonschema.ValidationError)
	if !ok {
		return fmt.Errorf("validate against %s: %w", d.Key, err)
	}
	return d.violation(doc, verr)
}

func (d *Definition) violation(doc any, verr *jsonschema.ValidationError) *Violation {
	leaves := collectLeaves(verr, nil)
	sort.SliceStable(leaves, func(i, j int) bool {
		if leaves[i].InstanceLocation != leaves[j].InstanceLocation {
			return leaves[i].InstanceLocation < leaves[j].InstanceLocation
		}
		return leaves[i].KeywordLocation < leaves[j].KeywordLocation
	})
	leaf := leaves[0]

	v := &Violation{
		Message:    leaf.Message,
		Path:       leaf.InstanceLocation,
		SchemaPath: leaf.KeywordLocation,
		Rule:       lastSegment(leaf.KeywordLocation),
		Others:     len(leaves) - 1,
	}
	v.RuleValue, _ = d.lookupSchema(leaf.KeywordLocation)
	v.Instance, _ = lookup(doc, leaf.InstanceLocation)

	if v.Rule == "required" {
		if missing := firstMissing(v.Instance, v.RuleValue); missing != "" {
			v.Path = leaf.InstanceLocation + "/" + escapeToken(missing)
		}
	}
	return v
}

// Template renders an empty instance holding the schema's required properties
// in declaration order, used as a starting point for manual entry.
func (d *Definition) Template() string {
	root, _ := d.root.(map[string]any)
	props, _ := root["properties"].(map[string]any)
	required, _ := root["required"].([]any)

	var buf bytes.Buffer
	buf.WriteString("{")
	written := 0
	for _, r := range required {
		name, ok := r.(string)
		if !ok {
			continue
		}
		if written > 0 {
			buf.WriteString(",")
		}
		key, _ := json.Marshal(name)
		fmt.Fprintf(&buf, "\n  %s: %s", key, d.zeroValue(props[name]))
		written++
	}
	if written > 0 {
		buf.WriteString("\n")
	}
	buf.WriteString("}")
	return buf.String()
}

func (d *Definition) zeroValue(prop any) string {
	node, _ := prop.(map[string]any)
	if ref, ok := node["$ref"].(string); ok {
		if target, ok := d.resolve(ref); ok {
			node, _ = target.(map[string]any)
		}
	}

	kind := node["type"]
	if kinds, ok := kind.([]any); ok && len(kinds) > 0 {
		kind = kinds[0]
	}
	switch kind {
	case "string":
		return `""`
	case "array":
		return "[]"
	case "object":
		return "{}"
	default:
		return "null"
	}
}

// lookupSchema follows a keyword location through the schema documents,
// stepping into the target of every $ref it passes.
func (d *Definition) lookupSchema(ptr string) (any, bool) {
	tokens := splitPointer(ptr)
	cur := d.root
	for i, tok := range tokens {
		node, ok := cur.(map[string]any)
		if ok && tok == "$ref" && i < len(tokens)-1 {
			ref, _ := node["$ref"].(string)
			if cur, ok = d.resolve(ref); !ok {
				return nil, false
			}
			continue
		}
		if cur, ok = step(cur, tok); !ok {
			return nil, false
		}
	}
	return cur, true
}

func (d *Definition) resolve(ref string) (any, bool) {
	target, frag, _ := strings.Cut(ref, "#")
	var doc any = d.root
	if target != "" {
		sub, ok := d.subs[target]
		if !ok {
			return nil, false
		}
		doc = sub
	}
	return lookup(doc, frag)
}

func collectLeaves(e *jsonschema.ValidationError, out []*jsonschema.ValidationError) []*jsonschema.ValidationError {
	if len(e.Causes) == 0 {
		return append(out, e)
	}
	for _, c := range e.Causes {
		out = collectLeaves(c, out)
	}
	return out
}

func firstMissing(instance, required any) string {
	obj, ok := instance.(map[string]any)
	if !ok {
		return ""
	}
	names, _ := required.([]any)
	for _, n := range names {
		name, ok := n.(string)
		if !ok {
			continue
		}
		if _, present := obj[name]; !present {
			return name
		}
	}
	return ""
}

func normalize(instance any) (any, error) {
	raw, err := json.Marshal(instance)
	if err != nil {
		return nil, err
	}
	return decodeDocument(raw)
}

func lookup(doc any, ptr string) (any, bool) {
	cur := doc
	for _, tok := range splitPointer(ptr) {
		var ok bool
		if cur, ok = step(cur, tok); !ok {
			return nil, false
		}
	}
	return cur, true
}

func step(cur any, tok string) (any, bool) {
	switch node := cur.(type) {
	case map[string]any:
		next, ok := node[tok]
		return next, ok
	case []any:
		idx, err := strconv.Atoi(tok)
		if err != nil || idx < 0 || idx >= len(node) {
			return nil, false
		}
		return node[idx], true
	default:
		return nil, false
	}
}

func splitPointer(ptr string) []string {
	ptr = strings.TrimPrefix(ptr, "#")
	if ptr == "" || ptr == "/" {
		return nil
	}
	parts := strings.Split(strings.TrimPrefix(ptr, "/"), "/")
	for i, p := range parts {
		parts[i] = unescapeToken(p)
	}
	return parts
}

func lastSegment(ptr string) string {
	tokens := splitPointer(ptr)
	if len(tokens) == 0 {
		return ""
	}
	return tokens[len(tokens)-1]
}

func escapeToken(s string) string {
	return strings.ReplaceAll(strings.ReplaceAll(s, "~", "~0"), "/", "~1")
}

func unescapeToken(s string) string {
	return strings.ReplaceAll(strings.ReplaceAll(s, "~1", "/"), "~0", "~")
}
