package schema

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/url"
	"path"
	"regexp"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

const (
	// RegexScheme names the $ref scheme backed by pattern files.
	RegexScheme = "regex"

	schemaSuffix = ".schema.json"
	regexSuffix  = ".regex"
	baseURL      = "file:///schema/"
)

// ErrUnknownScheme is returned for a $ref whose scheme has no resolver.
var ErrUnknownScheme = errors.New("no resolver for reference scheme")

// Resolver turns the name part of a custom reference into a sub-schema.
type Resolver interface {
	Resolve(name string) (map[string]any, error)
}

// ResolverFunc adapts a function to Resolver.
type ResolverFunc func(name string) (map[string]any, error)

// Resolve implements Resolver.
func (f ResolverFunc) Resolve(name string) (map[string]any, error) { return f(name) }

// Validator loads schema documents by key and caches their compiled form.
type Validator struct {
	fsys      fs.FS
	resolvers map[string]Resolver

	mu    sync.Mutex
	cache map[string]*Definition
}

// NewValidator reads <key>.schema.json documents from fsys and resolves
// regex://name references from regex/<name>.regex in the same tree.
func NewValidator(fsys fs.FS) *Validator {
	v := &Validator{
		fsys:      fsys,
		resolvers: map[string]Resolver{},
		cache:     map[string]*Definition{},
	}
	v.Register(RegexScheme, RegexResolver(fsys, "regex"))
	return v
}

// Register adds or replaces the resolver for a reference scheme.
func (v *Validator) Register(scheme string, r Resolver) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.resolvers[strings.ToLower(scheme)] = r
	v.cache = map[string]*Definition{}
}

// Load returns the compiled schema stored under key.
func (v *Validator) Load(key string) (*Definition, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if def, ok := v.cache[key]; ok {
		return def, nil
	}

	def, err := v.compile(key)
	if err != nil {
		return nil, err
	}
	v.cache[key] = def
	return def, nil
}

func (v *Validator) compile(key string) (*Definition, error) {
	name := key + schemaSuffix
	raw, err := fs.ReadFile(v.fsys, name)
	if err != nil {
		return nil, &ResolveError{Ref: name, Err: err}
	}

	root, err := decodeDocument(raw)
	if err != nil {
		return nil, fmt.Errorf("parse schema %s: %w", name, err)
	}

	subs := map[string]map[string]any{}
	if err := v.resolveRefs(root, subs); err != nil {
		return nil, err
	}

	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft2020
	compiler.LoadURL = v.loadURL

	for ref, sub := range subs {
		body, err := json.Marshal(sub)
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", ref, err)
		}
		if err := compiler.AddResource(ref, bytes.NewReader(body)); err != nil {
			return nil, fmt.Errorf("add resource %s: %w", ref, err)
		}
	}

	mainURL := baseURL + name
	if err := compiler.AddResource(mainURL, bytes.NewReader(raw)); err != nil {
		return nil, fmt.Errorf("add schema %s: %w", name, err)
	}

	compiled, err := compiler.Compile(mainURL)
	if err != nil {
		var rerr *ResolveError
		if errors.As(err, &rerr) {
			return nil, rerr
		}
		var serr *jsonschema.SchemaError
		if errors.As(err, &serr) && errors.As(serr.Err, &rerr) {
			return nil, rerr
		}
		return nil, fmt.Errorf("compile schema %s: %w", name, err)
	}

	return &Definition{Key: key, root: root, subs: subs, compiled: compiled}, nil
}

// resolveRefs walks doc and resolves every custom-scheme $ref into subs.
func (v *Validator) resolveRefs(doc any, subs map[string]map[string]any) error {
	switch node := doc.(type) {
	case map[string]any:
		if ref, ok := node["$ref"].(string); ok {
			if err := v.resolveRef(ref, subs); err != nil {
				return err
			}
		}
		for _, child := range node {
			if err := v.resolveRefs(child, subs); err != nil {
				return err
			}
		}
	case []any:
		for _, child := range node {
			if err := v.resolveRefs(child, subs); err != nil {
				return err
			}
		}
	}
	return nil
}

func (v *Validator) resolveRef(ref string, subs map[string]map[string]any) error {
	u, err := url.Parse(ref)
	if err != nil {
		return &ResolveError{Ref: ref, Err: err}
	}
	if u.Scheme == "" {
		// Fragment or relative reference, handled by the compiler.
		return nil
	}

	target := strings.SplitN(ref, "#", 2)[0]
	if _, done := subs[target]; done {
		return nil
	}

	resolver, ok := v.resolvers[strings.ToLower(u.Scheme)]
	if !ok {
		return &ResolveError{Ref: ref, Err: ErrUnknownScheme}
	}

	name := strings.Trim(u.Host+u.Path, "/")
	sub, err := resolver.Resolve(name)
	if err != nil {
		return &ResolveError{Ref: ref, Err: err}
	}
	subs[target] = sub
	return v.resolveRefs(sub, subs)
}

// loadURL serves sibling schema files; everything else is unresolvable so
// that compilation never reaches out to the network.
func (v *Validator) loadURL(s string) (io.ReadCloser, error) {
	if name, ok := strings.CutPrefix(s, baseURL); ok && fs.ValidPath(name) {
		f, err := v.fsys.Open(name)
		if err != nil {
			return nil, &ResolveError{Ref: s, Err: err}
		}
		return f, nil
	}
	return nil, &ResolveError{Ref: s, Err: ErrUnknownScheme}
}

// RegexResolver loads named patterns from dir/<name>.regex in fsys.
func RegexResolver(fsys fs.FS, dir string) Resolver {
	return ResolverFunc(func(name string) (map[string]any, error) {
		if name == "" || strings.ContainsAny(name, `/\`) {
			return nil, fmt.Errorf("invalid pattern name %q", name)
		}
		raw, err := fs.ReadFile(fsys, path.Join(dir, name+regexSuffix))
		if err != nil {
			return nil, err
		}
		pattern := strings.TrimSpace(string(raw))
		if _, err := regexp.Compile(pattern); err != nil {
			return nil, fmt.Errorf("pattern %s: %w", name, err)
		}
		return map[string]any{"type": "string", "pattern": pattern}, nil
	})
}

func decodeDocument(raw []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return nil, err
	}
	return doc, nil
}
