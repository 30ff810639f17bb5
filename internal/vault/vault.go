// Package vault implements the fenced front-matter text file store
// (spec §4.3/§6). A vault file opens with a `---` fenced block of
// YAML scalar `key: value` lines, then a body. Reads preserve unknown
// keys and the body byte-for-byte; writes only touch the declared
// keys and rename atomically so a concurrent reader never observes a
// half-written file. The fence block is parsed and re-emitted through
// gopkg.in/yaml.v3's node API rather than a bespoke scanner, so values
// needing YAML's quoting/escaping rules round-trip correctly.
package vault

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

const fence = "---"

// Metadata is an ordered front-matter key/value set. Values are kept
// as raw strings; callers parse/format the scalar types they need
// (dates as YYYY-MM-DD, booleans as lowercase true/false, floats to
// two decimals for ease factor, per spec §6).
type Metadata struct {
	keys   []string
	values map[string]string
}

// NewMetadata returns an empty ordered Metadata set.
func NewMetadata() *Metadata {
	return &Metadata{values: make(map[string]string)}
}

// Get returns the raw value for key and whether it was present.
func (m *Metadata) Get(key string) (string, bool) {
	v, ok := m.values[key]
	return v, ok
}

// Set inserts or updates key, preserving first-seen order for new keys.
func (m *Metadata) Set(key, value string) {
	if _, ok := m.values[key]; !ok {
		m.keys = append(m.keys, key)
	}
	m.values[key] = value
}

// SetBool writes key as a lowercase "true"/"false" scalar.
func (m *Metadata) SetBool(key string, v bool) {
	m.Set(key, strconv.FormatBool(v))
}

// SetFloat2 writes key with at most two decimals, per spec §6's ease
// factor formatting rule.
func (m *Metadata) SetFloat2(key string, v float64) {
	m.Set(key, strconv.FormatFloat(v, 'f', 2, 64))
}

// SetInt writes key as a decimal integer.
func (m *Metadata) SetInt(key string, v int) {
	m.Set(key, strconv.Itoa(v))
}

// Keys returns the metadata keys in file order.
func (m *Metadata) Keys() []string {
	cp := make([]string, len(m.keys))
	copy(cp, m.keys)
	return cp
}

// Vault reads and atomically updates front-matter files under a root
// directory.
type Vault struct {
	root string
}

// New returns a Vault rooted at dir.
func New(dir string) *Vault {
	return &Vault{root: dir}
}

// Read parses path's front matter and body. Unknown keys are kept in
// Metadata (and thus round-trip through UpdateMetadata unchanged).
func (v *Vault) Read(path string) (*Metadata, string, error) {
	full := filepath.Join(v.root, path)
	raw, err := os.ReadFile(full)
	if err != nil {
		return nil, "", fmt.Errorf("read vault file %s: %w", path, err)
	}
	return parse(string(raw))
}

func parse(content string) (*Metadata, string, error) {
	lines := strings.Split(content, "\n")
	if len(lines) == 0 || strings.TrimSpace(lines[0]) != fence {
		return NewMetadata(), content, nil
	}

	i := 1
	for ; i < len(lines); i++ {
		if strings.TrimSpace(lines[i]) == fence {
			break
		}
	}
	if i >= len(lines) {
		// No closing fence found; treat the whole file as body.
		return NewMetadata(), content, nil
	}

	block := strings.Join(lines[1:i], "\n")
	meta, err := decodeFrontMatter(block)
	if err != nil {
		return nil, "", fmt.Errorf("parse front matter: %w", err)
	}
	body := strings.Join(lines[i+1:], "\n")
	return meta, body, nil
}

// decodeFrontMatter walks a YAML mapping node's Content pairs in file
// order, keeping every scalar's raw string form rather than yaml.v3's
// decoded Go type, since callers parse/format dates, booleans, and
// floats their own way (spec §6).
func decodeFrontMatter(block string) (*Metadata, error) {
	meta := NewMetadata()
	if strings.TrimSpace(block) == "" {
		return meta, nil
	}

	var doc yaml.Node
	if err := yaml.Unmarshal([]byte(block), &doc); err != nil {
		return nil, err
	}
	if len(doc.Content) == 0 {
		return meta, nil
	}
	mapping := doc.Content[0]
	if mapping.Kind != yaml.MappingNode {
		return meta, nil
	}
	for i := 0; i+1 < len(mapping.Content); i += 2 {
		meta.Set(mapping.Content[i].Value, mapping.Content[i+1].Value)
	}
	return meta, nil
}

// encodeFrontMatter renders meta as a flow-free YAML mapping, one
// "key: value" scalar pair per line in Metadata's key order.
func encodeFrontMatter(meta *Metadata) (string, error) {
	mapping := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	for _, k := range meta.Keys() {
		val, _ := meta.Get(k)
		mapping.Content = append(mapping.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: k},
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: val})
	}
	out, err := yaml.Marshal(mapping)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// UpdateMetadata applies patch on top of path's existing metadata
// (preserving unmodified keys and the body) and writes the result via
// a temp file + atomic rename in the same directory.
func (v *Vault) UpdateMetadata(path string, patch map[string]string) error {
	meta, body, err := v.Read(path)
	if err != nil {
		return err
	}
	for k, val := range patch {
		meta.Set(k, val)
	}
	return v.write(path, meta, body)
}

func (v *Vault) write(path string, meta *Metadata, body string) error {
	full := filepath.Join(v.root, path)

	frontMatter, err := encodeFrontMatter(meta)
	if err != nil {
		return fmt.Errorf("encode front matter for %s: %w", path, err)
	}

	var b strings.Builder
	b.WriteString(fence + "\n")
	b.WriteString(frontMatter)
	b.WriteString(fence + "\n")
	b.WriteString(body)

	dir := filepath.Dir(full)
	tmp, err := os.CreateTemp(dir, ".vault-tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file for %s: %w", path, err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.WriteString(b.String()); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write temp file for %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp file for %s: %w", path, err)
	}
	if err := os.Rename(tmpName, full); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("rename temp file for %s: %w", path, err)
	}
	return nil
}

// ListFiles returns vault-relative paths of every regular file under
// dir (relative to the vault root), sorted for deterministic sync
// ordering.
func (v *Vault) ListFiles(dir string) ([]string, error) {
	root := filepath.Join(v.root, dir)
	var out []string
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(v.root, path)
		if err != nil {
			return err
		}
		out = append(out, rel)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list vault files under %s: %w", dir, err)
	}
	sort.Strings(out)
	return out, nil
}
