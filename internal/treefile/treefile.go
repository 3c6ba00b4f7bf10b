// Package treefile reads and writes trees as YAML documents for offline
// editing and fixtures.
package treefile

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/angelstreet/navtree/internal/graph"
	"github.com/angelstreet/navtree/internal/model"
)

// Version is written to every exported document.
const Version = 1

// Document is the on-disk layout.
type Document struct {
	Version int        `yaml:"version"`
	Tree    model.Tree `yaml:"tree"`
}

// Decode parses a document and checks the tree's invariants.
func Decode(r io.Reader) (model.Tree, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var doc Document
	if err := dec.Decode(&doc); err != nil {
		if err == io.EOF {
			return model.Tree{}, fmt.Errorf("empty tree file")
		}
		return model.Tree{}, fmt.Errorf("parse tree file: %w", err)
	}
	if doc.Version != Version {
		return model.Tree{}, fmt.Errorf("unsupported tree file version %d (expected %d)", doc.Version, Version)
	}
	if doc.Tree.ID == "" {
		return model.Tree{}, fmt.Errorf("tree file: tree.id is required")
	}
	store, err := graph.FromTree(doc.Tree)
	if err != nil {
		return model.Tree{}, fmt.Errorf("tree file: %w", err)
	}
	return store.Tree(), nil
}

// Encode writes tree as a YAML document.
func Encode(w io.Writer, tree model.Tree) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(Document{Version: Version, Tree: tree}); err != nil {
		return fmt.Errorf("encode tree file: %w", err)
	}
	return enc.Close()
}

// ReadFile decodes the document at path.
func ReadFile(path string) (model.Tree, error) {
	f, err := os.Open(path)
	if err != nil {
		return model.Tree{}, err
	}
	defer f.Close()
	return Decode(f)
}

// WriteFile encodes tree to path, replacing any existing file.
func WriteFile(path string, tree model.Tree) error {
	var buf bytes.Buffer
	if err := Encode(&buf, tree); err != nil {
		return err
	}
	return os.WriteFile(path, buf.Bytes(), 0o644)
}
