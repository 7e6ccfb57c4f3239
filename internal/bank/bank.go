// Package bank holds the curated interview question catalogue.
//
// A Bank is built once at startup and never mutated afterwards, so it can be
// shared by concurrent sessions without locking.
package bank

import (
	"crypto/sha256"
	_ "embed"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// GenericTag is the category used to top up a technical pool that is too
// small for the requested count.
const GenericTag = "problem solving"

//go:embed questions.yaml
var defaultBankYAML []byte

// Category is a tagged, ordered list of technical questions.
type Category struct {
	Tag       string   `yaml:"tag"`
	Questions []string `yaml:"questions"`
}

type document struct {
	Technical  []Category `yaml:"technical"`
	Management []string   `yaml:"management"`
}

// Bank is an immutable catalogue of technical categories and a flat
// behavioral pool.
type Bank struct {
	categories []Category
	index      map[string]int
	management []string
}

// Default parses the embedded question bank.
func Default() (*Bank, error) {
	return Parse(defaultBankYAML)
}

// MustDefault is like Default but panics on a malformed embedded bank.
func MustDefault() *Bank {
	b, err := Default()
	if err != nil {
		panic(err)
	}
	return b
}

// Load reads a bank from a YAML file and returns it with the hex sha256 of
// the file. An empty path yields the embedded bank.
func Load(path string) (*Bank, string, error) {
	data := defaultBankYAML
	if path != "" {
		var err error
		if data, err = os.ReadFile(path); err != nil {
			return nil, "", fmt.Errorf("read bank %s: %w", path, err)
		}
	}
	b, err := Parse(data)
	if err != nil {
		return nil, "", fmt.Errorf("parse bank %s: %w", path, err)
	}
	sum := sha256.Sum256(data)
	return b, hex.EncodeToString(sum[:]), nil
}

// Parse builds a bank from YAML. Category order is preserved; tags are
// lower-cased and must be unique.
func Parse(data []byte) (*Bank, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode yaml: %w", err)
	}
	return New(doc.Technical, doc.Management)
}

// New builds a bank from already-loaded data. Inputs are copied.
func New(technical []Category, management []string) (*Bank, error) {
	b := &Bank{
		categories: make([]Category, 0, len(technical)),
		index:      make(map[string]int, len(technical)),
		management: cleanList(management),
	}
	for _, c := range technical {
		tag := strings.ToLower(strings.TrimSpace(c.Tag))
		if tag == "" {
			return nil, errors.New("category with empty tag")
		}
		if _, dup := b.index[tag]; dup {
			return nil, fmt.Errorf("duplicate category %q", tag)
		}
		b.index[tag] = len(b.categories)
		b.categories = append(b.categories, Category{Tag: tag, Questions: cleanList(c.Questions)})
	}
	return b, nil
}

func cleanList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// Tags returns the category tags in bank order.
func (b *Bank) Tags() []string {
	tags := make([]string, len(b.categories))
	for i, c := range b.categories {
		tags[i] = c.Tag
	}
	return tags
}

// CategoriesMatching returns, in bank order, every tag that is a substring of
// skill or of which skill is a substring, compared case-insensitively.
func (b *Bank) CategoriesMatching(skill string) []string {
	s := strings.ToLower(skill)
	var tags []string
	for _, c := range b.categories {
		if strings.Contains(s, c.Tag) || strings.Contains(c.Tag, s) {
			tags = append(tags, c.Tag)
		}
	}
	return tags
}

// Questions returns a copy of the questions for tag, or nil if unknown.
func (b *Bank) Questions(tag string) []string {
	i, ok := b.index[strings.ToLower(tag)]
	if !ok {
		return nil
	}
	return append([]string(nil), b.categories[i].Questions...)
}

// Management returns a copy of the behavioral pool.
func (b *Bank) Management() []string {
	return append([]string(nil), b.management...)
}

// Size returns the total number of technical and behavioral questions.
func (b *Bank) Size() int {
	n := len(b.management)
	for _, c := range b.categories {
		n += len(c.Questions)
	}
	return n
}
