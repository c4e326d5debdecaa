package rules

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/Cyberappy/Hayabusa-setup/pkg/sigma"
)

// Loaded is one successfully parsed rule file. Raw keeps the source bytes
// for keyword prefiltering.
type Loaded struct {
	Path string
	Raw  []byte
	Rule *sigma.Rule
}

// Skipped is a rule file that could not be read or parsed. The driver
// decides whether skipping is acceptable.
type Skipped struct {
	Path string
	Err  error
}

func isYAML(p string) bool {
	l := strings.ToLower(p)
	return strings.HasSuffix(l, ".yml") || strings.HasSuffix(l, ".yaml")
}

// LoadDirRecursive walks root and parses every .yml/.yaml file. Unparseable
// files are collected as skipped instead of aborting the walk.
func LoadDirRecursive(root string) ([]Loaded, []Skipped, error) {
	var loaded []Loaded
	var skipped []Skipped

	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !isYAML(p) {
			return nil
		}
		b, err := os.ReadFile(p)
		if err != nil {
			skipped = append(skipped, Skipped{Path: p, Err: err})
			return nil
		}
		r, err := sigma.ParseRule(b)
		if err != nil {
			skipped = append(skipped, Skipped{Path: p, Err: err})
			return nil
		}
		loaded = append(loaded, Loaded{Path: p, Raw: b, Rule: r})
		return nil
	})
	if err != nil {
		return loaded, skipped, err
	}
	return loaded, skipped, nil
}
