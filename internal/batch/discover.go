package batch

import (
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// Discover lists documents under folder, relative to the vault root and
// sorted. Globs are matched against paths relative to folder. Excluded
// folders are not descended into. An empty include list means DefaultInclude.
func (p *Processor) Discover(folder string, include, exclude []string) ([]string, error) {
	if len(include) == 0 {
		include = DefaultInclude
	}
	for _, g := range append(append([]string(nil), include...), exclude...) {
		if !doublestar.ValidatePattern(g) {
			return nil, fmt.Errorf("batch: invalid glob %q", g)
		}
	}

	root := strings.Trim(path.Clean("/"+strings.ReplaceAll(folder, "\\", "/")), "/")
	var out []string
	err := p.store.Walk(root, func(rel string, isDir bool) error {
		local := rel
		if root != "" {
			local = strings.TrimPrefix(rel, root+"/")
		}
		if matchAny(exclude, local) {
			if isDir {
				return fs.SkipDir
			}
			return nil
		}
		if !isDir && matchAny(include, local) {
			out = append(out, rel)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("batch: discover %q: %w", folder, err)
	}
	sort.Strings(out)
	return out, nil
}

func matchAny(globs []string, name string) bool {
	for _, g := range globs {
		if ok, _ := doublestar.Match(g, name); ok {
			return true
		}
	}
	return false
}
