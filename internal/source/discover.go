package source

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ignite/churn-radar/internal/datanorm"
)

// DiscoverDir builds a Set from the CSV files in dir, assigning each file
// to a source by name or header. Every source must be matched exactly once.
func DiscoverDir(dir string, c *datanorm.Classifier) (Set, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return Set{}, err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() && strings.EqualFold(filepath.Ext(e.Name()), ".csv") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	found := make(map[datanorm.Source]string, len(datanorm.Sources))
	for _, name := range names {
		path := filepath.Join(dir, name)
		header, err := readHeader(path)
		if err != nil {
			return Set{}, fmt.Errorf("%s: %w", path, err)
		}
		src, ok := c.Classify(name, header)
		if !ok {
			continue
		}
		if prev, dup := found[src]; dup {
			return Set{}, fmt.Errorf("both %s and %s look like %s data", prev, path, src)
		}
		found[src] = path
	}

	var set Set
	for _, src := range datanorm.Sources {
		path, ok := found[src]
		if !ok {
			return Set{}, fmt.Errorf("no %s file found in %s", src, dir)
		}
		l := FileLoader{Source: src, Path: path}
		switch src {
		case datanorm.SourceSubscription:
			set.Subscription = l
		case datanorm.SourceEngagement:
			set.Engagement = l
		case datanorm.SourceSupport:
			set.Support = l
		}
	}
	return set, nil
}

func readHeader(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	header, _, err := datanorm.PeekHeader(f)
	return header, err
}
