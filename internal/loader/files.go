package loader

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// DiscoverStateFiles expands the glob pattern and returns the matching
// regular files sorted by path, one file per state.
func DiscoverStateFiles(pattern string) ([]string, error) {
	matches, err := doublestar.FilepathGlob(pattern)
	if err != nil {
		return nil, fmt.Errorf("expand state file glob %q: %w", pattern, err)
	}

	var files []string
	for _, name := range matches {
		info, err := os.Lstat(name)
		if err != nil {
			continue
		}
		if info.Mode().IsRegular() {
			files = append(files, name)
		}
	}

	sort.Strings(files)
	return files, nil
}

// StateCodeFromPath derives the state code from a data file path: the base
// name up to the first dot, uppercased. "data/states/oh.TXT" yields "OH".
func StateCodeFromPath(path string) string {
	base := filepath.Base(path)
	if idx := strings.IndexByte(base, '.'); idx >= 0 {
		base = base[:idx]
	}
	return strings.ToUpper(base)
}

// ReadLines reads a file into raw lines. Malformed lines are kept; the record
// parser decides what to skip.
func ReadLines(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	return lines, nil
}

// ReadSupplementaryNames reads the supplementary name list: one name per
// line, blank lines ignored, order preserved.
func ReadSupplementaryNames(path string) ([]string, error) {
	lines, err := ReadLines(path)
	if err != nil {
		return nil, err
	}

	var names []string
	for _, line := range lines {
		name := strings.TrimSpace(line)
		if name == "" {
			continue
		}
		names = append(names, name)
	}

	return names, nil
}
