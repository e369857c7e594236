package repository

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// CohortFileProvider reads threshold membership lists from <dir>/<cohort>.txt
// files: one symbol code per line, '#' starting a comment. The lists are
// produced by the upstream screening step and are read-only here.
type CohortFileProvider struct {
	dir string
}

// NewCohortFileProvider creates a provider rooted at dir.
func NewCohortFileProvider(dir string) *CohortFileProvider {
	return &CohortFileProvider{dir: dir}
}

// Cohorts returns the sorted cohort names found on disk.
func (p *CohortFileProvider) Cohorts() ([]string, error) {
	entries, err := os.ReadDir(p.dir)
	if err != nil {
		return nil, fmt.Errorf("read cohort dir %s: %w", p.dir, err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if !strings.HasSuffix(name, ".txt") {
			continue
		}
		names = append(names, strings.TrimSuffix(name, ".txt"))
	}
	sort.Strings(names)
	return names, nil
}

// Members returns the deduplicated symbol codes of one cohort, preserving
// file order.
func (p *CohortFileProvider) Members(cohort string) ([]string, error) {
	path := filepath.Join(p.dir, cohort+".txt")
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open cohort %s: %w", path, err)
	}
	defer f.Close()

	seen := make(map[string]struct{})
	var codes []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := sc.Text()
		if i := strings.IndexByte(line, '#'); i >= 0 {
			line = line[:i]
		}
		code := strings.TrimSpace(line)
		if code == "" {
			continue
		}
		if _, dup := seen[code]; dup {
			continue
		}
		seen[code] = struct{}{}
		codes = append(codes, code)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("scan cohort %s: %w", path, err)
	}
	return codes, nil
}
