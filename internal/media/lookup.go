package media

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/naperu/wabarelay/internal/domain"
)

// Directory names under the upload root.
const (
	PermanentDir = "permanentFiles"
	TemporalDir  = "temporalFiles"
)

// RetrievalRoots lists the directories searched by the download endpoint,
// in order: the permanent archive, then the temp categories.
func RetrievalRoots(root string) []string {
	return []string{
		filepath.Join(root, PermanentDir),
		filepath.Join(root, TemporalDir, domain.CategoryDocuments),
		filepath.Join(root, TemporalDir, domain.CategoryImages),
		filepath.Join(root, TemporalDir, domain.CategoryVideos),
	}
}

// ValidName rejects names that could escape a root directory.
func ValidName(name string) bool {
	if name == "" || name == "." || name == ".." {
		return false
	}
	return !strings.ContainsAny(name, `/\`) && !strings.Contains(name, "\x00")
}

// FindFile returns the path of the first regular file called name found in
// roots, searched in order.
func FindFile(roots []string, name string) (string, error) {
	if !ValidName(name) {
		return "", fmt.Errorf("file name %q: %w", name, domain.ErrBadInput)
	}
	for _, root := range roots {
		p := filepath.Join(root, name)
		info, err := os.Stat(p)
		if err == nil && info.Mode().IsRegular() {
			return p, nil
		}
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return "", err
		}
	}
	return "", fmt.Errorf("file %s: %w", name, domain.ErrNotFound)
}
