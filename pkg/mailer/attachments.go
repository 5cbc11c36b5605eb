package mailer

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// CollectAttachments lists the regular files of dir, sorted by name. A
// missing or unset directory means no attachments.
func CollectAttachments(dir string) ([]string, error) {
	if dir == "" {
		return nil, nil
	}
	entries, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: list %s: %v", ErrAttachmentRead, dir, err)
	}
	var paths []string
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		paths = append(paths, filepath.Join(dir, e.Name()))
	}
	sort.Strings(paths)
	return paths, nil
}
