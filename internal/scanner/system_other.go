//go:build !windows

package scanner

import (
	"os"
	"path/filepath"
)

func systemImageFolders() []string {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil
	}

	var dirs []string
	if xdg := os.Getenv("XDG_PICTURES_DIR"); xdg != "" {
		dirs = append(dirs, xdg)
	}
	for _, name := range []string{"Pictures", "Desktop", "Downloads"} {
		dirs = append(dirs, filepath.Join(home, name))
	}
	return dirs
}
