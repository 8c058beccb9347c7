//go:build windows

package scanner

import (
	"golang.org/x/sys/windows"
)

var knownFolders = []*windows.KNOWNFOLDERID{
	windows.FOLDERID_Pictures,
	windows.FOLDERID_Desktop,
	windows.FOLDERID_Downloads,
	windows.FOLDERID_CameraRoll,
	windows.FOLDERID_SavedPictures,
}

func systemImageFolders() []string {
	var dirs []string
	for _, id := range knownFolders {
		path, err := windows.KnownFolderPath(id, 0)
		if err != nil || path == "" {
			continue
		}
		dirs = append(dirs, path)
	}
	return dirs
}
