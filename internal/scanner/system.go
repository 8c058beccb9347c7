package scanner

import (
	"context"
	"os"
)

// ScanSystemImages scans the user's standard picture locations. Intermediate
// snapshots are not delivered; opts.Flush is ignored.
func ScanSystemImages(ctx context.Context, opts Options) ([]ScannedImage, error) {
	opts.Flush = nil
	return ScanFolders(ctx, SystemImageFolders(), opts)
}

// SystemImageFolders returns the existing standard picture locations of the
// current user.
func SystemImageFolders() []string {
	var folders []string
	for _, dir := range systemImageFolders() {
		if info, err := os.Stat(dir); err == nil && info.IsDir() {
			folders = append(folders, dir)
		}
	}
	return folders
}
