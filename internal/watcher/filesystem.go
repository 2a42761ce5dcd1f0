package watcher

import "os"

// FileSystem answers existence questions about concrete paths.
type FileSystem interface {
	FileExists(path string) bool
	FolderExists(path string) bool
	// ListFolder returns the names of the entries of a folder.
	ListFolder(path string) ([]string, error)
}

// OSFileSystem is the FileSystem of the running process.
type OSFileSystem struct{}

func (OSFileSystem) FileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func (OSFileSystem) FolderExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

func (OSFileSystem) ListFolder(path string) ([]string, error) {
	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		names = append(names, entry.Name())
	}
	return names, nil
}
