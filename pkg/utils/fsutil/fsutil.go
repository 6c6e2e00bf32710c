// Package fsutil holds small filesystem helpers shared by the pipeline.
package fsutil

import (
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

// CopyTree recursively copies the directory tree rooted at source below
// target, creating directories as needed.
func CopyTree(source, target string) error {
	return filepath.WalkDir(source, func(walkPath string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		relative, err := filepath.Rel(source, walkPath)
		if err != nil {
			return err
		}
		destination := filepath.Join(target, relative)

		if entry.IsDir() {
			return os.MkdirAll(destination, 0755)
		}

		return CopyFile(walkPath, destination)
	})
}

// CopyFile copies a single regular file, truncating the destination.
func CopyFile(source, destination string) error {
	in, err := os.Open(source)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(destination)
	if err != nil {
		return err
	}
	defer out.Close()

	_, err = io.Copy(out, in)
	return err
}
