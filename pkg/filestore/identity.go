package filestore

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"path/filepath"
	"strings"
)

// FileID derives the stable identifier of a file from its path relative to root.
// The relative path is slash-normalized before hashing, so the id does not
// depend on the host separator or on where root lives.
func FileID(root, absolutePath string) (string, error) {
	rel, err := RelativePath(root, absolutePath)
	if err != nil {
		return "", err
	}
	return fileIDFromRel(rel), nil
}

// RelativePath returns the slash separated path of absolutePath below root.
func RelativePath(root, absolutePath string) (string, error) {
	rel, err := filepath.Rel(filepath.Clean(root), filepath.Clean(absolutePath))
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrOutsideRoot, absolutePath, err)
	}
	if rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s", ErrOutsideRoot, absolutePath)
	}
	return filepath.ToSlash(rel), nil
}

func fileIDFromRel(rel string) string {
	sum := md5.Sum([]byte(rel))
	return hex.EncodeToString(sum[:])
}
