package resource

import (
	"errors"
	"strings"
)

// PathSeparator separates folders in the platform's relative paths.
const PathSeparator = `\`

// ErrMissingPath is returned when a definition carries no relative path at all.
var ErrMissingPath = errors.New("item definition has no relative path")

// Definition is the subset of an item's definition the transfer engine uses.
type Definition struct {
	Name string
	ID   string

	// RelativePath is nil when the platform did not report a path, which is
	// different from an item stored at the root (empty string).
	RelativePath *string

	// FileSize is reported as a string by the platform; empty when unknown.
	FileSize string
}

// HasFileSize reports whether the definition carries a file size.
func (d Definition) HasFileSize() bool {
	return d.FileSize != ""
}

// DestinationPath selects the folder an item lands in on the destination.
type DestinationPath struct {
	// Identical mirrors the source folder. When false, Path is used.
	Identical bool
	Path      string
}

// IdenticalPath mirrors the source item's folder on the destination.
func IdenticalPath() DestinationPath {
	return DestinationPath{Identical: true}
}

// ExplicitPath puts every item into the given folder.
func ExplicitPath(path string) DestinationPath {
	return DestinationPath{Path: path}
}

func (p DestinationPath) String() string {
	if p.Identical {
		return "identical"
	}
	return "explicit:" + p.Path
}

// Derive returns the destination folder and the file name for an item.
//
// An empty source path always yields an empty folder, whatever the policy.
// Under the identical policy "A\B\file.ext" yields folder `A\B\` and name
// "file.ext".
func Derive(def Definition, policy DestinationPath) (folder, fileName string, err error) {
	if def.RelativePath == nil {
		return "", "", ErrMissingPath
	}

	relPath := *def.RelativePath
	segments := strings.Split(relPath, PathSeparator)
	fileName = segments[len(segments)-1]
	if fileName == "" {
		fileName = def.Name
	}

	switch {
	case relPath == "":
		folder = ""
	case policy.Identical:
		folder = strings.Join(segments[:len(segments)-1], PathSeparator) + PathSeparator
	default:
		folder = policy.Path
	}

	return folder, fileName, nil
}
