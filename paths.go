package main

import (
	"path/filepath"
	"strings"
)

// joinRemotePath properly joins remote paths using forward slashes
func joinRemotePath(base, name string) string {
	if base == "" {
		return name
	}
	if name == "" {
		return base
	}
	// Always use forward slashes for remote paths (Unix-style)
	return strings.TrimSuffix(base, "/") + "/" + name
}

// normalizePath resolves "." and ".." segments and collapses separators.
// Backslashes are treated as separators. ".." never climbs above the root,
// and a leading Windows drive segment ("C:") is kept without a slash before it.
func normalizePath(p string) string {
	p = strings.ReplaceAll(p, "\\", "/")

	parts := make([]string, 0, strings.Count(p, "/")+1)
	for _, segment := range strings.Split(p, "/") {
		switch segment {
		case "", CurrentDirName:
			continue
		case ParentDirName:
			if len(parts) > 0 {
				parts = parts[:len(parts)-1]
			}
		default:
			parts = append(parts, segment)
		}
	}

	var b strings.Builder
	for i, part := range parts {
		if !(i == 0 && len(part) == 2 && part[1] == ':') {
			b.WriteByte('/')
		}
		b.WriteString(part)
	}

	if b.Len() == 0 {
		return RootDir
	}
	return b.String()
}

// parentRemotePath returns the normalized parent of a remote directory
func parentRemotePath(p string) string {
	return normalizePath(p + "/" + ParentDirName)
}

// localPathFor maps a remote path into the per-connection scratch directory
func localPathFor(scratchDir string, target Target, remotePath string) string {
	return filepath.Join(scratchDir, target.ScratchName(), filepath.FromSlash(normalizePath(remotePath)))
}
