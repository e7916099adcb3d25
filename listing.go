package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/pkg/sftp"
)

// parseLongName extracts the permission string, owner and group from a
// long-listing line ("drwxr-xr-x 2 alice staff 4096 Jan 1 12:00 name").
// A first token that is not exactly ten characters means the line is in an
// unexpected format, and all three fields are left empty.
func parseLongName(line string) (mode, owner, group string) {
	for i, field := range strings.Fields(line) {
		switch i {
		case 0:
			if len(field) != ModeStringLen {
				return "", "", ""
			}
			mode = field
		case 2:
			owner = field
		case 3:
			group = field
			return mode, owner, group
		}
	}
	return mode, owner, group
}

// permString renders a file mode the way ls does, always ten characters
func permString(mode os.FileMode) string {
	b := []byte("----------")

	switch {
	case mode&os.ModeDir != 0:
		b[0] = 'd'
	case mode&os.ModeSymlink != 0:
		b[0] = 'l'
	case mode&os.ModeNamedPipe != 0:
		b[0] = 'p'
	case mode&os.ModeSocket != 0:
		b[0] = 's'
	case mode&os.ModeCharDevice != 0:
		b[0] = 'c'
	case mode&os.ModeDevice != 0:
		b[0] = 'b'
	}

	const rwx = "rwx"
	perm := mode.Perm()
	for i := 0; i < 9; i++ {
		if perm&(1<<uint(8-i)) != 0 {
			b[i+1] = rwx[i%3]
		}
	}

	special := func(set bool, idx int, lower, upper byte) {
		if !set {
			return
		}
		if b[idx] == 'x' {
			b[idx] = lower
		} else {
			b[idx] = upper
		}
	}
	special(mode&os.ModeSetuid != 0, 3, 's', 'S')
	special(mode&os.ModeSetgid != 0, 6, 's', 'S')
	special(mode&os.ModeSticky != 0, 9, 't', 'T')

	return string(b)
}

// formatLongName builds an "ls -ln" style line for a listed file. pkg/sftp
// drops the long name the server sends with each entry, so the line is
// rebuilt from the attributes and owner and group come out numeric.
func formatLongName(fi os.FileInfo) string {
	owner, group := "?", "?"
	if stat, ok := fi.Sys().(*sftp.FileStat); ok {
		owner = strconv.FormatUint(uint64(stat.UID), 10)
		group = strconv.FormatUint(uint64(stat.GID), 10)
	}

	return fmt.Sprintf("%s %4d %-8s %-8s %8d %s %s",
		permString(fi.Mode()),
		1,
		owner,
		group,
		fi.Size(),
		fi.ModTime().Format("Jan _2 15:04"),
		fi.Name(),
	)
}

// entryFromFileInfo converts one listed file into a DirectoryEntry.
// Attributes the server did not send arrive as zero values and stay zero.
func entryFromFileInfo(fi os.FileInfo) DirectoryEntry {
	entry := DirectoryEntry{
		Name:  fi.Name(),
		IsDir: fi.IsDir(),
	}

	if size := fi.Size(); size > 0 {
		entry.Size = uint64(size)
	}
	if mtime := fi.ModTime().Unix(); mtime > 0 {
		entry.Modified = uint64(mtime)
	}
	if stat, ok := fi.Sys().(*sftp.FileStat); ok {
		entry.Mode = stat.Mode
	} else {
		entry.Mode = uint32(fi.Mode().Perm())
	}

	entry.ModeString, entry.Owner, entry.Group = parseLongName(formatLongName(fi))
	return entry
}
