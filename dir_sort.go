package main

import (
	"cmp"
	"sort"
	"strings"
)

// sortEntries orders a listing for display: the parent entry first, then
// directories before files, then the selected column. For the name column,
// dot-names come first regardless of direction. Ties fall back to the name,
// so the order is total and sorting twice changes nothing.
func sortEntries(entries []DirectoryEntry, column SortColumn, desc bool) {
	sort.SliceStable(entries, func(i, j int) bool {
		return compareEntries(entries[i], entries[j], column, desc) < 0
	})
}

func compareEntries(a, b DirectoryEntry, column SortColumn, desc bool) int {
	aParent, bParent := a.Name == ParentDirName, b.Name == ParentDirName
	if aParent != bParent {
		return first(aParent)
	}
	if a.IsDir != b.IsDir {
		return first(a.IsDir)
	}

	var c int
	switch column {
	case SortByName:
		if a.Name != "" && b.Name != "" {
			aDot, bDot := a.Name[0] == '.', b.Name[0] == '.'
			if aDot != bDot {
				return first(aDot)
			}
		}
		return directed(strings.Compare(a.Name, b.Name), desc)
	case SortBySize:
		c = cmp.Compare(a.Size, b.Size)
	case SortByModified:
		c = cmp.Compare(a.Modified, b.Modified)
	case SortByMode:
		c = strings.Compare(a.ModeString, b.ModeString)
	case SortByOwner:
		c = strings.Compare(a.Owner, b.Owner)
	case SortByGroup:
		c = strings.Compare(a.Group, b.Group)
	}

	if c = directed(c, desc); c != 0 {
		return c
	}
	return strings.Compare(a.Name, b.Name)
}

// first returns -1 when the left side wins, 1 otherwise
func first(left bool) int {
	if left {
		return -1
	}
	return 1
}

func directed(c int, desc bool) int {
	if desc {
		return -c
	}
	return c
}
