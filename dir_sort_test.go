package main

import (
	"math/rand"
	"reflect"
	"testing"
)

func names(entries []DirectoryEntry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Name
	}
	return out
}

func sampleListing() []DirectoryEntry {
	return []DirectoryEntry{
		{Name: "zeta.txt", Size: 10, Modified: 300, ModeString: "-rw-r--r--", Owner: "bob", Group: "staff"},
		{Name: ".profile", Size: 200, Modified: 100, ModeString: "-rw-------", Owner: "alice", Group: "users"},
		{Name: "src", IsDir: true, Size: 4096, Modified: 50, ModeString: "drwxr-xr-x", Owner: "alice", Group: "staff"},
		{Name: ParentDirName, IsDir: true},
		{Name: "alpha.txt", Size: 10, Modified: 200, ModeString: "-rwxr-xr-x", Owner: "carol", Group: "users"},
		{Name: ".git", IsDir: true, Size: 4096, Modified: 400, ModeString: "drwxr-xr-x", Owner: "bob", Group: "staff"},
		{Name: "Beta.md", Size: 5, Modified: 250, ModeString: "-rw-r--r--", Owner: "alice", Group: "wheel"},
	}
}

func TestSortEntriesByName(t *testing.T) {
	entries := sampleListing()
	sortEntries(entries, SortByName, false)
	want := []string{"..", ".git", "src", ".profile", "Beta.md", "alpha.txt", "zeta.txt"}
	if got := names(entries); !reflect.DeepEqual(got, want) {
		t.Errorf("ascending = %v, want %v", got, want)
	}

	sortEntries(entries, SortByName, true)
	want = []string{"..", ".git", "src", ".profile", "zeta.txt", "alpha.txt", "Beta.md"}
	if got := names(entries); !reflect.DeepEqual(got, want) {
		t.Errorf("descending = %v, want %v", got, want)
	}
}

func TestSortEntriesByColumn(t *testing.T) {
	tests := []struct {
		column SortColumn
		desc   bool
		want   []string
	}{
		{SortBySize, false, []string{"..", ".git", "src", "Beta.md", "alpha.txt", "zeta.txt", ".profile"}},
		{SortBySize, true, []string{"..", ".git", "src", ".profile", "alpha.txt", "zeta.txt", "Beta.md"}},
		{SortByModified, false, []string{"..", "src", ".git", ".profile", "alpha.txt", "Beta.md", "zeta.txt"}},
		{SortByModified, true, []string{"..", ".git", "src", "zeta.txt", "Beta.md", "alpha.txt", ".profile"}},
		{SortByMode, false, []string{"..", ".git", "src", ".profile", "Beta.md", "zeta.txt", "alpha.txt"}},
		{SortByOwner, false, []string{"..", "src", ".git", ".profile", "Beta.md", "zeta.txt", "alpha.txt"}},
		{SortByGroup, true, []string{"..", ".git", "src", "Beta.md", ".profile", "alpha.txt", "zeta.txt"}},
	}

	for _, tt := range tests {
		entries := sampleListing()
		sortEntries(entries, tt.column, tt.desc)
		if got := names(entries); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("sort by %s desc=%v = %v, want %v", tt.column, tt.desc, got, tt.want)
		}
	}
}

func TestSortEntriesIsIdempotentAndTotal(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	columns := []SortColumn{SortByName, SortBySize, SortByModified, SortByMode, SortByOwner, SortByGroup}

	for _, column := range columns {
		for _, desc := range []bool{false, true} {
			reference := sampleListing()
			sortEntries(reference, column, desc)

			for trial := 0; trial < 20; trial++ {
				shuffled := sampleListing()
				rng.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })
				sortEntries(shuffled, column, desc)
				if !reflect.DeepEqual(names(shuffled), names(reference)) {
					t.Fatalf("column %s desc=%v: order depends on input order: %v vs %v",
						column, desc, names(shuffled), names(reference))
				}
			}

			again := append([]DirectoryEntry(nil), reference...)
			sortEntries(again, column, desc)
			if !reflect.DeepEqual(again, reference) {
				t.Errorf("column %s desc=%v: sorting twice changed the order", column, desc)
			}

			if reference[0].Name != ParentDirName {
				t.Errorf("column %s desc=%v: parent entry not first", column, desc)
			}
			seenFile := false
			for _, e := range reference[1:] {
				if !e.IsDir {
					seenFile = true
				} else if seenFile {
					t.Errorf("column %s desc=%v: directory %s after a file", column, desc, e.Name)
				}
			}
		}
	}
}

func TestSortEntriesEmptyNames(t *testing.T) {
	entries := []DirectoryEntry{{Name: "b"}, {Name: ""}, {Name: ".a"}}
	sortEntries(entries, SortByName, false)
	if got, want := names(entries), []string{"", ".a", "b"}; !reflect.DeepEqual(got, want) {
		t.Errorf("ascending = %q, want %q", got, want)
	}
	sortEntries(entries, SortByName, true)
	if got, want := names(entries), []string{".a", "b", ""}; !reflect.DeepEqual(got, want) {
		t.Errorf("descending = %q, want %q", got, want)
	}
}
