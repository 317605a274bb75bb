package session

import (
	"os"
	"slices"
	"strings"
)

// Entry describes one item in a remote directory listing.
type Entry struct {
	Name        string `json:"name"`
	Path        string `json:"path"`
	IsDir       bool   `json:"is_dir"`
	Size        int64  `json:"size"`
	Modified    int64  `json:"modified"` // epoch seconds
	Permissions string `json:"permissions"`
}

// parentName is the only dot-prefixed name a listing keeps.
const parentName = ".."

func newEntry(path string, fi os.FileInfo) Entry {
	return Entry{
		Name:        fi.Name(),
		Path:        path,
		IsDir:       fi.IsDir(),
		Size:        fi.Size(),
		Modified:    fi.ModTime().Unix(),
		Permissions: FormatPermissions(fi.Mode()),
	}
}

// buildEntries converts raw directory records, dropping hidden names
// and ordering the rest for display.
func buildEntries(dir string, infos []os.FileInfo) []Entry {
	entries := make([]Entry, 0, len(infos))
	for _, fi := range infos {
		name := fi.Name()
		if strings.HasPrefix(name, ".") && name != parentName {
			continue
		}
		entries = append(entries, newEntry(JoinPath(dir, name), fi))
	}
	SortEntries(entries)
	return entries
}

// SortEntries orders a listing: ".." first, then directories, then
// files, each group by case-insensitive name.  The raw name breaks
// ties so the order is total.
func SortEntries(entries []Entry) {
	slices.SortStableFunc(entries, compareEntries)
}

func compareEntries(a, b Entry) int {
	switch {
	case a.Name == parentName && b.Name == parentName:
		return 0
	case a.Name == parentName:
		return -1
	case b.Name == parentName:
		return 1
	case a.IsDir != b.IsDir:
		if a.IsDir {
			return -1
		}
		return 1
	}
	if c := strings.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name)); c != 0 {
		return c
	}
	return strings.Compare(a.Name, b.Name)
}

// JoinPath appends name to a remote directory without cleaning, so
// ".." stays a literal path component.
func JoinPath(dir, name string) string {
	if dir == "" {
		return name
	}
	return strings.TrimSuffix(dir, "/") + "/" + name
}

// FormatPermissions renders the permission bits as "rwxr-xr-x".
func FormatPermissions(mode os.FileMode) string {
	const rwx = "rwxrwxrwx"
	perm := mode.Perm()
	var b [9]byte
	for i := 0; i < 9; i++ {
		if perm&(1<<uint(8-i)) != 0 {
			b[i] = rwx[i]
		} else {
			b[i] = '-'
		}
	}
	return string(b[:])
}
