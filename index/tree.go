package index

import "strings"

// Listing is the content of one directory as derived from indexed
// filenames.
type Listing struct {
	// Exists is false when no indexed file lives under the directory.
	Exists      bool
	Directories []string
	Files       []string
}

// List derives the immediate children of dir from filenames. Names are
// returned in the order they are first seen, never sorted. dir is relative
// to the database root; "" and "." denote the root itself.
func List(filenames []string, dir string) Listing {
	dir = strings.Trim(dir, "/")
	if dir == "." {
		dir = ""
	}
	prefix := ""
	if dir != "" {
		prefix = dir + "/"
	}

	l := Listing{Exists: dir == ""}
	seenDir := make(map[string]bool)
	seenFile := make(map[string]bool)
	for _, f := range filenames {
		f = strings.TrimPrefix(f, "/")
		if !strings.HasPrefix(f, prefix) {
			continue
		}
		rest := f[len(prefix):]
		if rest == "" {
			continue
		}
		l.Exists = true
		name, _, nested := strings.Cut(rest, "/")
		if nested {
			if !seenDir[name] {
				seenDir[name] = true
				l.Directories = append(l.Directories, name)
			}
			continue
		}
		if !seenFile[name] {
			seenFile[name] = true
			l.Files = append(l.Files, name)
		}
	}
	return l
}
