package detect

import (
	"path/filepath"
	"strings"
)

// Temp-file naming conventions used by editors and tooling when staging a
// write: suffixes appended to the real name, and prefixes marking scratch or
// lock files (emacs autosave/lock, Office owner files, GIO streams).
var tempSuffixes = []string{
	".tmp",
	".temp",
	".swp",
	".swx",
	".part",
	".partial",
	".crdownload",
	".download",
}

var tempPrefixes = []string{
	".#",
	"#",
	"~$",
	".goutputstream-",
}

// isTempPath reports whether the path's base name follows a recognized
// temp-file convention.
func isTempPath(path string) bool {
	base := filepath.Base(path)
	if base == "" || base == "." || base == string(filepath.Separator) {
		return false
	}

	lower := strings.ToLower(base)
	for _, suffix := range tempSuffixes {
		if strings.HasSuffix(lower, suffix) {
			return true
		}
	}
	for _, prefix := range tempPrefixes {
		if strings.HasPrefix(base, prefix) {
			return true
		}
	}
	return false
}

// Backup naming conventions: the original name with a preservation suffix.
var backupSuffixes = []string{
	"~",
	".bak",
	".backup",
	".old",
	".orig",
	".save",
	".prev",
}

// isBackupPath reports whether the path's base name carries a recognized
// backup suffix.
func isBackupPath(path string) bool {
	_, ok := backupSource(path)
	return ok
}

// backupSource strips a recognized backup suffix and returns the path the
// backup derives from. Returns false when the name carries no backup suffix
// or nothing would remain without it.
func backupSource(path string) (string, bool) {
	base := filepath.Base(path)
	lower := strings.ToLower(base)

	for _, suffix := range backupSuffixes {
		if !strings.HasSuffix(lower, suffix) || len(base) <= len(suffix) {
			continue
		}
		src := path[:len(path)-len(suffix)]
		if filepath.Base(src) == "" {
			continue
		}
		return src, true
	}
	return "", false
}
