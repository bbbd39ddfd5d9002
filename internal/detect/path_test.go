package detect

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsTempPath(t *testing.T) {
	tests := []struct {
		path string
		want bool
	}{
		{"/d/file.txt.tmp", true},
		{"/d/file.TMP", true},
		{"/d/file.temp", true},
		{"/d/.file.txt.swp", true},
		{"/d/.file.txt.swx", true},
		{"/d/movie.mkv.part", true},
		{"/d/archive.zip.partial", true},
		{"/d/setup.exe.crdownload", true},
		{"/d/photo.jpg.download", true},
		{"/d/.#document.org", true},
		{"/d/#buffer.txt#", true},
		{"/d/~$report.docx", true},
		{"/d/.goutputstream-4XR2F3", true},
		{"/d/file.txt", false},
		{"/d/template.html", false},
		{"/d/tmp", false},
		{"/d/file.bak", false},
		{"/d/notes~", false},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, isTempPath(tt.path))
		})
	}
}

func TestBackupSource(t *testing.T) {
	tests := []struct {
		path     string
		wantSrc  string
		wantBool bool
	}{
		{"/d/notes.org~", "/d/notes.org", true},
		{"/d/app.conf.bak", "/d/app.conf", true},
		{"/d/app.conf.BAK", "/d/app.conf", true},
		{"/d/site.cfg.backup", "/d/site.cfg", true},
		{"/d/data.db.old", "/d/data.db", true},
		{"/d/patch.orig", "/d/patch", true},
		{"/d/session.save", "/d/session", true},
		{"/d/config.prev", "/d/config", true},
		{"/d/file.txt", "", false},
		{"/d/~", "", false},
		{"/d/.bak", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			src, ok := backupSource(tt.path)
			assert.Equal(t, tt.wantBool, ok)
			assert.Equal(t, tt.wantSrc, src)
		})
	}
}

func TestPathsTouched(t *testing.T) {
	got := pathsTouched(batchOf(
		created("/d/b"),
		moved("/d/b", "/d/a"),
		modified("/d/a"),
	))
	assert.Equal(t, []string{"/d/a", "/d/b"}, got)
}
