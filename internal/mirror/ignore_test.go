package mirror

import (
	"os"
	"path/filepath"
	"testing"
)

func TestIgnoreMatcher(t *testing.T) {
	m := NewIgnoreMatcher([]string{
		"",
		"# comment",
		"*.bak",
		".git/**",
		"logseq/bak/**",
		"[",
	})

	tests := []struct {
		key  string
		want bool
	}{
		{"pages/foo.md", false},
		{"pages/foo.bak", true},
		{"foo.bak", true},
		{".git/HEAD", true},
		{".git/objects/ab/cdef", true},
		{"logseq/bak/pages/x.md", true},
		{"logseq/config.edn", false},
		{"pages/.tmp-1234", true},
		{"assets/scan.pdf.sha256", true},
		{IgnoreFileName, true},
	}
	for _, tt := range tests {
		if got := m.Match(tt.key); got != tt.want {
			t.Errorf("Match(%q) = %v, want %v", tt.key, got, tt.want)
		}
	}
}

func TestParseIgnoreFile(t *testing.T) {
	dir := t.TempDir()

	got, err := ParseIgnoreFile(filepath.Join(dir, "missing"))
	if err != nil || got != nil {
		t.Errorf("ParseIgnoreFile(missing) = %v, %v", got, err)
	}

	path := filepath.Join(dir, IgnoreFileName)
	if err := os.WriteFile(path, []byte("*.tmp\ndrafts/**\n"), 0644); err != nil {
		t.Fatal(err)
	}
	got, err = ParseIgnoreFile(path)
	if err != nil {
		t.Fatalf("ParseIgnoreFile() error = %v", err)
	}
	if len(got) != 2 || got[1] != "drafts/**" {
		t.Errorf("ParseIgnoreFile() = %v", got)
	}
}

func TestFindFiles(t *testing.T) {
	root := t.TempDir()
	for _, rel := range []string{"pages/a.md", "journals/2024-01-15.md", ".git/HEAD", "pages/.tmp-99"} {
		p := filepath.Join(root, rel)
		os.MkdirAll(filepath.Dir(p), 0755)
		os.WriteFile(p, []byte(rel), 0644)
	}
	os.Symlink(filepath.Join(root, "pages/a.md"), filepath.Join(root, "pages", "link.md"))

	files, err := FindFiles(t.Context(), root, NewIgnoreMatcher([]string{".git/**"}))
	if err != nil {
		t.Fatalf("FindFiles() error = %v", err)
	}
	keys := map[string]bool{}
	for _, f := range files {
		keys[f.Key] = true
	}
	if len(keys) != 2 || !keys["pages/a.md"] || !keys["journals/2024-01-15.md"] {
		t.Errorf("FindFiles() keys = %v", keys)
	}
}
