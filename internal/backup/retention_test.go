package backup

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

var retentionNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// testArchives returns four archives, newest first, one day apart, holding
// 4, 3, 2 and 1 runs.
func testArchives() []ArchiveInfo {
	var out []ArchiveInfo
	for i, runs := range []int{4, 3, 2, 1} {
		out = append(out, ArchiveInfo{
			Path:      filepath.Join("/b", string(rune('d'-i))),
			CreatedAt: retentionNow.Add(-time.Duration(i) * 24 * time.Hour),
			RunCount:  runs,
		})
	}
	return out
}

func paths(archives []ArchiveInfo) []string {
	var out []string
	for _, a := range archives {
		out = append(out, a.Path)
	}
	return out
}

func TestRetention_Select(t *testing.T) {
	now := func() time.Time { return retentionNow }

	tests := []struct {
		name   string
		policy Retention
		keep   []string
	}{
		{"zero keeps everything", Retention{}, []string{"/b/d", "/b/c", "/b/b", "/b/a"}},
		{"newest two", Retention{Newest: 2}, []string{"/b/d", "/b/c"}},
		{"newest over count", Retention{Newest: 10}, []string{"/b/d", "/b/c", "/b/b", "/b/a"}},
		{"max age", Retention{MaxAge: 36 * time.Hour, Now: now}, []string{"/b/d", "/b/c"}},
		{"run budget", Retention{MaxRuns: 7}, []string{"/b/d", "/b/c"}},
		{"run budget below newest", Retention{MaxRuns: 1}, []string{"/b/d"}},
		{"union of rules", Retention{Newest: 1, MaxAge: 60 * time.Hour, Now: now}, []string{"/b/d", "/b/c", "/b/b"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			archives := testArchives()
			keep, prune := tt.policy.Select(archives)
			got := paths(keep)
			if len(got) != len(tt.keep) {
				t.Fatalf("kept %v, want %v", got, tt.keep)
			}
			for i := range got {
				if got[i] != tt.keep[i] {
					t.Errorf("kept %v, want %v", got, tt.keep)
					break
				}
			}
			if len(keep)+len(prune) != len(archives) {
				t.Errorf("keep %d + prune %d != %d archives", len(keep), len(prune), len(archives))
			}
		})
	}
}

func TestRetention_SelectKeepsDamaged(t *testing.T) {
	archives := testArchives()
	archives[3].Damaged = true

	keep, prune := Retention{Newest: 1}.Select(archives)
	if len(keep) != 2 || keep[1].Path != "/b/a" {
		t.Errorf("kept %v, want newest plus the damaged archive", paths(keep))
	}
	if len(prune) != 2 {
		t.Errorf("pruned %v, want 2", paths(prune))
	}
}

func writeTestArchive(t *testing.T, dir string, name time.Time, created time.Time, runs int) string {
	t.Helper()
	path := GenerateBackupPath(dir, name)
	if err := Write(path, &Archive{CreatedAt: created, Runs: make([]ArchivedRun, runs)}); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	return path
}

func TestListArchives_OrdersByHeader(t *testing.T) {
	dir := t.TempDir()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	// The filename timestamp disagrees with the header; the header wins.
	older := writeTestArchive(t, dir, base.Add(time.Hour), base, 1)
	newer := writeTestArchive(t, dir, base, base.Add(48*time.Hour), 3)

	archives, err := ListArchives(dir)
	if err != nil {
		t.Fatalf("ListArchives() error = %v", err)
	}
	if len(archives) != 2 {
		t.Fatalf("listed %d archives, want 2", len(archives))
	}
	if archives[0].Path != newer || archives[1].Path != older {
		t.Errorf("order = %v, want [%s %s]", paths(archives), newer, older)
	}
	if archives[0].RunCount != 3 || archives[0].Damaged {
		t.Errorf("newest = %+v, want 3 runs and intact", archives[0])
	}
}

func TestListArchives_MissingDir(t *testing.T) {
	got, err := ListArchives(filepath.Join(t.TempDir(), "nope"))
	if err != nil {
		t.Fatalf("ListArchives() error = %v", err)
	}
	if len(got) != 0 {
		t.Errorf("got %d archives, want 0", len(got))
	}
}

func TestPrune(t *testing.T) {
	dir := t.TempDir()
	src := createTestStore(t)
	addTestRuns(t, src)

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := range 4 {
		path := GenerateBackupPath(dir, base.Add(time.Duration(i)*time.Hour))
		if _, err := Backup(context.Background(), src, path); err != nil {
			t.Fatalf("Backup() error = %v", err)
		}
	}
	damaged := GenerateBackupPath(dir, base.Add(-time.Hour))
	if err := os.WriteFile(damaged, []byte("not an archive\n"), 0600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	// Every archive holds both runs, so a budget of 4 keeps two of them.
	removed, err := Prune(dir, Retention{MaxRuns: 4})
	if err != nil {
		t.Fatalf("Prune() error = %v", err)
	}
	if len(removed) != 2 {
		t.Errorf("removed %v, want 2", paths(removed))
	}

	remaining, err := ListArchives(dir)
	if err != nil {
		t.Fatalf("ListArchives() error = %v", err)
	}
	if len(remaining) != 3 {
		t.Fatalf("%d archives remain, want 3", len(remaining))
	}
	if _, err := os.Stat(damaged); err != nil {
		t.Errorf("damaged archive was removed: %v", err)
	}
}

func TestParseAge(t *testing.T) {
	tests := []struct {
		input   string
		want    time.Duration
		wantErr bool
	}{
		{"720h", 720 * time.Hour, false},
		{"30d", 30 * 24 * time.Hour, false},
		{" 2w ", 14 * 24 * time.Hour, false},
		{"", 0, true},
		{"0d", 0, true},
		{"-3d", 0, true},
		{"5y", 0, true},
		{"xd", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseAge(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseAge(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseAge(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}
