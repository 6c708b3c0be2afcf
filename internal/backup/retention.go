package backup

import (
	"cmp"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"
)

// ArchiveInfo describes one archive in a backups folder, as read from its
// header line.
type ArchiveInfo struct {
	Path        string    `json:"path"`
	Size        int64     `json:"size"`
	CreatedAt   time.Time `json:"created_at"`
	RunCount    int       `json:"run_count"`
	SampleCount int       `json:"sample_count"`
	// Damaged is set when the header could not be parsed. CreatedAt then
	// falls back to the file's modification time.
	Damaged bool `json:"damaged,omitempty"`
}

// Retention decides which archives in a backups folder survive a prune.
// An archive is kept when any enabled rule keeps it; the zero value keeps
// everything.
type Retention struct {
	// Newest keeps this many of the most recent archives.
	Newest int
	// MaxAge keeps archives created within this window of Now.
	MaxAge time.Duration
	// MaxRuns keeps the most recent archives while their combined run
	// count stays within the budget. The newest archive always fits.
	MaxRuns int
	// Now overrides the clock for MaxAge. Nil means time.Now.
	Now func() time.Time
}

func (r Retention) enabled() bool {
	return r.Newest > 0 || r.MaxAge > 0 || r.MaxRuns > 0
}

// Select splits archives, which must be sorted newest first, into the ones
// to keep and the ones to prune. Damaged archives are always kept.
func (r Retention) Select(archives []ArchiveInfo) (keep, prune []ArchiveInfo) {
	if !r.enabled() {
		return archives, nil
	}

	now := time.Now
	if r.Now != nil {
		now = r.Now
	}
	cutoff := now().Add(-r.MaxAge)

	runs := 0
	for i, a := range archives {
		runs += a.RunCount
		switch {
		case a.Damaged,
			r.Newest > 0 && i < r.Newest,
			r.MaxAge > 0 && a.CreatedAt.After(cutoff),
			r.MaxRuns > 0 && (i == 0 || runs <= r.MaxRuns):
			keep = append(keep, a)
		default:
			prune = append(prune, a)
		}
	}
	return keep, prune
}

// ListArchives reads the header of every archive in dir and returns them
// newest first by header CreatedAt. A missing dir yields no archives.
func ListArchives(dir string) ([]ArchiveInfo, error) {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading backup directory: %w", err)
	}

	var archives []ArchiveInfo
	for _, e := range entries {
		if e.IsDir() || !isBackupFile(e.Name()) {
			continue
		}
		fi, err := e.Info()
		if err != nil {
			continue
		}
		a := ArchiveInfo{Path: filepath.Join(dir, e.Name()), Size: fi.Size()}
		if h, err := ReadHeader(a.Path); err == nil {
			a.CreatedAt = h.CreatedAt
			a.RunCount = h.RunCount
			a.SampleCount = h.SampleCount
		} else {
			a.CreatedAt = fi.ModTime()
			a.Damaged = true
		}
		archives = append(archives, a)
	}

	slices.SortFunc(archives, func(a, b ArchiveInfo) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(b.Path, a.Path)
	})
	return archives, nil
}

// Prune removes the archives in dir that r does not keep and returns them.
// Removal keeps going past individual failures; their errors are joined.
func Prune(dir string, r Retention) ([]ArchiveInfo, error) {
	archives, err := ListArchives(dir)
	if err != nil {
		return nil, err
	}
	_, candidates := r.Select(archives)

	var removed []ArchiveInfo
	var errs []error
	for _, a := range candidates {
		if err := os.Remove(a.Path); err != nil {
			errs = append(errs, fmt.Errorf("removing %s: %w", filepath.Base(a.Path), err))
			continue
		}
		removed = append(removed, a)
	}
	return removed, errors.Join(errs...)
}

var ageUnits = map[string]time.Duration{
	"d": 24 * time.Hour,
	"w": 7 * 24 * time.Hour,
}

// ParseAge parses a positive archive age. It accepts Go durations ("720h")
// and whole days or weeks ("30d", "2w").
func ParseAge(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	d, err := time.ParseDuration(s)
	if err != nil {
		d, err = parseDayAge(s)
	}
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return 0, fmt.Errorf("age must be positive: %q", s)
	}
	return d, nil
}

func parseDayAge(s string) (time.Duration, error) {
	for suffix, unit := range ageUnits {
		num, ok := strings.CutSuffix(s, suffix)
		if !ok {
			continue
		}
		n, err := strconv.Atoi(num)
		if err != nil {
			return 0, fmt.Errorf("invalid age %q", s)
		}
		return time.Duration(n) * unit, nil
	}
	return 0, fmt.Errorf("invalid age %q: use a duration like 720h, 30d or 2w", s)
}
