// Package output turns generated images into references clients can use:
// inline data URLs, or files under the per-user output tree with a history
// row in SQLite.
package output

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"
	"unicode"

	"t2i_backend/backends"
	"t2i_backend/db"
)

// URLPrefix is the route under which the output tree is served.
const URLPrefix = "Output"

const maxSlugLen = 40

// InlineSink returns each image as a data: URL. It never fails and keeps
// nothing on disk, so it is used when a request does not ask to save outputs.
type InlineSink struct{}

// Persist implements t2i.Sink.
func (InlineSink) Persist(ctx context.Context, img backends.Image, params backends.Params) (string, error) {
	return img.DataURL(), nil
}

// HistoryRecorder queues history rows; *db.AsyncWriter[db.ImageRecord]
// satisfies it.
type HistoryRecorder interface {
	Write(rec db.ImageRecord) bool
}

// DiskSink writes images to <root>/<user>/<yyyy-mm-dd>/<n>-<slug>.<ext>
// and returns the matching Output/... URL path.
//
// One DiskSink serves one batch. Persist is safe for concurrent use: the
// sub-tasks of a dispatch share the sink, and file names are chosen under a
// mutex so that two outputs never claim the same <n>. Every stored file
// queues an ImageRecord with the batch id on the HistoryRecorder. A full
// history queue drops the row but keeps the file.
//
// Public API:
//   - NewDiskSink(): validate the user id and bind root, user and batch
//   - Persist(): store one image and return its URL path
type DiskSink struct {
	root    string
	userID  string
	batchID string
	history HistoryRecorder
	now     func() time.Time

	mu sync.Mutex
}

// NewDiskSink returns a sink for one user's batch. history may be nil.
func NewDiskSink(root, userID, batchID string, history HistoryRecorder) (*DiskSink, error) {
	if !isPathComponent(userID) {
		return nil, fmt.Errorf("invalid user id %q", userID)
	}
	return &DiskSink{
		root:    root,
		userID:  userID,
		batchID: batchID,
		history: history,
		now:     time.Now,
	}, nil
}

// Persist implements t2i.Sink.
func (s *DiskSink) Persist(ctx context.Context, img backends.Image, params backends.Params) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	day := s.now().Format("2006-01-02")
	dir := filepath.Join(s.root, s.userID, day)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}

	name, err := s.writeUnique(dir, slugify(params.Prompt), img)
	if err != nil {
		return "", err
	}

	rel := path.Join(s.userID, day, name)
	if s.history != nil {
		s.history.Write(db.ImageRecord{
			UserID:         s.userID,
			DispatchID:     s.batchID,
			Path:           rel,
			Prompt:         params.Prompt,
			NegativePrompt: params.NegativePrompt,
			Seed:           params.Seed,
			Steps:          params.Steps,
			CFGScale:       params.CFGScale,
			Width:          params.Width,
			Height:         params.Height,
		})
	}
	return URLPrefix + "/" + rel, nil
}

// writeUnique creates the next free <n>-<slug>.<ext> in dir.
func (s *DiskSink) writeUnique(dir, slug string, img backends.Image) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("read output dir: %w", err)
	}
	for n := len(entries) + 1; ; n++ {
		name := fmt.Sprintf("%d-%s.%s", n, slug, img.Extension())
		f, err := os.OpenFile(filepath.Join(dir, name), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
		if errors.Is(err, fs.ErrExist) {
			continue
		}
		if err != nil {
			return "", fmt.Errorf("create output file: %w", err)
		}
		if _, err := f.Write(img.Data); err != nil {
			f.Close()
			os.Remove(f.Name())
			return "", fmt.Errorf("write output file: %w", err)
		}
		if err := f.Close(); err != nil {
			return "", fmt.Errorf("close output file: %w", err)
		}
		return name, nil
	}
}

// slugify keeps lower-case letters and digits of prompt, joined by dashes.
func slugify(prompt string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(prompt) {
		if b.Len() >= maxSlugLen {
			break
		}
		if (unicode.IsLetter(r) || unicode.IsDigit(r)) && r < unicode.MaxASCII {
			b.WriteRune(r)
			dash = false
		} else if !dash && b.Len() > 0 {
			b.WriteByte('-')
			dash = true
		}
	}
	slug := strings.TrimRight(b.String(), "-")
	if slug == "" {
		return "image"
	}
	return slug
}

func isPathComponent(s string) bool {
	return s != "" && s != "." && s != ".." && !strings.ContainsAny(s, `/\`) && filepath.IsLocal(s)
}
