package output

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
)

var (
	// ErrBadPath is returned for paths that escape the listing root.
	ErrBadPath = errors.New("output: path is outside the allowed root")

	// ErrNotFound is returned when the listed folder does not exist.
	ErrNotFound = errors.New("output: path not found")
)

var (
	imageExtensions = map[string]bool{"png": true, "jpg": true}
	modelExtensions = map[string]bool{"safetensors": true, "ckpt": true}
)

// ImageFile is one entry of an image listing.
type ImageFile struct {
	Src     string `json:"src"`
	BatchID int    `json:"batch_id"`
}

// ImageListing is the result of ListImages.
type ImageListing struct {
	Folders []string    `json:"folders"`
	Files   []ImageFile `json:"files"`
}

// ModelFile is one model known under the model root.
type ModelFile struct {
	Name string `json:"name"`
	Size int64  `json:"size"`
}

// ModelListing is the result of ListModels.
type ModelListing struct {
	Folders []string    `json:"folders"`
	Files   []ModelFile `json:"files"`
}

// CheckFilePath resolves rel inside root, rejecting absolute paths and any
// path that climbs out of root.
func CheckFilePath(root, rel string) (string, error) {
	rel = strings.Trim(strings.ReplaceAll(rel, `\`, "/"), "/")
	if rel == "" {
		return root, nil
	}
	if !filepath.IsLocal(filepath.FromSlash(rel)) {
		return "", fmt.Errorf("%w: %q", ErrBadPath, rel)
	}
	return filepath.Join(root, filepath.FromSlash(rel)), nil
}

// ListImages lists the folders and png/jpg files of one folder in the
// user's output tree.
func ListImages(root, userID, rel string) (ImageListing, error) {
	if !isPathComponent(userID) {
		return ImageListing{}, fmt.Errorf("%w: user %q", ErrBadPath, userID)
	}
	dir, err := CheckFilePath(filepath.Join(root, userID), rel)
	if err != nil {
		return ImageListing{}, err
	}

	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		if dir == filepath.Join(root, userID) {
			// nothing generated yet
			return ImageListing{Folders: []string{}, Files: []ImageFile{}}, nil
		}
		return ImageListing{}, ErrNotFound
	}
	if err != nil {
		return ImageListing{}, fmt.Errorf("error reading file list: %w", err)
	}

	out := ImageListing{Folders: []string{}, Files: []ImageFile{}}
	for _, e := range entries {
		switch {
		case e.IsDir():
			out.Folders = append(out.Folders, e.Name())
		case imageExtensions[extension(e.Name())]:
			out.Files = append(out.Files, ImageFile{Src: e.Name()})
		}
	}
	return out, nil
}

// ListModels lists models below rel under root. Names are slash-separated
// paths relative to root; allowed, when non-nil, filters them.
func ListModels(root, rel string, allowed *regexp.Regexp) (ModelListing, error) {
	if _, err := CheckFilePath(root, rel); err != nil {
		return ModelListing{}, err
	}
	prefix := strings.Trim(strings.ReplaceAll(rel, `\`, "/"), "/")
	if prefix != "" {
		prefix += "/"
	}

	models, err := scanModels(root)
	if err != nil {
		return ModelListing{}, err
	}

	out := ModelListing{Folders: []string{}, Files: []ModelFile{}}
	seen := map[string]bool{}
	for _, m := range models {
		if !strings.HasPrefix(m.Name, prefix) || len(m.Name) == len(prefix) {
			continue
		}
		if allowed != nil && !allowed.MatchString(m.Name) {
			continue
		}
		rest := m.Name[len(prefix):]
		if i := strings.Index(rest, "/"); i >= 0 {
			folder := rest[:i]
			if !seen[folder] {
				seen[folder] = true
				out.Folders = append(out.Folders, folder)
			}
			continue
		}
		out.Files = append(out.Files, m)
	}
	return out, nil
}

// scanModels walks root for model files. A missing root has no models.
func scanModels(root string) ([]ModelFile, error) {
	var models []ModelFile
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) && p == root {
				return fs.SkipAll
			}
			return err
		}
		if d.IsDir() || !modelExtensions[extension(d.Name())] {
			return nil
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		models = append(models, ModelFile{Name: filepath.ToSlash(rel), Size: info.Size()})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan models: %w", err)
	}
	sort.Slice(models, func(i, j int) bool { return models[i].Name < models[j].Name })
	return models, nil
}

func extension(name string) string {
	return strings.ToLower(strings.TrimPrefix(path.Ext(name), "."))
}
