package webapi

import (
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"testing"

	"t2i_backend/output"
)

func TestListImagesAfterGeneration(t *testing.T) {
	env := newTestEnv(t, "placeholder")
	session := env.newSession(t)

	var empty output.ImageListing
	if code := env.post(t, "/API/ListImages", map[string]any{"session_id": session}, &empty); code != http.StatusOK {
		t.Fatalf("status = %d, want 200", code)
	}
	if len(empty.Folders) != 0 || len(empty.Files) != 0 {
		t.Errorf("fresh listing = %+v, want empty", empty)
	}

	body := smallRequest(2)
	body["session_id"] = session
	env.post(t, "/API/GenerateText2Image", body, nil)

	var root output.ImageListing
	env.post(t, "/API/ListImages", map[string]any{"session_id": session}, &root)
	if len(root.Folders) != 1 {
		t.Fatalf("folders = %v, want one day folder", root.Folders)
	}

	var day output.ImageListing
	env.post(t, "/API/ListImages", map[string]any{"session_id": session, "path": root.Folders[0]}, &day)
	if len(day.Files) != 2 {
		t.Errorf("files = %+v, want 2", day.Files)
	}
}

func TestListImagesErrors(t *testing.T) {
	tests := []struct {
		name       string
		withSess   bool
		path       string
		wantStatus int
		wantError  string
	}{
		{name: "no session", wantStatus: http.StatusUnauthorized, wantError: msgInvalidSession},
		{name: "escaping path", withSess: true, path: "../other", wantStatus: http.StatusBadRequest, wantError: "Invalid path."},
		{name: "missing folder", withSess: true, path: "2001-01-01", wantStatus: http.StatusNotFound, wantError: "404, path not found."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			body := map[string]any{"path": tt.path}
			if tt.withSess {
				body["session_id"] = env.newSession(t)
				// the user root must exist for a sub-folder to be missing
				if err := os.MkdirAll(filepath.Join(env.config.OutputPath, "local"), 0755); err != nil {
					t.Fatal(err)
				}
			}
			var resp ErrorResponse
			if code := env.post(t, "/API/ListImages", body, &resp); code != tt.wantStatus {
				t.Errorf("status = %d, want %d", code, tt.wantStatus)
			}
			if resp.Error != tt.wantError {
				t.Errorf("error = %q, want %q", resp.Error, tt.wantError)
			}
		})
	}
}

func TestListModels(t *testing.T) {
	env := newTestEnv(t)
	for _, name := range []string{"sd15.safetensors", "xl/base.safetensors", "xl/refiner.ckpt", "notes.txt"} {
		path := filepath.Join(env.config.ModelRoot, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte("weights"), 0644); err != nil {
			t.Fatal(err)
		}
	}

	var root output.ModelListing
	if code := env.post(t, "/API/ListModels", map[string]any{}, &root); code != http.StatusOK {
		t.Fatalf("status = %d, want 200", code)
	}
	if len(root.Folders) != 1 || root.Folders[0] != "xl" {
		t.Errorf("folders = %v, want [xl]", root.Folders)
	}
	if len(root.Files) != 1 || root.Files[0].Name != "sd15.safetensors" {
		t.Errorf("files = %+v, want sd15.safetensors", root.Files)
	}

	env.server.config.AllowedModels = regexp.MustCompile(`(?i)refiner`)
	var xl output.ModelListing
	env.post(t, "/API/ListModels", map[string]any{"path": "xl"}, &xl)
	if len(xl.Files) != 1 || xl.Files[0].Name != "xl/refiner.ckpt" {
		t.Errorf("filtered files = %+v, want xl/refiner.ckpt", xl.Files)
	}
}
