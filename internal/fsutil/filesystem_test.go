package fsutil

import (
	"errors"
	"io/fs"
	"path/filepath"
	"testing"
)

func testFileSystem(t *testing.T, fsys FileSystem, dir string) {
	t.Helper()
	path := filepath.Join(dir, "survey.json")

	if fsys.Exists(path) {
		t.Fatal("file should not exist yet")
	}
	if _, err := fsys.ReadFile(path); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("ReadFile missing: err = %v, want ErrNotExist", err)
	}
	if _, err := fsys.Stat(path); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("Stat missing: err = %v, want ErrNotExist", err)
	}

	if err := fsys.WriteFile(path, []byte(`{"name":"a"}`), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if !fsys.Exists(path) {
		t.Error("file should exist after WriteFile")
	}

	data, err := fsys.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(data) != `{"name":"a"}` {
		t.Errorf("ReadFile = %q", data)
	}

	info, err := fsys.Stat(path)
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	if info.Name() != "survey.json" || info.Size() != 12 || info.IsDir() {
		t.Errorf("Stat = %s %d %v", info.Name(), info.Size(), info.IsDir())
	}
}

func TestOSFileSystem(t *testing.T) {
	testFileSystem(t, OSFileSystem{}, t.TempDir())
}

func TestMemoryFileSystem(t *testing.T) {
	testFileSystem(t, NewMemoryFileSystem(), "/configs")
}

func TestMemoryFileSystem_CopiesData(t *testing.T) {
	m := NewMemoryFileSystem()
	data := []byte("abc")
	if err := m.WriteFile("a.json", data, 0644); err != nil {
		t.Fatal(err)
	}
	data[0] = 'x'

	got, _ := m.ReadFile("./a.json")
	if string(got) != "abc" {
		t.Errorf("stored data changed with caller's slice: %q", got)
	}
	got[1] = 'y'
	again, _ := m.ReadFile("a.json")
	if string(again) != "abc" {
		t.Errorf("stored data changed with returned slice: %q", again)
	}
}
