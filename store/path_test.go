package store

import (
	"testing"
)

func TestSplitPath(t *testing.T) {
	tests := []struct {
		path string
		want []string
	}{
		{"/", []string{}},
		{"", []string{}},
		{"/foo", []string{"foo"}},
		{"/foo/bar", []string{"foo", "bar"}},
		{"foo//bar/", []string{"foo", "bar"}},
	}

	for _, tt := range tests {
		got := SplitPath(tt.path)
		if len(got) != len(tt.want) {
			t.Errorf("SplitPath(%q) = %v, want %v", tt.path, got, tt.want)
			continue
		}
		for i := range got {
			if got[i] != tt.want[i] {
				t.Errorf("SplitPath(%q) = %v, want %v", tt.path, got, tt.want)
			}
		}
	}
}

func TestCleanAndJoinPath(t *testing.T) {
	if got := CleanPath("data/ser_file/"); got != "/data/ser_file" {
		t.Errorf("CleanPath: got %q", got)
	}
	if got := CleanPath(""); got != "/" {
		t.Errorf("CleanPath(empty): got %q", got)
	}
	if got := JoinPath("/", "data"); got != "/data" {
		t.Errorf("JoinPath root: got %q", got)
	}
	if got := JoinPath("/data", "dim1"); got != "/data/dim1" {
		t.Errorf("JoinPath: got %q", got)
	}
}

func TestParentPath(t *testing.T) {
	parent, name := ParentPath("/data/ser_file/dim1")
	if parent != "/data/ser_file" || name != "dim1" {
		t.Errorf("ParentPath: got (%q, %q)", parent, name)
	}
	parent, name = ParentPath("/data")
	if parent != "/" || name != "data" {
		t.Errorf("ParentPath top level: got (%q, %q)", parent, name)
	}
	parent, name = ParentPath("/")
	if parent != "/" || name != "" {
		t.Errorf("ParentPath root: got (%q, %q)", parent, name)
	}
}

func TestDatasetInfoSize(t *testing.T) {
	info := DatasetInfo{Shape: []uint64{3, 4, 2}, ElemSize: 8}
	if info.NumElements() != 24 {
		t.Errorf("NumElements: got %d", info.NumElements())
	}
	if info.Size() != 192 {
		t.Errorf("Size: got %d", info.Size())
	}
}
