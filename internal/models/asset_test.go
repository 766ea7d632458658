package models

import (
	"encoding/json"
	"testing"
)

func TestAssetNodeJSON(t *testing.T) {
	tree := &AssetNode{
		Name: "",
		Path: "",
		Type: TypeDirectory,
		Children: []*AssetNode{
			{Name: "empty", Path: "empty", Type: TypeDirectory, Children: []*AssetNode{}},
			{Name: "blank.txt", Path: "blank.txt", Type: TypeFile, Ext: ".txt"},
		},
		FileCount: 1,
	}
	data, err := json.Marshal(tree)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var decoded struct {
		FileCount *int `json:"fileCount"`
		Size      *int `json:"size"`
		Children  []map[string]any
	}
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal %s: %v", data, err)
	}
	if decoded.FileCount == nil || *decoded.FileCount != 1 || decoded.Size != nil {
		t.Fatalf("directory node must carry fileCount only: %s", data)
	}

	dir, file := decoded.Children[0], decoded.Children[1]
	if dir["fileCount"] != float64(0) {
		t.Fatalf("empty directory must report fileCount 0: %s", data)
	}
	if _, ok := dir["size"]; ok {
		t.Fatalf("directory must not report size: %s", data)
	}
	if file["size"] != float64(0) {
		t.Fatalf("zero-byte file must report size 0: %s", data)
	}
	if _, ok := file["fileCount"]; ok {
		t.Fatalf("file must not report fileCount: %s", data)
	}
}
