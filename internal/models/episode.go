package models

import "time"

// Episode is one content folder under the series root.
type Episode struct {
	Path     string         `json:"path"`
	Series   string         `json:"series"`
	Episode  string         `json:"episode"`
	Metadata map[string]any `json:"metadata"`
	Files    []FileEntry    `json:"files,omitempty"`
}

// FileEntry describes an immediate child of an episode folder.
type FileEntry struct {
	Name     string    `json:"name"`
	Type     string    `json:"type"`
	Size     int64     `json:"size"`
	Modified time.Time `json:"modified"`
	Ext      string    `json:"ext"`
}

// Entry types shared by file listings and asset trees.
const (
	TypeFile      = "file"
	TypeDirectory = "directory"
)
