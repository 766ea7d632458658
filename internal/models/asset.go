package models

import (
	"encoding/json"
	"time"
)

// AssetNode is a file or directory under the assets root. Paths are relative
// to that root and use forward slashes. Files always carry size and
// directories always carry fileCount, even when zero.
type AssetNode struct {
	Name      string       `json:"name"`
	Path      string       `json:"path"`
	Type      string       `json:"type"`
	Size      int64        `json:"-"`
	Modified  *time.Time   `json:"modified,omitempty"`
	Ext       string       `json:"ext,omitempty"`
	Children  []*AssetNode `json:"children,omitempty"`
	FileCount int          `json:"-"`
}

func (n AssetNode) MarshalJSON() ([]byte, error) {
	type plain AssetNode
	out := struct {
		plain
		Size      *int64 `json:"size,omitempty"`
		FileCount *int   `json:"fileCount,omitempty"`
	}{plain: plain(n)}
	if n.Type == TypeDirectory {
		out.FileCount = &n.FileCount
	} else {
		out.Size = &n.Size
	}
	return json.Marshal(out)
}

// AssetInfo is the detailed view of a single asset.
type AssetInfo struct {
	Name      string     `json:"name"`
	Path      string     `json:"path"`
	Type      string     `json:"type"`
	Size      int64      `json:"size"`
	SizeHuman string     `json:"sizeHuman"`
	Modified  time.Time  `json:"modified"`
	Ext       string     `json:"ext,omitempty"`
	FileCount *int       `json:"fileCount,omitempty"`
	Audio     *AudioInfo `json:"audio,omitempty"`
}

// AudioInfo carries tag data read from audio assets.
type AudioInfo struct {
	Title           string   `json:"title,omitempty"`
	Artist          *string  `json:"artist,omitempty"`
	Album           *string  `json:"album,omitempty"`
	DurationSeconds *float64 `json:"durationSeconds,omitempty"`
	BitrateKbps     *int     `json:"bitrateKbps,omitempty"`
}
