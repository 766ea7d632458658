package assets

import (
	"errors"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/dhowden/tag"
	"github.com/tcolgate/mp3"

	"github.com/DollhouseMCP/content-workflow-toolkit-sub001/internal/models"
)

// AudioExtensions lists the file types that get an audio block in Info.
var AudioExtensions = map[string]bool{
	".mp3":  true,
	".m4a":  true,
	".aac":  true,
	".flac": true,
	".ogg":  true,
	".wav":  true,
}

// readAudio collects tag data for the audio file at path. The title falls back
// to the file stem. Duration and bitrate are only computed for MP3 files and
// are left nil when the stream cannot be decoded.
func readAudio(path string, size int64) *models.AudioInfo {
	audio := &models.AudioInfo{}
	title, artist, album := readTags(path)
	if title == "" {
		title = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	audio.Title = title
	audio.Artist = artist
	audio.Album = album

	if !strings.EqualFold(filepath.Ext(path), ".mp3") {
		return audio
	}
	seconds, err := mp3Duration(path)
	if err != nil || seconds <= 0 {
		return audio
	}
	audio.DurationSeconds = &seconds
	if kbps := int(math.Round(float64(size) * 8 / seconds / 1000)); kbps > 0 {
		audio.BitrateKbps = &kbps
	}
	return audio
}

func readTags(path string) (string, *string, *string) {
	f, err := os.Open(path)
	if err != nil {
		return "", nil, nil
	}
	defer f.Close()

	meta, err := tag.ReadFrom(f)
	if err != nil {
		return "", nil, nil
	}
	return strings.TrimSpace(meta.Title()), nonEmpty(meta.Artist()), nonEmpty(meta.Album())
}

func nonEmpty(value string) *string {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	return &value
}

func mp3Duration(path string) (float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	decoder := mp3.NewDecoder(f)
	var (
		frame   mp3.Frame
		skipped int
		total   float64
	)
	for {
		if err := decoder.Decode(&frame, &skipped); err != nil {
			if errors.Is(err, io.EOF) {
				return total, nil
			}
			return 0, err
		}
		total += frame.Duration().Seconds()
	}
}
