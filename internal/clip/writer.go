package clip

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/e7canasta/falldetectd/internal/buffer"
	"github.com/e7canasta/falldetectd/internal/frame"
)

// RawWriter persists a clip as a raw concatenation of frame pixel buffers
// under Dir, one file per event. It is a placeholder for the out-of-scope
// video encoder: a production deployment swaps this for an MP4 writer at
// the source's fps, keeping the Writer interface unchanged.
type RawWriter struct {
	Dir string
	Ext string // e.g. ".raw"; callers wanting MP4 output supply their own Writer
}

// NewRawWriter creates Dir if necessary.
func NewRawWriter(dir string) (*RawWriter, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("clip writer: output dir: %w", err)
	}
	return &RawWriter{Dir: dir, Ext: ".raw"}, nil
}

// Save implements Writer.
func (w *RawWriter) Save(frames []buffer.Entry, eventID string) (string, error) {
	if len(frames) == 0 {
		return "", fmt.Errorf("clip writer: no frames for event %s", eventID)
	}

	path := filepath.Join(w.Dir, DefaultFilename(eventID, w.Ext))
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("clip writer: create %s: %w", path, err)
	}
	defer f.Close()

	for _, entry := range frames {
		fr, ok := entry.Payload.(frame.Frame)
		if !ok {
			continue
		}
		if _, err := f.Write(fr.Pixels); err != nil {
			return "", fmt.Errorf("clip writer: write frame %d: %w", fr.Seq, err)
		}
	}
	return path, nil
}
