package collector

import "github.com/e7canasta/falldetectd/internal/frame"

// ExtractorInfo identifies the model that produced a skeleton sequence.
type ExtractorInfo struct {
	Engine  string `json:"engine"`
	Model   string `json:"model"`
	Version string `json:"version"`
}

// Metadata is the descriptive header of a persisted skeleton sequence.
type Metadata struct {
	EventID     string        `json:"event_id"`
	Timestamp   string        `json:"timestamp"` // ISO-8601, when extraction ran
	SourceVideo string        `json:"source_video,omitempty"`
	DurationSec float64       `json:"duration_sec"`
	FPS         float64       `json:"fps"`
	TotalFrames int           `json:"total_frames"`
	Extractor   ExtractorInfo `json:"extractor"`
}

// FrameRecord is one frame's normalized keypoints within a sequence.
type FrameRecord struct {
	FrameIndex int                  `json:"frame_index"`
	Timestamp  float64              `json:"timestamp"`
	Keypoints  map[string][3]float32 `json:"keypoints"`
}

// Sequence is the on-disk shape of an extracted skeleton clip.
type Sequence struct {
	Metadata       Metadata      `json:"metadata"`
	KeypointFormat string        `json:"keypoint_format"`
	Sequence       []FrameRecord `json:"sequence"`
	Version        string        `json:"version"`
}

// skeletonToRecord normalizes a skeleton's pixel coordinates to [0,1] by
// the frame's own width/height.
func skeletonToRecord(index int, timestamp float64, width, height int, sk frame.Skeleton) FrameRecord {
	kp := make(map[string][3]float32, len(frame.KeypointNames))
	w, h := float32(width), float32(height)
	for i, name := range frame.KeypointNames {
		p := sk.Points[i]
		x, y := p.X, p.Y
		if w > 0 {
			x = p.X / w
		}
		if h > 0 {
			y = p.Y / h
		}
		kp[name] = [3]float32{x, y, p.Visibility}
	}
	return FrameRecord{FrameIndex: index, Timestamp: timestamp, Keypoints: kp}
}
