// Package frame defines the value types that flow through the fall-detection
// pipeline: raw frames, detector output (bounding boxes and skeletons), and
// the tagged union that lets the rule engine stay agnostic of which one it
// was handed.
package frame

import "math"

// Frame is an immutable snapshot read from a frame source. Pixels is owned
// by the caller after Read returns; once pushed to a buffer it must not be
// mutated in place — copy before reuse.
type Frame struct {
	Timestamp float64 // seconds, monotonic clock
	Pixels    []byte  // H*W*3, 8-bit, row-major
	Width     int
	Height    int
	Seq       uint64 // assigned once per push, ordering/drop diagnostics only
}

// BBox is an axis-aligned bounding box detection in pixel coordinates.
type BBox struct {
	X, Y          int
	Width, Height int
	Confidence    float32
}

// AspectRatio returns Height/Width, or 0 when Width is 0.
func (b BBox) AspectRatio() float64 {
	if b.Width == 0 {
		return 0
	}
	return float64(b.Height) / float64(b.Width)
}

// Keypoint names the 17 COCO pose keypoints in YOLOv8-Pose ordering.
type Keypoint int

const (
	Nose Keypoint = iota
	LeftEye
	RightEye
	LeftEar
	RightEar
	LeftShoulder
	RightShoulder
	LeftElbow
	RightElbow
	LeftWrist
	RightWrist
	LeftHip
	RightHip
	LeftKnee
	RightKnee
	LeftAnkle
	RightAnkle
	numKeypoints
)

// KeypointNames is the canonical lowercase name for each Keypoint index,
// used verbatim as the JSON keys in a persisted skeleton sequence.
var KeypointNames = [numKeypoints]string{
	"nose", "left_eye", "right_eye", "left_ear", "right_ear",
	"left_shoulder", "right_shoulder", "left_elbow", "right_elbow",
	"left_wrist", "right_wrist", "left_hip", "right_hip",
	"left_knee", "right_knee", "left_ankle", "right_ankle",
}

// Point is a single keypoint observation: position plus detector confidence.
type Point struct {
	X, Y       float32
	Visibility float32
}

// Skeleton holds all 17 COCO keypoints for one detected subject.
type Skeleton struct {
	Points [numKeypoints]Point
}

// Get returns the Point at kp.
func (s Skeleton) Get(kp Keypoint) Point {
	return s.Points[kp]
}

// ShoulderCenter is the midpoint between the left and right shoulder.
func (s Skeleton) ShoulderCenter() (x, y float32) {
	l, r := s.Get(LeftShoulder), s.Get(RightShoulder)
	return (l.X + r.X) / 2, (l.Y + r.Y) / 2
}

// HipCenter is the midpoint between the left and right hip.
func (s Skeleton) HipCenter() (x, y float32) {
	l, r := s.Get(LeftHip), s.Get(RightHip)
	return (l.X + r.X) / 2, (l.Y + r.Y) / 2
}

// TorsoAngle returns the angle in degrees between the hip-to-shoulder
// vector and the vertical image axis: 0 is upright, 90 is horizontal.
func (s Skeleton) TorsoAngle() float64 {
	scx, scy := s.ShoulderCenter()
	hcx, hcy := s.HipCenter()
	dx := float64(scx - hcx)
	dy := float64(scy - hcy)
	return radToDeg(math.Atan2(math.Abs(dx), math.Abs(dy)))
}

// HipHeightRatio is the hip's vertical position as a fraction of the
// nose-to-ankle span: near 0.5 standing, near 1.0 fallen/lying.
func (s Skeleton) HipHeightRatio() float64 {
	_, hipY := s.HipCenter()
	noseY := float64(s.Get(Nose).Y)
	ankleY := (float64(s.Get(LeftAnkle).Y) + float64(s.Get(RightAnkle).Y)) / 2

	total := ankleY - noseY
	if math.Abs(total) < 1 {
		return 0.5
	}
	return (float64(hipY) - noseY) / total
}

func radToDeg(r float64) float64 { return r * 180 / math.Pi }

// MinVisibility reports whether shoulders and hips all meet the minimum
// visibility threshold required for the pose rule to trust this skeleton.
func (s Skeleton) MinVisibility(min float32) bool {
	for _, kp := range [...]Keypoint{LeftShoulder, RightShoulder, LeftHip, RightHip} {
		if s.Get(kp).Visibility < min {
			return false
		}
	}
	return true
}

// SubjectKind tags which payload a Subject carries.
type SubjectKind int

const (
	SubjectNone SubjectKind = iota
	SubjectBBox
	SubjectSkeleton
)

// Subject is the detector's per-frame output: at most one of BBox or
// Skeleton is meaningful, selected by Kind. Modeled as a tagged union
// rather than an interface hierarchy so the rule engine can switch on
// Kind directly instead of type-asserting.
type Subject struct {
	Kind     SubjectKind
	BBox     BBox
	Skeleton Skeleton
}

// NoSubject is the zero-value "nothing detected" result.
var NoSubject = Subject{Kind: SubjectNone}
