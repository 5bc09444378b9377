// Package rules implements the two fall-classification rules: a bbox
// aspect-ratio rule and a torso-angle pose rule. Both are stateless aside
// from whatever smoother the pose rule is given, and neither enforces any
// temporal logic — that belongs to the debounce state machine.
package rules

import (
	"github.com/e7canasta/falldetectd/internal/frame"
	"github.com/e7canasta/falldetectd/internal/smoothing"
)

// Engine maps a detected subject at a point in time to a fallen boolean.
type Engine interface {
	IsFallen(subject frame.Subject, timestamp float64) bool
}

// BBoxRule classifies a fall by bounding-box aspect ratio: a box
// noticeably wider than it is tall (ratio below threshold) suggests a
// person lying down rather than standing.
type BBoxRule struct {
	Threshold float64 // default 1.3
}

// NewBBoxRule constructs a BBoxRule with the given threshold.
func NewBBoxRule(threshold float64) *BBoxRule {
	return &BBoxRule{Threshold: threshold}
}

// IsFallen implements Engine.
func (r *BBoxRule) IsFallen(subject frame.Subject, _ float64) bool {
	if subject.Kind != frame.SubjectBBox {
		return false
	}
	return subject.BBox.AspectRatio() < r.Threshold
}

// PoseRule classifies a fall by torso angle from vertical, optionally
// smoothing the skeleton first to suppress keypoint jitter.
type PoseRule struct {
	AngleThreshold float64 // degrees, default 60
	MinVisibility  float32 // default 0.3
	Smoother       *smoothing.KeypointSmoother // nil disables smoothing
}

// NewPoseRule constructs a PoseRule. smoother may be nil.
func NewPoseRule(angleThreshold float64, minVisibility float32, smoother *smoothing.KeypointSmoother) *PoseRule {
	return &PoseRule{
		AngleThreshold: angleThreshold,
		MinVisibility:  minVisibility,
		Smoother:       smoother,
	}
}

// IsFallen implements Engine.
func (r *PoseRule) IsFallen(subject frame.Subject, timestamp float64) bool {
	if subject.Kind != frame.SubjectSkeleton {
		return false
	}

	sk := subject.Skeleton
	if r.Smoother != nil {
		sk = r.Smoother.Smooth(sk, timestamp)
	}

	if !sk.MinVisibility(r.MinVisibility) {
		return false
	}
	return sk.TorsoAngle() >= r.AngleThreshold
}

// FallConfidence maps torso angle to a 0..1 confidence score: below 30
// degrees is confidently upright (0), 30-60 ramps linearly to 0.5, and
// 60-90 ramps the remainder toward 1.0. Used for diagnostics, not for the
// fall/no-fall decision itself.
func (r *PoseRule) FallConfidence(subject frame.Subject) float64 {
	if subject.Kind != frame.SubjectSkeleton {
		return 0
	}
	sk := subject.Skeleton
	if !sk.MinVisibility(r.MinVisibility) {
		return 0
	}

	angle := sk.TorsoAngle()
	switch {
	case angle < 30:
		return 0
	case angle < 60:
		return (angle - 30) / 60
	default:
		extra := (angle - 60) / 60
		if extra > 0.5 {
			extra = 0.5
		}
		return 0.5 + extra
	}
}
