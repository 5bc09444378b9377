package smoothing

import "github.com/e7canasta/falldetectd/internal/frame"

const numKeypoints = 17

// KeypointSmoother applies an independent OneEuroFilter pair (x, y) to
// each of the 17 COCO keypoints. A keypoint whose visibility drops below
// the confidence threshold has its filters reset and is passed through
// raw, rather than smoothed toward a stale position.
type KeypointSmoother struct {
	minCutoff, beta, dCutoff float64
	confidenceThreshold      float32

	filtersX [numKeypoints]*OneEuroFilter
	filtersY [numKeypoints]*OneEuroFilter
	inited   [numKeypoints]bool
}

// NewKeypointSmoother constructs a smoother with the given One-Euro
// parameters and confidence threshold.
func NewKeypointSmoother(minCutoff, beta, dCutoff float64, confidenceThreshold float32) *KeypointSmoother {
	s := &KeypointSmoother{
		minCutoff:           minCutoff,
		beta:                beta,
		dCutoff:             dCutoff,
		confidenceThreshold: confidenceThreshold,
	}
	s.initFilters()
	return s
}

func (s *KeypointSmoother) initFilters() {
	for i := 0; i < numKeypoints; i++ {
		s.filtersX[i] = NewOneEuroFilter(s.minCutoff, s.beta, s.dCutoff)
		s.filtersY[i] = NewOneEuroFilter(s.minCutoff, s.beta, s.dCutoff)
	}
}

// Smooth returns a new skeleton with each keypoint's x/y coordinate passed
// through its One-Euro filter. Visibility values are passed through
// unchanged.
func (s *KeypointSmoother) Smooth(sk frame.Skeleton, timestamp float64) frame.Skeleton {
	out := sk
	for i := 0; i < numKeypoints; i++ {
		p := sk.Points[i]
		if p.Visibility < s.confidenceThreshold {
			if s.inited[i] {
				s.filtersX[i].Reset()
				s.filtersY[i].Reset()
				s.inited[i] = false
			}
			continue
		}

		sx := s.filtersX[i].Filter(float64(p.X), timestamp)
		sy := s.filtersY[i].Filter(float64(p.Y), timestamp)
		s.inited[i] = true

		out.Points[i] = frame.Point{X: float32(sx), Y: float32(sy), Visibility: p.Visibility}
	}
	return out
}

// Reset clears every keypoint filter for a new tracking session.
func (s *KeypointSmoother) Reset() {
	s.initFilters()
	for i := range s.inited {
		s.inited[i] = false
	}
}

// ResetKeypoint clears the filter pair for a single keypoint.
func (s *KeypointSmoother) ResetKeypoint(kp frame.Keypoint) {
	s.filtersX[kp].Reset()
	s.filtersY[kp].Reset()
	s.inited[kp] = false
}
