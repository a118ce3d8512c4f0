package facedetection

import (
	"github.com/samber/lo"
)

// Postprocessor defines a function that filters/modifies an incoming list of observations.
// It must keep the relative order of the observations it keeps.
type Postprocessor func([]Observation) []Observation

// NewAreaFilter returns a function that filters out observations covering less than the given
// fraction of the image.
func NewAreaFilter(area float64) Postprocessor {
	return func(in []Observation) []Observation {
		return lo.Filter(in, func(o Observation, _ int) bool {
			return o.BoundingBox.Area() >= area
		})
	}
}

// NewScoreFilter returns a function that filters out observations below a certain confidence.
func NewScoreFilter(conf float64) Postprocessor {
	return func(in []Observation) []Observation {
		return lo.Filter(in, func(o Observation, _ int) bool {
			return o.Confidence >= conf
		})
	}
}
