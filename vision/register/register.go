// Package register registers all face detector models.
package register

import (
	// register detectors.
	_ "go.viam.com/facebox/vision/facedetection/fake"
	_ "go.viam.com/facebox/vision/facedetection/pigo"
	_ "go.viam.com/facebox/vision/facedetection/simple"
)
