// Package register registers all camera source models
package register

import (
	// register camera sources.
	_ "go.viam.com/facebox/components/camera/fake"
	_ "go.viam.com/facebox/components/camera/webcam"
)
