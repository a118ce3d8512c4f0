package facedetection

import (
	"context"

	"go.viam.com/facebox/logging"
	"go.viam.com/facebox/resource"
)

var registry = resource.NewRegistry[Detector]("detector")

// RegisterDetector registers a face detector model.
func RegisterDetector[ConfigT resource.ConfigValidator](model string, registration resource.Registration[Detector, ConfigT]) {
	resource.Register(registry, model, registration)
}

// NewDetector constructs the detector described by conf.
func NewDetector(ctx context.Context, conf resource.Config, logger logging.Logger) (Detector, error) {
	return registry.Build(ctx, conf, "detector", logger)
}

// ValidateConfig checks conf against the model's attribute schema. The path prefixes errors.
func ValidateConfig(conf resource.Config, path string) error {
	return registry.Validate(conf, path)
}

// Models returns the registered detector models.
func Models() []string {
	return registry.Models()
}
