package utils

import (
	"testing"

	"github.com/pkg/errors"
	"go.viam.com/test"
)

func TestConfigErrors(t *testing.T) {
	err := NewConfigValidationFieldRequiredError("detector.attributes", "cascade_path")
	test.That(t, err.Error(), test.ShouldEqual, `detector.attributes: "cascade_path" is required`)

	cause := errors.New("must be positive")
	err = NewConfigValidationError("camera.attributes.fps", cause)
	test.That(t, err.Error(), test.ShouldEqual, "camera.attributes.fps: must be positive")
	test.That(t, errors.Is(err, cause), test.ShouldBeTrue)

	err = NewUnexpectedTypeError(1, "one")
	test.That(t, err.Error(), test.ShouldEqual, "expected int but got string")
}
