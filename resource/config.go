// Package resource contains the model/attribute configuration shared by camera sources and face
// detectors, and the registries they install themselves into.
package resource

import (
	"reflect"

	"github.com/go-viper/mapstructure/v2"
	"github.com/pkg/errors"
)

// AttributeMap is a convenience wrapper for pulling out typed information from a map.
type AttributeMap map[string]interface{}

// A Config describes which registered model to build and with which attributes.
type Config struct {
	Model      string       `json:"model"`
	Attributes AttributeMap `json:"attributes,omitempty"`
}

// A ConfigValidator validates a model's native configuration. The path names the configuration
// location used to prefix errors.
type ConfigValidator interface {
	Validate(path string) error
}

// TransformAttributeMap uses an attribute map to transform attributes to the prescribed format.
// Keys are matched against json tags; unknown keys are an error.
func TransformAttributeMap[T any](attributes AttributeMap) (T, error) {
	var out T

	var forResult interface{}

	toT := reflect.TypeOf(out)
	if toT == nil {
		// nothing to transform
		return out, nil
	}
	if toT.Kind() == reflect.Ptr {
		// needs to be allocated then
		var ok bool
		out, ok = reflect.New(toT.Elem()).Interface().(T)
		if !ok {
			return out, errors.Errorf("failed to allocate default config type %T", out)
		}
		forResult = out
	} else {
		forResult = &out
	}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:     "json",
		Result:      forResult,
		ErrorUnused: true,
		DecodeHook:  mapstructure.StringToTimeDurationHookFunc(),
	})
	if err != nil {
		return out, err
	}
	if err := decoder.Decode(map[string]interface{}(attributes)); err != nil {
		return out, err
	}
	return out, nil
}

// NativeConfig decodes the attributes of conf into the model's native config and validates it.
func NativeConfig[T ConfigValidator](conf Config, path string) (T, error) {
	native, err := TransformAttributeMap[T](conf.Attributes)
	if err != nil {
		return native, errors.Wrapf(err, "%s.attributes", path)
	}
	if err := native.Validate(path + ".attributes"); err != nil {
		return native, err
	}
	return native, nil
}
