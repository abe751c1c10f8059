package registry

import (
	"errors"
	"fmt"
)

var (
	ErrDuplicateName     = errors.New("duplicate name")
	ErrMissingParameter  = errors.New("missing parameter")
	ErrDanglingLink      = errors.New("link to an unknown entity")
	ErrConflictingLink   = errors.New("conflicting links")
	ErrTemperatureRange  = errors.New("initial temperature outside [300, 400] K")
	ErrUnresolvedSensor  = errors.New("sensor target cannot be resolved")
	ErrUnknownEntity     = errors.New("unknown entity")
	ErrInvalidDimensions = errors.New("invalid dimensions")
)

// ConfigError attributes a build failure to one configured entity.
type ConfigError struct {
	Kind Kind
	Name string
	Err  error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("%s %q: %v", e.Kind, e.Name, e.Err)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

func configError(kind Kind, name string, err error) error {
	return &ConfigError{Kind: kind, Name: name, Err: err}
}

func configErrorf(kind Kind, name string, sentinel error, format string, args ...any) error {
	return &ConfigError{Kind: kind, Name: name, Err: fmt.Errorf("%w: "+format, append([]any{sentinel}, args...)...)}
}
