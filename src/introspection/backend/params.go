package backend

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

var (
	ErrMissingParameter = errors.New("missing required parameter")
	ErrInvalidParameter = errors.New("invalid parameter")
)

// Params is the flat key/value record a backend is configured from.
type Params map[string]string

// Merge returns a copy of p with every key of defaults that p lacks.
func (p Params) Merge(defaults Params) Params {
	out := make(Params, len(p)+len(defaults))
	for key, value := range defaults {
		out[key] = value
	}
	for key, value := range p {
		out[key] = value
	}
	return out
}

func (p Params) Has(name string) bool {
	_, ok := p[name]
	return ok
}

func (p Params) String(name string) (string, error) {
	value, ok := p[name]
	if !ok || strings.TrimSpace(value) == "" {
		return "", fmt.Errorf("%w: %s", ErrMissingParameter, name)
	}
	return strings.TrimSpace(value), nil
}

func (p Params) Float(name string) (float64, error) {
	raw, err := p.String(name)
	if err != nil {
		return 0, err
	}
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s=%q", ErrInvalidParameter, name, raw)
	}
	return value, nil
}

func (p Params) FloatOr(name string, fallback float64) (float64, error) {
	if !p.Has(name) {
		return fallback, nil
	}
	return p.Float(name)
}

func (p Params) Int(name string) (int, error) {
	raw, err := p.String(name)
	if err != nil {
		return 0, err
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %s=%q", ErrInvalidParameter, name, raw)
	}
	return value, nil
}

func (p Params) IntOr(name string, fallback int) (int, error) {
	if !p.Has(name) {
		return fallback, nil
	}
	return p.Int(name)
}

func (p Params) Uint64Or(name string, fallback uint64) (uint64, error) {
	if !p.Has(name) {
		return fallback, nil
	}
	raw, err := p.String(name)
	if err != nil {
		return 0, err
	}
	value, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s=%q", ErrInvalidParameter, name, raw)
	}
	return value, nil
}

// Keys returns the parameter names in sorted order.
func (p Params) Keys() []string {
	keys := make([]string, 0, len(p))
	for key := range p {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// FormatFloat renders a float the way Params expects to parse it back.
func FormatFloat(value float64) string {
	return strconv.FormatFloat(value, 'g', -1, 64)
}

// ParamReader accumulates the first parse error so that constructors can read
// a block of parameters and check once.
type ParamReader struct {
	params Params
	err    error
}

func NewParamReader(params Params) *ParamReader {
	return &ParamReader{params: params}
}

func (r *ParamReader) Float(name string) float64 {
	value, err := r.params.Float(name)
	r.keep(err)
	return value
}

func (r *ParamReader) FloatOr(name string, fallback float64) float64 {
	value, err := r.params.FloatOr(name, fallback)
	r.keep(err)
	return value
}

func (r *ParamReader) IntOr(name string, fallback int) int {
	value, err := r.params.IntOr(name, fallback)
	r.keep(err)
	return value
}

func (r *ParamReader) Uint64Or(name string, fallback uint64) uint64 {
	value, err := r.params.Uint64Or(name, fallback)
	r.keep(err)
	return value
}

// Err returns the first error met by any read.
func (r *ParamReader) Err() error {
	return r.err
}

func (r *ParamReader) keep(err error) {
	if err != nil && r.err == nil {
		r.err = err
	}
}
