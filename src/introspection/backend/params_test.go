package backend

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParamsMergeKeepsOverrides(t *testing.T) {
	defaults := Params{"clock_frequency": "2e9", "voltage": "0.9"}
	merged := Params{"voltage": "0.8"}.Merge(defaults)

	assert.Equal(t, Params{"clock_frequency": "2e9", "voltage": "0.8"}, merged)
	assert.Equal(t, []string{"clock_frequency", "voltage"}, merged.Keys())
	assert.Len(t, defaults, 2)
}

func TestParamsTypedReads(t *testing.T) {
	p := Params{"rows": "8", "energy": " 1.5e-12 ", "blank": "  ", "bad": "x"}

	rows, err := p.Int("rows")
	require.NoError(t, err)
	assert.Equal(t, 8, rows)

	energy, err := p.Float("energy")
	require.NoError(t, err)
	assert.Equal(t, 1.5e-12, energy)

	_, err = p.Float("blank")
	assert.ErrorIs(t, err, ErrMissingParameter)
	_, err = p.Float("bad")
	assert.ErrorIs(t, err, ErrInvalidParameter)

	fallback, err := p.FloatOr("missing", 3)
	require.NoError(t, err)
	assert.Equal(t, 3.0, fallback)
}

func TestParamReaderKeepsFirstError(t *testing.T) {
	r := NewParamReader(Params{"a": "1", "b": "nope", "c": "-1"})

	assert.Equal(t, 1.0, r.Float("a"))
	r.IntOr("b", 0)
	r.Float("missing")
	assert.Equal(t, uint64(7), r.Uint64Or("seed", 7))

	require.Error(t, r.Err())
	assert.ErrorIs(t, r.Err(), ErrInvalidParameter)
	assert.Equal(t, "2.5e-09", FormatFloat(2.5e-9))
}
