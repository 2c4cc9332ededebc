package export

import (
	"bytes"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/san-kum/odeguard/internal/dynamo"
)

func TestPhaseSVG(t *testing.T) {
	states := []dynamo.State{{1, 0}, {0, 1}, {-1, 0}, {0, -1}, {1, 0}}

	var buf bytes.Buffer
	require.NoError(t, PhaseSVG(&buf, states, 0, 1, SVGOptions{Width: 100, Height: 100}))
	out := buf.String()

	assert.True(t, strings.HasPrefix(out, "<?xml"))
	assert.True(t, strings.HasSuffix(out, "</svg>\n"))
	assert.Equal(t, 2, strings.Count(out, `class="axis"`))
	assert.Equal(t, 1, strings.Count(out, "M"))
	assert.Equal(t, 4, strings.Count(out, " L"))
	assert.Contains(t, out, DefaultSVGOptions().Stroke)
	assert.NotContains(t, out, "violation")
}

func TestPhaseSVGViolations(t *testing.T) {
	states := []dynamo.State{{2, 2}, {1, 0.5}, {0.5, -0.3}, {0.2, 0.1}}

	var buf bytes.Buffer
	require.NoError(t, PhaseSVG(&buf, states, 0, 1, SVGOptions{Tolerance: 0.1}))
	assert.Equal(t, 1, strings.Count(buf.String(), `class="violation"`))
}

func TestPhaseSVGSkipsNonFinite(t *testing.T) {
	states := []dynamo.State{{1, 1}, {math.NaN(), 2}, {0, 0}}

	var buf bytes.Buffer
	require.NoError(t, PhaseSVG(&buf, states, 0, 1, SVGOptions{}))
	assert.Equal(t, 2, strings.Count(buf.String(), "M"))
	assert.NotContains(t, buf.String(), "NaN")
}

func TestPhaseSVGErrors(t *testing.T) {
	var buf bytes.Buffer
	assert.Error(t, PhaseSVG(&buf, nil, 0, 1, SVGOptions{}))
	assert.ErrorIs(t, PhaseSVG(&buf, []dynamo.State{{1, 2}}, 0, 2, SVGOptions{}), dynamo.ErrDimensionMismatch)
}
