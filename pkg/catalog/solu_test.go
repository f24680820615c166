package catalog

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSolu(t *testing.T) {
	input := `
# reference values
=opt=      alpha   12.5
=best=     beta    -3
=bestdual= beta    -4.25
=inf=      gamma
=best=     alpha   13
`
	got, err := ParseSolu(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, got, 3)

	assert.Equal(t, OptimalValue(12.5), got["alpha"].Reference, "=best= must not override =opt=")
	assert.Equal(t, BestKnownValue(-3), got["beta"].Reference)
	require.NotNil(t, got["beta"].BestDualBound)
	assert.Equal(t, -4.25, *got["beta"].BestDualBound)
	assert.Equal(t, ReferenceInfeasible, got["gamma"].Reference.Kind)
	assert.Nil(t, got["gamma"].BestDualBound)
}

func TestParseSolu_Errors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{name: "missing model", input: "=opt="},
		{name: "missing value", input: "=opt= m"},
		{name: "bad value", input: "=best= m abc"},
		{name: "unknown kind", input: "=foo= m 1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseSolu(strings.NewReader(tt.input))
			require.Error(t, err)
		})
	}
}
