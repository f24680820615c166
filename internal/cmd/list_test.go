package cmd

import (
	"bytes"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/3leaps/gosperf/pkg/catalog"
)

func TestPrintSolvers(t *testing.T) {
	ws := testWorkspace(t)

	var buf bytes.Buffer
	require.NoError(t, printSolvers(&buf, ws.catalog.Solvers))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)

	header := strings.Fields(lines[0])
	assert.Equal(t, "SOLVER", header[0])
	assert.Len(t, header, len(catalog.AllClasses)+1)

	// Rows come in name order: any, mip. MILP is the fifth class column.
	anyRow := strings.Fields(lines[1])
	mipRow := strings.Fields(lines[2])
	assert.Equal(t, "any", anyRow[0])
	assert.Equal(t, "x", anyRow[5])
	assert.Equal(t, "mip", mipRow[0])
	assert.Equal(t, "G", mipRow[5])
	assert.Equal(t, ".", mipRow[4])
}

func TestPrintModels(t *testing.T) {
	ws := testWorkspace(t)
	require.NoError(t, ws.catalog.Models.Register(catalog.ModelDescriptor{
		Name: "delta", Class: catalog.ClassMILP, Sense: catalog.Minimize, Reference: catalog.OptimalValue(7),
	}.WithStats(catalog.ModelStats{Variables: 12, BinaryVariables: 4, Constraints: 9, BuildTimeSeconds: 0.25})))

	var buf bytes.Buffer
	require.NoError(t, printModels(&buf, ws.catalog.Models))
	out := buf.String()
	assert.Contains(t, out, "opt 100")
	assert.Contains(t, out, "best 100")
	assert.Contains(t, out, "0.25")
	assert.Contains(t, out, "opt 7")
}

func TestPrintRuns(t *testing.T) {
	ws := testWorkspace(t)

	var buf bytes.Buffer
	require.NoError(t, printRuns(&buf, ws.runs))
	assert.Equal(t, "No runs found\n", buf.String())

	for _, n := range []int{10, 2} {
		require.NoError(t, os.MkdirAll(ws.runs.RunDir(n), 0o755))
	}
	buf.Reset()
	require.NoError(t, printRuns(&buf, ws.runs))
	assert.Equal(t, ws.runs.RunDir(2)+"\n"+ws.runs.RunDir(10)+"\n", buf.String())
}
