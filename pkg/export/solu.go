// Package export writes benchmark data in the formats external analysis
// tools consume: PAVER .solu and trace files, and flat CSV.
package export

import (
	"bufio"
	"fmt"
	"io"
	"strconv"

	"github.com/3leaps/gosperf/pkg/catalog"
)

// SoluFileName is the conventional name of the catalog reference file.
const SoluFileName = "gosperf_models.solu"

// WriteSolu writes one reference line per model, in name order, plus a
// =bestdual= line for models that carry a dual bound.
func WriteSolu(w io.Writer, models *catalog.ModelRegistry) error {
	bw := bufio.NewWriter(w)
	for _, m := range models.All() {
		switch m.Reference.Kind {
		case catalog.ReferenceInfeasible:
			fmt.Fprintf(bw, "=inf=\t%s\t\n", m.Name)
		case catalog.ReferenceOptimal:
			fmt.Fprintf(bw, "=opt=\t%s\t%s\n", m.Name, formatFloat(m.Reference.Value))
		case catalog.ReferenceBestKnown:
			fmt.Fprintf(bw, "=best=\t%s\t%s\n", m.Name, formatFloat(m.Reference.Value))
		default:
			return fmt.Errorf("model %s has no reference value", m.Name)
		}
		if m.BestDualBound != nil {
			fmt.Fprintf(bw, "=bestdual=\t%s\t%s\n", m.Name, formatFloat(*m.BestDualBound))
		}
	}
	return bw.Flush()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
