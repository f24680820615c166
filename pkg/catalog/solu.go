package catalog

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// SoluEntry is the reference data a .solu file carries for one model.
type SoluEntry struct {
	Reference     Reference
	BestDualBound *float64
}

// ParseSolu reads a PAVER-style .solu file.
//
// Recognised line forms (whitespace separated):
//
//	=opt=       <model> <value>
//	=best=      <model> <value>
//	=bestdual=  <model> <value>
//	=inf=       <model>
//
// Blank lines and lines starting with '#' or '*' are ignored.
func ParseSolu(r io.Reader) (map[string]SoluEntry, error) {
	out := make(map[string]SoluEntry)
	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "*") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			return nil, fmt.Errorf("solu line %d: expected '<type> <model> [value]'", lineNo)
		}
		kind, model := fields[0], fields[1]
		entry := out[model]

		if kind == "=inf=" {
			entry.Reference = Infeasible()
			out[model] = entry
			continue
		}

		if len(fields) < 3 {
			return nil, fmt.Errorf("solu line %d: %s for %s requires a value", lineNo, kind, model)
		}
		value, err := strconv.ParseFloat(fields[2], 64)
		if err != nil {
			return nil, fmt.Errorf("solu line %d: invalid value %q: %w", lineNo, fields[2], err)
		}

		switch kind {
		case "=opt=":
			entry.Reference = OptimalValue(value)
		case "=best=":
			// A proven optimum outranks a best-known value for the same model.
			if entry.Reference.Kind != ReferenceOptimal {
				entry.Reference = BestKnownValue(value)
			}
		case "=bestdual=":
			v := value
			entry.BestDualBound = &v
		default:
			return nil, fmt.Errorf("solu line %d: unrecognized solution type %q", lineNo, kind)
		}
		out[model] = entry
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read solu: %w", err)
	}
	return out, nil
}

// ReadSoluFile parses the .solu file at path.
func ReadSoluFile(path string) (map[string]SoluEntry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open solu file: %w", err)
	}
	defer func() { _ = f.Close() }()
	return ParseSolu(f)
}
