// Package schemasassets embeds the JSON schemas for gosperf's YAML documents.
//
// Schemas are compiled into the binary so catalog, run config and job result
// validation work regardless of the working directory or installation location.
package schemasassets

import _ "embed"

// CatalogSchema is the embedded model/solver catalog JSON schema.
//
//go:embed catalog.schema.json
var CatalogSchema []byte

// RunConfigSchema is the embedded run config JSON schema.
//
// The run config is the sole durable record of a run's bookkeeping, so it is
// checked strictly on every load.
//
//go:embed run-config.schema.json
var RunConfigSchema []byte

// JobResultSchema is the embedded per-job result record JSON schema.
//
//go:embed job-result.schema.json
var JobResultSchema []byte
