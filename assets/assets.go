// Package assets holds files embedded into the binaries.
package assets

import _ "embed"

// SampleStatement is a small bank-schema CSV statement served to clients
// that want to try the importer.
//
//go:embed sample_statement.csv
var SampleStatement []byte
