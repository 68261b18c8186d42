// Package db provides the embedded sample catalog.
package db

import _ "embed"

// SampleCatalog is the default seed dataset: a JSON array of products, each
// with its store prices.
//
//go:embed seed/catalog.json
var SampleCatalog []byte
