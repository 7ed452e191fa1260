// Package api carries the OpenAPI contract the HTTP adapter serves and
// validates requests against.
package api

import _ "embed"

//go:embed openapi.yaml
var SpecYAML []byte
