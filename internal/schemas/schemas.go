// Package schemas содержит JSON-схемы событийных контрактов сервиса.
package schemas

import "embed"

//go:embed events
var SchemasFS embed.FS
