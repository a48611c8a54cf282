// Package homework contains the domain model of the homework status bot:
// the verdict table, the response validator, the status parser and the
// error taxonomy shared by the API client and the poll loop.
//
// The package works on decoded JSON values (map[string]any, []any) rather
// than typed DTOs so that shape violations in the remote payload surface as
// SchemaError instead of being silently zero-valued by the decoder.
package homework
