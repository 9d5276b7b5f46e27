// Package output renders gatemesh-cli results.
//
//   - format.go: Formatter, ParseFormat and the JSON and YAML writers
//   - table.go: aligned tables, built from structs by reflection
//   - spinner.go, progress.go: terminal feedback on stderr
//
// Struct fields tagged `table:"wide"` are shown only with --wide and fields
// tagged `table:"-"` never.
package output
