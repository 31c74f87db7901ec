// Package filtering selects which font families take part in a discovery run.
//
// Families are matched by name against include and exclude glob patterns,
// with exclude taking precedence over include:
//
//  1. If exclude patterns are specified and match -> exclude (precedence)
//  2. If include patterns are specified and match -> include
//  3. If include patterns are specified but no match -> exclude
//  4. If only exclude patterns are specified and no match -> include
//  5. If no patterns are specified -> include (default behavior)
//
// Patterns use gobwas/glob syntax, so '*' also matches across '/':
//
//   - "Noto *" matches "Noto Sans", "Noto Serif Display"
//   - "Roboto?" matches "Roboto2" but not "Roboto Mono"
//
// Each decision comes with a reason string, logged at debug level by callers
// so that filter configurations are easy to check.
package filtering
