// Package vars expands {{...}} placeholders in request URLs, headers, query
// values and bodies before they reach the client.
//
// Supported forms:
//   - {{name}}: a user variable from --var, --env-file or the config file
//   - {{$NAME}}: a process environment variable
//   - {{uuid()}}, {{timestamp()}}, {{randomString(8)}} and friends: built-in functions
//
// Placeholders that cannot be resolved are left untouched and reported.
package vars
