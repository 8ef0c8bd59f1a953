// Package assertions checks responses for `hitwire request`.
//
// Supported checks:
//   - Status code lists and classes (--expect-status 200,204 or 2xx)
//   - JSON Schema validation of the body (--schema ./schema.json)
//   - Value comparisons on any capture expression (--expect "body.id == 7")
//
// Comparison operators: ==, !=, >, >=, <, <=, contains, matches, exists.
package assertions
