// Package runner sends every request in a .http file, in order.
//
// Values captured from one response are available to later requests as
// {{name.expr}}, where name is the capturing request's name and expr the
// capture expression, e.g. {{login.body.token}}. Requests without expect
// lines pass on any 2xx response.
//
// Parallel runs send requests concurrently and do not share captures.
package runner
