// Package parser reads requests from .http files.
//
// A file holds optional variable declarations followed by requests
// separated by ### lines:
//
//	@baseUrl = https://api.example.com
//
//	### Get user
//	GET {{baseUrl}}/users/1
//	Accept: application/json
//
//	>>>
//	expect status == 200
//	capture body.id
//	<<<
//
// A request is a request line (METHOD URL, with an optional trailing
// HTTP version), optional ?key=value and &key=value query lines, headers,
// then a body after the first blank line. Lines starting with # or // are
// comments; "# @name value" names the request. A >>> ... <<< block holds
// expect and capture lines.
package parser
