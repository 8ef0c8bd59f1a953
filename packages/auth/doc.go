// Package auth produces Authorization header values for hitwire requests.
//
// Supported schemes:
//   - Basic: user:password credentials
//   - Bearer: a static token, an HS256 JWT signed locally, or an OAuth2
//     access token fetched with the client_credentials or password grant
//
// OAuth2 token requests are themselves sent with a hitwire client.
package auth
