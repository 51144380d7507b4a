// Package identity issues and checks the bearer tokens that authorise writes
// to a blocklog node.
//
// It provides:
//   - TokenIssuer:  issues and verifies HS256 JWT writer tokens
//   - RequireToken: Gin middleware enforcing a Bearer writer token
package identity
