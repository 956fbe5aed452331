// Package uri implements RFC 3986 Uniform Resource Identifier parsing,
// syntax-based normalization and relative-reference resolution — the
// basis for the client's URL parser and its Location-header redirect
// resolution.
package uri
