// Package server is the HTTP surface: gin routes, the per-request access
// guard, and the uniform {code, data, message} response envelope.
package server
