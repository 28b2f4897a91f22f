// Package server implements the HTTP server and HTTP handlers for the
// image asset catalog. It wires together the admin and public routes, the
// session issuer, the upload pipeline and the middleware chain, and provides
// lifecycle helpers used by tests and the production binary.
package server
