// Package handlers provides the HTTP API over the image editing session,
// the metadata rewriter and the description index.
//
// Request paths are relative to the library directory and are rejected if
// they resolve outside it. Errors are returned as {"error": "..."} with a
// status derived from the error kind.
package handlers
