// Package middleware provides HTTP middleware for the image library API.
//
// It includes:
//   - Request logging in W3C Extended Log Format
//   - Request ID propagation
//   - Prometheus request metrics labelled by route template
package middleware
