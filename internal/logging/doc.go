// Package logging provides the leveled logger used across the image
// library: Debug, Info, Warn and Error, plus Fatal for startup failures in
// main.
//
// The level comes from DEBUG (any truthy value forces debug) or LOG_LEVEL
// (debug, info, warn, error) and may be overridden at runtime with SetLevel.
package logging
