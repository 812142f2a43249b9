// Package events is a small synchronous publish/subscribe bus used to tell
// interested parties that a file was modified or renamed.
package events
