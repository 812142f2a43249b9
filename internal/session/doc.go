// Package session ties the pipeline together around the one open image.
//
// Loads are numbered as they are requested. When a decode finishes, its
// result is installed only if no newer request was made in the meantime;
// otherwise it is dropped and counted. In-flight decodes are never
// cancelled.
//
// Writing pixels (Commit), rewriting metadata and renaming files publish
// ImageModified and ImageRenamed events on the session's bus.
package session
