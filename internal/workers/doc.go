// Package workers sizes CPU parallelism for image decoding.
//
// The count follows GOMAXPROCS, which Go sets from the container CPU quota,
// and can be pinned with the IMAGE_WORKERS environment variable.
package workers
