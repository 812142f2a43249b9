/*
Package filesystem wraps the file operations used by the image pipeline.

Reads (OpenWithRetry, ReadFileWithRetry) retry on ESTALE with exponential
backoff, which matters when the photo library lives on an NFS mount. Any
other error is returned immediately.

Writes go through WriteAtomic, or TempPath plus Replace when another library
writes the temporary file itself. Both write the new content to a hidden
sibling of the destination and then rename it into place. If the rename fails
the temporary file is removed and a *PartialWriteError is returned, so a
half-finished commit can never pass for the new file.

Metrics are reported through an Observer installed with SetObserver.
*/
package filesystem
