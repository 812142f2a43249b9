/*
Package descriptions keeps user-written descriptions of image files, keyed by
canonical absolute path, and persists them to a single SQLite file.

Loading mid-session merges: entries already in memory win over the file.
LoadReplacing is the startup variant that starts from the file's contents.
Save always writes the complete map to a temporary file next to the target
and renames it into place, so a failed save never damages the previous file
or the in-memory map.

These descriptions are separate from the one embedded in each image's EXIF
block. Neither store updates the other.
*/
package descriptions
