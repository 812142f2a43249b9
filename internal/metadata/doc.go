/*
Package metadata reads and losslessly rewrites the EXIF block embedded in
JPEG (APP1) and PNG (eXIf) files.

The block is a small TIFF structure. This package parses IFD0, the Exif, GPS
and Interoperability sub-directories and IFD1 with its thumbnail, and
understands three fields:

	capture time   DateTimeOriginal (0x9003), falling back to DateTime (0x0132)
	dimensions     ExifImageWidth/Length (0xA002/0xA003), falling back to ImageWidth/Length
	description    DeviceSettingDescription (0xA40B), falling back to ImageDescription (0x010E)

Rewrite sets the patched fields in the Exif directory and copies every other
tag through with its original type, count and value bytes. The directory is
re-laid out compactly, so offsets change, but nothing outside the EXIF block
is touched: JPEG scan data and PNG IDAT chunks come out byte-identical.

Values stored inside opaque blobs that hold absolute offsets (some maker
notes do) are not rebased.
*/
package metadata
