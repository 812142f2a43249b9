// Command exifedit reads and rewrites the metadata of library images from
// the command line, and edits the description index.
//
// Usage:
//
//	exifedit <command> [flags] <file>
//
// Commands:
//
//	read      Print the date taken, pixel dimensions and embedded description.
//
//	write     Rewrite the date taken, dimensions or description of a JPEG or
//	          PNG file. Pixel data is copied byte for byte. With -o the
//	          result goes to a new file and the source is left untouched.
//
//	describe  Print the indexed description of a file, or set it when a
//	          text argument is given.
//
// Environment:
//
//	DESCRIPTIONS_FILE - Description index file (default: /library/.descriptions.db)
package main
