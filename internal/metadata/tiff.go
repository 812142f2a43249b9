package metadata

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"slices"

	"image-library/internal/logging"
)

const (
	tagImageWidth               = 0x0100
	tagImageLength              = 0x0101
	tagImageDescription         = 0x010E
	tagStripOffsets             = 0x0111
	tagStripByteCounts          = 0x0117
	tagDateTime                 = 0x0132
	tagThumbnailOffset          = 0x0201
	tagThumbnailLength          = 0x0202
	tagExifIFD                  = 0x8769
	tagGPSIFD                   = 0x8825
	tagDateTimeOriginal         = 0x9003
	tagExifImageWidth           = 0xA002
	tagExifImageLength          = 0xA003
	tagInteropIFD               = 0xA005
	tagDeviceSettingDescription = 0xA40B
)

const (
	typeByte      = 1
	typeASCII     = 2
	typeShort     = 3
	typeLong      = 4
	typeRational  = 5
	typeSByte     = 6
	typeUndefined = 7
	typeSShort    = 8
	typeSLong     = 9
	typeSRational = 10
	typeFloat     = 11
	typeDouble    = 12
	typeIFD       = 13
)

var typeSizes = map[uint16]uint64{
	typeByte:      1,
	typeASCII:     1,
	typeShort:     2,
	typeLong:      4,
	typeRational:  8,
	typeSByte:     1,
	typeUndefined: 1,
	typeSShort:    2,
	typeSLong:     4,
	typeSRational: 8,
	typeFloat:     4,
	typeDouble:    8,
	typeIFD:       4,
}

// entry is one tag of an IFD. Value holds the raw value bytes in the
// directory's byte order.
type entry struct {
	Tag   uint16
	Type  uint16
	Count uint32
	Value []byte
}

type ifd struct {
	entries []entry
}

func (d *ifd) find(tag uint16) (entry, bool) {
	if d == nil {
		return entry{}, false
	}
	for _, e := range d.entries {
		if e.Tag == tag {
			return e, true
		}
	}
	return entry{}, false
}

func (d *ifd) set(e entry) {
	for i := range d.entries {
		if d.entries[i].Tag == e.Tag {
			d.entries[i] = e
			return
		}
	}
	d.entries = append(d.entries, e)
}

func (d *ifd) remove(tag uint16) {
	d.entries = slices.DeleteFunc(d.entries, func(e entry) bool { return e.Tag == tag })
}

// size is the number of bytes the IFD and its out-of-line values occupy.
func (d *ifd) size() uint32 {
	n := uint32(2 + 12*len(d.entries) + 4)
	for _, e := range d.entries {
		if len(e.Value) > 4 {
			n += padded(len(e.Value))
		}
	}
	return n
}

func padded(n int) uint32 {
	return uint32(n + n%2)
}

// directory is a parsed TIFF structure as embedded in an EXIF block.
type directory struct {
	order     binary.ByteOrder
	ifd0      *ifd
	exif      *ifd
	gps       *ifd
	interop   *ifd
	ifd1      *ifd
	thumbnail []byte
	// thumbTag is the IFD1 tag that locates thumbnail: either
	// tagThumbnailOffset or tagStripOffsets.
	thumbTag uint16
}

func newDirectory() *directory {
	return &directory{order: binary.BigEndian, ifd0: &ifd{}}
}

type tiffParser struct {
	data    []byte
	order   binary.ByteOrder
	visited map[uint32]bool
}

func corrupt(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrCorruptDirectory, fmt.Sprintf(format, args...))
}

// parseTIFF parses a TIFF header and the IFD chain hanging off it.
func parseTIFF(data []byte) (*directory, error) {
	if len(data) < 8 {
		return nil, corrupt("tiff header truncated")
	}

	var order binary.ByteOrder
	switch {
	case bytes.HasPrefix(data, []byte("II")):
		order = binary.LittleEndian
	case bytes.HasPrefix(data, []byte("MM")):
		order = binary.BigEndian
	default:
		return nil, corrupt("bad byte order mark %q", data[:2])
	}
	if order.Uint16(data[2:]) != 42 {
		return nil, corrupt("bad tiff magic")
	}

	p := &tiffParser{data: data, order: order, visited: make(map[uint32]bool)}
	d := &directory{order: order}

	var next uint32
	var err error
	if d.ifd0, next, err = p.readIFD(order.Uint32(data[4:])); err != nil {
		return nil, err
	}

	if d.exif, err = p.subIFD(d.ifd0, tagExifIFD); err != nil {
		return nil, err
	}
	if d.gps, err = p.subIFD(d.ifd0, tagGPSIFD); err != nil {
		return nil, err
	}
	if d.exif != nil {
		if d.interop, err = p.subIFD(d.exif, tagInteropIFD); err != nil {
			return nil, err
		}
	}

	if next != 0 {
		if d.ifd1, _, err = p.readIFD(next); err != nil {
			return nil, err
		}
		if err := p.extractThumbnail(d); err != nil {
			return nil, err
		}
	}

	return d, nil
}

func (p *tiffParser) subIFD(parent *ifd, tag uint16) (*ifd, error) {
	e, ok := parent.find(tag)
	if !ok {
		return nil, nil
	}
	off, ok := uintValue(e, p.order)
	if !ok {
		return nil, corrupt("tag %#04x is not an offset", tag)
	}
	sub, _, err := p.readIFD(uint32(off))
	return sub, err
}

func (p *tiffParser) readIFD(off uint32) (*ifd, uint32, error) {
	if p.visited[off] {
		return nil, 0, corrupt("ifd loop at offset %d", off)
	}
	p.visited[off] = true

	size := uint64(len(p.data))
	if off < 8 || uint64(off)+2 > size {
		return nil, 0, corrupt("ifd offset %d out of range", off)
	}

	n := uint64(p.order.Uint16(p.data[off:]))
	entriesEnd := uint64(off) + 2 + 12*n
	if entriesEnd > size {
		return nil, 0, corrupt("ifd at %d truncated", off)
	}

	d := &ifd{entries: make([]entry, 0, n)}
	for i := uint64(0); i < n; i++ {
		b := uint64(off) + 2 + 12*i
		e := entry{
			Tag:   p.order.Uint16(p.data[b:]),
			Type:  p.order.Uint16(p.data[b+2:]),
			Count: p.order.Uint32(p.data[b+4:]),
		}

		elem, known := typeSizes[e.Type]
		if !known {
			// The value field may be an offset to data of unknown length,
			// which could not follow the entry when the directory moves.
			logging.Warn("dropping EXIF tag %#04x with unknown type %d", e.Tag, e.Type)
			continue
		}

		total := elem * uint64(e.Count)
		if total <= 4 {
			e.Value = bytes.Clone(p.data[b+8 : b+8+total])
		} else {
			// Out-of-line values are relocated on rewrite. Blobs that hold
			// absolute offsets of their own (some maker notes) are copied
			// verbatim, so those inner offsets go stale.
			voff := uint64(p.order.Uint32(p.data[b+8:]))
			if voff+total > size {
				return nil, 0, corrupt("tag %#04x value out of range", e.Tag)
			}
			e.Value = bytes.Clone(p.data[voff : voff+total])
		}
		d.entries = append(d.entries, e)
	}

	// Some writers omit the next-IFD pointer on the last directory.
	var next uint32
	if entriesEnd+4 <= size {
		next = p.order.Uint32(p.data[entriesEnd:])
	}
	return d, next, nil
}

// extractThumbnail copies the data IFD1 points at so it can be relocated.
func (p *tiffParser) extractThumbnail(d *directory) error {
	offTag, lenTag := uint16(tagThumbnailOffset), uint16(tagThumbnailLength)
	if _, ok := d.ifd1.find(offTag); !ok {
		offTag, lenTag = tagStripOffsets, tagStripByteCounts
	}

	offEntry, hasOff := d.ifd1.find(offTag)
	lenEntry, hasLen := d.ifd1.find(lenTag)
	if !hasOff && !hasLen {
		return nil
	}

	if !hasOff || !hasLen || offEntry.Count != 1 || lenEntry.Count != 1 {
		// Multi-strip thumbnails cannot be relocated as one block.
		logging.Warn("dropping thumbnail directory with %d strips", offEntry.Count)
		d.ifd1 = nil
		return nil
	}

	off, ok1 := uintValue(offEntry, p.order)
	n, ok2 := uintValue(lenEntry, p.order)
	if !ok1 || !ok2 {
		return corrupt("thumbnail location has wrong type")
	}
	if off+n > uint64(len(p.data)) {
		return corrupt("thumbnail out of range")
	}

	d.thumbnail = bytes.Clone(p.data[off : off+n])
	d.thumbTag = offTag
	return nil
}

// uintValue returns the first element of a SHORT, LONG or IFD entry.
func uintValue(e entry, order binary.ByteOrder) (uint64, bool) {
	if e.Count < 1 {
		return 0, false
	}
	switch e.Type {
	case typeShort:
		if len(e.Value) >= 2 {
			return uint64(order.Uint16(e.Value)), true
		}
	case typeLong, typeIFD:
		if len(e.Value) >= 4 {
			return uint64(order.Uint32(e.Value)), true
		}
	}
	return 0, false
}

// asciiValue returns an ASCII entry's text up to the first NUL, trimmed.
func asciiValue(e entry) (string, bool) {
	if e.Type != typeASCII {
		return "", false
	}
	v := e.Value
	if i := bytes.IndexByte(v, 0); i >= 0 {
		v = v[:i]
	}
	return string(bytes.TrimSpace(v)), true
}

func (d *directory) uint32Entry(tag uint16, v uint32) entry {
	b := make([]byte, 4)
	d.order.PutUint32(b, v)
	return entry{Tag: tag, Type: typeLong, Count: 1, Value: b}
}

// dimensionEntry stores v as SHORT when it fits, LONG otherwise.
func (d *directory) dimensionEntry(tag uint16, v int) entry {
	if v <= 0xFFFF {
		b := make([]byte, 2)
		d.order.PutUint16(b, uint16(v))
		return entry{Tag: tag, Type: typeShort, Count: 1, Value: b}
	}
	return d.uint32Entry(tag, uint32(v))
}

func asciiEntry(tag uint16, s string) entry {
	v := append([]byte(s), 0)
	return entry{Tag: tag, Type: typeASCII, Count: uint32(len(v)), Value: v}
}

// setPointer stores an offset in an existing pointer entry, keeping its type
// when it is already a 4-byte offset type.
func (d *directory) setPointer(parent *ifd, tag uint16, off uint32) {
	if e, ok := parent.find(tag); ok && (e.Type == typeLong || e.Type == typeIFD) && e.Count == 1 {
		d.order.PutUint32(e.Value, off)
		return
	}
	parent.set(d.uint32Entry(tag, off))
}

// linkPointers makes the pointer tags agree with which sub-IFDs exist.
func (d *directory) linkPointers() {
	if d.interop != nil && d.exif == nil {
		d.exif = &ifd{}
	}

	link := func(parent *ifd, tag uint16, child *ifd) {
		if child == nil {
			parent.remove(tag)
			return
		}
		if e, ok := parent.find(tag); !ok || len(e.Value) != 4 || (e.Type != typeLong && e.Type != typeIFD) {
			parent.set(d.uint32Entry(tag, 0))
		}
	}

	link(d.ifd0, tagExifIFD, d.exif)
	link(d.ifd0, tagGPSIFD, d.gps)
	if d.exif != nil {
		link(d.exif, tagInteropIFD, d.interop)
	}
}

// encode lays the directory out compactly: header, IFD0, Exif, Interop,
// GPS, IFD1, then the thumbnail. Each IFD is followed by its out-of-line
// values.
func (d *directory) encode() []byte {
	d.linkPointers()

	for _, sub := range []*ifd{d.ifd0, d.exif, d.interop, d.gps, d.ifd1} {
		if sub != nil {
			slices.SortStableFunc(sub.entries, func(a, b entry) int { return int(a.Tag) - int(b.Tag) })
		}
	}

	off := uint32(8)
	place := func(sub *ifd) uint32 {
		if sub == nil {
			return 0
		}
		at := off
		off += sub.size()
		return at
	}

	ifd0Off := place(d.ifd0)
	exifOff := place(d.exif)
	interopOff := place(d.interop)
	gpsOff := place(d.gps)
	ifd1Off := place(d.ifd1)
	var thumbOff uint32
	if d.ifd1 != nil && d.thumbnail != nil {
		thumbOff = off
		off += padded(len(d.thumbnail))
	}

	if d.exif != nil {
		d.setPointer(d.ifd0, tagExifIFD, exifOff)
	}
	if d.gps != nil {
		d.setPointer(d.ifd0, tagGPSIFD, gpsOff)
	}
	if d.interop != nil {
		d.setPointer(d.exif, tagInteropIFD, interopOff)
	}
	if d.ifd1 != nil && d.thumbnail != nil {
		d.setPointer(d.ifd1, d.thumbTag, thumbOff)
	}

	buf := make([]byte, off)
	if d.order == binary.LittleEndian {
		copy(buf, "II")
	} else {
		copy(buf, "MM")
	}
	d.order.PutUint16(buf[2:], 42)
	d.order.PutUint32(buf[4:], ifd0Off)

	d.writeIFD(buf, d.ifd0, ifd0Off, ifd1Off)
	d.writeIFD(buf, d.exif, exifOff, 0)
	d.writeIFD(buf, d.interop, interopOff, 0)
	d.writeIFD(buf, d.gps, gpsOff, 0)
	d.writeIFD(buf, d.ifd1, ifd1Off, 0)
	if thumbOff != 0 {
		copy(buf[thumbOff:], d.thumbnail)
	}

	return buf
}

func (d *directory) writeIFD(buf []byte, sub *ifd, off, next uint32) {
	if sub == nil {
		return
	}

	d.order.PutUint16(buf[off:], uint16(len(sub.entries)))
	dataOff := off + 2 + 12*uint32(len(sub.entries)) + 4

	for i, e := range sub.entries {
		b := off + 2 + 12*uint32(i)
		d.order.PutUint16(buf[b:], e.Tag)
		d.order.PutUint16(buf[b+2:], e.Type)
		d.order.PutUint32(buf[b+4:], e.Count)
		if len(e.Value) <= 4 {
			copy(buf[b+8:b+12], e.Value)
			continue
		}
		d.order.PutUint32(buf[b+8:], dataOff)
		copy(buf[dataOff:], e.Value)
		dataOff += padded(len(e.Value))
	}

	d.order.PutUint32(buf[off+2+12*uint32(len(sub.entries)):], next)
}

// record extracts the fields the pipeline understands.
func (d *directory) record() Record {
	var r Record

	for _, src := range []struct {
		dir *ifd
		tag uint16
	}{{d.exif, tagDateTimeOriginal}, {d.ifd0, tagDateTime}} {
		e, ok := src.dir.find(src.tag)
		if !ok {
			continue
		}
		s, ok := asciiValue(e)
		if !ok {
			continue
		}
		t, err := ParseTime(s)
		if err != nil {
			logging.Debug("ignoring unparseable date %q in tag %#04x: %v", s, src.tag, err)
			continue
		}
		r.DateTaken = &t
		break
	}

	r.Width = d.dimension(tagExifImageWidth, tagImageWidth)
	r.Height = d.dimension(tagExifImageLength, tagImageLength)

	if e, ok := d.exif.find(tagDeviceSettingDescription); ok {
		r.Description = bytes.Clone(e.Value)
	} else if e, ok := d.ifd0.find(tagImageDescription); ok {
		if s, ok := asciiValue(e); ok {
			r.Description = []byte(s)
		}
	}

	return r
}

func (d *directory) dimension(exifTag, ifd0Tag uint16) *int {
	if e, ok := d.exif.find(exifTag); ok {
		if v, ok := uintValue(e, d.order); ok {
			n := int(v)
			return &n
		}
	}
	if e, ok := d.ifd0.find(ifd0Tag); ok {
		if v, ok := uintValue(e, d.order); ok {
			n := int(v)
			return &n
		}
	}
	return nil
}

// apply sets every field of p in the Exif IFD, creating it if needed.
func (d *directory) apply(p Patch) {
	if d.exif == nil {
		d.exif = &ifd{}
	}

	if p.DateTaken != nil {
		d.exif.set(asciiEntry(tagDateTimeOriginal, FormatTime(*p.DateTaken)))
	}
	if p.Width != nil {
		d.exif.set(d.dimensionEntry(tagExifImageWidth, *p.Width))
	}
	if p.Height != nil {
		d.exif.set(d.dimensionEntry(tagExifImageLength, *p.Height))
	}
	if p.Description != nil {
		d.exif.set(entry{
			Tag:   tagDeviceSettingDescription,
			Type:  typeUndefined,
			Count: uint32(len(p.Description)),
			Value: bytes.Clone(p.Description),
		})
	}
}
