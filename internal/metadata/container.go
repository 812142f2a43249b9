package metadata

import (
	"bytes"
	"encoding/binary"
	"hash/crc32"
)

const (
	markerSOS  = 0xDA
	markerEOI  = 0xD9
	markerAPP0 = 0xE0
	markerAPP1 = 0xE1

	// maxSegmentPayload is the largest JPEG segment body: the 16-bit length
	// field counts itself.
	maxSegmentPayload = 0xFFFF - 2
)

var (
	jpegSOI      = []byte{0xFF, 0xD8}
	pngSignature = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1A, '\n'}
	exifPrefix   = []byte("Exif\x00\x00")
	jfifPrefix   = []byte("JFIF\x00")
)

// container abstracts where the TIFF block lives inside a file.
type container interface {
	// tiff returns the embedded TIFF block, or nil when there is none.
	tiff() []byte
	// replace returns the file with its TIFF block replaced by (or set to) block.
	replace(block []byte) ([]byte, error)
}

func openContainer(data []byte) (container, error) {
	switch {
	case bytes.HasPrefix(data, jpegSOI):
		return parseJPEG(data)
	case bytes.HasPrefix(data, pngSignature):
		return parsePNG(data)
	default:
		return nil, ErrUnsupportedContainer
	}
}

// segment is a JPEG marker segment spanning data[start:end], marker included.
type segment struct {
	marker  byte
	start   int
	end     int
	payload []byte
}

type jpegFile struct {
	data     []byte
	segments []segment
	exif     int // index into segments, -1 when absent
}

// parseJPEG walks the marker segments up to the start of scan. Everything
// from SOS on is entropy-coded image data and is never inspected.
func parseJPEG(data []byte) (*jpegFile, error) {
	j := &jpegFile{data: data, exif: -1}
	pos := len(jpegSOI)

	for {
		if pos >= len(data) {
			return nil, corrupt("jpeg ends before start of scan")
		}
		if data[pos] != 0xFF {
			return nil, corrupt("expected jpeg marker at offset %d", pos)
		}
		start := pos
		for pos < len(data) && data[pos] == 0xFF {
			pos++
		}
		if pos >= len(data) {
			return nil, corrupt("jpeg truncated in marker")
		}
		marker := data[pos]
		pos++

		if marker == markerSOS || marker == markerEOI {
			return j, nil
		}
		if (marker >= 0xD0 && marker <= 0xD7) || marker == 0x01 {
			j.segments = append(j.segments, segment{marker: marker, start: start, end: pos})
			continue
		}

		if pos+2 > len(data) {
			return nil, corrupt("jpeg segment length truncated")
		}
		n := int(binary.BigEndian.Uint16(data[pos:]))
		if n < 2 || pos+n > len(data) {
			return nil, corrupt("jpeg segment %#02x overruns file", marker)
		}

		seg := segment{marker: marker, start: start, end: pos + n, payload: data[pos+2 : pos+n]}
		if j.exif < 0 && marker == markerAPP1 && bytes.HasPrefix(seg.payload, exifPrefix) {
			j.exif = len(j.segments)
		}
		j.segments = append(j.segments, seg)
		pos += n
	}
}

func (j *jpegFile) tiff() []byte {
	if j.exif < 0 {
		return nil
	}
	return j.segments[j.exif].payload[len(exifPrefix):]
}

func (j *jpegFile) replace(block []byte) ([]byte, error) {
	payloadLen := len(exifPrefix) + len(block)
	if payloadLen > maxSegmentPayload {
		return nil, ErrDirectoryTooLarge
	}

	app1 := make([]byte, 0, 4+payloadLen)
	app1 = append(app1, 0xFF, markerAPP1)
	app1 = binary.BigEndian.AppendUint16(app1, uint16(payloadLen+2))
	app1 = append(app1, exifPrefix...)
	app1 = append(app1, block...)

	from, to := len(jpegSOI), len(jpegSOI)
	switch {
	case j.exif >= 0:
		from, to = j.segments[j.exif].start, j.segments[j.exif].end
	case len(j.segments) > 0 && j.segments[0].marker == markerAPP0 && bytes.HasPrefix(j.segments[0].payload, jfifPrefix):
		// JFIF requires APP0 to come first.
		from, to = j.segments[0].end, j.segments[0].end
	}

	return splice(j.data, from, to, app1), nil
}

// chunk is a PNG chunk spanning data[start:end], length and CRC included.
type chunk struct {
	kind  string
	start int
	end   int
	data  []byte
}

type pngFile struct {
	data   []byte
	chunks []chunk
	exif   int
}

func parsePNG(data []byte) (*pngFile, error) {
	p := &pngFile{data: data, exif: -1}
	pos := len(pngSignature)

	for pos < len(data) {
		if pos+8 > len(data) {
			return nil, corrupt("png chunk header truncated")
		}
		n := uint64(binary.BigEndian.Uint32(data[pos:]))
		kind := string(data[pos+4 : pos+8])
		end := uint64(pos) + 12 + n
		if end > uint64(len(data)) {
			return nil, corrupt("png chunk %s overruns file", kind)
		}

		c := chunk{kind: kind, start: pos, end: int(end), data: data[pos+8 : pos+8+int(n)]}
		if p.exif < 0 && kind == "eXIf" {
			p.exif = len(p.chunks)
		}
		p.chunks = append(p.chunks, c)
		pos = int(end)

		if kind == "IEND" {
			return p, nil
		}
	}
	return nil, corrupt("png has no IEND chunk")
}

func (p *pngFile) tiff() []byte {
	if p.exif < 0 {
		return nil
	}
	return p.chunks[p.exif].data
}

func (p *pngFile) replace(block []byte) ([]byte, error) {
	if uint64(len(block)) > 0x7FFFFFFF {
		return nil, ErrDirectoryTooLarge
	}

	c := make([]byte, 0, 12+len(block))
	c = binary.BigEndian.AppendUint32(c, uint32(len(block)))
	c = append(c, "eXIf"...)
	c = append(c, block...)
	c = binary.BigEndian.AppendUint32(c, crc32.ChecksumIEEE(c[4:]))

	if p.exif >= 0 {
		return splice(p.data, p.chunks[p.exif].start, p.chunks[p.exif].end, c), nil
	}

	// A new eXIf goes before the first IDAT, or before IEND if there is none.
	at := p.chunks[len(p.chunks)-1].start
	for _, ch := range p.chunks {
		if ch.kind == "IDAT" {
			at = ch.start
			break
		}
	}
	return splice(p.data, at, at, c), nil
}

// splice returns data with data[from:to] replaced by insert, in a new slice.
func splice(data []byte, from, to int, insert []byte) []byte {
	out := make([]byte, 0, len(data)-(to-from)+len(insert))
	out = append(out, data[:from]...)
	out = append(out, insert...)
	out = append(out, data[to:]...)
	return out
}
