package metadata

import (
	"bytes"
	"encoding/binary"
	"errors"
	"hash/crc32"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func plainJPEG(t *testing.T) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 16, 16))
	for i := range img.Pix {
		img.Pix[i] = byte(i * 7)
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 80}); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func plainPNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 8, 8))
	img.SetNRGBA(3, 3, color.NRGBA{R: 255, A: 255})
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

// scanData returns the bytes from the start-of-scan marker to the end.
func scanData(t *testing.T, data []byte) []byte {
	t.Helper()
	j, err := parseJPEG(data)
	if err != nil {
		t.Fatalf("parseJPEG: %v", err)
	}
	return data[j.segments[len(j.segments)-1].end:]
}

func withTIFF(t *testing.T, data, block []byte) []byte {
	t.Helper()
	c, err := openContainer(data)
	if err != nil {
		t.Fatal(err)
	}
	out, err := c.replace(block)
	if err != nil {
		t.Fatal(err)
	}
	return out
}

func extractTIFF(t *testing.T, data []byte) *directory {
	t.Helper()
	c, err := openContainer(data)
	if err != nil {
		t.Fatalf("openContainer: %v", err)
	}
	d, err := parseTIFF(c.tiff())
	if err != nil {
		t.Fatalf("parseTIFF: %v", err)
	}
	return d
}

func ptr[T any](v T) *T { return &v }

func TestReadRecordWithoutDirectory(t *testing.T) {
	for name, data := range map[string][]byte{"jpeg": plainJPEG(t), "png": plainPNG(t)} {
		t.Run(name, func(t *testing.T) {
			r, err := ReadRecord(data)
			if err != nil {
				t.Fatalf("ReadRecord: %v", err)
			}
			if r.DateTaken != nil || r.Width != nil || r.Height != nil || r.Description != nil {
				t.Errorf("expected empty record, got %+v", r)
			}
		})
	}
}

func TestUnsupportedContainer(t *testing.T) {
	gif := []byte("GIF89a\x01\x00\x01\x00")

	if _, err := ReadRecord(gif); !errors.Is(err, ErrUnsupportedContainer) {
		t.Errorf("ReadRecord: expected ErrUnsupportedContainer, got %v", err)
	}
	if _, err := Rewrite(gif, Patch{Width: ptr(1)}); !errors.Is(err, ErrUnsupportedContainer) {
		t.Errorf("Rewrite: expected ErrUnsupportedContainer, got %v", err)
	}
}

func TestRewriteCreatesDirectory(t *testing.T) {
	src := plainJPEG(t)
	when := time.Date(2021, 7, 4, 18, 30, 5, 0, time.UTC)

	out, err := Rewrite(src, Patch{
		DateTaken:   &when,
		Width:       ptr(4000),
		Height:      ptr(70000),
		Description: []byte("harbour at dusk"),
	})
	if err != nil {
		t.Fatalf("Rewrite: %v", err)
	}

	r, err := ReadRecord(out)
	if err != nil {
		t.Fatalf("ReadRecord: %v", err)
	}
	if r.DateTaken == nil || !r.DateTaken.Equal(when) {
		t.Errorf("DateTaken = %v, want %v", r.DateTaken, when)
	}
	if r.Width == nil || *r.Width != 4000 {
		t.Errorf("Width = %v", r.Width)
	}
	if r.Height == nil || *r.Height != 70000 {
		t.Errorf("Height = %v", r.Height)
	}
	if string(r.Description) != "harbour at dusk" {
		t.Errorf("Description = %q", r.Description)
	}

	d := extractTIFF(t, out)
	if e, _ := d.exif.find(tagExifImageWidth); e.Type != typeShort {
		t.Errorf("width stored as type %d, want SHORT", e.Type)
	}
	if e, _ := d.exif.find(tagExifImageLength); e.Type != typeLong {
		t.Errorf("height stored as type %d, want LONG", e.Type)
	}
	if e, _ := d.exif.find(tagDateTimeOriginal); string(e.Value) != "2021:07:04 18:30:05\x00" {
		t.Errorf("date value = %q", e.Value)
	}

	if !bytes.Equal(scanData(t, out), scanData(t, src)) {
		t.Error("scan data changed")
	}
	if !bytes.Equal(out[:2], jpegSOI) || out[2] != 0xFF || out[3] != markerAPP1 {
		t.Errorf("APP1 not inserted after SOI: % x", out[:4])
	}
}

func TestDescriptionRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		text []byte
	}{
		{"ascii", []byte("A day at the beach")},
		{"accented", []byte("Café à la crème, Zürich")},
		{"emoji", []byte("sunset 🌅")},
		{"empty", []byte{}},
		{"binary", []byte{0x00, 0xFF, 0x10, 0x00}},
	}

	containers := map[string][]byte{"jpeg": plainJPEG(t), "png": plainPNG(t)}

	for cname, src := range containers {
		for _, tt := range tests {
			t.Run(cname+"/"+tt.name, func(t *testing.T) {
				out, err := Rewrite(src, Patch{Description: tt.text})
				if err != nil {
					t.Fatalf("Rewrite: %v", err)
				}
				r, err := ReadRecord(out)
				if err != nil {
					t.Fatalf("ReadRecord: %v", err)
				}
				if r.Description == nil || !bytes.Equal(r.Description, tt.text) {
					t.Errorf("Description = %q, want %q", r.Description, tt.text)
				}
			})
		}
	}
}

func richDirectory() (*directory, []byte) {
	thumb := []byte("\xFF\xD8fake-thumbnail-bytes\xFF\xD9")
	rational := make([]byte, 8)
	binary.LittleEndian.PutUint32(rational, 72)
	binary.LittleEndian.PutUint32(rational[4:], 1)

	d := &directory{order: binary.LittleEndian, ifd0: &ifd{}, exif: &ifd{}, gps: &ifd{}, ifd1: &ifd{}}
	d.ifd0.set(asciiEntry(0x010F, "ACME Optical"))
	d.ifd0.set(entry{Tag: 0x011A, Type: typeRational, Count: 1, Value: rational})
	d.ifd0.set(asciiEntry(tagDateTime, "2019:01:02 03:04:05"))
	d.exif.set(entry{Tag: 0x927C, Type: typeUndefined, Count: 14, Value: []byte("vendor-private")})
	d.exif.set(d.dimensionEntry(tagExifImageWidth, 640))
	d.gps.set(entry{Tag: 0x0000, Type: typeByte, Count: 4, Value: []byte{2, 3, 0, 0}})
	d.ifd1.set(d.uint32Entry(tagThumbnailOffset, 0))
	d.ifd1.set(d.uint32Entry(tagThumbnailLength, uint32(len(thumb))))
	d.thumbnail = thumb
	d.thumbTag = tagThumbnailOffset
	return d, thumb
}

func TestRewritePreservesUnknownTags(t *testing.T) {
	d, thumb := richDirectory()
	src := withTIFF(t, plainJPEG(t), d.encode())
	before := extractTIFF(t, src)

	out, err := Rewrite(src, Patch{Description: []byte("new caption"), Height: ptr(480)})
	if err != nil {
		t.Fatalf("Rewrite: %v", err)
	}
	after := extractTIFF(t, out)

	if after.order != binary.LittleEndian {
		t.Error("byte order changed")
	}

	pointers := map[uint16]bool{tagExifIFD: true, tagGPSIFD: true, tagInteropIFD: true, tagThumbnailOffset: true}
	pairs := []struct {
		name   string
		before *ifd
		after  *ifd
	}{
		{"ifd0", before.ifd0, after.ifd0},
		{"exif", before.exif, after.exif},
		{"gps", before.gps, after.gps},
		{"ifd1", before.ifd1, after.ifd1},
	}
	for _, p := range pairs {
		for _, want := range p.before.entries {
			if pointers[want.Tag] {
				continue
			}
			got, ok := p.after.find(want.Tag)
			if !ok {
				t.Errorf("%s: tag %#04x dropped", p.name, want.Tag)
				continue
			}
			if got.Type != want.Type || got.Count != want.Count || !bytes.Equal(got.Value, want.Value) {
				t.Errorf("%s: tag %#04x changed: %+v -> %+v", p.name, want.Tag, want, got)
			}
		}
	}

	if !bytes.Equal(after.thumbnail, thumb) {
		t.Errorf("thumbnail = %q, want %q", after.thumbnail, thumb)
	}
	if !bytes.Equal(scanData(t, out), scanData(t, src)) {
		t.Error("scan data changed")
	}

	r, err := ReadRecord(out)
	if err != nil {
		t.Fatal(err)
	}
	if r.Width == nil || *r.Width != 640 || r.Height == nil || *r.Height != 480 {
		t.Errorf("dimensions = %v x %v", r.Width, r.Height)
	}
	if r.DateTaken == nil || FormatTime(*r.DateTaken) != "2019:01:02 03:04:05" {
		t.Errorf("DateTaken fallback = %v", r.DateTaken)
	}
}

func TestRewriteDropsUnknownTypes(t *testing.T) {
	d, _ := richDirectory()
	d.exif.set(entry{Tag: 0xC4A5, Type: 0x99, Count: 7, Value: []byte{0, 0, 0, 8}})
	src := withTIFF(t, plainJPEG(t), d.encode())

	parsed := extractTIFF(t, src)
	if _, ok := parsed.exif.find(0xC4A5); ok {
		t.Fatal("entry with unknown type kept by parser")
	}
	if _, ok := parsed.exif.find(0x927C); !ok {
		t.Error("known neighbouring tag lost")
	}

	out, err := Rewrite(src, Patch{Description: []byte("caption")})
	if err != nil {
		t.Fatalf("Rewrite: %v", err)
	}
	if _, ok := extractTIFF(t, out).exif.find(0xC4A5); ok {
		t.Error("entry with unknown type written back")
	}
}

func TestRewriteInsertsAfterJFIF(t *testing.T) {
	base := plainJPEG(t)
	app0 := []byte{0xFF, markerAPP0, 0x00, 0x10, 'J', 'F', 'I', 'F', 0x00, 0x01, 0x01, 0x00, 0x00, 0x01, 0x00, 0x01, 0x00, 0x00}
	src := splice(base, 2, 2, app0)

	out, err := Rewrite(src, Patch{Width: ptr(16)})
	if err != nil {
		t.Fatalf("Rewrite: %v", err)
	}
	if !bytes.Equal(out[2:2+len(app0)], app0) {
		t.Error("APP0 no longer follows SOI")
	}
	if out[2+len(app0)] != 0xFF || out[3+len(app0)] != markerAPP1 {
		t.Error("APP1 not placed after APP0")
	}
}

func TestRewriteReplacesExistingBlock(t *testing.T) {
	src, err := Rewrite(plainJPEG(t), Patch{Description: []byte("first")})
	if err != nil {
		t.Fatal(err)
	}
	out, err := Rewrite(src, Patch{Description: []byte("second")})
	if err != nil {
		t.Fatal(err)
	}

	j, err := parseJPEG(out)
	if err != nil {
		t.Fatal(err)
	}
	app1 := 0
	for _, s := range j.segments {
		if s.marker == markerAPP1 {
			app1++
		}
	}
	if app1 != 1 {
		t.Errorf("found %d APP1 segments, want 1", app1)
	}

	r, _ := ReadRecord(out)
	if string(r.Description) != "second" {
		t.Errorf("Description = %q", r.Description)
	}
}

func TestRewritePNG(t *testing.T) {
	src := plainPNG(t)
	out, err := Rewrite(src, Patch{Description: []byte("png caption")})
	if err != nil {
		t.Fatalf("Rewrite: %v", err)
	}

	before, err := parsePNG(src)
	if err != nil {
		t.Fatal(err)
	}
	after, err := parsePNG(out)
	if err != nil {
		t.Fatal(err)
	}

	if after.exif < 0 {
		t.Fatal("no eXIf chunk written")
	}
	for i, c := range after.chunks {
		if c.kind == "IDAT" && i < after.exif {
			t.Error("eXIf written after IDAT")
		}
	}

	exif := after.chunks[after.exif]
	raw := out[exif.start:exif.end]
	if got, want := binary.BigEndian.Uint32(raw[len(raw)-4:]), crc32.ChecksumIEEE(raw[4:len(raw)-4]); got != want {
		t.Errorf("crc = %08x, want %08x", got, want)
	}

	var idatBefore, idatAfter []byte
	for _, c := range before.chunks {
		if c.kind == "IDAT" {
			idatBefore = append(idatBefore, c.data...)
		}
	}
	for _, c := range after.chunks {
		if c.kind == "IDAT" {
			idatAfter = append(idatAfter, c.data...)
		}
	}
	if !bytes.Equal(idatBefore, idatAfter) {
		t.Error("IDAT data changed")
	}

	if _, err := png.Decode(bytes.NewReader(out)); err != nil {
		t.Errorf("rewritten PNG no longer decodes: %v", err)
	}
}

func TestCorruptInputs(t *testing.T) {
	jpg := plainJPEG(t)

	loop := []byte{'M', 'M', 0, 42, 0, 0, 0, 8,
		0, 1, // one entry
		0x87, 0x69, 0, typeLong, 0, 0, 0, 1, 0, 0, 0, 8, // Exif pointer back to IFD0
		0, 0, 0, 0}
	outOfRange := []byte{'M', 'M', 0, 42, 0, 0, 0, 8,
		0, 1,
		0x01, 0x0E, 0, typeASCII, 0, 0, 0, 100, 0, 0, 0x03, 0xE8,
		0, 0, 0, 0}

	tests := []struct {
		name string
		data []byte
	}{
		{"truncated jpeg segment", []byte{0xFF, 0xD8, 0xFF, 0xE1, 0x10, 0x00, 'E'}},
		{"jpeg without scan", []byte{0xFF, 0xD8}},
		{"bad byte order", withTIFF(t, jpg, []byte("XX\x00\x2a\x00\x00\x00\x08"))},
		{"bad magic", withTIFF(t, jpg, []byte("MM\x00\x2b\x00\x00\x00\x08"))},
		{"ifd loop", withTIFF(t, jpg, loop)},
		{"value out of range", withTIFF(t, jpg, outOfRange)},
		{"png without IEND", pngSignature},
		{"png chunk overrun", append(bytes.Clone(pngSignature), 0, 0, 1, 0, 'I', 'H', 'D', 'R')},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ReadRecord(tt.data); !errors.Is(err, ErrCorruptDirectory) {
				t.Errorf("ReadRecord: expected ErrCorruptDirectory, got %v", err)
			}
			if _, err := Rewrite(tt.data, Patch{Width: ptr(1)}); !errors.Is(err, ErrCorruptDirectory) {
				t.Errorf("Rewrite: expected ErrCorruptDirectory, got %v", err)
			}
		})
	}
}

func TestDirectoryTooLarge(t *testing.T) {
	big := bytes.Repeat([]byte{'x'}, 70000)

	if _, err := Rewrite(plainJPEG(t), Patch{Description: big}); !errors.Is(err, ErrDirectoryTooLarge) {
		t.Errorf("jpeg: expected ErrDirectoryTooLarge, got %v", err)
	}

	out, err := Rewrite(plainPNG(t), Patch{Description: big})
	if err != nil {
		t.Fatalf("png: %v", err)
	}
	r, _ := ReadRecord(out)
	if len(r.Description) != len(big) {
		t.Errorf("png description length = %d", len(r.Description))
	}
}

func TestRewriteEmptyPatchIsCopy(t *testing.T) {
	src := plainJPEG(t)
	out, err := Rewrite(src, Patch{})
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(out, src) {
		t.Error("empty patch changed the file")
	}
	out[0] = 0
	if src[0] != 0xFF {
		t.Error("Rewrite returned an alias of its input")
	}
}

func TestPatchValidate(t *testing.T) {
	tests := []struct {
		name  string
		patch Patch
		ok    bool
	}{
		{"empty", Patch{}, true},
		{"positive width", Patch{Width: ptr(1)}, true},
		{"zero width", Patch{Width: ptr(0)}, false},
		{"negative height", Patch{Height: ptr(-5)}, false},
		{"year out of range", Patch{DateTaken: ptr(time.Date(10000, 1, 1, 0, 0, 0, 0, time.UTC))}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.patch.Validate()
			if tt.ok && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			if !tt.ok && !errors.Is(err, ErrInvalidValue) {
				t.Errorf("expected ErrInvalidValue, got %v", err)
			}
		})
	}
}

func TestUnparseableDateIsAbsent(t *testing.T) {
	d := newDirectory()
	d.exif = &ifd{}
	d.exif.set(asciiEntry(tagDateTimeOriginal, "    :  :     :  :  "))
	src := withTIFF(t, plainJPEG(t), d.encode())

	r, err := ReadRecord(src)
	if err != nil {
		t.Fatalf("ReadRecord: %v", err)
	}
	if r.DateTaken != nil {
		t.Errorf("DateTaken = %v, want nil", r.DateTaken)
	}
}

func TestParseAndFormatTime(t *testing.T) {
	got, err := ParseTime("2020:02:29 23:59:58")
	if err != nil {
		t.Fatal(err)
	}
	if want := time.Date(2020, 2, 29, 23, 59, 58, 0, time.UTC); !got.Equal(want) {
		t.Errorf("ParseTime = %v, want %v", got, want)
	}
	if s := FormatTime(got.Add(400 * time.Millisecond)); s != "2020:02:29 23:59:58" {
		t.Errorf("FormatTime = %q", s)
	}
	if _, err := ParseTime("2020-02-29 23:59:58"); err == nil {
		t.Error("expected error for wrong separators")
	}
}

func TestRewriteFile(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "in.jpg")
	dst := filepath.Join(dir, "out.jpg")
	orig := plainJPEG(t)
	if err := os.WriteFile(src, orig, 0o644); err != nil {
		t.Fatal(err)
	}

	if err := RewriteFile(src, dst, Patch{Description: []byte("on disk")}); err != nil {
		t.Fatalf("RewriteFile: %v", err)
	}

	r, err := ReadFile(dst)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(r.Description) != "on disk" {
		t.Errorf("Description = %q", r.Description)
	}

	data, _ := os.ReadFile(src)
	if !bytes.Equal(data, orig) {
		t.Error("source file modified")
	}
}

func TestRewriteFileFailureLeavesNoDestination(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "in.gif")
	dst := filepath.Join(dir, "out.gif")
	if err := os.WriteFile(src, []byte("GIF89a"), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := RewriteFile(src, dst, Patch{Width: ptr(2)}); !errors.Is(err, ErrUnsupportedContainer) {
		t.Fatalf("expected ErrUnsupportedContainer, got %v", err)
	}
	if _, err := os.Stat(dst); !errors.Is(err, os.ErrNotExist) {
		t.Error("destination created on failure")
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 1 {
		t.Errorf("directory has %d entries, want 1", len(entries))
	}
}
