package dexfile

import (
	"archive/zip"
	"bytes"
	"compress/gzip"
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"topper/internal/disasm"
)

// testCode is const-string v0, "hello" followed by throw v0.
var testCode = []byte{0x1a, 0x00, 0x05, 0x00, 0x27, 0x00}

// buildDex assembles a minimal dex with one class LFoo; holding field
// count:I, method bar(I)V, a method handle and a call site, then code.
func buildDex(code []byte) []byte {
	strs := []string{"I", "LFoo;", "V", "bar", "count", "hello", "boot"}
	le := binary.LittleEndian
	b := make([]byte, HeaderSize)
	put32 := func(v uint32) { b = le.AppendUint32(b, v) }
	put16 := func(v uint16) { b = le.AppendUint16(b, v) }

	stringIDs := len(b)
	for range strs {
		put32(0)
	}
	typeIDs := len(b)
	put32(0)
	put32(1)
	put32(2)
	protoIDs := len(b)
	put32(2)
	put32(2)
	paramsAt := len(b)
	put32(0)
	fieldIDs := len(b)
	put16(1)
	put16(0)
	put32(4)
	methodIDs := len(b)
	put16(1)
	put16(0)
	put32(3)
	handles := len(b)
	put16(4)
	put16(0)
	put16(0)
	put16(0)
	callSites := len(b)
	put32(0)

	le.PutUint32(b[paramsAt:], uint32(len(b)))
	put32(1)
	put16(0)
	put16(0)
	le.PutUint32(b[callSites:], uint32(len(b)))
	b = append(b, 0x03, valueMethodHandle, 0x00, valueString, 0x06, valueMethodType, 0x00, 0x00)

	mapOff := len(b)
	put32(2)
	put16(mapTypeMethodHandle)
	put16(0)
	put32(1)
	put32(uint32(handles))
	put16(mapTypeCallSiteID)
	put16(0)
	put32(1)
	put32(uint32(callSites))

	for i, s := range strs {
		le.PutUint32(b[stringIDs+4*i:], uint32(len(b)))
		b = append(b, byte(len(s)))
		b = append(b, s...)
		b = append(b, 0)
	}
	if len(b)%2 == 1 {
		b = append(b, 0)
	}
	b = append(b, code...)

	copy(b, "dex\n039\x00")
	for off, v := range map[int]int{
		32: len(b), 36: HeaderSize, 40: endianConstant, 52: mapOff,
		56: len(strs), 60: stringIDs,
		64: 3, 68: typeIDs,
		72: 1, 76: protoIDs,
		80: 1, 84: fieldIDs,
		88: 1, 92: methodIDs,
	} {
		le.PutUint32(b[off:], uint32(v))
	}
	return b
}

func TestParseDex(t *testing.T) {
	d, err := ParseDex(buildDex(testCode))
	if err != nil {
		t.Fatalf("ParseDex: %v", err)
	}
	if d.Version != 39 {
		t.Errorf("Version = %d", d.Version)
	}
	tests := []struct {
		kind  disasm.RefKind
		index uint32
		want  string
		ok    bool
	}{
		{disasm.RefString, 5, `"hello"`, true},
		{disasm.RefType, 1, "LFoo;", true},
		{disasm.RefProto, 0, "(I)V", true},
		{disasm.RefField, 0, "LFoo;->count:I", true},
		{disasm.RefMethod, 0, "LFoo;->bar(I)V", true},
		{disasm.RefMethodHandle, 0, "invoke-static@LFoo;->bar(I)V", true},
		{disasm.RefCallSite, 0, "boot(I)V", true},
		{disasm.RefString, 7, "", false},
		{disasm.RefMethod, 1, "", false},
		{disasm.RefCallSite, 1, "", false},
		{disasm.RefNone, 0, "", false},
	}
	for _, tt := range tests {
		got, ok := d.Resolve(tt.kind, tt.index)
		if ok != tt.ok || got != tt.want {
			t.Errorf("Resolve(%s, %d) = %q, %v; want %q, %v", tt.kind, tt.index, got, ok, tt.want, tt.ok)
		}
	}
}

func TestParseDexErrors(t *testing.T) {
	good := buildDex(nil)
	badEndian := bytes.Clone(good)
	binary.LittleEndian.PutUint32(badEndian[40:], 0x78563412)
	badVersion := bytes.Clone(good)
	copy(badVersion[4:], "0x9")

	tests := []struct {
		name string
		data []byte
	}{
		{"not dex", []byte("PK\x03\x04")},
		{"truncated header", good[:0x40]},
		{"big endian", badEndian},
		{"bad version", badVersion},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseDex(tt.data); err == nil {
				t.Fatal("expected error")
			}
		})
	}
	if _, err := ParseDex([]byte("ELF")); !errors.Is(err, ErrNotDex) {
		t.Errorf("ParseDex(ELF) = %v, want ErrNotDex", err)
	}
}

func TestCorruptTablesDoNotPanic(t *testing.T) {
	data := buildDex(nil)
	// point the string table past the end
	binary.LittleEndian.PutUint32(data[60:], uint32(len(data)))
	d, err := ParseDex(data)
	if err != nil {
		t.Fatalf("ParseDex: %v", err)
	}
	for kind := disasm.RefString; kind <= disasm.RefMethodHandle; kind++ {
		if s, ok := d.Resolve(kind, 0); ok {
			t.Errorf("Resolve(%s) = %q on corrupt table", kind, s)
		}
	}
}

func zipped(t *testing.T, files map[string][]byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, data := range files {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := w.Write(data); err != nil {
			t.Fatal(err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func gzipped(t *testing.T, data []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write(data); err != nil {
		t.Fatal(err)
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestFromBytes(t *testing.T) {
	dex := buildDex(testCode)
	apk := zipped(t, map[string][]byte{
		"classes.dex":         dex,
		"classes2.dex":        testCode,
		"AndroidManifest.xml": []byte("<manifest/>"),
	})
	tests := []struct {
		name     string
		data     []byte
		entry    string
		wantKind Kind
		wantDex  bool
		wantLen  int
	}{
		{"raw odd", []byte{0x0e, 0x00, 0x01}, "", KindRaw, false, 2},
		{"empty", nil, "", KindRaw, false, 0},
		{"dex", dex, "", KindDex, true, len(dex) &^ 1},
		{"gzip dex", gzipped(t, dex), "", KindGzip, true, len(dex) &^ 1},
		{"apk default entry", apk, "", KindAPK, true, len(dex) &^ 1},
		{"apk raw entry", apk, "classes2.dex", KindAPK, false, len(testCode)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			im, err := FromBytes(tt.name, tt.data, tt.entry)
			if err != nil {
				t.Fatalf("FromBytes: %v", err)
			}
			if im.Kind != tt.wantKind {
				t.Errorf("Kind = %s, want %s", im.Kind, tt.wantKind)
			}
			if (im.Dex != nil) != tt.wantDex {
				t.Errorf("Dex present = %v", im.Dex != nil)
			}
			if (im.Symbols() != nil) != tt.wantDex {
				t.Errorf("Symbols present = %v", im.Symbols() != nil)
			}
			if got := len(im.Buffer()); got != tt.wantLen {
				t.Errorf("len(Buffer()) = %d, want %d", got, tt.wantLen)
			}
		})
	}

	if _, err := FromBytes("apk", apk, "classes9.dex"); err == nil || !strings.Contains(err.Error(), "classes9.dex") {
		t.Errorf("missing entry error = %v", err)
	}
}

func TestSymbolsDriveDecoder(t *testing.T) {
	dex := buildDex(testCode)
	im, err := FromBytes("test.dex", dex, "")
	if err != nil {
		t.Fatal(err)
	}
	dec, err := disasm.NewDecoder(im.Version(), false, im.Symbols())
	if err != nil {
		t.Fatal(err)
	}
	code, err := im.Slice(len(im.Buffer())-len(testCode), 0)
	if err != nil {
		t.Fatal(err)
	}
	s, err := dec.DecodeAll(code)
	if err != nil {
		t.Fatalf("DecodeAll: %v", err)
	}
	if got := s[0].String(); got != `const-string v0, "hello"` {
		t.Errorf("got %q", got)
	}
}

func TestSlice(t *testing.T) {
	im := &Image{All: []byte{0, 1, 2, 3, 4, 5, 6}}
	tests := []struct {
		off, length int
		want        []byte
		wantErr     error
	}{
		{0, 0, []byte{0, 1, 2, 3, 4, 5}, nil},
		{2, 2, []byte{2, 3}, nil},
		{6, 0, []byte{}, nil},
		{4, 4, nil, disasm.ErrOutOfBounds},
		{-2, 0, nil, disasm.ErrInvalidArgument},
		{8, 0, nil, disasm.ErrInvalidArgument},
	}
	for _, tt := range tests {
		got, err := im.Slice(tt.off, tt.length)
		if tt.wantErr != nil {
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Slice(%d, %d) error = %v, want %v", tt.off, tt.length, err, tt.wantErr)
			}
			continue
		}
		if err != nil || !bytes.Equal(got, tt.want) {
			t.Errorf("Slice(%d, %d) = %v, %v", tt.off, tt.length, got, err)
		}
	}
}

func TestOpen(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "classes.dex")
	dex := buildDex(testCode)
	if err := os.WriteFile(path, dex, 0o644); err != nil {
		t.Fatal(err)
	}
	im, err := Open(path, "")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if im.Kind != KindDex || !bytes.Equal(im.All, dex) {
		t.Errorf("Kind = %s, %d bytes", im.Kind, len(im.All))
	}
	if err := im.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
	if im.All != nil {
		t.Error("All kept after Close")
	}

	empty := filepath.Join(dir, "empty.bin")
	if err := os.WriteFile(empty, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	im, err = Open(empty, "")
	if err != nil {
		t.Fatalf("Open(empty): %v", err)
	}
	if len(im.Buffer()) != 0 || im.Kind != KindRaw {
		t.Errorf("empty image: kind %s, %d bytes", im.Kind, len(im.Buffer()))
	}
	im.Close()

	if _, err := Open(filepath.Join(dir, "nope"), ""); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("Open(missing) = %v", err)
	}
}
