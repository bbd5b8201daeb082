// Package dexfile opens the buffers searched for gadgets: raw bytecode,
// dex files, and apks or gzip streams wrapping a dex.
package dexfile

import (
	"archive/zip"
	"bytes"
	"compress/gzip"
	"fmt"
	"io"
	"log/slog"
	"os"
	"syscall"

	"topper/internal/disasm"
)

// Kind is the container an image was loaded from.
type Kind int

const (
	KindRaw Kind = iota
	KindDex
	KindAPK
	KindGzip
)

func (k Kind) String() string {
	switch k {
	case KindDex:
		return "dex"
	case KindAPK:
		return "apk"
	case KindGzip:
		return "gzip"
	default:
		return "raw"
	}
}

// DefaultEntry is the dex extracted from an apk when none is named.
const DefaultEntry = "classes.dex"

// Image is a loaded input. All is the unpacked content; for plain files
// it is a read-only mapping of the file.
type Image struct {
	Path string
	Kind Kind
	All  []byte
	// Dex is nil when All carries no dex magic.
	Dex *Dex

	mapped []byte
	f      *os.File
}

// Open maps path and unpacks it. Entry selects the dex of an apk and
// defaults to classes.dex.
func Open(path, entry string) (*Image, error) {
	of, err := os.OpenFile(path, os.O_RDONLY, 0)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	fi, err := of.Stat()
	if err != nil {
		of.Close()
		return nil, fmt.Errorf("stat file: %w", err)
	}

	var all []byte
	if fi.Size() > 0 {
		all, err = syscall.Mmap(int(of.Fd()), 0, int(fi.Size()), syscall.PROT_READ, syscall.MAP_SHARED)
		if err != nil {
			of.Close()
			return nil, fmt.Errorf("mmap file: %w", err)
		}
	}

	im, err := FromBytes(path, all, entry)
	if err != nil {
		if all != nil {
			syscall.Munmap(all)
		}
		of.Close()
		return nil, err
	}
	im.mapped, im.f = all, of
	return im, nil
}

// FromBytes unpacks data the way Open does without touching the disk.
func FromBytes(name string, data []byte, entry string) (*Image, error) {
	im := &Image{Path: name, Kind: KindRaw, All: data}
	switch {
	case len(data) >= 2 && data[0] == 0x1f && data[1] == 0x8b:
		slog.Debug("Detected gzip compression", "file", name)
		r, err := gzip.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("gzip reader: %w", err)
		}
		defer r.Close()
		out, err := io.ReadAll(r)
		if err != nil {
			return nil, fmt.Errorf("gzip decompression: %w", err)
		}
		slog.Debug("Gzip decompression successful", "file", name, "original_size", len(data), "decompressed_size", len(out))
		im.Kind, im.All = KindGzip, out
	case len(data) >= 4 && bytes.HasPrefix(data, []byte("PK\x03\x04")):
		out, err := extractDex(name, data, entry)
		if err != nil {
			return nil, err
		}
		im.Kind, im.All = KindAPK, out
	}

	if IsDex(im.All) {
		d, err := ParseDex(im.All)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		im.Dex = d
		if im.Kind == KindRaw {
			im.Kind = KindDex
		}
	}
	return im, nil
}

func extractDex(name string, data []byte, entry string) ([]byte, error) {
	if entry == "" {
		entry = DefaultEntry
	}
	slog.Debug("Detected ZIP archive", "file", name, "entry", entry)
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("zip reader: %w", err)
	}
	f, err := zr.Open(entry)
	if err != nil {
		return nil, fmt.Errorf("zip entry %s: %w", entry, err)
	}
	defer f.Close()
	out, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("read zip entry %s: %w", entry, err)
	}
	slog.Debug("ZIP extraction successful", "file", name, "entry", entry, "size", len(out))
	return out, nil
}

// Close unmaps the memory and closes the underlying file.
func (im *Image) Close() error {
	var err1, err2 error
	if im.mapped != nil {
		err1 = syscall.Munmap(im.mapped)
		im.mapped = nil
	}
	if im.f != nil {
		err2 = im.f.Close()
		im.f = nil
	}
	im.All = nil
	if err1 != nil {
		return err1
	}
	return err2
}

// Buffer returns All cut to a whole number of code units.
func (im *Image) Buffer() []byte {
	return im.All[:len(im.All)&^1]
}

// Slice returns Buffer()[off:off+length]. A zero length means to the end.
func (im *Image) Slice(off, length int) ([]byte, error) {
	buf := im.Buffer()
	if off < 0 || off > len(buf) || length < 0 {
		return nil, fmt.Errorf("range 0x%x+0x%x of 0x%x: %w", off, length, len(buf), disasm.ErrInvalidArgument)
	}
	if length == 0 {
		return buf[off:], nil
	}
	if length > len(buf)-off {
		return nil, fmt.Errorf("range 0x%x+0x%x of 0x%x: %w", off, length, len(buf), disasm.ErrOutOfBounds)
	}
	return buf[off : off+length], nil
}

// Symbols returns the constant pool resolver, or nil for non-dex input.
func (im *Image) Symbols() disasm.SymbolResolver {
	if im.Dex == nil {
		return nil
	}
	return im.Dex
}

// Version returns the dex format version, or 0 for non-dex input.
func (im *Image) Version() int {
	if im.Dex == nil {
		return 0
	}
	return im.Dex.Version
}
