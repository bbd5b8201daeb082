package dexfile

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"topper/internal/disasm"
)

// HeaderSize is the size of a dex header.
const HeaderSize = 0x70

const endianConstant = 0x12345678

// Map item types holding the tables without a header entry.
const (
	mapTypeCallSiteID   = 0x0007
	mapTypeMethodHandle = 0x0008
)

// ErrNotDex reports data without a dex magic.
var ErrNotDex = errors.New("not a dex file")

// Header is the fixed dex header.
type Header struct {
	Magic         [8]byte
	Checksum      uint32
	Signature     [20]byte
	FileSize      uint32
	HeaderSize    uint32
	EndianTag     uint32
	LinkSize      uint32
	LinkOff       uint32
	MapOff        uint32
	StringIDsSize uint32
	StringIDsOff  uint32
	TypeIDsSize   uint32
	TypeIDsOff    uint32
	ProtoIDsSize  uint32
	ProtoIDsOff   uint32
	FieldIDsSize  uint32
	FieldIDsOff   uint32
	MethodIDsSize uint32
	MethodIDsOff  uint32
	ClassDefsSize uint32
	ClassDefsOff  uint32
	DataSize      uint32
	DataOff       uint32
}

type table struct {
	off, size uint32
}

// Dex resolves constant pool indices of one dex file. Every lookup is
// bounds checked against the data; the file is untrusted.
type Dex struct {
	Header  Header
	Version int

	data          []byte
	callSites     table
	methodHandles table
}

var _ disasm.SymbolResolver = (*Dex)(nil)

// IsDex reports whether data starts with a dex magic.
func IsDex(data []byte) bool {
	return len(data) >= 8 && bytes.HasPrefix(data, []byte("dex\n")) && data[7] == 0
}

// ParseDex parses the header and map list of a dex file.
func ParseDex(data []byte) (*Dex, error) {
	if !IsDex(data) {
		return nil, ErrNotDex
	}
	if len(data) < HeaderSize {
		return nil, fmt.Errorf("dex header: %w", disasm.ErrOutOfBounds)
	}
	d := &Dex{data: data}
	if err := binary.Read(bytes.NewReader(data[:HeaderSize]), binary.LittleEndian, &d.Header); err != nil {
		return nil, fmt.Errorf("parse dex header: %w", err)
	}
	if d.Header.EndianTag != endianConstant {
		return nil, fmt.Errorf("unsupported endian tag 0x%x", d.Header.EndianTag)
	}
	v, err := strconv.Atoi(string(data[4:7]))
	if err != nil {
		return nil, fmt.Errorf("dex version %q: %w", data[4:7], err)
	}
	d.Version = v
	d.parseMap()
	return d, nil
}

func (d *Dex) parseMap() {
	off := d.Header.MapOff
	n, ok := d.u32(off)
	if off == 0 || !ok {
		return
	}
	for i := uint32(0); i < n; i++ {
		item := uint64(off) + 4 + uint64(i)*12
		if item+12 > uint64(len(d.data)) {
			return
		}
		typ := binary.LittleEndian.Uint16(d.data[item:])
		size := binary.LittleEndian.Uint32(d.data[item+4:])
		at := binary.LittleEndian.Uint32(d.data[item+8:])
		switch typ {
		case mapTypeCallSiteID:
			d.callSites = table{off: at, size: size}
		case mapTypeMethodHandle:
			d.methodHandles = table{off: at, size: size}
		}
	}
}

func (d *Dex) u16(off uint64) (uint16, bool) {
	if off+2 > uint64(len(d.data)) {
		return 0, false
	}
	return binary.LittleEndian.Uint16(d.data[off:]), true
}

func (d *Dex) u32(off uint32) (uint32, bool) {
	if uint64(off)+4 > uint64(len(d.data)) {
		return 0, false
	}
	return binary.LittleEndian.Uint32(d.data[off:]), true
}

// entry returns the offset of item idx of a table with the given stride.
func (d *Dex) entry(off, size, idx, stride uint32) (uint64, error) {
	if idx >= size {
		return 0, fmt.Errorf("index %d of %d: %w", idx, size, disasm.ErrOutOfBounds)
	}
	at := uint64(off) + uint64(idx)*uint64(stride)
	if at+uint64(stride) > uint64(len(d.data)) {
		return 0, fmt.Errorf("item at 0x%x: %w", at, disasm.ErrOutOfBounds)
	}
	return at, nil
}

func (d *Dex) uleb128(pos uint64) (uint32, uint64, error) {
	var result uint32
	for shift := uint(0); shift < 35; shift += 7 {
		if pos >= uint64(len(d.data)) {
			return 0, 0, fmt.Errorf("uleb128: %w", disasm.ErrOutOfBounds)
		}
		b := d.data[pos]
		pos++
		result |= uint32(b&0x7f) << shift
		if b&0x80 == 0 {
			return result, pos, nil
		}
	}
	return 0, 0, fmt.Errorf("uleb128 longer than 5 bytes")
}

// String returns string idx. Modified UTF-8 is returned as is.
func (d *Dex) String(idx uint32) (string, error) {
	at, err := d.entry(d.Header.StringIDsOff, d.Header.StringIDsSize, idx, 4)
	if err != nil {
		return "", fmt.Errorf("string: %w", err)
	}
	dataOff := uint64(binary.LittleEndian.Uint32(d.data[at:]))
	_, pos, err := d.uleb128(dataOff)
	if err != nil {
		return "", fmt.Errorf("string %d: %w", idx, err)
	}
	end := bytes.IndexByte(d.data[min(pos, uint64(len(d.data))):], 0)
	if end < 0 {
		return "", fmt.Errorf("string %d: unterminated", idx)
	}
	return string(d.data[pos : pos+uint64(end)]), nil
}

// Type returns the descriptor of type idx.
func (d *Dex) Type(idx uint32) (string, error) {
	at, err := d.entry(d.Header.TypeIDsOff, d.Header.TypeIDsSize, idx, 4)
	if err != nil {
		return "", fmt.Errorf("type: %w", err)
	}
	return d.String(binary.LittleEndian.Uint32(d.data[at:]))
}

// Proto returns "(params)return" for proto idx.
func (d *Dex) Proto(idx uint32) (string, error) {
	at, err := d.entry(d.Header.ProtoIDsOff, d.Header.ProtoIDsSize, idx, 12)
	if err != nil {
		return "", fmt.Errorf("proto: %w", err)
	}
	ret, err := d.Type(binary.LittleEndian.Uint32(d.data[at+4:]))
	if err != nil {
		return "", err
	}
	params, err := d.typeList(binary.LittleEndian.Uint32(d.data[at+8:]))
	if err != nil {
		return "", err
	}
	return "(" + strings.Join(params, "") + ")" + ret, nil
}

func (d *Dex) typeList(off uint32) ([]string, error) {
	if off == 0 {
		return nil, nil
	}
	n, ok := d.u32(off)
	if !ok {
		return nil, fmt.Errorf("type list: %w", disasm.ErrOutOfBounds)
	}
	var out []string
	for i := uint32(0); i < n; i++ {
		ti, ok := d.u16(uint64(off) + 4 + uint64(i)*2)
		if !ok {
			return nil, fmt.Errorf("type list item %d: %w", i, disasm.ErrOutOfBounds)
		}
		t, err := d.Type(uint32(ti))
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

// Field returns "Lclass;->name:type" for field idx.
func (d *Dex) Field(idx uint32) (string, error) {
	at, err := d.entry(d.Header.FieldIDsOff, d.Header.FieldIDsSize, idx, 8)
	if err != nil {
		return "", fmt.Errorf("field: %w", err)
	}
	class, err := d.Type(uint32(binary.LittleEndian.Uint16(d.data[at:])))
	if err != nil {
		return "", err
	}
	typ, err := d.Type(uint32(binary.LittleEndian.Uint16(d.data[at+2:])))
	if err != nil {
		return "", err
	}
	name, err := d.String(binary.LittleEndian.Uint32(d.data[at+4:]))
	if err != nil {
		return "", err
	}
	return class + "->" + name + ":" + typ, nil
}

// Method returns "Lclass;->name(params)return" for method idx.
func (d *Dex) Method(idx uint32) (string, error) {
	at, err := d.entry(d.Header.MethodIDsOff, d.Header.MethodIDsSize, idx, 8)
	if err != nil {
		return "", fmt.Errorf("method: %w", err)
	}
	class, err := d.Type(uint32(binary.LittleEndian.Uint16(d.data[at:])))
	if err != nil {
		return "", err
	}
	proto, err := d.Proto(uint32(binary.LittleEndian.Uint16(d.data[at+2:])))
	if err != nil {
		return "", err
	}
	name, err := d.String(binary.LittleEndian.Uint32(d.data[at+4:]))
	if err != nil {
		return "", err
	}
	return class + "->" + name + proto, nil
}

var methodHandleKinds = []string{
	"static-put", "static-get", "instance-put", "instance-get",
	"invoke-static", "invoke-instance", "invoke-constructor", "invoke-direct", "invoke-interface",
}

// MethodHandle returns "kind@member" for method handle idx.
func (d *Dex) MethodHandle(idx uint32) (string, error) {
	at, err := d.entry(d.methodHandles.off, d.methodHandles.size, idx, 8)
	if err != nil {
		return "", fmt.Errorf("method handle: %w", err)
	}
	kind := binary.LittleEndian.Uint16(d.data[at:])
	member := uint32(binary.LittleEndian.Uint16(d.data[at+4:]))
	if int(kind) >= len(methodHandleKinds) {
		return "", fmt.Errorf("method handle %d: unknown kind %d", idx, kind)
	}
	var target string
	if kind <= 3 {
		target, err = d.Field(member)
	} else {
		target, err = d.Method(member)
	}
	if err != nil {
		return "", err
	}
	return methodHandleKinds[kind] + "@" + target, nil
}

// Encoded value types used by call site arrays.
const (
	valueMethodType   = 0x15
	valueMethodHandle = 0x16
	valueString       = 0x17
)

// CallSite returns "name(params)return" for call site idx, read from the
// link arguments of its encoded array.
func (d *Dex) CallSite(idx uint32) (string, error) {
	at, err := d.entry(d.callSites.off, d.callSites.size, idx, 4)
	if err != nil {
		return "", fmt.Errorf("call site: %w", err)
	}
	pos := uint64(binary.LittleEndian.Uint32(d.data[at:]))
	n, pos, err := d.uleb128(pos)
	if err != nil {
		return "", fmt.Errorf("call site %d: %w", idx, err)
	}
	if n < 3 {
		return "", fmt.Errorf("call site %d: %d link arguments", idx, n)
	}
	var name, proto string
	for i := 0; i < 3; i++ {
		typ, val, next, err := d.encodedIndex(pos)
		if err != nil {
			return "", fmt.Errorf("call site %d: %w", idx, err)
		}
		pos = next
		switch {
		case i == 1 && typ == valueString:
			if name, err = d.String(val); err != nil {
				return "", err
			}
		case i == 2 && typ == valueMethodType:
			if proto, err = d.Proto(val); err != nil {
				return "", err
			}
		case i == 0 && typ == valueMethodHandle:
		default:
			return "", fmt.Errorf("call site %d: unexpected value type 0x%x at %d", idx, typ, i)
		}
	}
	return name + proto, nil
}

// encodedIndex reads an encoded_value holding an unsigned index.
func (d *Dex) encodedIndex(pos uint64) (byte, uint32, uint64, error) {
	if pos >= uint64(len(d.data)) {
		return 0, 0, 0, disasm.ErrOutOfBounds
	}
	head := d.data[pos]
	typ, size := head&0x1f, uint64(head>>5)+1
	pos++
	if size > 4 || pos+size > uint64(len(d.data)) {
		return 0, 0, 0, fmt.Errorf("encoded value of %d bytes: %w", size, disasm.ErrOutOfBounds)
	}
	var v uint32
	for i := uint64(0); i < size; i++ {
		v |= uint32(d.data[pos+i]) << (8 * i)
	}
	return typ, v, pos + size, nil
}

// Resolve implements disasm.SymbolResolver.
func (d *Dex) Resolve(kind disasm.RefKind, index uint32) (string, bool) {
	var (
		s   string
		err error
	)
	switch kind {
	case disasm.RefString:
		s, err = d.String(index)
		if err == nil {
			s = strconv.Quote(s)
		}
	case disasm.RefType:
		s, err = d.Type(index)
	case disasm.RefField:
		s, err = d.Field(index)
	case disasm.RefMethod:
		s, err = d.Method(index)
	case disasm.RefProto:
		s, err = d.Proto(index)
	case disasm.RefCallSite:
		s, err = d.CallSite(index)
	case disasm.RefMethodHandle:
		s, err = d.MethodHandle(index)
	default:
		return "", false
	}
	return s, err == nil
}
