package disasm

import "fmt"

// Opcode is the first byte of a Dalvik instruction.
type Opcode uint8

// Format is a Dalvik instruction format identifier such as 22c or 35c.
type Format int

const (
	FormatUnknown Format = iota
	Format10x
	Format12x
	Format11n
	Format11x
	Format10t
	Format20t
	Format22x
	Format21t
	Format21s
	Format21h
	Format21c
	Format23x
	Format22b
	Format22t
	Format22s
	Format22c
	Format30t
	Format32x
	Format31i
	Format31t
	Format31c
	Format35c
	Format3rc
	Format45cc
	Format4rcc
	Format51l
)

var formatNames = map[Format]string{
	Format10x: "10x", Format12x: "12x", Format11n: "11n", Format11x: "11x",
	Format10t: "10t", Format20t: "20t", Format22x: "22x", Format21t: "21t",
	Format21s: "21s", Format21h: "21h", Format21c: "21c", Format23x: "23x",
	Format22b: "22b", Format22t: "22t", Format22s: "22s", Format22c: "22c",
	Format30t: "30t", Format32x: "32x", Format31i: "31i", Format31t: "31t",
	Format31c: "31c", Format35c: "35c", Format3rc: "3rc", Format45cc: "45cc",
	Format4rcc: "4rcc", Format51l: "51l",
}

func (f Format) String() string {
	if s, ok := formatNames[f]; ok {
		return s
	}
	return "unknown"
}

// Units returns the instruction size in 16-bit code units. The first
// digit of the format name is the unit count.
func (f Format) Units() int {
	s := f.String()
	if s == "unknown" {
		return 0
	}
	return int(s[0] - '0')
}

// Size returns the instruction size in bytes.
func (f Format) Size() int { return f.Units() * 2 }

// RefKind is the kind of constant pool index embedded in an instruction.
type RefKind int

const (
	RefNone RefKind = iota
	RefString
	RefType
	RefField
	RefMethod
	RefProto
	RefCallSite
	RefMethodHandle
)

func (k RefKind) String() string {
	switch k {
	case RefString:
		return "string"
	case RefType:
		return "type"
	case RefField:
		return "field"
	case RefMethod:
		return "method"
	case RefProto:
		return "proto"
	case RefCallSite:
		return "call_site"
	case RefMethodHandle:
		return "method_handle"
	}
	return "none"
}

// Flow classifies how an instruction transfers control.
type Flow int

const (
	FlowNone Flow = iota
	FlowIf
	FlowSwitch
	FlowGoto
	FlowReturn
	FlowThrow
)

func (f Flow) String() string {
	switch f {
	case FlowIf:
		return "if"
	case FlowSwitch:
		return "switch"
	case FlowGoto:
		return "goto"
	case FlowReturn:
		return "return"
	case FlowThrow:
		return "throw"
	}
	return "none"
}

// Terminal reports whether the flow class ends a basic block.
func (f Flow) Terminal() bool { return f != FlowNone }

// OpInfo describes one opcode.
type OpInfo struct {
	Name       string
	Format     Format
	Ref        RefKind
	Ref2       RefKind
	Flow       Flow
	MinVersion int
}

// Size returns the fixed instruction size in bytes.
func (o OpInfo) Size() int { return o.Format.Size() }

// Supported dex versions.
const (
	Version35 = 35
	Version37 = 37
	Version38 = 38
	Version39 = 39

	DefaultVersion = Version39
)

// Well known opcodes.
const (
	OpNop           Opcode = 0x00
	OpReturnVoid    Opcode = 0x0e
	OpThrow         Opcode = 0x27
	OpGoto          Opcode = 0x28
	OpPackedSwitch  Opcode = 0x2b
	OpSparseSwitch  Opcode = 0x2c
	OpFillArrayData Opcode = 0x26
)

var baseOpcodes = [256]OpInfo{}

func def(op Opcode, name string, f Format) *OpInfo {
	baseOpcodes[op] = OpInfo{Name: name, Format: f, MinVersion: Version35}
	return &baseOpcodes[op]
}

func defRange(first Opcode, f Format, ref RefKind, names ...string) {
	for i, n := range names {
		def(first+Opcode(i), n, f).Ref = ref
	}
}

var binops = []string{
	"add-int", "sub-int", "mul-int", "div-int", "rem-int", "and-int", "or-int", "xor-int",
	"shl-int", "shr-int", "ushr-int", "add-long", "sub-long", "mul-long", "div-long", "rem-long",
	"and-long", "or-long", "xor-long", "shl-long", "shr-long", "ushr-long", "add-float", "sub-float",
	"mul-float", "div-float", "rem-float", "add-double", "sub-double", "mul-double", "div-double", "rem-double",
}

func init() {
	def(0x00, "nop", Format10x)
	def(0x01, "move", Format12x)
	def(0x02, "move/from16", Format22x)
	def(0x03, "move/16", Format32x)
	def(0x04, "move-wide", Format12x)
	def(0x05, "move-wide/from16", Format22x)
	def(0x06, "move-wide/16", Format32x)
	def(0x07, "move-object", Format12x)
	def(0x08, "move-object/from16", Format22x)
	def(0x09, "move-object/16", Format32x)
	defRange(0x0a, Format11x, RefNone, "move-result", "move-result-wide", "move-result-object", "move-exception")
	def(0x0e, "return-void", Format10x).Flow = FlowReturn
	for i, n := range []string{"return", "return-wide", "return-object"} {
		def(0x0f+Opcode(i), n, Format11x).Flow = FlowReturn
	}
	def(0x12, "const/4", Format11n)
	def(0x13, "const/16", Format21s)
	def(0x14, "const", Format31i)
	def(0x15, "const/high16", Format21h)
	def(0x16, "const-wide/16", Format21s)
	def(0x17, "const-wide/32", Format31i)
	def(0x18, "const-wide", Format51l)
	def(0x19, "const-wide/high16", Format21h)
	def(0x1a, "const-string", Format21c).Ref = RefString
	def(0x1b, "const-string/jumbo", Format31c).Ref = RefString
	def(0x1c, "const-class", Format21c).Ref = RefType
	def(0x1d, "monitor-enter", Format11x)
	def(0x1e, "monitor-exit", Format11x)
	def(0x1f, "check-cast", Format21c).Ref = RefType
	def(0x20, "instance-of", Format22c).Ref = RefType
	def(0x21, "array-length", Format12x)
	def(0x22, "new-instance", Format21c).Ref = RefType
	def(0x23, "new-array", Format22c).Ref = RefType
	def(0x24, "filled-new-array", Format35c).Ref = RefType
	def(0x25, "filled-new-array/range", Format3rc).Ref = RefType
	def(0x26, "fill-array-data", Format31t)
	def(0x27, "throw", Format11x).Flow = FlowThrow
	def(0x28, "goto", Format10t).Flow = FlowGoto
	def(0x29, "goto/16", Format20t).Flow = FlowGoto
	def(0x2a, "goto/32", Format30t).Flow = FlowGoto
	def(0x2b, "packed-switch", Format31t).Flow = FlowSwitch
	def(0x2c, "sparse-switch", Format31t).Flow = FlowSwitch
	defRange(0x2d, Format23x, RefNone, "cmpl-float", "cmpg-float", "cmpl-double", "cmpg-double", "cmp-long")
	for i, n := range []string{"if-eq", "if-ne", "if-lt", "if-ge", "if-gt", "if-le"} {
		def(0x32+Opcode(i), n, Format22t).Flow = FlowIf
	}
	for i, n := range []string{"if-eqz", "if-nez", "if-ltz", "if-gez", "if-gtz", "if-lez"} {
		def(0x38+Opcode(i), n, Format21t).Flow = FlowIf
	}
	defRange(0x44, Format23x, RefNone,
		"aget", "aget-wide", "aget-object", "aget-boolean", "aget-byte", "aget-char", "aget-short",
		"aput", "aput-wide", "aput-object", "aput-boolean", "aput-byte", "aput-char", "aput-short")
	defRange(0x52, Format22c, RefField,
		"iget", "iget-wide", "iget-object", "iget-boolean", "iget-byte", "iget-char", "iget-short",
		"iput", "iput-wide", "iput-object", "iput-boolean", "iput-byte", "iput-char", "iput-short")
	defRange(0x60, Format21c, RefField,
		"sget", "sget-wide", "sget-object", "sget-boolean", "sget-byte", "sget-char", "sget-short",
		"sput", "sput-wide", "sput-object", "sput-boolean", "sput-byte", "sput-char", "sput-short")
	defRange(0x6e, Format35c, RefMethod,
		"invoke-virtual", "invoke-super", "invoke-direct", "invoke-static", "invoke-interface")
	defRange(0x74, Format3rc, RefMethod,
		"invoke-virtual/range", "invoke-super/range", "invoke-direct/range", "invoke-static/range", "invoke-interface/range")
	defRange(0x7b, Format12x, RefNone,
		"neg-int", "not-int", "neg-long", "not-long", "neg-float", "neg-double",
		"int-to-long", "int-to-float", "int-to-double", "long-to-int", "long-to-float", "long-to-double",
		"float-to-int", "float-to-long", "float-to-double", "double-to-int", "double-to-long", "double-to-float",
		"int-to-byte", "int-to-char", "int-to-short")
	defRange(0x90, Format23x, RefNone, binops...)
	for i, n := range binops {
		def(0xb0+Opcode(i), n+"/2addr", Format12x)
	}
	defRange(0xd0, Format22s, RefNone,
		"add-int/lit16", "rsub-int", "mul-int/lit16", "div-int/lit16",
		"rem-int/lit16", "and-int/lit16", "or-int/lit16", "xor-int/lit16")
	defRange(0xd8, Format22b, RefNone,
		"add-int/lit8", "rsub-int/lit8", "mul-int/lit8", "div-int/lit8", "rem-int/lit8", "and-int/lit8",
		"or-int/lit8", "xor-int/lit8", "shl-int/lit8", "shr-int/lit8", "ushr-int/lit8")

	p := def(0xfa, "invoke-polymorphic", Format45cc)
	p.Ref, p.Ref2, p.MinVersion = RefMethod, RefProto, Version38
	p = def(0xfb, "invoke-polymorphic/range", Format4rcc)
	p.Ref, p.Ref2, p.MinVersion = RefMethod, RefProto, Version38
	p = def(0xfc, "invoke-custom", Format35c)
	p.Ref, p.MinVersion = RefCallSite, Version38
	p = def(0xfd, "invoke-custom/range", Format3rc)
	p.Ref, p.MinVersion = RefCallSite, Version38
	p = def(0xfe, "const-method-handle", Format21c)
	p.Ref, p.MinVersion = RefMethodHandle, Version39
	p = def(0xff, "const-method-type", Format21c)
	p.Ref, p.MinVersion = RefProto, Version39
}

// OpTable is the opcode set of one dex version.
type OpTable struct {
	Version int
	ops     [256]OpInfo
	byName  map[string]Opcode
	maxSize int
}

// Table returns the opcode table for a dex version. Version 37 shares the
// opcode set of 35.
func Table(version int) (*OpTable, error) {
	switch version {
	case Version35, Version37, Version38, Version39:
	default:
		return nil, fmt.Errorf("%w: unsupported dex version %03d", ErrInvalidArgument, version)
	}
	t := &OpTable{Version: version, byName: make(map[string]Opcode)}
	for i, info := range baseOpcodes {
		if info.Name == "" || info.MinVersion > version {
			continue
		}
		t.ops[i] = info
		t.byName[info.Name] = Opcode(i)
		if info.Size() > t.maxSize {
			t.maxSize = info.Size()
		}
	}
	return t, nil
}

// Lookup returns the opcode description, or false if the opcode is
// unassigned in this version.
func (t *OpTable) Lookup(op Opcode) (OpInfo, bool) {
	info := t.ops[op]
	return info, info.Name != ""
}

// ByName resolves a mnemonic such as "throw" or "return-void".
func (t *OpTable) ByName(name string) (Opcode, bool) {
	op, ok := t.byName[name]
	return op, ok
}

// MaxSize is the largest fixed instruction size in bytes.
func (t *OpTable) MaxSize() int { return t.maxSize }
