package disasm

// SymbolResolver maps constant pool indices to readable names. It is
// backed by a structured container such as a dex file.
type SymbolResolver interface {
	Resolve(kind RefKind, index uint32) (string, bool)
}

// Ref is a constant pool reference embedded in an instruction.
type Ref struct {
	Kind     RefKind
	Index    uint32
	Value    string
	Resolved bool
}

func (r *Ref) String() string {
	if r.Resolved {
		return r.Value
	}
	return r.Kind.String() + "@" + hex(uint64(r.Index))
}

// MapResolver is a SymbolResolver over in-memory tables.
type MapResolver map[RefKind][]string

func (m MapResolver) Resolve(kind RefKind, index uint32) (string, bool) {
	tbl := m[kind]
	if uint64(index) >= uint64(len(tbl)) {
		return "", false
	}
	return tbl[index], true
}
