// Package detectors tags gadgets that touch encryption material: well-known
// cipher and hash constants, and calls to key setters with the string
// arguments they receive.
package detectors

import (
	"math"
	"strings"

	"topper/internal/analysis"
	"topper/internal/disasm"
)

// Tag prefixes.
const (
	TagConstPrefix = "const:"
	TagKeySetter   = "key-setter"
	TagKeyPrefix   = "key="
)

// knownConstants maps 32-bit literals to the algorithm they betray.
var knownConstants = map[uint32]string{
	0x9e3779b9: "tea-delta",
	0x61c88647: "tea-delta-neg",
	0x67452301: "md-init",
	0xefcdab89: "md-init",
	0x98badcfe: "md-init",
	0x10325476: "md-init",
	0xc3d2e1f0: "sha1-init",
	0x5a827999: "sha1-k",
	0x6a09e667: "sha256-init",
	0xd76aa478: "md5-t",
	0xedb88320: "crc32-poly",
}

// KnownConstant returns the algorithm name of a literal loaded by a const
// instruction. Literals outside the 32-bit range never match.
func KnownConstant(v int64) (string, bool) {
	if v < math.MinInt32 || v > math.MaxUint32 {
		return "", false
	}
	name, ok := knownConstants[uint32(v)]
	return name, ok
}

// ConstantDetector tags gadgets loading a known constant with
// "const:<algorithm>".
type ConstantDetector struct{}

func NewConstantDetector() *ConstantDetector {
	return &ConstantDetector{}
}

func (d *ConstantDetector) Detect(gadgets []*analysis.Gadget) []*analysis.Gadget {
	for _, g := range gadgets {
		for _, in := range g.Sequence {
			if !in.HasLiteral {
				continue
			}
			if name, ok := KnownConstant(in.Literal); ok {
				g.Tag(TagConstPrefix + name)
			}
		}
	}
	return gadgets
}

// KeySetterDetector tags gadgets invoking a key setter. String constants
// passed to the setter are recorded as key="..." tags.
type KeySetterDetector struct{}

func NewKeySetterDetector() *KeySetterDetector {
	return &KeySetterDetector{}
}

func (d *KeySetterDetector) Detect(gadgets []*analysis.Gadget) []*analysis.Gadget {
	for _, g := range gadgets {
		strs := map[uint32]string{}
		for _, in := range g.Sequence {
			switch {
			case in.Ref != nil && in.Ref.Kind == disasm.RefString && len(in.Regs) == 1:
				if in.Ref.Resolved {
					strs[in.Regs[0]] = in.Ref.Value
				} else {
					delete(strs, in.Regs[0])
				}
			case strings.HasPrefix(in.Info.Name, "invoke-"):
				if in.Ref == nil || in.Ref.Kind != disasm.RefMethod || !in.Ref.Resolved {
					continue
				}
				if !d.isKeySetter(methodName(in.Ref.Value)) {
					continue
				}
				g.Tag(TagKeySetter)
				for _, r := range in.Regs {
					if s, ok := strs[r]; ok {
						g.Tag(TagKeyPrefix + s)
					}
				}
			case len(in.Regs) > 0 && !readsOnly(in.Info.Name):
				delete(strs, in.Regs[0])
			}
		}
	}
	return gadgets
}

// isKeySetter matches method names of the form set/add/edit + xxtea or
// cryptokey, plus a few exact names seen in game engines.
func (d *KeySetterDetector) isKeySetter(name string) bool {
	if name == "" {
		return false
	}
	lower := strings.ToLower(name)
	switch lower {
	case "setxxteakey", "setxxteasign", "setxxteakeyandsign",
		"jsb_set_xxtea_key", "addcryptokey", "editcryptokey",
		"setcryptokey", "setencryptkey", "setsecretkey":
		return true
	}

	hasAction := strings.Contains(lower, "set") ||
		strings.Contains(lower, "add") ||
		strings.Contains(lower, "edit")
	hasTarget := strings.Contains(lower, "xxtea") ||
		strings.Contains(lower, "cryptokey")
	return hasAction && hasTarget
}

// methodName extracts name from "Lcls;->name(params)ret".
func methodName(ref string) string {
	_, rest, ok := strings.Cut(ref, "->")
	if !ok {
		return ""
	}
	name, _, _ := strings.Cut(rest, "(")
	return name
}

// readsOnly reports whether the first register of an instruction is a
// source rather than a destination.
func readsOnly(mnemonic string) bool {
	for _, p := range []string{
		"iput", "sput", "aput", "if-", "return", "throw", "monitor-",
		"check-cast", "fill-array-data", "packed-switch", "sparse-switch",
		"filled-new-array",
	} {
		if strings.HasPrefix(mnemonic, p) {
			return true
		}
	}
	return false
}
