package isa

import (
	"fmt"
	"strings"
)

// Bank enumerates shader register banks. Values follow the binary encoding.
type Bank uint8

const (
	In      Bank = 0x00
	Out     Bank = 0x01
	Param   Bank = 0x02
	Temp    Bank = 0x03
	Addr    Bank = 0x04
	Param2  Bank = 0x05
	Imm     Bank = 0x06
	Texture Bank = 0x08
	Sample  Bank = 0x09
	Pred    Bank = 0x0A
	Invalid Bank = 0xFF
)

func (b Bank) String() string {
	switch b {
	case In:
		return "in"
	case Out:
		return "out"
	case Param:
		return "param"
	case Temp:
		return "temp"
	case Addr:
		return "addr"
	case Param2:
		return "param2"
	case Imm:
		return "imm"
	case Texture:
		return "texture"
	case Sample:
		return "sample"
	case Pred:
		return "pred"
	default:
		return fmt.Sprintf("bank(0x%02x)", uint8(b))
	}
}

// Component selects one lane of a four-wide register.
type Component uint8

const (
	X Component = iota
	Y
	Z
	W

	NumComponents = 4
)

const componentLetters = "xyzw"

func (c Component) String() string {
	if c >= NumComponents {
		return "?"
	}
	return componentLetters[c : c+1]
}

// ParseComponent converts a lane letter to a Component.
func ParseComponent(r byte) (Component, bool) {
	idx := strings.IndexByte(componentLetters, r)
	if idx < 0 {
		return 0, false
	}
	return Component(idx), true
}

// Mask is the set of components an operand touches. Bit c is component c.
type Mask uint8

// MaskXYZW covers every component.
const MaskXYZW Mask = 0x0F

// MaskOf builds a mask from a list of components.
func MaskOf(components ...Component) Mask {
	var m Mask
	for _, c := range components {
		m |= 1 << c
	}
	return m
}

// Has reports whether component c is part of the mask.
func (m Mask) Has(c Component) bool {
	return c < NumComponents && m&(1<<c) != 0
}

// Count returns the number of components in the mask.
func (m Mask) Count() int {
	n := 0
	for c := Component(0); c < NumComponents; c++ {
		if m.Has(c) {
			n++
		}
	}
	return n
}

func (m Mask) String() string {
	var sb strings.Builder
	for c := Component(0); c < NumComponents; c++ {
		if m.Has(c) {
			sb.WriteString(c.String())
		}
	}
	return sb.String()
}

// Swizzle selects, for every output lane, the source component read.
type Swizzle [NumComponents]Component

// IdentitySwizzle reads every component in place.
var IdentitySwizzle = Swizzle{X, Y, Z, W}

// Broadcast replicates a single component across all lanes.
func Broadcast(c Component) Swizzle {
	return Swizzle{c, c, c, c}
}

// Used returns the set of source components the swizzle reads.
func (s Swizzle) Used() Mask {
	return MaskOf(s[:]...)
}

// String writes the selector letters, dropping trailing repeats of the last
// component: "xyyy" prints as "xy" and a broadcast as a single letter.
func (s Swizzle) String() string {
	n := NumComponents
	for n > 1 && s[n-1] == s[n-2] {
		n--
	}
	var sb strings.Builder
	for _, c := range s[:n] {
		sb.WriteString(c.String())
	}
	return sb.String()
}

// Register describes a read or write operand.
type Register struct {
	Bank  Bank
	Index int
	// Mask lists the components the operand reads or writes. For sources it
	// is derived from Swizzle; for destinations it is the write mask.
	Mask     Mask
	Swizzle  Swizzle
	Negate   bool
	Absolute bool
}

// Src builds a source operand reading the components selected by swz.
func Src(bank Bank, index int, swz Swizzle) Register {
	return Register{Bank: bank, Index: index, Mask: swz.Used(), Swizzle: swz}
}

// Dst builds a destination operand writing the components in mask.
func Dst(bank Bank, index int, mask Mask) Register {
	return Register{Bank: bank, Index: index, Mask: mask, Swizzle: IdentitySwizzle}
}

// Uses reports whether the operand touches component c.
func (r Register) Uses(c Component) bool {
	return r.Mask.Has(c)
}

// Overlaps reports whether both operands touch a shared component of the
// same register.
func (r Register) Overlaps(o Register) bool {
	return r.Bank == o.Bank && r.Index == o.Index && r.Mask&o.Mask != 0
}

func (r Register) String() string {
	return fmt.Sprintf("%s%d.%s", r.Bank, r.Index, r.Mask)
}
