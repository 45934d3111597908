package isa

import (
	"fmt"
	"strings"
)

// Opcode identifies a shader instruction operation. Values follow the binary
// encoding used by the external codec.
type Opcode uint8

const (
	NOP    Opcode = 0x00
	ADD    Opcode = 0x01
	ADDI   Opcode = 0x02
	ARL    Opcode = 0x03
	ANDP   Opcode = 0x04
	COS    Opcode = 0x07
	DP3    Opcode = 0x08
	DP4    Opcode = 0x09
	DPH    Opcode = 0x0A
	DST    Opcode = 0x0B
	EX2    Opcode = 0x0C
	EXP    Opcode = 0x0D
	FLR    Opcode = 0x0E
	FRC    Opcode = 0x0F
	LG2    Opcode = 0x10
	LIT    Opcode = 0x11
	LOG    Opcode = 0x12
	MAD    Opcode = 0x13
	MAX    Opcode = 0x14
	MIN    Opcode = 0x15
	MOV    Opcode = 0x16
	MUL    Opcode = 0x17
	MULI   Opcode = 0x18
	RCP    Opcode = 0x19
	RSQ    Opcode = 0x1B
	SETPEQ Opcode = 0x1C
	SETPGT Opcode = 0x1D
	SGE    Opcode = 0x1E
	SETPLT Opcode = 0x1F
	SIN    Opcode = 0x20
	STPEQI Opcode = 0x21
	SLT    Opcode = 0x22
	STPGTI Opcode = 0x23
	STPLTI Opcode = 0x24
	TXL    Opcode = 0x25
	TEX    Opcode = 0x26
	TXB    Opcode = 0x27
	TXP    Opcode = 0x28
	KIL    Opcode = 0x29
	KLS    Opcode = 0x2A
	ZXP    Opcode = 0x2B
	ZXS    Opcode = 0x2C
	CMP    Opcode = 0x2D
	CMPKIL Opcode = 0x2E
	CHS    Opcode = 0x2F
	LDA    Opcode = 0x30
	FXMUL  Opcode = 0x31
	FXMAD  Opcode = 0x32
	FXMAD2 Opcode = 0x33
	DDX    Opcode = 0x34
	DDY    Opcode = 0x35
	JMP    Opcode = 0x36
	END    Opcode = 0x37

	// NumOpcodes bounds the valid opcode range (exclusive).
	NumOpcodes = 0x38
)

type opcodeInfo struct {
	name     string
	operands int
	valid    bool
}

var opcodeTable = [NumOpcodes]opcodeInfo{
	NOP: {"nop", 0, true}, ADD: {"add", 2, true}, ADDI: {"addi", 2, true},
	ARL: {"arl", 1, true}, ANDP: {"andp", 2, true}, COS: {"cos", 1, true},
	DP3: {"dp3", 2, true}, DP4: {"dp4", 2, true}, DPH: {"dph", 2, true},
	DST: {"dst", 2, true}, EX2: {"ex2", 1, true}, EXP: {"exp", 1, true},
	FLR: {"flr", 1, true}, FRC: {"frc", 1, true}, LG2: {"lg2", 1, true},
	LIT: {"lit", 1, true}, LOG: {"log", 1, true}, MAD: {"mad", 3, true},
	MAX: {"max", 2, true}, MIN: {"min", 2, true}, MOV: {"mov", 1, true},
	MUL: {"mul", 2, true}, MULI: {"muli", 2, true}, RCP: {"rcp", 1, true},
	RSQ: {"rsq", 1, true}, SETPEQ: {"setpeq", 2, true}, SETPGT: {"setpgt", 2, true},
	SGE: {"sge", 2, true}, SETPLT: {"setplt", 2, true}, SIN: {"sin", 1, true},
	STPEQI: {"stpeqi", 2, true}, SLT: {"slt", 2, true}, STPGTI: {"stpgti", 2, true},
	STPLTI: {"stplti", 2, true}, TXL: {"txl", 2, true}, TEX: {"tex", 2, true},
	TXB: {"txb", 2, true}, TXP: {"txp", 2, true}, KIL: {"kil", 1, true},
	KLS: {"kls", 2, true}, ZXP: {"zxp", 1, true}, ZXS: {"zxs", 2, true},
	CMP: {"cmp", 3, true}, CMPKIL: {"cmpkil", 3, true}, CHS: {"chs", 0, true},
	LDA: {"lda", 2, true}, FXMUL: {"fxmul", 2, true}, FXMAD: {"fxmad", 3, true},
	FXMAD2: {"fxmad2", 3, true}, DDX: {"ddx", 1, true}, DDY: {"ddy", 1, true},
	JMP: {"jmp", 1, true}, END: {"end", 0, true},
}

var opcodeByName = func() map[string]Opcode {
	m := make(map[string]Opcode, NumOpcodes)
	for op, info := range opcodeTable {
		if info.valid {
			m[info.name] = Opcode(op)
		}
	}
	return m
}()

// LookupOpcode resolves a mnemonic (case-insensitive) to its opcode.
func LookupOpcode(name string) (Opcode, bool) {
	op, ok := opcodeByName[strings.ToLower(name)]
	return op, ok
}

// Valid reports whether op names an implemented opcode.
func (op Opcode) Valid() bool {
	return int(op) < NumOpcodes && opcodeTable[op].valid
}

func (op Opcode) String() string {
	if !op.Valid() {
		return fmt.Sprintf("opcode(0x%02x)", uint8(op))
	}
	return opcodeTable[op].name
}

// NumOperands returns how many read operands the opcode encodes.
func (op Opcode) NumOperands() int {
	if !op.Valid() {
		return 0
	}
	return opcodeTable[op].operands
}

// WritesRegister reports whether the opcode produces a register result.
func (op Opcode) WritesRegister() bool {
	switch op {
	case NOP, END, KIL, KLS, ZXP, ZXS, CHS, JMP:
		return false
	}
	return op.Valid()
}

// SetsThreadState reports whether the opcode changes per-thread execution
// state (kills, z-exports and jumps).
func (op Opcode) SetsThreadState() bool {
	switch op {
	case KIL, KLS, CMPKIL, ZXP, ZXS, JMP:
		return true
	}
	return false
}

// ChangesSampleID reports whether the opcode switches the current sample.
func (op Opcode) ChangesSampleID() bool {
	return op == CHS
}

// IsJump reports whether the opcode is a jump.
func (op Opcode) IsJump() bool {
	return op == JMP
}
