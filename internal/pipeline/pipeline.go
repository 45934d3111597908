// Package pipeline ties decoding, validation, the optimization passes and
// encoding together for one shader program.
package pipeline

import (
	"fmt"
	"io"
	"log/slog"

	"shadersched/internal/asm"
	"shadersched/internal/depgraph"
	"shadersched/internal/diag"
	"shadersched/internal/isa"
	"shadersched/internal/passes"
	"shadersched/internal/sched"
	"shadersched/internal/validate"
)

// Decoder turns an encoded program into instruction records.
type Decoder interface {
	Decode(code []byte) ([]isa.Instruction, error)
}

// Encoder turns instruction records back into an encoded program.
type Encoder interface {
	Encode(code []isa.Instruction) ([]byte, error)
}

// Codec decodes and encodes programs.
type Codec interface {
	Decoder
	Encoder
}

// sourceDecoder is implemented by decoders that keep source positions for
// diagnostics.
type sourceDecoder interface {
	DecodeSource(code []byte) (*asm.Source, error)
}

// Constant is one four-component entry of the program's constant bank.
type Constant [4]float32

// Options configures an Optimizer. The zero value runs the default passes
// without diagnostics output.
type Options struct {
	// Passes overrides passes.DefaultKinds when non-empty.
	Passes []passes.Kind
	// Reporter receives validation diagnostics and provides the logger.
	Reporter *diag.Reporter
	// File names the program in diagnostics.
	File string
	// OnCycle observes the graph after every scheduling cycle.
	OnCycle func(cycle int, g *depgraph.Graph)
}

// Output is the result of optimizing one program.
type Output struct {
	Code         []byte
	Instructions []isa.Instruction
	Constants    []Constant

	MaxAliveTemps  int
	InputsRead     []bool
	OutputsWritten []bool

	Graph    *depgraph.Graph
	Schedule *sched.Result
}

// Optimizer runs the pass pipeline over programs for one architecture.
// An Optimizer holds the constants of the program being optimized and must
// not be shared between goroutines.
type Optimizer struct {
	arch      isa.ArchConfig
	codec     Codec
	opts      Options
	logger    *slog.Logger
	constants []Constant
}

// New creates an optimizer. arch is validated here so a misconfigured
// pipeline fails before any program is decoded.
func New(arch isa.ArchConfig, codec Codec, opts Options) (*Optimizer, error) {
	if codec == nil {
		return nil, fmt.Errorf("pipeline requires a codec")
	}
	if err := arch.Validate(); err != nil {
		return nil, fmt.Errorf("architecture: %w", err)
	}
	if len(opts.Passes) == 0 {
		opts.Passes = passes.DefaultKinds()
	}
	if opts.Reporter == nil {
		opts.Reporter = diag.NewReporter(io.Discard, "text")
	}
	return &Optimizer{
		arch:   arch,
		codec:  codec,
		opts:   opts,
		logger: opts.Reporter.Logger(),
	}, nil
}

// SetConstants records the constant bank handed back with the next result.
// Scheduling never reads or changes constants.
func (o *Optimizer) SetConstants(constants []Constant) {
	o.constants = append([]Constant(nil), constants...)
}

// Optimize decodes code, validates it, runs the configured passes, marks the
// last real instruction as the end of the program and re-encodes it.
func (o *Optimizer) Optimize(code []byte) (*Output, error) {
	src, err := o.decode(code)
	if err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	if err := validate.CheckProgram(src, o.arch, o.opts.Reporter); err != nil {
		return nil, err
	}

	mgr := passes.NewManager(o.logger)
	mgr.Add(o.opts.Passes...)
	prog := &passes.Program{
		Arch:    o.arch,
		Code:    src.Code,
		OnCycle: o.opts.OnCycle,
	}
	if err := mgr.Run(prog); err != nil {
		return nil, err
	}

	MarkEnd(prog.Code)
	encoded, err := o.codec.Encode(prog.Code)
	if err != nil {
		return nil, fmt.Errorf("encode: %w", err)
	}
	o.logger.Debug("program optimized",
		"file", src.File,
		"instructions", len(src.Code),
		"emitted", len(prog.Code))

	return &Output{
		Code:           encoded,
		Instructions:   prog.Code,
		Constants:      append([]Constant(nil), o.constants...),
		MaxAliveTemps:  prog.MaxAliveTemps,
		InputsRead:     prog.InputsRead,
		OutputsWritten: prog.OutputsWritten,
		Graph:          prog.Graph,
		Schedule:       prog.Schedule,
	}, nil
}

func (o *Optimizer) decode(code []byte) (*asm.Source, error) {
	if d, ok := o.codec.(sourceDecoder); ok {
		return d.DecodeSource(code)
	}
	insts, err := o.codec.Decode(code)
	if err != nil {
		return nil, err
	}
	return &asm.Source{File: o.opts.File, Code: insts}, nil
}

// MarkEnd sets the End flag on the last instruction that is not a no-op and
// clears it everywhere else. It reports whether such an instruction exists.
func MarkEnd(code []isa.Instruction) bool {
	last := -1
	for i := range code {
		code[i].End = false
		if !code[i].IsNop() {
			last = i
		}
	}
	if last < 0 {
		return false
	}
	code[last].End = true
	return true
}
