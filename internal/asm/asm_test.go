package asm

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"shadersched/internal/diag"
	"shadersched/internal/isa"
)

func TestParseOperands(t *testing.T) {
	src, err := Parse("t.asm", []byte(`
(!p3) mad_sat r1.xz, -r2.y, |c[a0.w-2].zyxw|, i4.xy
`), nil, nil)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(src.Code) != 1 {
		t.Fatalf("got %d instructions", len(src.Code))
	}
	in := src.Code[0]
	if in.Opcode != isa.MAD || !in.Saturate || !in.Predicated || !in.NegatePredicate || in.PredicateReg != 3 {
		t.Fatalf("unexpected header %+v", in)
	}
	if diff := cmp.Diff(&isa.Register{Bank: isa.Temp, Index: 1, Mask: isa.MaskOf(isa.X, isa.Z), Swizzle: isa.IdentitySwizzle}, in.Dest); diff != "" {
		t.Fatalf("dest mismatch (-want +got):\n%s", diff)
	}
	want := []isa.Register{
		{Bank: isa.Temp, Index: 2, Mask: isa.MaskOf(isa.Y), Swizzle: isa.Broadcast(isa.Y), Negate: true},
		{Bank: isa.Param, Index: 0, Mask: isa.MaskXYZW, Swizzle: isa.Swizzle{isa.Z, isa.Y, isa.X, isa.W}, Absolute: true},
		{Bank: isa.In, Index: 4, Mask: isa.MaskOf(isa.X, isa.Y), Swizzle: isa.Swizzle{isa.X, isa.Y, isa.Y, isa.Y}},
	}
	if diff := cmp.Diff(want, in.Sources); diff != "" {
		t.Fatalf("sources mismatch (-want +got):\n%s", diff)
	}
	wantRel := isa.Relative{Enabled: true, Reg: 0, Component: isa.W, Offset: -2}
	if diff := cmp.Diff(wantRel, in.Relative); diff != "" {
		t.Fatalf("relative mismatch (-want +got):\n%s", diff)
	}
	if !in.End || src.Lines[0] != 2 {
		t.Fatalf("End=%v line=%d", in.End, src.Lines[0])
	}
}

func TestParseAnnotatesLatencyAndText(t *testing.T) {
	lat, err := isa.LookupLatencies("VarLatAOS")
	if err != nil {
		t.Fatalf("latencies: %v", err)
	}
	src, err := Parse("t.asm", []byte("COS  r0.x ,i0.x # cosine\njmp r0.x, -3\n"), lat, nil)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	got := []string{src.Code[0].Text, src.Code[1].Text}
	if diff := cmp.Diff([]string{"cos r0.x, i0.x", "jmp r0.x, -3"}, got); diff != "" {
		t.Fatalf("text mismatch (-want +got):\n%s", diff)
	}
	if src.Code[0].Latency != 12 || src.Code[1].JumpOffset != -3 {
		t.Fatalf("latency=%d offset=%d", src.Code[0].Latency, src.Code[1].JumpOffset)
	}
	if src.Code[0].End || !src.Code[1].End {
		t.Fatalf("only the last instruction carries End")
	}
}

func TestParseReportsErrors(t *testing.T) {
	var buf bytes.Buffer
	reporter := diag.NewReporter(&buf, "text")
	_, err := Parse("bad.asm", []byte(`
mov r0, i0
frob r1, r0
add r1, r0
mov r1, q0
mov r1.yx, r0
mov r1, r0.xyzwx
mov r1[a0.x], r0
add r0, c[a0.x], c[a0.y]
`), nil, reporter)
	if err == nil || !strings.Contains(err.Error(), "7 malformed instruction(s)") {
		t.Fatalf("expected summary error, got %v", err)
	}
	want := []string{
		`bad.asm:3: error: unknown opcode "frob"`,
		`bad.asm:4: error: add expects 3 operand(s), got 2`,
		`bad.asm:5: error: unknown register bank in "q0"`,
		`bad.asm:6: error: destination "r1.yx": write mask "yx" must list components in xyzw order`,
		`bad.asm:7: error: source "r0.xyzwx": swizzle "xyzwx" has more than four components`,
		`bad.asm:8: error: destination "r1[a0.x]" cannot use relative addressing`,
		`bad.asm:9: error: only one operand may use relative addressing`,
	}
	if diff := cmp.Diff(want, strings.Split(strings.TrimSpace(buf.String()), "\n")); diff != "" {
		t.Fatalf("diagnostics mismatch (-want +got):\n%s", diff)
	}
}

func TestFormatRoundTrip(t *testing.T) {
	const program = `dp4 r0.x, i0, c0
dp4 r0.y, i0, c1
mov r1, c[a0.x+2]
(p0) add o0, r0.wzyx, -|r1.w|
setpgt p1, r0.x, r1.x
(!p1) kil r0.x
tex r2, i1.xy, t0
mad_sat o1.xyz, r2, c3[a0.y-1], r1
chs
jmp r0.x, 4
nop
`
	src, err := Parse("round.asm", []byte(program), nil, nil)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	codec := &Codec{}
	out, err := codec.Encode(src.Code)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if diff := cmp.Diff(program, string(out)); diff != "" {
		t.Fatalf("round trip mismatch (-want +got):\n%s", diff)
	}

	again, err := codec.Decode(out)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if diff := cmp.Diff(src.Code, again); diff != "" {
		t.Fatalf("decoded records differ (-want +got):\n%s", diff)
	}
}

func TestEncodeFormatsRecordsWithoutText(t *testing.T) {
	dst := isa.Dst(isa.Out, 2, isa.MaskOf(isa.W))
	code := []isa.Instruction{
		{Opcode: isa.MOV, Dest: &dst, Sources: []isa.Register{isa.Src(isa.Temp, 5, isa.Broadcast(isa.Z))}},
		isa.NewNop(1),
	}
	out, err := (&Codec{}).Encode(code)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if diff := cmp.Diff("mov o2.w, r5.z\nnop\n", string(out)); diff != "" {
		t.Fatalf("encode mismatch (-want +got):\n%s", diff)
	}
	if _, err := (&Codec{}).Encode([]isa.Instruction{{Opcode: 0x05}}); err == nil {
		t.Fatalf("expected error for invalid opcode")
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prog.asm")
	if err := os.WriteFile(path, []byte("mov o0, i0\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	src, err := LoadFile(path, nil, nil)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if src.File != path || len(src.Code) != 1 {
		t.Fatalf("unexpected source %+v", src)
	}
	if got := src.Pos(0).String(); got != path+":1" {
		t.Fatalf("Pos(0)=%q", got)
	}
	if _, err := LoadFile(filepath.Join(t.TempDir(), "missing.asm"), nil, nil); err == nil {
		t.Fatalf("expected error for missing file")
	}
}
