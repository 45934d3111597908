package analysis

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"shadersched/internal/asm"
	"shadersched/internal/isa"
)

func parseProgram(t *testing.T, src string) []isa.Instruction {
	t.Helper()
	prog, err := asm.Parse("test.asm", []byte(src), nil, nil)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	return prog.Code
}

func TestLiveRanges(t *testing.T) {
	code := parseProgram(t, `
add r0, i0, i1
mul r1, r0, i2
add r2, i3, i4
mov o0, r1
mad o1, r2, c0, r0
mov r3, i5
`)
	want := []Range{
		{Reg: 0, Def: 0, Use: 4},
		{Reg: 1, Def: 1, Use: 3},
		{Reg: 2, Def: 2, Use: 4},
	}
	if diff := cmp.Diff(want, LiveRanges(code)); diff != "" {
		t.Fatalf("live ranges mismatch (-want +got):\n%s", diff)
	}
	if got := MaxLiveTemps(code); got != 3 {
		t.Fatalf("MaxLiveTemps=%d, want 3", got)
	}
}

func TestMaxLiveTemps(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want int
	}{
		{name: "empty", src: "", want: 0},
		{name: "never read", src: "mov r0, i0\nmov r1, i1\n", want: 0},
		{
			name: "sequential reuse",
			src: `
mov r0, i0
mov o0, r0
mov r1, i1
mov o1, r1
`,
			want: 1,
		},
		{
			name: "first write opens the range",
			src: `
mov r0.x, i0
mov r1, i1
mov r0.y, i2
add o0, r0, r1
`,
			want: 2,
		},
		{
			name: "read before any write",
			src: `
mov o0, r5
mov r5, i0
`,
			want: 0,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := MaxLiveTemps(parseProgram(t, tc.src)); got != tc.want {
				t.Fatalf("MaxLiveTemps=%d, want %d", got, tc.want)
			}
		})
	}
}

func TestRegisterUsage(t *testing.T) {
	code := parseProgram(t, `
mul r0, i2, c0
mov o0, r0
`)
	u := RegisterUsage(code, 8)
	wantInputs := []bool{false, false, true, false, false, false, false, false}
	wantOutputs := []bool{true, false, false, false, false, false, false, false}
	if diff := cmp.Diff(wantInputs, u.InputsRead); diff != "" {
		t.Fatalf("inputs mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(wantOutputs, u.OutputsWritten); diff != "" {
		t.Fatalf("outputs mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]int{2}, Indices(u.InputsRead)); diff != "" {
		t.Fatalf("indices mismatch (-want +got):\n%s", diff)
	}
}

func TestRegisterUsageIgnoresUnencodedOperands(t *testing.T) {
	dst := isa.Dst(isa.Temp, 0, isa.MaskXYZW)
	code := []isa.Instruction{{
		Opcode: isa.MOV,
		Dest:   &dst,
		Sources: []isa.Register{
			isa.Src(isa.In, 1, isa.IdentitySwizzle),
			isa.Src(isa.In, 3, isa.IdentitySwizzle),
		},
	}}
	u := RegisterUsage(code, 4)
	if diff := cmp.Diff([]int{1}, Indices(u.InputsRead)); diff != "" {
		t.Fatalf("inputs mismatch (-want +got):\n%s", diff)
	}

	big := parseProgram(t, "mov o9, i9\n")
	u = RegisterUsage(big, 4)
	if Indices(u.InputsRead) != nil || Indices(u.OutputsWritten) != nil {
		t.Fatalf("registers beyond the attribute count must be ignored: %+v", u)
	}
}
