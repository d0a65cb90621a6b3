package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/plcscan/internal/ir"
	tu "github.com/roach88/plcscan/internal/testutil"
)

func TestInstruction_SetResetLatch(t *testing.T) {
	p := tu.Project(
		[]ir.Tag{
			tu.BoolTag("set", "I0.0", false),
			tu.BoolTag("reset", "I0.1", false),
			tu.BoolTag("motor", "Q0.0", false),
		},
		tu.Series(tu.NO("c1", "set"), tu.Op("s1", ir.KindSet, "motor", ir.Params{})),
		tu.Series(tu.NO("c2", "reset"), tu.Op("r1", ir.KindReset, "motor", ir.Params{})),
	)
	e := running(t, p)

	assert.False(t, bit(scan(t, e, 1), "motor"))

	write(t, e, "set", true)
	assert.True(t, bit(scan(t, e, 1), "motor"))

	write(t, e, "set", false)
	assert.True(t, bit(scan(t, e, 3), "motor"), "SET latches")

	write(t, e, "reset", true)
	assert.False(t, bit(scan(t, e, 1), "motor"))

	write(t, e, "reset", false)
	assert.False(t, bit(scan(t, e, 2), "motor"), "RESET never sets")
}

func TestInstruction_FlipFlops(t *testing.T) {
	tests := []struct {
		kind       ir.Kind
		set, reset bool
		initial    bool
		want       bool
	}{
		{ir.KindSR, true, true, false, true},
		{ir.KindRS, true, true, true, false},
		{ir.KindSR, false, true, true, false},
		{ir.KindRS, true, false, false, true},
		{ir.KindSR, false, false, true, true},
		{ir.KindRS, false, false, false, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			p := tu.Project(
				[]ir.Tag{
					tu.BoolTag("s", "I0.0", tt.set),
					tu.BoolTag("r", "I0.1", tt.reset),
					tu.BoolTag("q", "M0.0", tt.initial),
				},
				tu.Series(tu.NO("c1", "s"), tu.Op("ff", tt.kind, "q", ir.Params{ResetTagID: "r"})),
			)
			snap := scan(t, running(t, p), 1)
			assert.Equal(t, tt.want, bit(snap, "q"))
			assert.Equal(t, tt.want, elem(t, snap, "ff").PowerFlowOut)
		})
	}
}

func TestInstruction_ContactForceOverride(t *testing.T) {
	no := &ir.Instruction{ID: "c1", Kind: ir.KindNO, TagID: "x", Forced: ir.ForceOn}
	nc := &ir.Instruction{ID: "c2", Kind: ir.KindNC, TagID: "x", Forced: ir.ForceOff}
	p := tu.Project(
		[]ir.Tag{tu.BoolTag("x", "I0.0", false), tu.BoolTag("q1", "Q0.0", false), tu.BoolTag("q2", "Q0.1", true)},
		tu.Series(ir.Inst(no), tu.Coil("k1", "q1")),
		tu.Series(ir.Inst(nc), tu.Coil("k2", "q2")),
	)

	snap := scan(t, running(t, p), 1)
	assert.True(t, bit(snap, "q1"), "forced ON contact passes power")
	assert.False(t, bit(snap, "q2"), "forced OFF contact blocks power")
}

func TestInstruction_BranchIsParallelOR(t *testing.T) {
	p := tu.Project(
		[]ir.Tag{
			tu.BoolTag("a", "I0.0", false),
			tu.BoolTag("b", "I0.1", false),
			tu.BoolTag("gate", "I0.2", true),
			tu.BoolTag("q", "Q0.0", false),
		},
		tu.Series(
			tu.NO("c0", "gate"),
			tu.Par("b1", tu.Series(tu.NO("c1", "a")), tu.Series(tu.NO("c2", "b"))),
			tu.Coil("k1", "q"),
		),
	)
	e := running(t, p)

	snap := scan(t, e, 1)
	assert.False(t, bit(snap, "q"))
	assert.Equal(t, ElementState{IsActive: true}, elem(t, snap, "b1"))

	write(t, e, "b", true)
	snap = scan(t, e, 1)
	assert.True(t, bit(snap, "q"))
	assert.Equal(t, ElementState{IsActive: true, PowerFlowOut: true}, elem(t, snap, "b1"))
	assert.True(t, elem(t, snap, "c1").IsActive, "every branch gets the group's input")

	write(t, e, "gate", false)
	snap = scan(t, e, 1)
	assert.False(t, bit(snap, "q"))
	assert.Equal(t, ElementState{}, elem(t, snap, "b1"))
	assert.False(t, elem(t, snap, "c2").IsActive)
}

func TestInstruction_BranchesAreNotShortCircuited(t *testing.T) {
	p := tu.Project(
		[]ir.Tag{tu.BoolTag("a", "I0.0", true), tu.BoolTag("q2", "Q0.1", false)},
		tu.Series(tu.Par("b1",
			tu.Series(tu.NO("c1", "a")),
			tu.Series(tu.NO("c2", "a"), tu.Coil("k2", "q2")),
		)),
	)

	snap := scan(t, running(t, p), 1)
	assert.True(t, bit(snap, "q2"))
}

func TestInstruction_NestedBranches(t *testing.T) {
	p := tu.Project(
		[]ir.Tag{
			tu.BoolTag("a", "I0.0", false),
			tu.BoolTag("b", "I0.1", true),
			tu.BoolTag("c", "I0.2", true),
			tu.BoolTag("q", "Q0.0", false),
		},
		tu.Series(
			tu.Par("outer",
				tu.Series(tu.NO("ca", "a")),
				tu.Series(tu.Par("inner",
					tu.Series(tu.NC("cb", "b")),
					tu.Series(tu.NO("cc", "c")),
				)),
			),
			tu.Coil("k", "q"),
		),
	)

	snap := scan(t, running(t, p), 1)
	assert.True(t, bit(snap, "q"))
	assert.True(t, elem(t, snap, "inner").PowerFlowOut)
	assert.False(t, elem(t, snap, "cb").PowerFlowOut)
}

func TestInstruction_IntraScanVisibility(t *testing.T) {
	p := tu.Project(
		[]ir.Tag{tu.BoolTag("in", "I0.0", true), tu.BoolTag("m", "M0.0", false), tu.BoolTag("q", "Q0.0", false)},
		tu.Series(tu.NO("c1", "in"), tu.Coil("k1", "m")),
		tu.Series(tu.NO("c2", "m"), tu.Coil("k2", "q")),
	)

	snap := scan(t, running(t, p), 1)
	assert.True(t, bit(snap, "q"), "later rungs see earlier writes in the same scan")
}

func TestInstruction_MissingTagReadsFalse(t *testing.T) {
	p := tu.Project(
		[]ir.Tag{tu.BoolTag("q", "Q0.0", true)},
		tu.Series(tu.NO("c1", "ghost"), tu.Coil("k1", "q")),
		tu.Series(tu.Op("add", ir.KindAdd, "", ir.Params{Preset: 1, DestTagID: "ghost"})),
	)

	snap := scan(t, running(t, p), 1)
	assert.False(t, bit(snap, "q"))
}

func mathProject(kind ir.Kind, params ir.Params) ir.Project {
	params.DestTagID = "out"
	return tu.Project(
		[]ir.Tag{
			tu.BoolTag("en", "I0.0", true),
			tu.NumTag("x", "MW0", ir.DataTypeInt, 12),
			tu.NumTag("y", "MW2", ir.DataTypeInt, 4),
			tu.NumTag("zero", "MW4", ir.DataTypeInt, 0),
			tu.NumTag("out", "MD8", ir.DataTypeReal, -1),
		},
		tu.Series(tu.NO("c1", "en"), tu.Op("op", kind, "", params)),
	)
}

func TestInstruction_Math(t *testing.T) {
	tests := []struct {
		name   string
		kind   ir.Kind
		params ir.Params
		want   float64
	}{
		{"add tags", ir.KindAdd, ir.Params{SourceTagID: "x", MinTagID: "y"}, 16},
		{"sub tags", ir.KindSub, ir.Params{SourceTagID: "x", MinTagID: "y"}, 8},
		{"mul tag and constant", ir.KindMul, ir.Params{SourceTagID: "x", Preset2: 2.5}, 30},
		{"div", ir.KindDiv, ir.Params{SourceTagID: "x", MinTagID: "y"}, 3},
		{"div by zero tag", ir.KindDiv, ir.Params{SourceTagID: "x", MinTagID: "zero"}, 0},
		{"div by missing constant", ir.KindDiv, ir.Params{Preset: 9}, 0},
		{"mov tag", ir.KindMov, ir.Params{SourceTagID: "y"}, 4},
		{"mov constant", ir.KindMov, ir.Params{Preset: 7.5}, 7.5},
		{"dangling source falls back to constant", ir.KindAdd, ir.Params{SourceTagID: "ghost", Preset: 1, Preset2: 1}, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snap := scan(t, running(t, mathProject(tt.kind, tt.params)), 1)
			assert.Equal(t, tt.want, num(snap, "out"))
		})
	}
}

func TestInstruction_MathNeedsPower(t *testing.T) {
	e := running(t, mathProject(ir.KindAdd, ir.Params{SourceTagID: "x", MinTagID: "y"}))
	write(t, e, "en", false)

	snap := scan(t, e, 1)
	assert.Equal(t, -1.0, num(snap, "out"))
	assert.False(t, elem(t, snap, "op").PowerFlowOut)
}

func TestInstruction_Compare(t *testing.T) {
	tests := []struct {
		kind ir.Kind
		a, b float64
		want bool
	}{
		{ir.KindEQ, 3, 3, true},
		{ir.KindEQ, 3, 4, false},
		{ir.KindNE, 3, 4, true},
		{ir.KindGT, 5, 4, true},
		{ir.KindGT, 4, 4, false},
		{ir.KindGE, 4, 4, true},
		{ir.KindLT, 3, 4, true},
		{ir.KindLE, 5, 4, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			p := tu.Project(
				[]ir.Tag{tu.NumTag("v", "MW0", ir.DataTypeInt, tt.a), tu.BoolTag("q", "Q0.0", false)},
				tu.Series(tu.Op("cmp", tt.kind, "", ir.Params{SourceTagID: "v", Preset2: tt.b}), tu.Coil("k", "q")),
			)
			snap := scan(t, running(t, p), 1)
			assert.Equal(t, tt.want, bit(snap, "q"))
		})
	}
}

func TestInstruction_CompareNeedsPower(t *testing.T) {
	p := tu.Project(
		[]ir.Tag{tu.BoolTag("en", "I0.0", false), tu.BoolTag("q", "Q0.0", false)},
		tu.Series(tu.NO("c1", "en"), tu.Op("cmp", ir.KindEQ, "", ir.Params{}), tu.Coil("k", "q")),
	)
	snap := scan(t, running(t, p), 1)
	assert.False(t, bit(snap, "q"))
}

func TestInstruction_LogicGates(t *testing.T) {
	tests := []struct {
		kind ir.Kind
		a, b bool
		want bool
	}{
		{ir.KindAnd, true, true, true},
		{ir.KindAnd, true, false, false},
		{ir.KindOrGate, false, true, true},
		{ir.KindOrGate, false, false, false},
		{ir.KindXor, true, false, true},
		{ir.KindXor, true, true, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			p := tu.Project(
				[]ir.Tag{
					tu.BoolTag("off", "I0.0", false),
					tu.BoolTag("a", "I0.1", tt.a),
					tu.BoolTag("b", "I0.2", tt.b),
					tu.BoolTag("out", "M0.0", !tt.want),
				},
				tu.Series(
					tu.NO("c1", "off"),
					tu.Op("g", tt.kind, "", ir.Params{SourceTagID: "a", MinTagID: "b", DestTagID: "out"}),
				),
			)
			snap := scan(t, running(t, p), 1)
			assert.Equal(t, tt.want, bit(snap, "out"))
			assert.Equal(t, tt.want, elem(t, snap, "g").PowerFlowOut, "gates ignore rung power")
		})
	}
}

func TestInstruction_GateWritesPrimaryWithoutDest(t *testing.T) {
	p := tu.Project(
		[]ir.Tag{tu.BoolTag("a", "I0.0", true), tu.BoolTag("q", "M0.0", false)},
		tu.Series(tu.Op("g", ir.KindAnd, "q", ir.Params{SourceTagID: "a", Preset2: 1})),
	)
	snap := scan(t, running(t, p), 1)
	assert.True(t, bit(snap, "q"))
}

func TestInstruction_Scaling(t *testing.T) {
	tests := []struct {
		name   string
		kind   ir.Kind
		value  float64
		params ir.Params
		want   float64
	}{
		{"norm mid", ir.KindNormX, 25, ir.Params{Preset2: 0, Preset3: 100}, 0.25},
		{"norm clamps high", ir.KindNormX, 150, ir.Params{Preset2: 0, Preset3: 100}, 1},
		{"norm clamps low", ir.KindNormX, -5, ir.Params{Preset2: 0, Preset3: 100}, 0},
		{"norm empty range", ir.KindNormX, 5, ir.Params{Preset2: 10, Preset3: 10}, 0},
		{"norm rounds to 4", ir.KindNormX, 1, ir.Params{Preset2: 0, Preset3: 3}, 0.3333},
		{"scale", ir.KindScaleX, 0.5, ir.Params{Preset2: 10, Preset3: 20}, 15},
		{"scale rounds to 2", ir.KindScaleX, 0.3333, ir.Params{Preset2: 0, Preset3: 10}, 3.33},
		{"scp", ir.KindSCP, 50, ir.Params{InMin: 0, InMax: 100, OutMin: tu.F(0), OutMax: tu.F(10)}, 5},
		{"scp default output range", ir.KindSCP, 2, ir.Params{InMin: 0, InMax: 8}, 25},
		{"scp empty span", ir.KindSCP, 3, ir.Params{InMin: 4, InMax: 4, OutMin: tu.F(-1)}, -1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			params := tt.params
			params.SourceTagID = "v"
			params.DestTagID = "out"
			p := tu.Project(
				[]ir.Tag{tu.NumTag("v", "MD0", ir.DataTypeReal, tt.value), tu.NumTag("out", "MD4", ir.DataTypeReal, 0)},
				tu.Series(tu.Op("s", tt.kind, "", params)),
			)
			snap := scan(t, running(t, p), 1)
			assert.Equal(t, tt.want, num(snap, "out"))
		})
	}
}

func TestInstruction_ScalingReadsRangeTags(t *testing.T) {
	p := tu.Project(
		[]ir.Tag{
			tu.NumTag("raw", "IW64", ir.DataTypeInt, 13824),
			tu.NumTag("lo", "MW0", ir.DataTypeInt, 0),
			tu.NumTag("hi", "MW2", ir.DataTypeInt, 27648),
			tu.NumTag("norm", "MD4", ir.DataTypeReal, 0),
		},
		tu.Series(tu.Op("n", ir.KindNormX, "", ir.Params{SourceTagID: "raw", MinTagID: "lo", MaxTagID: "hi", DestTagID: "norm"})),
	)
	snap := scan(t, running(t, p), 1)
	assert.Equal(t, 0.5, num(snap, "norm"))
}

func TestInstruction_WriteCoercesBoolDestination(t *testing.T) {
	p := tu.Project(
		[]ir.Tag{tu.BoolTag("flag", "M0.0", false)},
		tu.Series(tu.Op("mov", ir.KindMov, "", ir.Params{Preset: 3, DestTagID: "flag"})),
	)
	snap := scan(t, running(t, p), 1)
	require.True(t, snap.Value("flag").IsBool())
	assert.True(t, bit(snap, "flag"))
}
