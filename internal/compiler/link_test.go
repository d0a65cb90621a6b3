package compiler

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/plcscan/internal/ir"
	tu "github.com/roach88/plcscan/internal/testutil"
)

func seriesProject() ir.Project {
	return tu.Project(
		[]ir.Tag{
			tu.BoolTag("a", "I0.0", true),
			tu.BoolTag("b", "I0.1", false),
			tu.BoolTag("c", "Q0.0", false),
		},
		tu.Series(tu.NO("c1", "a"), tu.NO("c2", "b"), tu.Coil("q1", "c")),
	)
}

func TestLink_Series(t *testing.T) {
	prog, err := Link(seriesProject())
	require.NoError(t, err)

	require.Len(t, prog.Nodes, 3)
	require.Len(t, prog.Networks, 1)
	assert.Equal(t, []int{0, 1, 2}, prog.Networks[0].Rungs[0].Elements)

	assert.Equal(t, ir.KindNO, prog.Nodes[0].Op)
	assert.Equal(t, 0, prog.Nodes[0].Refs.Tag)
	assert.Equal(t, 1, prog.Nodes[1].Refs.Tag)
	assert.Equal(t, 2, prog.Nodes[2].Refs.Tag)
	assert.Equal(t, NoRef, prog.Nodes[2].Refs.Dest)

	idx, ok := prog.NodeIndex("q1")
	require.True(t, ok)
	assert.Equal(t, 2, idx)

	ti, ok := prog.TagIndex("b")
	require.True(t, ok)
	assert.Equal(t, 1, ti)
}

func TestLink_BranchArena(t *testing.T) {
	proj := tu.Project(
		[]ir.Tag{tu.BoolTag("a", "M0.0", false), tu.BoolTag("b", "M0.1", false), tu.BoolTag("q", "Q0.0", false)},
		tu.Series(
			tu.Par("b1", tu.Series(tu.NO("c1", "a")), tu.Series(tu.NO("c2", "b"))),
			tu.Coil("q1", "q"),
		),
	)

	prog, err := Link(proj)
	require.NoError(t, err)

	require.Len(t, prog.Nodes, 4)
	assert.Equal(t, NodeBranch, prog.Nodes[0].Kind)
	assert.Equal(t, [][]int{{1}, {2}}, prog.Nodes[0].Branches)
	assert.Equal(t, "c1", prog.Nodes[1].ID)
	assert.Equal(t, "c2", prog.Nodes[2].ID)
	assert.Equal(t, []int{0, 3}, prog.Networks[0].Rungs[0].Elements)
}

func TestLink_ResolvesParamRefs(t *testing.T) {
	proj := tu.Project(
		[]ir.Tag{
			tu.NumTag("x", "MW0", ir.DataTypeInt, 3),
			tu.NumTag("y", "MW2", ir.DataTypeInt, 4),
			tu.NumTag("sum", "MW4", ir.DataTypeInt, 0),
		},
		tu.Series(tu.Op("add1", ir.KindAdd, "", ir.Params{SourceTagID: "x", MinTagID: "y", DestTagID: "sum", ResetTagID: "gone"})),
	)

	prog, err := Link(proj)
	require.NoError(t, err)

	refs := prog.Nodes[0].Refs
	assert.Equal(t, NoRef, refs.Tag)
	assert.Equal(t, 0, refs.Source)
	assert.Equal(t, 1, refs.Min)
	assert.Equal(t, 2, refs.Dest)
	assert.Equal(t, NoRef, refs.Reset, "dangling reference resolves to NoRef")
}

func TestLink_DoesNotAliasInput(t *testing.T) {
	proj := seriesProject()
	prog, err := Link(proj)
	require.NoError(t, err)

	prog.Nodes[0].Inst.IsActive = true
	prog.Project.Tags[0].Value = ir.Bool(false)

	assert.False(t, proj.Networks[0].Rungs[0].Elements[0].Instruction.IsActive)
	assert.True(t, proj.Tags[0].Value.Truthy())
}

func TestLink_NormalizesTagValues(t *testing.T) {
	proj := tu.Project([]ir.Tag{
		{ID: "b", Address: "M0.0", DataType: ir.DataTypeBool, Value: ir.Num(1)},
		{ID: "n", Address: "MW0", DataType: ir.DataTypeInt, Value: ir.Bool(true)},
	})

	prog, err := Link(proj)
	require.NoError(t, err)

	assert.True(t, prog.Project.Tags[0].Value.Equal(ir.Bool(true)))
	assert.True(t, prog.Project.Tags[1].Value.Equal(ir.Num(1)))
}

func TestLink_SelfContainingBranch(t *testing.T) {
	bg := &ir.BranchGroup{ID: "b1"}
	bg.Branches = [][]ir.Element{
		{ir.Branch(bg)},
		{tu.NO("c1", "a")},
	}
	proj := tu.Project([]ir.Tag{tu.BoolTag("a", "M0.0", false)}, tu.Series(ir.Branch(bg)))

	_, err := Link(proj)
	require.Error(t, err)
	assert.True(t, IsCycleError(err))

	var le *LinkError
	require.True(t, errors.As(err, &le))
	assert.Equal(t, []string{"b1", "b1"}, le.Path)
	assert.Contains(t, le.Error(), "b1 → b1")
}

func TestLink_MutualContainment(t *testing.T) {
	b1 := &ir.BranchGroup{ID: "b1"}
	b2 := &ir.BranchGroup{ID: "b2"}
	b1.Branches = [][]ir.Element{{ir.Branch(b2)}, {tu.NO("c1", "a")}}
	b2.Branches = [][]ir.Element{{ir.Branch(b1)}, {tu.NO("c2", "a")}}
	proj := tu.Project([]ir.Tag{tu.BoolTag("a", "M0.0", false)}, tu.Series(ir.Branch(b1)))

	_, err := Link(proj)
	require.Error(t, err)

	var le *LinkError
	require.True(t, errors.As(err, &le))
	assert.Equal(t, ErrCodeCycleDetected, le.Code)
	assert.Equal(t, []string{"b1", "b2", "b1"}, le.Path)
}

func TestLink_WrappedCycleError(t *testing.T) {
	err := fmt.Errorf("load: %w", &LinkError{Code: ErrCodeCycleDetected, Path: []string{"x", "x"}})
	assert.True(t, IsCycleError(err))
	assert.True(t, IsLinkError(err))
	assert.False(t, IsCycleError(&LinkError{Code: ErrCodeDuplicateTag}))
	assert.False(t, IsLinkError(errors.New("other")))
}

func TestLink_StructuralErrors(t *testing.T) {
	tags := []ir.Tag{tu.BoolTag("a", "M0.0", false)}

	tests := []struct {
		name    string
		project ir.Project
		code    LinkErrorCode
		id      string
	}{
		{
			name:    "duplicate element id",
			project: tu.Project(tags, tu.Series(tu.NO("x", "a")), tu.Series(tu.Coil("x", "a"))),
			code:    ErrCodeDuplicateElement,
			id:      "x",
		},
		{
			name:    "empty element",
			project: tu.Project(tags, tu.Series(tu.NO("c1", "a"), ir.Element{})),
			code:    ErrCodeMalformedElement,
		},
		{
			name: "element with both payloads",
			project: tu.Project(tags, tu.Series(ir.Element{
				Instruction: &ir.Instruction{ID: "i", Kind: ir.KindNO},
				Branch:      &ir.BranchGroup{ID: "i"},
			})),
			code: ErrCodeMalformedElement,
		},
		{
			name:    "element without id",
			project: tu.Project(tags, tu.Series(tu.NO("", "a"))),
			code:    ErrCodeMalformedElement,
		},
		{
			name:    "unknown kind",
			project: tu.Project(tags, tu.Series(tu.Op("j1", "JMP", "", ir.Params{}))),
			code:    ErrCodeUnknownKind,
			id:      "j1",
		},
		{
			name:    "duplicate tag",
			project: tu.Project([]ir.Tag{tu.BoolTag("a", "M0.0", false), tu.BoolTag("a", "M0.1", true)}),
			code:    ErrCodeDuplicateTag,
			id:      "a",
		},
		{
			name:    "tag with unknown type",
			project: tu.Project([]ir.Tag{{ID: "w", Address: "MW0", DataType: "WORD"}}),
			code:    ErrCodeInvalidTag,
			id:      "w",
		},
		{
			name:    "tag without id",
			project: tu.Project([]ir.Tag{{Address: "MW0", DataType: ir.DataTypeInt}}),
			code:    ErrCodeInvalidTag,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Link(tt.project)
			require.Error(t, err)

			var le *LinkError
			require.True(t, errors.As(err, &le), "expected *LinkError, got %T", err)
			assert.Equal(t, tt.code, le.Code)
			if tt.id != "" {
				assert.Equal(t, tt.id, le.ElementID)
			}
		})
	}
}

func TestMustLink_Panics(t *testing.T) {
	proj := tu.Project(nil, tu.Series(tu.NO("x", ""), tu.NO("x", "")))
	assert.Panics(t, func() { MustLink(proj) })
}
