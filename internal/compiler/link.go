// Package compiler turns an ir.Project into an executable Program.
//
// Linking flattens the recursive element tree into an arena: every
// element becomes a Node addressed by index, branch groups hold index
// lists into the arena, and tag references are resolved to tag indices.
// Structural problems (containment cycles, duplicate ids, malformed
// elements, unknown kinds) are rejected with a *LinkError before the
// engine ever evaluates the project.
package compiler

import (
	"fmt"
	"slices"

	"github.com/roach88/plcscan/internal/ir"
)

// NodeKind distinguishes instruction nodes from branch group nodes.
type NodeKind string

const (
	NodeInstruction NodeKind = "instruction"
	NodeBranch      NodeKind = "branch"
)

// NoRef marks an unset or unresolvable tag reference.
const NoRef = -1

// Refs holds resolved tag indices for an instruction. Each field is NoRef
// when the reference is unset or names a missing tag.
type Refs struct {
	Tag    int `json:"tag"`
	Source int `json:"source"`
	Dest   int `json:"dest"`
	Min    int `json:"min"`
	Max    int `json:"max"`
	Reset  int `json:"reset"`
}

func noRefs() Refs {
	return Refs{Tag: NoRef, Source: NoRef, Dest: NoRef, Min: NoRef, Max: NoRef, Reset: NoRef}
}

// Node is one arena slot.
type Node struct {
	ID   string   `json:"id"`
	Kind NodeKind `json:"kind"`

	// Instruction nodes
	Op   ir.Kind         `json:"op,omitempty"`
	Inst *ir.Instruction `json:"-"`
	Refs Refs            `json:"refs"`

	// Branch nodes
	Branches [][]int `json:"branches,omitempty"`
}

// RungProgram is a linked rung: the arena indices of its top-level elements.
type RungProgram struct {
	ID       string `json:"id"`
	Elements []int  `json:"elements"`
}

// NetworkProgram is a linked network.
type NetworkProgram struct {
	ID    string        `json:"id"`
	Title string        `json:"title"`
	Rungs []RungProgram `json:"rungs"`
}

// Program is a linked, structurally valid project.
//
// Program is immutable after Link returns. The engine reads instruction
// parameters through Node.Inst, which points into Program.Project.
type Program struct {
	Project  ir.Project       `json:"-"`
	Nodes    []Node           `json:"nodes"`
	Networks []NetworkProgram `json:"networks"`

	nodeIndex map[string]int
	tagIndex  map[string]int
}

// NodeIndex returns the arena index of the element with the given id.
func (p *Program) NodeIndex(id string) (int, bool) {
	i, ok := p.nodeIndex[id]
	return i, ok
}

// TagIndex returns the position of the tag with the given id in
// Program.Project.Tags.
func (p *Program) TagIndex(id string) (int, bool) {
	i, ok := p.tagIndex[id]
	return i, ok
}

// Link validates the project structure and builds its arena Program.
// The input project is not modified; the Program owns a deep copy.
//
// Tag values are normalized to their declared type (BOOL tags hold
// booleans, others numbers).
func Link(project ir.Project) (*Program, error) {
	// Containment is checked on the input before cloning: a cyclic tree
	// cannot be deep-copied.
	graph, counts, err := buildContainment(project)
	if err != nil {
		return nil, err
	}

	if path := findContainmentCycle(graph); path != nil {
		return nil, &LinkError{
			Code:      ErrCodeCycleDetected,
			Message:   "branch group contains itself",
			ElementID: path[0],
			Path:      path,
		}
	}

	if dup := firstDuplicate(counts); dup != "" {
		return nil, &LinkError{
			Code:      ErrCodeDuplicateElement,
			Message:   fmt.Sprintf("element id used %d times", counts[dup]),
			ElementID: dup,
		}
	}

	proj := project.Clone()
	tagIndex, err := indexTags(proj.Tags)
	if err != nil {
		return nil, err
	}

	prog := &Program{
		Project:   proj,
		nodeIndex: make(map[string]int, len(counts)),
		tagIndex:  tagIndex,
	}

	for _, n := range proj.Networks {
		np := NetworkProgram{ID: n.ID, Title: n.Title}
		for _, r := range n.Rungs {
			elems := prog.linkElements(r.Elements)
			np.Rungs = append(np.Rungs, RungProgram{ID: r.ID, Elements: elems})
		}
		prog.Networks = append(prog.Networks, np)
	}

	return prog, nil
}

// MustLink is like Link but panics on error.
// Use only in tests or when the project is known to be valid.
func MustLink(project ir.Project) *Program {
	p, err := Link(project)
	if err != nil {
		panic(err)
	}
	return p
}

func indexTags(tags []ir.Tag) (map[string]int, error) {
	index := make(map[string]int, len(tags))
	for i := range tags {
		t := &tags[i]
		if t.ID == "" {
			return nil, &LinkError{Code: ErrCodeInvalidTag, Message: fmt.Sprintf("tag %d has no id", i)}
		}
		if !ir.ValidDataTypes[t.DataType] {
			return nil, &LinkError{
				Code:      ErrCodeInvalidTag,
				Message:   fmt.Sprintf("unknown data type %q", t.DataType),
				ElementID: t.ID,
			}
		}
		if _, dup := index[t.ID]; dup {
			return nil, &LinkError{Code: ErrCodeDuplicateTag, Message: "tag id used more than once", ElementID: t.ID}
		}
		t.Value = t.Value.As(t.DataType)
		index[t.ID] = i
	}
	return index, nil
}

// buildContainment walks every rung and records, per branch group, the
// ids of the elements it contains. A group is expanded at most once, so
// pointer cycles in the tree terminate and show up as graph cycles.
func buildContainment(proj ir.Project) (containmentGraph, map[string]int, error) {
	graph := make(containmentGraph)
	counts := make(map[string]int)
	expanded := make(map[string]bool)

	var walk func(parent string, elems []ir.Element, where string) error
	walk = func(parent string, elems []ir.Element, where string) error {
		for i, el := range elems {
			loc := fmt.Sprintf("%s[%d]", where, i)
			if (el.Instruction == nil) == (el.Branch == nil) {
				return &LinkError{
					Code:    ErrCodeMalformedElement,
					Message: fmt.Sprintf("element at %s must be exactly one of instruction or branch group", loc),
				}
			}
			id := el.ID()
			if id == "" {
				return &LinkError{Code: ErrCodeMalformedElement, Message: fmt.Sprintf("element at %s has no id", loc)}
			}
			counts[id]++
			if parent != "" {
				graph[parent] = append(graph[parent], id)
			}

			if el.Instruction != nil {
				if !ir.ValidKinds[el.Instruction.Kind] {
					return &LinkError{
						Code:      ErrCodeUnknownKind,
						Message:   fmt.Sprintf("unknown instruction kind %q", el.Instruction.Kind),
						ElementID: id,
					}
				}
				continue
			}

			if _, ok := graph[id]; !ok {
				graph[id] = []string{}
			}
			if expanded[id] {
				continue
			}
			expanded[id] = true
			for b, br := range el.Branch.Branches {
				if err := walk(id, br, fmt.Sprintf("%s/%s.branches[%d]", loc, id, b)); err != nil {
					return err
				}
			}
		}
		return nil
	}

	for _, n := range proj.Networks {
		for _, r := range n.Rungs {
			if err := walk("", r.Elements, n.ID+"/"+r.ID); err != nil {
				return nil, nil, err
			}
		}
	}
	return graph, counts, nil
}

func firstDuplicate(counts map[string]int) string {
	var dups []string
	for id, n := range counts {
		if n > 1 {
			dups = append(dups, id)
		}
	}
	if len(dups) == 0 {
		return ""
	}
	slices.Sort(dups)
	return dups[0]
}

// linkElements appends a node per element and returns their indices.
// Only called after cycle and duplicate checks passed.
func (p *Program) linkElements(elems []ir.Element) []int {
	out := make([]int, 0, len(elems))
	for _, el := range elems {
		idx := len(p.Nodes)
		if el.Branch != nil {
			p.Nodes = append(p.Nodes, Node{ID: el.Branch.ID, Kind: NodeBranch, Refs: noRefs()})
			p.nodeIndex[el.Branch.ID] = idx
			branches := make([][]int, 0, len(el.Branch.Branches))
			for _, br := range el.Branch.Branches {
				branches = append(branches, p.linkElements(br))
			}
			p.Nodes[idx].Branches = branches
		} else {
			inst := el.Instruction
			p.Nodes = append(p.Nodes, Node{
				ID:   inst.ID,
				Kind: NodeInstruction,
				Op:   inst.Kind,
				Inst: inst,
				Refs: p.resolveRefs(inst),
			})
			p.nodeIndex[inst.ID] = idx
		}
		out = append(out, idx)
	}
	return out
}

func (p *Program) resolveRefs(inst *ir.Instruction) Refs {
	params := inst.P()
	return Refs{
		Tag:    p.ref(inst.TagID),
		Source: p.ref(params.SourceTagID),
		Dest:   p.ref(params.DestTagID),
		Min:    p.ref(params.MinTagID),
		Max:    p.ref(params.MaxTagID),
		Reset:  p.ref(params.ResetTagID),
	}
}

func (p *Program) ref(tagID string) int {
	if tagID == "" {
		return NoRef
	}
	if i, ok := p.tagIndex[tagID]; ok {
		return i
	}
	return NoRef
}
