package ir

import (
	"encoding/json"
	"fmt"
	"strings"
)

// DataType is the declared type of a tag.
type DataType string

const (
	DataTypeBool DataType = "BOOL"
	DataTypeInt  DataType = "INT"
	DataTypeReal DataType = "REAL"
	DataTypeTime DataType = "TIME"
)

// ValidDataTypes defines allowed tag data types.
var ValidDataTypes = map[DataType]bool{
	DataTypeBool: true,
	DataTypeInt:  true,
	DataTypeReal: true,
	DataTypeTime: true,
}

// Tag is a named, typed memory cell.
//
// The address prefix encodes the memory class: I (physical input),
// Q (physical output), M (marker), T (timer), C (counter), D/DB (data).
type Tag struct {
	ID       string   `json:"id"`
	Address  string   `json:"address"`
	Name     string   `json:"name"`
	DataType DataType `json:"dataType"`
	Value    Value    `json:"value"`
	Forced   bool     `json:"forced,omitempty"`
	Comment  string   `json:"comment,omitempty"`
}

// IsInput reports whether the tag is a physical input (address prefix I).
func (t Tag) IsInput() bool {
	return strings.HasPrefix(t.Address, "I")
}

// Writable reports whether scan logic may write the tag: it must be
// neither forced nor a physical input.
func (t Tag) Writable() bool {
	return !t.Forced && !t.IsInput()
}

// TimeUnit is the unit of a timer preset.
type TimeUnit string

const (
	TimeUnitMillis  TimeUnit = "ms"
	TimeUnitSeconds TimeUnit = "s"
)

// Params is the per-kind parameter bag of an instruction.
//
// Constants are plain numbers (absent reads as 0). Fields whose absence
// selects a non-zero default are pointers.
type Params struct {
	Preset   float64  `json:"preset,omitempty"`  // PT, PV or IN1
	Preset2  float64  `json:"preset2,omitempty"` // MIN or IN2
	Preset3  float64  `json:"preset3,omitempty"` // MAX
	Current  *float64 `json:"current,omitempty"` // timer elapsed / counter count, engine-written
	TimeUnit TimeUnit `json:"timeUnit,omitempty"`

	Kp       *float64 `json:"kp,omitempty"`
	Ki       float64  `json:"ki,omitempty"`
	Kd       float64  `json:"kd,omitempty"`
	Setpoint float64  `json:"setpoint,omitempty"`
	InMin    float64  `json:"inMin,omitempty"`
	InMax    float64  `json:"inMax,omitempty"`
	OutMin   *float64 `json:"outMin,omitempty"`
	OutMax   *float64 `json:"outMax,omitempty"`

	SourceTagID string `json:"sourceTagId,omitempty"`
	DestTagID   string `json:"destTagId,omitempty"`
	MinTagID    string `json:"minTagId,omitempty"`
	MaxTagID    string `json:"maxTagId,omitempty"`
	ResetTagID  string `json:"resetTagId,omitempty"`
}

// ForceState is a per-instance override of a contact-like element.
type ForceState string

const (
	ForceNone ForceState = ""
	ForceOn   ForceState = "ON"
	ForceOff  ForceState = "OFF"
)

// Instruction is one ladder element.
type Instruction struct {
	ID     string  `json:"id"`
	Kind   Kind    `json:"type"`
	TagID  string  `json:"tagId,omitempty"`
	Params *Params `json:"params,omitempty"`

	IsActive     bool       `json:"isActive,omitempty"`
	PowerFlowOut bool       `json:"powerFlowOut,omitempty"`
	Forced       ForceState `json:"forced,omitempty"`
}

// P returns the instruction's parameters, or the zero bag when unset.
func (i *Instruction) P() Params {
	if i.Params == nil {
		return Params{}
	}
	return *i.Params
}

// BranchGroup is a parallel-OR junction of element lists.
type BranchGroup struct {
	ID       string      `json:"id"`
	Branches [][]Element `json:"branches"`

	IsActive     bool `json:"isActive,omitempty"`
	PowerFlowOut bool `json:"powerFlowOut,omitempty"`
}

// Element is either an Instruction or a BranchGroup. Exactly one of the
// two pointers is set in a well-formed element.
//
// In JSON an element is encoded as the instruction or branch object
// itself; objects with a "branches" field decode as branch groups.
type Element struct {
	Instruction *Instruction
	Branch      *BranchGroup
}

// Inst wraps an instruction as an element.
func Inst(i *Instruction) Element { return Element{Instruction: i} }

// Branch wraps a branch group as an element.
func Branch(b *BranchGroup) Element { return Element{Branch: b} }

// IsBranch reports whether the element is a branch group.
func (e Element) IsBranch() bool { return e.Branch != nil }

// ID returns the element's identifier, or "" for an empty element.
func (e Element) ID() string {
	switch {
	case e.Branch != nil:
		return e.Branch.ID
	case e.Instruction != nil:
		return e.Instruction.ID
	default:
		return ""
	}
}

// MarshalJSON encodes the wrapped instruction or branch group.
func (e Element) MarshalJSON() ([]byte, error) {
	switch {
	case e.Branch != nil && e.Instruction != nil:
		return nil, fmt.Errorf("element %q is both instruction and branch group", e.Branch.ID)
	case e.Branch != nil:
		return json.Marshal(e.Branch)
	case e.Instruction != nil:
		return json.Marshal(e.Instruction)
	default:
		return []byte("null"), nil
	}
}

// UnmarshalJSON decodes an instruction or, if a "branches" field is
// present, a branch group.
func (e *Element) UnmarshalJSON(data []byte) error {
	var probe struct {
		Branches json.RawMessage `json:"branches"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return err
	}
	if probe.Branches != nil {
		var b BranchGroup
		if err := json.Unmarshal(data, &b); err != nil {
			return fmt.Errorf("branch group: %w", err)
		}
		*e = Element{Branch: &b}
		return nil
	}
	var i Instruction
	if err := json.Unmarshal(data, &i); err != nil {
		return fmt.Errorf("instruction: %w", err)
	}
	*e = Element{Instruction: &i}
	return nil
}

// Rung is one series circuit from the power rail to its end.
type Rung struct {
	ID       string    `json:"id"`
	Elements []Element `json:"elements"`
	Comment  string    `json:"comment,omitempty"`
}

// Network is a titled, ordered collection of rungs.
type Network struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Comment string `json:"comment,omitempty"`
	Rungs   []Rung `json:"rungs"`
}

// Project is the aggregate evaluated by the engine.
type Project struct {
	Name     string    `json:"name"`
	Version  string    `json:"version,omitempty"`
	Networks []Network `json:"networks"`
	Tags     []Tag     `json:"tags"`
}

// Clone returns a deep copy of the project. Instructions, branch groups
// and parameter bags are copied so the clone shares no mutable state.
func (p Project) Clone() Project {
	out := p
	out.Tags = append([]Tag(nil), p.Tags...)
	out.Networks = make([]Network, len(p.Networks))
	for i, n := range p.Networks {
		n.Rungs = append([]Rung(nil), n.Rungs...)
		for j := range n.Rungs {
			n.Rungs[j].Elements = cloneElements(n.Rungs[j].Elements)
		}
		out.Networks[i] = n
	}
	return out
}

func cloneElements(elems []Element) []Element {
	if elems == nil {
		return nil
	}
	out := make([]Element, len(elems))
	for i, el := range elems {
		switch {
		case el.Branch != nil:
			b := *el.Branch
			b.Branches = make([][]Element, len(el.Branch.Branches))
			for k, br := range el.Branch.Branches {
				b.Branches[k] = cloneElements(br)
			}
			out[i] = Element{Branch: &b}
		case el.Instruction != nil:
			inst := *el.Instruction
			if inst.Params != nil {
				p := *inst.Params
				inst.Params = &p
			}
			out[i] = Element{Instruction: &inst}
		}
	}
	return out
}

// FindTag returns the tag with the given id.
func (p Project) FindTag(id string) (Tag, bool) {
	for _, t := range p.Tags {
		if t.ID == id {
			return t, true
		}
	}
	return Tag{}, false
}

// WalkElements calls fn for every element of every rung, depth-first,
// left to right. It does not guard against containment cycles; link the
// project first when it comes from an untrusted source.
func (p Project) WalkElements(fn func(Element)) {
	for _, n := range p.Networks {
		for _, r := range n.Rungs {
			walkElements(r.Elements, fn)
		}
	}
}

func walkElements(elems []Element, fn func(Element)) {
	for _, el := range elems {
		fn(el)
		if el.Branch != nil {
			for _, br := range el.Branch.Branches {
				walkElements(br, fn)
			}
		}
	}
}
