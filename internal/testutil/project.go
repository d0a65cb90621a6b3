// Package testutil provides builders and fakes shared by package tests.
package testutil

import (
	"strconv"

	"github.com/roach88/plcscan/internal/ir"
)

// F returns a pointer to f, for optional parameters.
func F(f float64) *float64 { return &f }

// BoolTag builds a BOOL tag.
func BoolTag(id, address string, v bool) ir.Tag {
	return ir.Tag{ID: id, Address: address, Name: id, DataType: ir.DataTypeBool, Value: ir.Bool(v)}
}

// NumTag builds a numeric tag of the given type.
func NumTag(id, address string, dt ir.DataType, v float64) ir.Tag {
	return ir.Tag{ID: id, Address: address, Name: id, DataType: dt, Value: ir.Num(v)}
}

// NO builds a normally open contact.
func NO(id, tag string) ir.Element {
	return ir.Inst(&ir.Instruction{ID: id, Kind: ir.KindNO, TagID: tag})
}

// NC builds a normally closed contact.
func NC(id, tag string) ir.Element {
	return ir.Inst(&ir.Instruction{ID: id, Kind: ir.KindNC, TagID: tag})
}

// Coil builds an output coil.
func Coil(id, tag string) ir.Element {
	return ir.Inst(&ir.Instruction{ID: id, Kind: ir.KindCoil, TagID: tag})
}

// Op builds an instruction of any kind with a parameter bag.
func Op(id string, kind ir.Kind, tag string, p ir.Params) ir.Element {
	return ir.Inst(&ir.Instruction{ID: id, Kind: kind, TagID: tag, Params: &p})
}

// Par builds a branch group from its branches.
func Par(id string, branches ...[]ir.Element) ir.Element {
	return ir.Branch(&ir.BranchGroup{ID: id, Branches: branches})
}

// Series groups elements into one branch or rung body.
func Series(elems ...ir.Element) []ir.Element { return elems }

// Project builds a project with one network whose rungs are the given
// element lists, named r1, r2, ...
func Project(tags []ir.Tag, rungs ...[]ir.Element) ir.Project {
	n := ir.Network{ID: "n1", Title: "Main"}
	for i, r := range rungs {
		n.Rungs = append(n.Rungs, ir.Rung{ID: "r" + strconv.Itoa(i+1), Elements: r})
	}
	return ir.Project{Name: "test", Networks: []ir.Network{n}, Tags: tags}
}
