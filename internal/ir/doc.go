// Package ir defines the ladder-logic data model shared by every other
// package: tags, instructions, branch groups, rungs, networks and the
// project aggregate.
//
// This package contains data definitions only. All other internal packages
// import ir; ir imports nothing internal.
//
// Key design constraints:
//   - Tag values are either booleans (BOOL tags) or float64 numbers
//   - JSON field names use camelCase to match the editor's project files
//   - Engine-written fields (isActive, powerFlowOut, params.current) are
//     observation output, never evaluation input
package ir
