// Package ir provides the intermediate representation shared by the morph
// formula compiler and the channel stores.
//
// This package contains type definitions, the expression renderer and the
// driver codec only. All other internal packages import ir; ir imports
// nothing internal.
//
// Key design constraints:
//   - Expressions are held as an AST (Expr) and rendered to text only at the
//     channel store boundary
//   - CompiledDriver is a sealed union, so recovery is a type switch rather
//     than text parsing (Opaque is the only text-only variant)
//   - Source and TargetRef are comparable and used directly as map keys
//   - The joint tree is an index arena (Hierarchy)
package ir
