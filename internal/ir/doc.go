// Package ir provides the sea-of-nodes graph for integer arithmetic.
//
// A Graph owns its nodes. Value nodes float: their position is determined
// only by their inputs. Nodes that can trap (the division family) are fixed:
// they sit on the graph's control chain in program order and carry an
// optional FrameState for deoptimization.
//
// Nodes are created floating (ID 0) by the New* constructors and become
// attached through Graph.Add, Graph.AppendFixed or Graph.Replace. Only
// attached nodes have usages and a position on the control chain.
//
// This package imports only stamp. All other internal packages import ir.
//
// Key design constraints:
//   - Stamps are refined monotonically (Join), never widened after attach
//   - Constants are deduplicated per graph by width and value
//   - Dumps and fingerprints number live nodes densely in ID order
package ir
