package canon

import (
	"fmt"
	"strings"

	"github.com/roach88/seanode/internal/ir"
	"github.com/roach88/seanode/internal/stamp"
)

// Options selects which rule groups may fire. The zero value disables the
// optional groups; use DefaultOptions for the normal configuration.
type Options struct {
	// StrengthReduction replaces division and remainder by constants with
	// shifts, masks and negations.
	StrengthReduction bool
	// FloorCorrection rewrites (a - a%b) / b to a / b.
	FloorCorrection bool
	// AdjacentDuplicates replaces a trapping node by an identical
	// successor on the control chain.
	AdjacentDuplicates bool
}

// DefaultOptions enables every rule group.
func DefaultOptions() Options {
	return Options{
		StrengthReduction:  true,
		FloorCorrection:    true,
		AdjacentDuplicates: true,
	}
}

// Rule group names used by Options.String and ParseOptions.
const (
	groupStrengthReduction  = "strength-reduction"
	groupFloorCorrection    = "floor-correction"
	groupAdjacentDuplicates = "adjacent-duplicates"
	groupNone               = "none"
)

// String lists the enabled rule groups separated by commas, or "none".
// The journal stores this form with each unit.
func (o Options) String() string {
	var groups []string
	if o.StrengthReduction {
		groups = append(groups, groupStrengthReduction)
	}
	if o.FloorCorrection {
		groups = append(groups, groupFloorCorrection)
	}
	if o.AdjacentDuplicates {
		groups = append(groups, groupAdjacentDuplicates)
	}
	if len(groups) == 0 {
		return groupNone
	}
	return strings.Join(groups, ",")
}

// ParseOptions parses the form produced by Options.String.
func ParseOptions(s string) (Options, error) {
	var o Options
	if s == groupNone {
		return o, nil
	}
	for _, g := range strings.Split(s, ",") {
		switch strings.TrimSpace(g) {
		case groupStrengthReduction:
			o.StrengthReduction = true
		case groupFloorCorrection:
			o.FloorCorrection = true
		case groupAdjacentDuplicates:
			o.AdjacentDuplicates = true
		default:
			return Options{}, fmt.Errorf("unknown rule group %q", g)
		}
	}
	return o, nil
}

// Tool is the context threaded through rule application.
type Tool struct {
	View    ir.NodeView
	Options Options
}

// NewTool returns a Tool over view. A nil view uses each node's own stamp.
func NewTool(view ir.NodeView, opts Options) *Tool {
	if view == nil {
		view = ir.DefaultView{}
	}
	return &Tool{View: view, Options: opts}
}

// DefaultTool returns a Tool with the default view and options.
func DefaultTool() *Tool {
	return NewTool(nil, DefaultOptions())
}

func orDefault(t *Tool) *Tool {
	if t == nil {
		return DefaultTool()
	}
	if t.View == nil {
		return NewTool(nil, t.Options)
	}
	return t
}

// IsAttached reports whether n is a live graph node rather than a floating
// candidate. Only attached nodes have a control successor to compare with.
func (t *Tool) IsAttached(n *ir.Node) bool {
	return n != nil && n.IsAttached()
}

// Stamp returns n's stamp as seen by the tool's view.
func (t *Tool) Stamp(n *ir.Node) stamp.Stamp {
	return t.View.Stamp(n)
}
