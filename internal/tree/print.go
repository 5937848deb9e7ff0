// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package tree

import (
	"fmt"
	"io"
	"strings"
)

// Print writes the splits of the tree, one line per branch, indented by
// depth. Categorical splits read "= v" / "!= v", numerical ones
// "< v" / ">= v". Branches ending in a leaf show the leaf value.
func (t *DPTree) Print(w io.Writer) error {
	if t.root == nil {
		_, err := fmt.Fprintln(w, "(empty tree)")
		return err
	}
	if t.root.Leaf {
		_, err := fmt.Fprintf(w, "leaf %.4f\n", t.root.Prediction)
		return err
	}
	return t.printNode(w, t.root)
}

func (t *DPTree) printNode(w io.Writer, n *TreeNode) error {
	if n.Leaf {
		return nil
	}
	categorical := t.categories[n.SplitAttr]
	indent := strings.Repeat(":  ", n.Depth)

	branches := []struct {
		op    string
		child *TreeNode
	}{{"<", n.Left}, {">=", n.Right}}
	if categorical {
		branches[0].op, branches[1].op = "=", "!="
	}

	for _, b := range branches {
		line := fmt.Sprintf("%sAttr%d %s %s", indent, n.SplitAttr, b.op, formatValue(n.SplitValue, categorical))
		if b.child.Leaf {
			line += fmt.Sprintf(" (leaf %.4f)", b.child.Prediction)
		}
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
		if err := t.printNode(w, b.child); err != nil {
			return err
		}
	}
	return nil
}

func formatValue(v float64, categorical bool) string {
	if categorical {
		return fmt.Sprintf("%g", v)
	}
	return fmt.Sprintf("%.3f", v)
}
