// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package tree

// TreeNode is one node of a regression tree. Internal nodes route a row
// left or right on SplitAttr; leaves carry Prediction.
type TreeNode struct {
	Left  *TreeNode `json:"left,omitempty" yaml:"left,omitempty"`
	Right *TreeNode `json:"right,omitempty" yaml:"right,omitempty"`

	Depth      int     `json:"depth" yaml:"depth"`
	SplitAttr  int     `json:"split_attr,omitempty" yaml:"split_attr,omitempty"`
	SplitValue float64 `json:"split_value,omitempty" yaml:"split_value,omitempty"`
	SplitGain  float64 `json:"split_gain,omitempty" yaml:"split_gain,omitempty"`
	LHSSize    int     `json:"lhs_size,omitempty" yaml:"lhs_size,omitempty"`
	RHSSize    int     `json:"rhs_size,omitempty" yaml:"rhs_size,omitempty"`
	Prediction float64 `json:"prediction,omitempty" yaml:"prediction,omitempty"`
	Leaf       bool    `json:"leaf,omitempty" yaml:"leaf,omitempty"`
}

// IsLeaf reports whether n is a leaf.
func (n *TreeNode) IsLeaf() bool { return n.Leaf }

// Count returns the number of nodes in the subtree rooted at n.
func (n *TreeNode) Count() int {
	if n == nil {
		return 0
	}
	if n.Leaf {
		return 1
	}
	return 1 + n.Left.Count() + n.Right.Count()
}

// Leaves returns the leaves below n from left to right.
func (n *TreeNode) Leaves() []*TreeNode {
	var out []*TreeNode
	var walk func(*TreeNode)
	walk = func(node *TreeNode) {
		if node == nil {
			return
		}
		if node.Leaf {
			out = append(out, node)
			return
		}
		walk(node.Left)
		walk(node.Right)
	}
	walk(n)
	return out
}

// MaxDepth returns the depth of the deepest leaf below n.
func (n *TreeNode) MaxDepth() int {
	depth := 0
	for _, leaf := range n.Leaves() {
		depth = max(depth, leaf.Depth)
	}
	return depth
}
