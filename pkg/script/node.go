package script

import (
	"fmt"

	"github.com/leapstack-labs/leapscript/pkg/token"
)

// NodeID addresses a node in a Tree. The zero value means "no node".
type NodeID int32

// NoNode is the absent node.
const NoNode NodeID = 0

// Node is a closed sum of executable constructs. The variants are *Leaf,
// *Block, *Conditional, *While, *Repeat, *Loop, *For, *Leave and *Iterate.
type Node interface {
	Pos() token.Position
	node()
}

// NodeInfo carries the source position shared by all nodes.
type NodeInfo struct {
	Start token.Position
}

// Pos returns the position of the first token of the node.
func (n NodeInfo) Pos() token.Position { return n.Start }

func (NodeInfo) node() {}

// Leaf is one non-control statement.
type Leaf struct {
	NodeInfo
	Stmt *Statement
}

// Block is a compound body. Implicit blocks are the bodies of branches,
// loops and handlers: they open a scope but carry no label or handlers.
type Block struct {
	NodeInfo
	Label      string
	Body       []NodeID
	Handlers   []*Handler
	Conditions []ConditionDecl
	Implicit   bool
}

// Branch is one arm of a conditional. For searched forms Cond is the guard;
// for simple CASE it is the value compared with the scrutinee.
type Branch struct {
	Cond *Expr
	Body NodeID
}

// Conditional is IF or CASE.
type Conditional struct {
	NodeInfo
	Simple    bool
	Scrutinee *Expr
	Branches  []Branch
	Else      NodeID
}

// While is a pre-test loop.
type While struct {
	NodeInfo
	Label string
	Cond  *Expr
	Body  NodeID
}

// Repeat is a post-test loop; it stops when Until becomes true.
type Repeat struct {
	NodeInfo
	Label string
	Body  NodeID
	Until *Expr
}

// Loop repeats its body until a LEAVE targets it.
type Loop struct {
	NodeInfo
	Label string
	Body  NodeID
}

// For iterates over the rows of Query. Var, when set, names a record
// variable bound to the current row.
type For struct {
	NodeInfo
	Label string
	Var   string
	Query *Statement
	Body  NodeID
}

// Leave exits the construct carrying Label.
type Leave struct {
	NodeInfo
	Label string
}

// Iterate starts the next iteration of the loop carrying Label.
type Iterate struct {
	NodeInfo
	Label string
}

// Tree is an arena of nodes. Nodes refer to each other by NodeID only.
type Tree struct {
	nodes []Node
	Root  NodeID
	// Source is the script text the tree was parsed from, if any.
	Source string
}

// NewTree creates an empty tree.
func NewTree() *Tree {
	return &Tree{}
}

// Add appends a node and returns its id.
func (t *Tree) Add(n Node) NodeID {
	t.nodes = append(t.nodes, n)
	return NodeID(len(t.nodes))
}

// Node returns the node with the given id, or nil.
func (t *Tree) Node(id NodeID) Node {
	if id <= 0 || int(id) > len(t.nodes) {
		return nil
	}
	return t.nodes[id-1]
}

// Len returns the number of nodes in the tree.
func (t *Tree) Len() int {
	return len(t.nodes)
}

// labelOf returns the label carried by a node and whether the node is a loop.
func labelOf(n Node) (label string, loop bool) {
	switch n := n.(type) {
	case *Block:
		return n.Label, false
	case *While:
		return n.Label, true
	case *Repeat:
		return n.Label, true
	case *Loop:
		return n.Label, true
	case *For:
		return n.Label, true
	}
	return "", false
}

// kindName names a node kind for diagnostics.
func kindName(n Node) string {
	switch n.(type) {
	case *Leaf:
		return "statement"
	case *Block:
		return "compound"
	case *Conditional:
		return "conditional"
	case *While:
		return "WHILE"
	case *Repeat:
		return "REPEAT"
	case *Loop:
		return "LOOP"
	case *For:
		return "FOR"
	case *Leave:
		return "LEAVE"
	case *Iterate:
		return "ITERATE"
	default:
		return fmt.Sprintf("%T", n)
	}
}
