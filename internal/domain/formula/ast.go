package formula

type node interface {
	position() int
}

type numberNode struct {
	pos   int
	value float64
}

type identNode struct {
	pos  int
	name string
}

type unaryNode struct {
	pos     int
	op      string
	operand node
}

type binaryNode struct {
	pos   int
	op    string
	left  node
	right node
}

type callNode struct {
	pos  int
	name string
	args []node
}

func (n *numberNode) position() int { return n.pos }
func (n *identNode) position() int  { return n.pos }
func (n *unaryNode) position() int  { return n.pos }
func (n *binaryNode) position() int { return n.pos }
func (n *callNode) position() int   { return n.pos }

func collectIdents(n node, seen map[string]struct{}) {
	switch v := n.(type) {
	case *identNode:
		seen[v.name] = struct{}{}
	case *unaryNode:
		collectIdents(v.operand, seen)
	case *binaryNode:
		collectIdents(v.left, seen)
		collectIdents(v.right, seen)
	case *callNode:
		for _, arg := range v.args {
			collectIdents(arg, seen)
		}
	}
}
