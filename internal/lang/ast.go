package lang

// Pos is a 1-based source position.
type Pos struct {
	Line int
	Col  int
}

// Position returns the node's position.
func (p Pos) Position() Pos { return p }

// Node is any syntax tree node.
type Node interface {
	Position() Pos
}

// Expr is an expression node.
type Expr interface {
	Node
	exprNode()
}

// Stmt is a statement node.
type Stmt interface {
	Node
	stmtNode()
}

type (
	Name struct {
		Pos
		ID string
	}

	// Const holds int64, float64, string, bool or nil.
	Const struct {
		Pos
		Value any
	}

	ListExpr struct {
		Pos
		Elts []Expr
	}

	TupleExpr struct {
		Pos
		Elts []Expr
	}

	SetExpr struct {
		Pos
		Elts []Expr
	}

	DictExpr struct {
		Pos
		Keys   []Expr
		Values []Expr
	}

	BinOp struct {
		Pos
		Op    string
		Left  Expr
		Right Expr
	}

	UnaryOp struct {
		Pos
		Op      string // "-", "+", "not"
		Operand Expr
	}

	// BoolOp is a short-circuit "and"/"or" chain.
	BoolOp struct {
		Pos
		Op     string
		Values []Expr
	}

	// Compare is a comparison chain: Left Ops[0] Comparators[0] Ops[1] ...
	Compare struct {
		Pos
		Left        Expr
		Ops         []string
		Comparators []Expr
	}

	IfExp struct {
		Pos
		Cond Expr
		Body Expr
		Else Expr
	}

	Keyword struct {
		Name  string
		Value Expr
	}

	Call struct {
		Pos
		Func     Expr
		Args     []Expr
		Keywords []Keyword
	}

	Attribute struct {
		Pos
		Value Expr
		Attr  string
	}

	Subscript struct {
		Pos
		Value Expr
		Index Expr
	}

	// Slice appears only as a Subscript index. Nil bounds are omitted.
	Slice struct {
		Pos
		Lower Expr
		Upper Expr
		Step  Expr
	}

	Comprehension struct {
		Target Expr
		Iter   Expr
		Ifs    []Expr
	}

	ListComp struct {
		Pos
		Elt        Expr
		Generators []Comprehension
	}
)

func (*Name) exprNode()      {}
func (*Const) exprNode()     {}
func (*ListExpr) exprNode()  {}
func (*TupleExpr) exprNode() {}
func (*SetExpr) exprNode()   {}
func (*DictExpr) exprNode()  {}
func (*BinOp) exprNode()     {}
func (*UnaryOp) exprNode()   {}
func (*BoolOp) exprNode()    {}
func (*Compare) exprNode()   {}
func (*IfExp) exprNode()     {}
func (*Call) exprNode()      {}
func (*Attribute) exprNode() {}
func (*Subscript) exprNode() {}
func (*Slice) exprNode()     {}
func (*ListComp) exprNode()  {}

type (
	ExprStmt struct {
		Pos
		X Expr
	}

	// Assign binds Value to every target: a = b = Value.
	Assign struct {
		Pos
		Targets []Expr
		Value   Expr
	}

	AugAssign struct {
		Pos
		Target Expr
		Op     string // binary operator without "="
		Value  Expr
	}

	If struct {
		Pos
		Cond Expr
		Body []Stmt
		Else []Stmt // an elif is a single nested *If
	}

	While struct {
		Pos
		Cond Expr
		Body []Stmt
	}

	For struct {
		Pos
		Target Expr
		Iter   Expr
		Body   []Stmt
	}

	Break    struct{ Pos }
	Continue struct{ Pos }
	Pass     struct{ Pos }

	Return struct {
		Pos
		Value Expr // nil for a bare return
	}

	Global struct {
		Pos
		Names []string
	}

	Raise struct {
		Pos
		Exc Expr // nil re-raises the active exception
	}

	ExceptHandler struct {
		Pos
		Type string // empty for a bare except
		Name string // "as" binding, optional
		Body []Stmt
	}

	Try struct {
		Pos
		Body     []Stmt
		Handlers []ExceptHandler
	}

	Param struct {
		Name    string
		Default Expr
	}

	FunctionDef struct {
		Pos
		Name    string
		Params  []Param
		VarArg  string
		KwOnly  []Param
		KwArg   string
		Body    []Stmt
		Locals  map[string]bool // names bound in the function body
		Globals map[string]bool // names declared global
	}
)

func (*ExprStmt) stmtNode()    {}
func (*Assign) stmtNode()      {}
func (*AugAssign) stmtNode()   {}
func (*If) stmtNode()          {}
func (*While) stmtNode()       {}
func (*For) stmtNode()         {}
func (*Break) stmtNode()       {}
func (*Continue) stmtNode()    {}
func (*Pass) stmtNode()        {}
func (*Return) stmtNode()      {}
func (*Global) stmtNode()      {}
func (*Raise) stmtNode()       {}
func (*Try) stmtNode()         {}
func (*FunctionDef) stmtNode() {}

// Module is a parsed program.
type Module struct {
	Body []Stmt
}
