package formula

import "math"

type value struct {
	num    float64
	isBool bool
}

func numberValue(n float64) value { return value{num: n} }

func boolValue(b bool) value {
	if b {
		return value{num: 1, isBool: true}
	}
	return value{num: 0, isBool: true}
}

func (v value) truthy() bool {
	return v.num != 0
}

// Evaluate compiles src and evaluates it against scope.
func Evaluate(src string, scope map[string]float64) (float64, error) {
	expr, err := Compile(src)
	if err != nil {
		return 0, err
	}
	return expr.Eval(scope)
}

// Eval evaluates the expression. scope is only read, never written.
func (e *Expr) Eval(scope map[string]float64) (float64, error) {
	v, err := eval(e.root, scope)
	if err != nil {
		return 0, err
	}
	if v.isBool {
		return 0, nonNumericErr(e.root.position(), "Formula result is a comparison, not a number")
	}
	if math.IsNaN(v.num) || math.IsInf(v.num, 0) {
		return 0, nonNumericErr(e.root.position(), "Formula result is not a finite number")
	}
	return v.num, nil
}

func eval(n node, scope map[string]float64) (value, error) {
	switch v := n.(type) {
	case *numberNode:
		return numberValue(v.value), nil
	case *identNode:
		num, ok := scope[v.name]
		if !ok {
			return value{}, undefinedErr(v.pos, v.name)
		}
		return numberValue(num), nil
	case *unaryNode:
		operand, err := eval(v.operand, scope)
		if err != nil {
			return value{}, err
		}
		if v.op == "-" {
			return numberValue(-operand.num), nil
		}
		return numberValue(operand.num), nil
	case *binaryNode:
		return evalBinary(v, scope)
	case *callNode:
		return evalCall(v, scope)
	}
	return value{}, syntaxErr(n.position(), "Unsupported expression")
}

func evalBinary(n *binaryNode, scope map[string]float64) (value, error) {
	left, err := eval(n.left, scope)
	if err != nil {
		return value{}, err
	}
	right, err := eval(n.right, scope)
	if err != nil {
		return value{}, err
	}
	a, b := left.num, right.num
	switch n.op {
	case "+":
		return numberValue(a + b), nil
	case "-":
		return numberValue(a - b), nil
	case "*":
		return numberValue(a * b), nil
	case "/":
		if b == 0 {
			return value{}, divisionErr(n.pos)
		}
		return numberValue(a / b), nil
	case "%":
		if b == 0 {
			return value{}, divisionErr(n.pos)
		}
		return numberValue(math.Mod(a, b)), nil
	case "^":
		return numberValue(math.Pow(a, b)), nil
	case ">":
		return boolValue(a > b), nil
	case "<":
		return boolValue(a < b), nil
	case ">=":
		return boolValue(a >= b), nil
	case "<=":
		return boolValue(a <= b), nil
	case "==":
		return boolValue(a == b), nil
	case "!=":
		return boolValue(a != b), nil
	}
	return value{}, syntaxErr(n.pos, "Unknown operator %s", n.op)
}

func evalCall(n *callNode, scope map[string]float64) (value, error) {
	if n.name == "if" {
		cond, err := eval(n.args[0], scope)
		if err != nil {
			return value{}, err
		}
		if cond.truthy() {
			return eval(n.args[1], scope)
		}
		return eval(n.args[2], scope)
	}

	args := make([]float64, len(n.args))
	for i, arg := range n.args {
		v, err := eval(arg, scope)
		if err != nil {
			return value{}, err
		}
		args[i] = v.num
	}

	switch n.name {
	case "min":
		out := args[0]
		for _, a := range args[1:] {
			out = math.Min(out, a)
		}
		return numberValue(out), nil
	case "max":
		out := args[0]
		for _, a := range args[1:] {
			out = math.Max(out, a)
		}
		return numberValue(out), nil
	case "round":
		if len(args) == 2 {
			return roundDigits(n, args[0], args[1])
		}
		return numberValue(math.Round(args[0])), nil
	case "floor":
		return numberValue(math.Floor(args[0])), nil
	case "ceil":
		return numberValue(math.Ceil(args[0])), nil
	case "abs":
		return numberValue(math.Abs(args[0])), nil
	}
	return value{}, syntaxErr(n.pos, "Unknown function %s", n.name)
}

func roundDigits(n *callNode, x, digits float64) (value, error) {
	if digits != math.Trunc(digits) || digits < 0 || digits > 15 {
		return value{}, nonNumericErr(n.pos, "Number of decimals in function round must be an integer from 0 to 15")
	}
	scale := math.Pow(10, digits)
	return numberValue(math.Round(x*scale) / scale), nil
}
