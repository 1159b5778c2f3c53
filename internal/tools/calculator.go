package tools

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"
)

// CalculatorArgs is the input of the calculator tool.
type CalculatorArgs struct {
	Expr string `json:"expr" jsonschema:"minLength=1,description=Arithmetic expression using numbers and + - * / % ( )"`
}

var calculatorSchema = mustArgSchema[CalculatorArgs]("calculator")

// calcFunctions are the only identifiers an expression may contain.
var calcFunctions = map[string]bool{
	"sqrt":  true,
	"abs":   true,
	"round": true,
	"floor": true,
	"ceil":  true,
	"pow":   true,
}

// CalculatorTool evaluates a restricted arithmetic grammar. Expressions are
// tokenised and checked here, then evaluated in a CEL environment that has no
// variables and only the math functions above.
type CalculatorTool struct {
	env *cel.Env
}

var _ Tool = (*CalculatorTool)(nil)

func NewCalculatorTool() (*CalculatorTool, error) {
	opts := []cel.EnvOption{
		cel.Function("fmod",
			cel.Overload("fmod_double_double", []*cel.Type{cel.DoubleType, cel.DoubleType}, cel.DoubleType,
				cel.BinaryBinding(func(lhs, rhs ref.Val) ref.Val {
					l, lok := lhs.(types.Double)
					r, rok := rhs.(types.Double)
					if !lok || !rok {
						return types.MaybeNoSuchOverloadErr(lhs)
					}
					if r == 0 {
						return types.NewErr("modulus by zero")
					}
					return types.Double(math.Mod(float64(l), float64(r)))
				}))),
		cel.Function("pow",
			cel.Overload("pow_double_double", []*cel.Type{cel.DoubleType, cel.DoubleType}, cel.DoubleType,
				cel.BinaryBinding(func(lhs, rhs ref.Val) ref.Val {
					l, lok := lhs.(types.Double)
					r, rok := rhs.(types.Double)
					if !lok || !rok {
						return types.MaybeNoSuchOverloadErr(lhs)
					}
					return types.Double(math.Pow(float64(l), float64(r)))
				}))),
		unaryDouble("sqrt", math.Sqrt),
		unaryDouble("abs", math.Abs),
		unaryDouble("round", math.Round),
		unaryDouble("floor", math.Floor),
		unaryDouble("ceil", math.Ceil),
	}
	env, err := cel.NewEnv(opts...)
	if err != nil {
		return nil, fmt.Errorf("calculator environment: %w", err)
	}
	return &CalculatorTool{env: env}, nil
}

func unaryDouble(name string, fn func(float64) float64) cel.EnvOption {
	return cel.Function(name,
		cel.Overload(name+"_double", []*cel.Type{cel.DoubleType}, cel.DoubleType,
			cel.UnaryBinding(func(v ref.Val) ref.Val {
				d, ok := v.(types.Double)
				if !ok {
					return types.MaybeNoSuchOverloadErr(v)
				}
				return types.Double(fn(float64(d)))
			})))
}

func (c *CalculatorTool) ID() ID { return Calculator }

func (c *CalculatorTool) Name() string { return Calculator.String() }

func (c *CalculatorTool) Description() string {
	return "Evaluates arithmetic expressions with + - * / %, parentheses and sqrt/abs/pow/round/floor/ceil."
}

func (c *CalculatorTool) Parameters() map[string]any {
	return calculatorSchema.Parameters()
}

func (c *CalculatorTool) Execute(ctx context.Context, args Args) (Result, error) {
	if err := calculatorSchema.Validate(Calculator, args); err != nil {
		return Result{}, err
	}
	v, err := c.Evaluate(args["expr"])
	if err != nil {
		return Result{}, err
	}
	return numberResult(Calculator, FormatNumber(v), v), nil
}

// Evaluate computes expr. Disallowed tokens and syntax errors are reported as
// ErrInvalidArgument; arithmetic faults such as division by zero as
// ErrToolExecution.
func (c *CalculatorTool) Evaluate(expr string) (float64, error) {
	source, err := rewriteExpression(expr)
	if err != nil {
		return 0, err
	}

	ast, iss := c.env.Compile(source)
	if iss != nil && iss.Err() != nil {
		return 0, fmt.Errorf("%w: calculator: malformed expression %q", ErrInvalidArgument, strings.TrimSpace(expr))
	}
	prg, err := c.env.Program(ast)
	if err != nil {
		return 0, fmt.Errorf("%w: calculator: %v", ErrInvalidArgument, err)
	}
	out, _, err := prg.Eval(map[string]any{})
	if err != nil {
		return 0, fmt.Errorf("%w: calculator: %v", ErrToolExecution, err)
	}

	v, ok := out.Value().(float64)
	if !ok {
		return 0, fmt.Errorf("%w: calculator: expression does not produce a number", ErrInvalidArgument)
	}
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return 0, fmt.Errorf("%w: calculator: division by zero or undefined result", ErrToolExecution)
	}
	return v, nil
}

type calcToken struct {
	kind rune // 'n' number, 'f' function, or the operator/punctuation itself
	text string
}

// rewriteExpression tokenises expr and re-emits it as a fully parenthesised
// CEL source string in which every number is a double literal and every
// a % b is a call to fmod(a, b).
func rewriteExpression(expr string) (string, error) {
	tokens, err := tokenizeExpression(expr)
	if err != nil {
		return "", err
	}
	if len(tokens) == 0 {
		return "", fmt.Errorf("%w: calculator: empty expression", ErrInvalidArgument)
	}

	p := &exprParser{tokens: tokens}
	out, err := p.sum()
	if err != nil {
		return "", err
	}
	if tok, ok := p.peek(); ok {
		return "", fmt.Errorf("%w: calculator: unexpected %q", ErrInvalidArgument, tok.text)
	}
	return out, nil
}

// exprParser is a recursive-descent parser over calcTokens:
//
//	sum     = product { ("+" | "-") product }
//	product = unary { ("*" | "/" | "%") unary }
//	unary   = "-" unary | "+" unary | primary
//	primary = number | func "(" sum { "," sum } ")" | "(" sum ")"
type exprParser struct {
	tokens []calcToken
	pos    int
}

func (p *exprParser) peek() (calcToken, bool) {
	if p.pos >= len(p.tokens) {
		return calcToken{}, false
	}
	return p.tokens[p.pos], true
}

func (p *exprParser) accept(kinds string) (rune, bool) {
	tok, ok := p.peek()
	if !ok || !strings.ContainsRune(kinds, tok.kind) {
		return 0, false
	}
	p.pos++
	return tok.kind, true
}

func (p *exprParser) sum() (string, error) {
	left, err := p.product()
	if err != nil {
		return "", err
	}
	for {
		op, ok := p.accept("+-")
		if !ok {
			return left, nil
		}
		right, err := p.product()
		if err != nil {
			return "", err
		}
		left = "(" + left + " " + string(op) + " " + right + ")"
	}
}

func (p *exprParser) product() (string, error) {
	left, err := p.unary()
	if err != nil {
		return "", err
	}
	for {
		op, ok := p.accept("*/%")
		if !ok {
			return left, nil
		}
		right, err := p.unary()
		if err != nil {
			return "", err
		}
		if op == '%' {
			left = "fmod(" + left + ", " + right + ")"
			continue
		}
		left = "(" + left + " " + string(op) + " " + right + ")"
	}
}

func (p *exprParser) unary() (string, error) {
	if op, ok := p.accept("+-"); ok {
		operand, err := p.unary()
		if err != nil {
			return "", err
		}
		if op == '-' {
			return "(-" + operand + ")", nil
		}
		return operand, nil
	}
	return p.primary()
}

func (p *exprParser) primary() (string, error) {
	tok, ok := p.peek()
	if !ok {
		return "", fmt.Errorf("%w: calculator: expression ends early", ErrInvalidArgument)
	}
	p.pos++
	switch tok.kind {
	case 'n':
		return tok.text, nil
	case '(':
		inner, err := p.sum()
		if err != nil {
			return "", err
		}
		if _, ok := p.accept(")"); !ok {
			return "", fmt.Errorf("%w: calculator: missing closing parenthesis", ErrInvalidArgument)
		}
		return "(" + inner + ")", nil
	case 'f':
		if _, ok := p.accept("("); !ok {
			return "", fmt.Errorf("%w: calculator: function %q must be called", ErrInvalidArgument, tok.text)
		}
		var args []string
		for {
			arg, err := p.sum()
			if err != nil {
				return "", err
			}
			args = append(args, arg)
			if _, ok := p.accept(","); !ok {
				break
			}
		}
		if _, ok := p.accept(")"); !ok {
			return "", fmt.Errorf("%w: calculator: missing closing parenthesis", ErrInvalidArgument)
		}
		return tok.text + "(" + strings.Join(args, ", ") + ")", nil
	default:
		return "", fmt.Errorf("%w: calculator: unexpected %q", ErrInvalidArgument, tok.text)
	}
}

func tokenizeExpression(expr string) ([]calcToken, error) {
	var tokens []calcToken
	runes := []rune(expr)
	for i := 0; i < len(runes); {
		r := runes[i]
		switch {
		case unicode.IsSpace(r):
			i++
		case strings.ContainsRune("+-*/%(),", r):
			tokens = append(tokens, calcToken{kind: r, text: string(r)})
			i++
		case unicode.IsDigit(r) || r == '.':
			j := i
			for j < len(runes) && (unicode.IsDigit(runes[j]) || runes[j] == '.') {
				j++
			}
			lit := string(runes[i:j])
			v, err := strconv.ParseFloat(lit, 64)
			if err != nil || strings.Count(lit, ".") > 1 {
				return nil, fmt.Errorf("%w: calculator: bad number %q", ErrInvalidArgument, lit)
			}
			tokens = append(tokens, calcToken{kind: 'n', text: doubleLiteral(v)})
			i = j
		case unicode.IsLetter(r) || r == '_':
			j := i
			for j < len(runes) && (unicode.IsLetter(runes[j]) || unicode.IsDigit(runes[j]) || runes[j] == '_') {
				j++
			}
			word := strings.ToLower(string(runes[i:j]))
			if !calcFunctions[word] {
				return nil, fmt.Errorf("%w: calculator: unsupported token %q", ErrInvalidArgument, string(runes[i:j]))
			}
			tokens = append(tokens, calcToken{kind: 'f', text: word})
			i = j
		default:
			return nil, fmt.Errorf("%w: calculator: unsupported character %q", ErrInvalidArgument, string(r))
		}
	}
	return tokens, nil
}

func doubleLiteral(v float64) string {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}

// FormatNumber renders v in its shortest form, trimming float noise beyond
// ten decimal places.
func FormatNumber(v float64) string {
	if math.Abs(v) < 1e15 {
		v = math.Round(v*1e10) / 1e10
	}
	if v == 0 {
		v = 0 // normalise -0
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}
