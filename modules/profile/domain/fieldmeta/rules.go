package fieldmeta

import (
	"errors"
	"time"

	"github.com/google/cel-go/cel"
	"github.com/jacksonlee411/community-portal/modules/profile/domain/types"
)

// Rule is a compiled CEL expression over `value` and `now` that must yield a bool.
type Rule struct {
	expr string
	prg  cel.Program
}

var newRuleCELEnv = func() (*cel.Env, error) {
	return cel.NewEnv(
		cel.Variable("value", cel.DynType),
		cel.Variable("now", cel.TimestampType),
	)
}

var newRuleCELProgram = func(env *cel.Env, ast *cel.Ast) (cel.Program, error) {
	return env.Program(ast)
}

func compileRule(expr string) (*Rule, error) {
	env, err := newRuleCELEnv()
	if err != nil {
		return nil, err
	}
	ast, iss := env.Compile(expr)
	if iss != nil && iss.Err() != nil {
		return nil, iss.Err()
	}
	if ast.OutputType() != cel.BoolType && ast.OutputType() != cel.DynType {
		return nil, errors.New("rule must evaluate to bool")
	}
	prg, err := newRuleCELProgram(env, ast)
	if err != nil {
		return nil, err
	}
	return &Rule{expr: expr, prg: prg}, nil
}

func (r *Rule) Expr() string { return r.expr }

func (r *Rule) Eval(v types.Value, now time.Time) (bool, error) {
	out, _, err := r.prg.Eval(map[string]any{
		"value": celInput(v),
		"now":   now,
	})
	if err != nil {
		return false, err
	}
	b, ok := out.Value().(bool)
	if !ok {
		return false, errors.New("rule did not return bool")
	}
	return b, nil
}

func celInput(v types.Value) any {
	switch v.Shape() {
	case types.ShapeDate:
		if t, ok := v.Date(); ok {
			return t
		}
		return nil
	case types.ShapeList:
		return v.Items()
	default:
		return v.Text()
	}
}
