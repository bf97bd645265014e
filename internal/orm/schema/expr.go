package schema

import (
	"context"
	"fmt"

	exprlang "github.com/expr-lang/expr"
	exprvm "github.com/expr-lang/expr/vm"

	"github.com/conduit-lang/activerow/internal/orm/hooks"
	"github.com/conduit-lang/activerow/internal/orm/validation"
)

func compileExpr(expression string) (*exprvm.Program, error) {
	if expression == "" {
		return nil, fmt.Errorf("expression must not be empty")
	}
	program, err := exprlang.Compile(expression,
		exprlang.Env(map[string]any{}),
		exprlang.AllowUndefinedVariables(),
	)
	if err != nil {
		return nil, fmt.Errorf("compile %q: %w", expression, err)
	}
	return program, nil
}

// ExprRule builds a validate hook from a boolean expression over value.
// A false result records message as the field's validation error.
func ExprRule(expression, message string) (hooks.ValidateFunc, error) {
	program, err := compileExpr(expression)
	if err != nil {
		return nil, err
	}
	return func(value interface{}) error {
		out, err := exprlang.Run(program, map[string]any{"value": value})
		if err != nil {
			return validation.New(message)
		}
		ok, isBool := out.(bool)
		if !isBool {
			return fmt.Errorf("rule %q returned %T, want bool", expression, out)
		}
		if !ok {
			return validation.New(message)
		}
		return nil
	}, nil
}

// ExprComputed builds a get hook that evaluates expression with the
// entity's declared fields in scope
func ExprComputed(expression string, fields []string) (hooks.GetFunc, error) {
	program, err := compileExpr(expression)
	if err != nil {
		return nil, err
	}
	return func(_ context.Context, r hooks.Record) (interface{}, error) {
		env := make(map[string]any, len(fields))
		for _, f := range fields {
			v, _ := r.Raw(f)
			env[f] = v
		}
		return exprlang.Run(program, env)
	}, nil
}
