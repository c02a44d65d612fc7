// Package query filters problems with expr-lang expressions such as
//
//	gradeIndex >= gradeRank("6a") && creator == "ana"
//	any(holds, .type == "top") && holdCount < 12
package query

import (
	"errors"
	"fmt"
	"time"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"boulder-catalog/internal/domain"
)

var ErrInvalidFilter = errors.New("invalid filter")

type Filter struct {
	expression string
	program    *vm.Program
}

// Compile type-checks expression against the problem environment. The
// expression must evaluate to a bool.
func Compile(expression string) (*Filter, error) {
	if expression == "" {
		return nil, fmt.Errorf("%w: expression must not be empty", ErrInvalidFilter)
	}

	program, err := expr.Compile(expression,
		expr.Env(environment(domain.Problem{})),
		expr.AsBool(),
		expr.Function("gradeRank", gradeRank, new(func(string) int)),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFilter, err)
	}

	return &Filter{expression: expression, program: program}, nil
}

func (f *Filter) String() string {
	return f.expression
}

func (f *Filter) Match(p domain.Problem) (bool, error) {
	out, err := expr.Run(f.program, environment(p))
	if err != nil {
		return false, fmt.Errorf("failed to evaluate %q for problem %d: %w", f.expression, p.ID, err)
	}
	return out.(bool), nil
}

// Apply returns the problems that match, in their original order.
func (f *Filter) Apply(problems []domain.Problem) ([]domain.Problem, error) {
	matched := make([]domain.Problem, 0, len(problems))
	for _, p := range problems {
		ok, err := f.Match(p)
		if err != nil {
			return nil, err
		}
		if ok {
			matched = append(matched, p)
		}
	}
	return matched, nil
}

func environment(p domain.Problem) map[string]any {
	holds := make([]map[string]any, len(p.Holds))
	for i, h := range p.Holds {
		holds[i] = map[string]any{
			"id":   h.ID,
			"x":    h.X,
			"y":    h.Y,
			"type": string(h.Type),
		}
	}

	var updatedAt time.Time
	if p.UpdatedAt != nil {
		updatedAt = *p.UpdatedAt
	}

	return map[string]any{
		"id":         p.ID,
		"name":       p.Name,
		"creator":    p.Creator,
		"grade":      p.Grade,
		"gradeIndex": domain.GradeIndex(p.Grade),
		"holdCount":  len(p.Holds),
		"holds":      holds,
		"createdAt":  p.CreatedAt,
		"updatedAt":  updatedAt,
	}
}

func gradeRank(params ...any) (any, error) {
	grade, ok := params[0].(string)
	if !ok {
		return nil, fmt.Errorf("gradeRank() expects a string, got %T", params[0])
	}
	idx := domain.GradeIndex(grade)
	if idx < 0 {
		return nil, fmt.Errorf("unknown grade %q", grade)
	}
	return idx, nil
}
