package grammar

import (
	"fmt"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/matzehuels/knotview/pkg/errors"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func structValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// Validate checks struct constraints and the cross references between
// knots, views, plots and visibility rules. All problems are reported in
// one INVALID_GRAMMAR error.
func (g *Grammar) Validate() error {
	var problems []string
	if err := structValidator().Struct(g); err != nil {
		if verrs, ok := err.(validator.ValidationErrors); ok {
			for _, fe := range verrs {
				problems = append(problems, fmt.Sprintf("%s: failed %q", fe.Namespace(), fe.Tag()))
			}
		} else {
			problems = append(problems, err.Error())
		}
	}

	declared := make(map[string]int, len(g.Knots))
	for i, k := range g.Knots {
		if _, dup := declared[k.ID]; dup {
			problems = append(problems, fmt.Sprintf("knot %q declared twice", k.ID))
			continue
		}
		problems = append(problems, checkKnot(k, declared)...)
		declared[k.ID] = i
	}

	for vi, v := range g.Views {
		if v.Map.Camera.IsZero() {
			problems = append(problems, fmt.Sprintf("views[%d].map.camera is required", vi))
		}
		for _, id := range v.Map.Knots {
			if _, ok := declared[id]; !ok {
				problems = append(problems, fmt.Sprintf("views[%d].map references unknown knot %q", vi, id))
			}
		}
		for _, p := range v.Plots {
			for _, id := range p.Knots {
				if _, ok := declared[id]; !ok {
					problems = append(problems, fmt.Sprintf("plot %q references unknown knot %q", p.Name, id))
				}
			}
		}
		for _, rule := range v.Map.KnotVisibility {
			if _, ok := declared[rule.Knot]; !ok {
				problems = append(problems, fmt.Sprintf("visibility rule references unknown knot %q", rule.Knot))
			}
			if _, err := compileRule(rule.Test); err != nil {
				problems = append(problems, fmt.Sprintf("visibility rule for %q: %v", rule.Knot, err))
			}
		}
	}

	if len(problems) == 0 {
		return nil
	}
	return errors.New(errors.ErrCodeInvalidGrammar, "%d problem(s): %s", len(problems), strings.Join(problems, "; "))
}

// checkKnot validates one knot against the knots declared before it.
func checkKnot(k Knot, declared map[string]int) []string {
	var problems []string
	for i, link := range k.IntegrationScheme {
		where := fmt.Sprintf("knot %q link %d", k.ID, i)
		if link.Out.Level != nil && !link.Out.Level.Valid() {
			problems = append(problems, fmt.Sprintf("%s: unknown out level %q", where, *link.Out.Level))
		}
		if link.In != nil && link.In.Level != nil && !link.In.Level.Valid() {
			problems = append(problems, fmt.Sprintf("%s: unknown in level %q", where, *link.In.Level))
		}
		if k.KnotOp {
			// operation knots combine knots declared earlier
			if link.In == nil {
				problems = append(problems, fmt.Sprintf("%s: operation links need an input knot", where))
			} else if _, ok := declared[link.In.Name]; !ok {
				problems = append(problems, fmt.Sprintf("%s: input knot %q must be declared before %q", where, link.In.Name, k.ID))
			}
			if _, ok := declared[link.Out.Name]; !ok {
				problems = append(problems, fmt.Sprintf("%s: output knot %q must be declared before %q", where, link.Out.Name, k.ID))
			}
			if link.Op == "" {
				problems = append(problems, fmt.Sprintf("%s: operation links need an op expression", where))
			} else if _, err := compileOperation(link.Op); err != nil {
				problems = append(problems, fmt.Sprintf("%s: %v", where, err))
			}
			continue
		}
		if link.Joins() && link.In.Level == nil {
			problems = append(problems, fmt.Sprintf("%s: joining %q into %q needs an input level", where, link.In.Name, link.Out.Name))
		}
		if link.Op != "" && !ValidAggregation(link.Op) {
			problems = append(problems, fmt.Sprintf("%s: unknown aggregation %q", where, link.Op))
		}
	}
	return problems
}
