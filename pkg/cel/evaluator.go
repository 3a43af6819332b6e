package cel

import (
	"context"
	"fmt"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/ext"

	"safetyrelay/pkg/models"
)

// Evaluator compiles and runs operator-supplied filter expressions against
// unified events.
type Evaluator struct {
	env *cel.Env
}

// Program is a compiled boolean filter expression.
type Program struct {
	Expression string
	program    cel.Program
}

func NewEvaluator() (*Evaluator, error) {
	env, err := cel.NewEnv(
		cel.Variable("id", cel.StringType),
		cel.Variable("source", cel.StringType),
		cel.Variable("type", cel.StringType),
		cel.Variable("severity", cel.StringType),
		cel.Variable("asset_id", cel.StringType),
		cel.Variable("vehicle_name", cel.StringType),
		cel.Variable("driver_id", cel.StringType),
		cel.Variable("has_video", cel.BoolType),
		cel.Variable("occurred_at", cel.TimestampType),
		cel.Variable("details", cel.MapType(cel.StringType, cel.DynType)),
		ext.Strings(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	return &Evaluator{env: env}, nil
}

func (e *Evaluator) ValidateFilterExpression(expression string) error {
	ast, issues := e.env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return fmt.Errorf("CEL expression validation failed: %w", issues.Err())
	}

	if ast.OutputType() != cel.BoolType {
		return fmt.Errorf("filter expression must return bool, got %v", ast.OutputType())
	}

	return nil
}

// Compile type-checks a filter expression once so it can be evaluated per event.
func (e *Evaluator) Compile(expression string) (*Program, error) {
	ast, issues := e.env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("failed to compile CEL expression: %w", issues.Err())
	}

	if ast.OutputType() != cel.BoolType {
		return nil, fmt.Errorf("filter expression must return bool, got %v", ast.OutputType())
	}

	program, err := e.env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL program: %w", err)
	}

	return &Program{Expression: expression, program: program}, nil
}

func (e *Evaluator) EvaluateFilter(ctx context.Context, p *Program, ev models.UnifiedEvent) (bool, error) {
	result, _, err := p.program.ContextEval(ctx, eventVars(ev))
	if err != nil {
		return false, fmt.Errorf("failed to evaluate CEL expression: %w", err)
	}

	boolVal, ok := result.Value().(bool)
	if !ok {
		return false, fmt.Errorf("CEL expression did not return bool, got %T", result.Value())
	}

	return boolVal, nil
}

func eventVars(ev models.UnifiedEvent) map[string]interface{} {
	details := ev.Details
	if details == nil {
		details = map[string]interface{}{}
	}

	return map[string]interface{}{
		"id":           ev.ID,
		"source":       string(ev.Source),
		"type":         ev.Type,
		"severity":     ev.Severity,
		"asset_id":     ev.AssetID,
		"vehicle_name": ev.VehicleName,
		"driver_id":    ev.DriverID,
		"has_video":    ev.VideoURL != "",
		"occurred_at":  ev.OccurredAt,
		"details":      details,
	}
}
