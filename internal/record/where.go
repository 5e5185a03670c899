package record

import (
	"fmt"
	"sync"

	"github.com/google/cel-go/cel"
)

var whereEnv = sync.OnceValues(func() (*cel.Env, error) {
	return cel.NewEnv(
		cel.Variable("id", cel.IntType),
		cel.Variable("self_id", cel.StringType),
		cel.Variable("adapter", cel.StringType),
		cel.Variable("scope", cel.StringType),
		cel.Variable("scene_type", cel.StringType),
		cel.Variable("scene_id", cel.StringType),
		cel.Variable("parent_scene_type", cel.StringType),
		cel.Variable("parent_scene_id", cel.StringType),
		cel.Variable("user_id", cel.StringType),
		cel.Variable("time", cel.TimestampType),
		cel.Variable("kind", cel.StringType),
		cel.Variable("message_id", cel.StringType),
		cel.Variable("plain_text", cel.StringType),
		cel.Variable("segment_types", cel.ListType(cel.StringType)),
	)
})

// Where is a compiled CEL predicate over a single record, for conditions the
// SQL axes cannot express (`plain_text.contains("hi") && "image" in segment_types`).
type Where struct {
	source string
	prg    cel.Program
}

// CompileWhere parses and type-checks a record expression
func CompileWhere(expr string) (*Where, error) {
	env, err := whereEnv()
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}
	ast, issues := env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("invalid where expression: %w", issues.Err())
	}
	prg, err := env.Program(ast, cel.CostLimit(100000))
	if err != nil {
		return nil, fmt.Errorf("invalid where expression: %w", err)
	}
	return &Where{source: expr, prg: prg}, nil
}

func (w *Where) String() string { return w.source }

// Match evaluates the expression against rec; non-boolean results are errors
func (w *Where) Match(rec *MessageRecord) (bool, error) {
	parentType, parentID := "", ""
	if p := rec.Session.Scene.Parent; p != nil {
		parentType, parentID = p.Type.String(), p.ID
	}
	out, _, err := w.prg.Eval(map[string]any{
		"id":                rec.ID,
		"self_id":           rec.Session.SelfID,
		"adapter":           rec.Session.Adapter,
		"scope":             rec.Session.Scope,
		"scene_type":        rec.Session.Scene.Type.String(),
		"scene_id":          rec.Session.Scene.ID,
		"parent_scene_type": parentType,
		"parent_scene_id":   parentID,
		"user_id":           rec.Session.User,
		"time":              rec.Time,
		"kind":              string(rec.Kind),
		"message_id":        rec.MessageID,
		"plain_text":        rec.PlainText,
		"segment_types":     rec.Message.Types(),
	})
	if err != nil {
		return false, fmt.Errorf("where %q: %w", w.source, err)
	}
	matched, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("where %q: result is %s, not bool", w.source, out.Type().TypeName())
	}
	return matched, nil
}
