package record

import (
	"fmt"
	"strings"
	"time"

	"github.com/iksnae/chat-recorder/internal/adapters"
	"github.com/iksnae/chat-recorder/internal/session"
)

// Filter selects records. Every include list keeps rows matching one of its
// values, every exclude list drops rows matching any of its values, and all
// axes are AND-ed together. Empty lists and zero times do not constrain.
type Filter struct {
	// Session seeds equality filters on each axis not skipped below.
	Session     *session.Session
	SkipSelfID  bool
	SkipAdapter bool
	SkipScope   bool
	SkipScene   bool
	SkipUser    bool

	SelfIDs    []string
	Adapters   []string
	Scopes     []string
	SceneTypes []session.SceneType
	SceneIDs   []string
	UserIDs    []string

	ExcludeSelfIDs    []string
	ExcludeAdapters   []string
	ExcludeScopes     []string
	ExcludeSceneTypes []session.SceneType
	ExcludeSceneIDs   []string
	ExcludeUserIDs    []string

	// Inclusive bounds, compared in UTC.
	TimeStart time.Time
	TimeStop  time.Time

	Kinds        []Kind
	ExcludeKinds []Kind

	// Where is a CEL expression evaluated against each matching record.
	Where string
}

// Values converts typed axis values such as adapters.Key or Kind to strings
func Values[T ~string](vs ...T) []string {
	out := make([]string, len(vs))
	for i, v := range vs {
		out[i] = string(v)
	}
	return out
}

// Predicate is one SQL condition over the joined record (r) and session (s) rows
type Predicate struct {
	SQL  string
	Args []any
}

// Spec is a built filter: AND-ed predicates plus an optional post-filter
type Spec struct {
	Predicates []Predicate
	Where      *Where
}

// SQL joins the predicates into a WHERE clause body with ? placeholders
func (s Spec) SQL() (string, []any) {
	if len(s.Predicates) == 0 {
		return "1 = 1", nil
	}
	parts := make([]string, len(s.Predicates))
	var args []any
	for i, p := range s.Predicates {
		parts[i] = p.SQL
		args = append(args, p.Args...)
	}
	return strings.Join(parts, " AND "), args
}

func (s Spec) String() string {
	clause, args := s.SQL()
	out := fmt.Sprintf("%s %v", clause, args)
	if s.Where != nil {
		out += " where " + s.Where.String()
	}
	return out
}

type specBuilder struct {
	preds []Predicate
}

func (b *specBuilder) eq(column string, value any) {
	b.preds = append(b.preds, Predicate{SQL: column + " = ?", Args: []any{value}})
}

func (b *specBuilder) in(column string, values []any) {
	switch len(values) {
	case 0:
	case 1:
		b.eq(column, values[0])
	default:
		marks := strings.TrimSuffix(strings.Repeat("?, ", len(values)), ", ")
		b.preds = append(b.preds, Predicate{SQL: column + " IN (" + marks + ")", Args: values})
	}
}

func (b *specBuilder) notIn(column string, values []any) {
	for _, v := range values {
		b.preds = append(b.preds, Predicate{SQL: column + " <> ?", Args: []any{v}})
	}
}

// Build validates and normalizes the filter into a Spec; nothing is executed
func (f Filter) Build() (Spec, error) {
	var b specBuilder

	if s := f.Session; s != nil {
		if !f.SkipSelfID {
			b.eq("s.self_id", s.SelfID)
		}
		if !f.SkipAdapter {
			adapter, err := adapterValue(s.Adapter)
			if err != nil {
				return Spec{}, err
			}
			b.eq("s.adapter", adapter)
		}
		if !f.SkipScope {
			b.eq("s.scope", s.Scope)
		}
		if !f.SkipScene {
			sceneType, sceneID, parentType, parentID := s.Scene.Columns()
			b.eq("s.scene_type", sceneType)
			b.eq("s.scene_id", sceneID)
			b.eq("s.parent_scene_type", parentType)
			b.eq("s.parent_scene_id", parentID)
		}
		if !f.SkipUser {
			b.eq("s.user_id", s.User)
		}
	}

	includeAdapters, err := adapterValues(f.Adapters)
	if err != nil {
		return Spec{}, err
	}
	excludeAdapters, err := adapterValues(f.ExcludeAdapters)
	if err != nil {
		return Spec{}, err
	}
	includeScenes, err := sceneTypeValues(f.SceneTypes)
	if err != nil {
		return Spec{}, err
	}
	excludeScenes, err := sceneTypeValues(f.ExcludeSceneTypes)
	if err != nil {
		return Spec{}, err
	}
	includeKinds, err := kindValues(f.Kinds)
	if err != nil {
		return Spec{}, err
	}
	excludeKinds, err := kindValues(f.ExcludeKinds)
	if err != nil {
		return Spec{}, err
	}

	b.in("s.self_id", anys(f.SelfIDs))
	b.in("s.adapter", includeAdapters)
	b.in("s.scope", anys(f.Scopes))
	b.in("s.scene_type", includeScenes)
	b.in("s.scene_id", anys(f.SceneIDs))
	b.in("s.user_id", anys(f.UserIDs))

	b.notIn("s.self_id", anys(f.ExcludeSelfIDs))
	b.notIn("s.adapter", excludeAdapters)
	b.notIn("s.scope", anys(f.ExcludeScopes))
	b.notIn("s.scene_type", excludeScenes)
	b.notIn("s.scene_id", anys(f.ExcludeSceneIDs))
	b.notIn("s.user_id", anys(f.ExcludeUserIDs))

	if !f.TimeStart.IsZero() {
		b.preds = append(b.preds, Predicate{SQL: "r.time >= ?", Args: []any{FormatTime(ceilMicro(f.TimeStart))}})
	}
	if !f.TimeStop.IsZero() {
		b.preds = append(b.preds, Predicate{SQL: "r.time <= ?", Args: []any{FormatTime(NaiveUTC(f.TimeStop))}})
	}

	b.in("r.kind", includeKinds)
	b.notIn("r.kind", excludeKinds)

	spec := Spec{Predicates: b.preds}
	if strings.TrimSpace(f.Where) != "" {
		w, err := CompileWhere(f.Where)
		if err != nil {
			return Spec{}, err
		}
		spec.Where = w
	}
	return spec, nil
}

// ceilMicro rounds a lower bound up to stored precision so it never widens
func ceilMicro(t time.Time) time.Time {
	c := NaiveUTC(t)
	if c.Before(t) {
		c = c.Add(time.Microsecond)
	}
	return c
}

func anys[T any](vs []T) []any {
	if len(vs) == 0 {
		return nil
	}
	out := make([]any, len(vs))
	for i, v := range vs {
		out[i] = v
	}
	return out
}

// adapterValue maps loose spellings ("onebotv11") onto the stored adapter name
func adapterValue(s string) (string, error) {
	key, ok := adapters.ParseKey(s)
	if !ok {
		return "", &adapters.AdapterNotSupportedError{Adapter: s}
	}
	return string(key), nil
}

func adapterValues(vs []string) ([]any, error) {
	out := make([]any, 0, len(vs))
	for _, v := range vs {
		a, err := adapterValue(v)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}

func sceneTypeValues(vs []session.SceneType) ([]any, error) {
	out := make([]any, 0, len(vs))
	for _, v := range vs {
		if !v.Valid() {
			return nil, fmt.Errorf("invalid scene type %d", int(v))
		}
		out = append(out, int(v))
	}
	return out, nil
}

func kindValues(vs []Kind) ([]any, error) {
	out := make([]any, 0, len(vs))
	for _, v := range vs {
		if !v.Valid() {
			return nil, fmt.Errorf("unknown record kind: %q", string(v))
		}
		out = append(out, string(v))
	}
	return out, nil
}
