package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"

	"github.com/iksnae/chat-recorder/internal/record"
	"github.com/iksnae/chat-recorder/internal/session"
)

// filterFlags are the record selection flags shared by records and export
type filterFlags struct {
	sessionRef int64
	skip       []string

	selfIDs    []string
	adapters   []string
	scopes     []string
	sceneTypes []string
	sceneIDs   []string
	userIDs    []string

	excludeSelfIDs    []string
	excludeAdapters   []string
	excludeScopes     []string
	excludeSceneTypes []string
	excludeSceneIDs   []string
	excludeUserIDs    []string

	since        string
	until        string
	kinds        []string
	excludeKinds []string
	where        string
}

func (f *filterFlags) register(fs *pflag.FlagSet) {
	fs.Int64Var(&f.sessionRef, "session", 0, "Seed filters from the session with this reference")
	fs.StringSliceVar(&f.skip, "skip", nil, "Session axes not to seed (self_id, adapter, scope, scene, user)")

	fs.StringSliceVar(&f.selfIDs, "self-id", nil, "Only records of these bot ids")
	fs.StringSliceVar(&f.adapters, "adapter", nil, "Only records from these adapters")
	fs.StringSliceVar(&f.scopes, "scope", nil, "Only records from these platform scopes")
	fs.StringSliceVar(&f.sceneTypes, "scene-type", nil, "Only these scene types (private, group, guild, channel)")
	fs.StringSliceVar(&f.sceneIDs, "scene-id", nil, "Only these scene ids")
	fs.StringSliceVar(&f.userIDs, "user-id", nil, "Only these user ids")

	fs.StringSliceVar(&f.excludeSelfIDs, "exclude-self-id", nil, "Drop records of these bot ids")
	fs.StringSliceVar(&f.excludeAdapters, "exclude-adapter", nil, "Drop records from these adapters")
	fs.StringSliceVar(&f.excludeScopes, "exclude-scope", nil, "Drop records from these platform scopes")
	fs.StringSliceVar(&f.excludeSceneTypes, "exclude-scene-type", nil, "Drop these scene types")
	fs.StringSliceVar(&f.excludeSceneIDs, "exclude-scene-id", nil, "Drop these scene ids")
	fs.StringSliceVar(&f.excludeUserIDs, "exclude-user-id", nil, "Drop these user ids")

	fs.StringVar(&f.since, "since", "", "Earliest record time, inclusive (RFC 3339, \"2006-01-02 15:04:05\" UTC or a date)")
	fs.StringVar(&f.until, "until", "", "Latest record time, inclusive")
	fs.StringSliceVar(&f.kinds, "kind", nil, "Only these kinds (message, message_sent, fake)")
	fs.StringSliceVar(&f.excludeKinds, "exclude-kind", nil, "Drop these kinds")
	fs.StringVar(&f.where, "where", "", "CEL expression each record must satisfy, e.g. 'plain_text.contains(\"hi\")'")
}

// filter converts the flags into a record.Filter. The session is looked up
// in sessions only when --session is set.
func (f *filterFlags) filter(ctx context.Context, sessions session.Store) (record.Filter, error) {
	out := record.Filter{
		SelfIDs:         f.selfIDs,
		Adapters:        f.adapters,
		Scopes:          f.scopes,
		SceneIDs:        f.sceneIDs,
		UserIDs:         f.userIDs,
		ExcludeSelfIDs:  f.excludeSelfIDs,
		ExcludeAdapters: f.excludeAdapters,
		ExcludeScopes:   f.excludeScopes,
		ExcludeSceneIDs: f.excludeSceneIDs,
		ExcludeUserIDs:  f.excludeUserIDs,
		Where:           f.where,
	}

	var err error
	if out.SceneTypes, err = parseSceneTypes(f.sceneTypes); err != nil {
		return out, err
	}
	if out.ExcludeSceneTypes, err = parseSceneTypes(f.excludeSceneTypes); err != nil {
		return out, err
	}
	if out.Kinds, err = parseKinds(f.kinds); err != nil {
		return out, err
	}
	if out.ExcludeKinds, err = parseKinds(f.excludeKinds); err != nil {
		return out, err
	}
	if out.TimeStart, err = parseTimeFlag("since", f.since); err != nil {
		return out, err
	}
	if out.TimeStop, err = parseTimeFlag("until", f.until); err != nil {
		return out, err
	}

	if f.sessionRef != 0 {
		sess, err := sessions.Lookup(ctx, f.sessionRef)
		if err != nil {
			return out, fmt.Errorf("session %d: %w", f.sessionRef, err)
		}
		out.Session = &sess
	} else if len(f.skip) > 0 {
		return out, fmt.Errorf("--skip requires --session")
	}
	for _, axis := range f.skip {
		switch strings.ToLower(strings.TrimSpace(axis)) {
		case "self_id", "self-id":
			out.SkipSelfID = true
		case "adapter":
			out.SkipAdapter = true
		case "scope":
			out.SkipScope = true
		case "scene":
			out.SkipScene = true
		case "user", "user_id", "user-id":
			out.SkipUser = true
		default:
			return out, fmt.Errorf("unknown --skip axis %q (valid: self_id, adapter, scope, scene, user)", axis)
		}
	}
	return out, nil
}

func parseSceneTypes(vs []string) ([]session.SceneType, error) {
	var out []session.SceneType
	for _, v := range vs {
		t, err := session.ParseSceneType(v)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

func parseKinds(vs []string) ([]record.Kind, error) {
	var out []record.Kind
	for _, v := range vs {
		k, err := record.ParseKind(v)
		if err != nil {
			return nil, err
		}
		out = append(out, k)
	}
	return out, nil
}

var timeFlagLayouts = []string{time.RFC3339Nano, record.TimeLayout, "2006-01-02 15:04:05", "2006-01-02T15:04:05", "2006-01-02"}

// parseTimeFlag reads an absolute time; values without a zone are UTC
func parseTimeFlag(name, v string) (time.Time, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return time.Time{}, nil
	}
	for _, layout := range timeFlagLayouts {
		if t, err := time.ParseInLocation(layout, v, time.UTC); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid --%s time %q", name, v)
}
