// Package session describes who (bot), where (adapter, scope, scene) and with
// whom (user) a recorded message belongs to, and persists those tuples as
// stable integer references.
package session

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// SceneType classifies the addressable context of a conversation
type SceneType int

const (
	ScenePrivate SceneType = iota
	SceneGroup
	SceneGuild
	SceneChannel
)

var sceneTypeNames = [...]string{"private", "group", "guild", "channel"}

func (t SceneType) String() string {
	if t >= 0 && int(t) < len(sceneTypeNames) {
		return sceneTypeNames[t]
	}
	return "scene(" + strconv.Itoa(int(t)) + ")"
}

// Valid reports whether t is one of the defined scene types
func (t SceneType) Valid() bool {
	return t >= ScenePrivate && t <= SceneChannel
}

// ParseSceneType accepts a scene type name ("group") or its numeric value ("1")
func ParseSceneType(s string) (SceneType, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for i, name := range sceneTypeNames {
		if s == name {
			return SceneType(i), nil
		}
	}
	if n, err := strconv.Atoi(s); err == nil && SceneType(n).Valid() {
		return SceneType(n), nil
	}
	return 0, fmt.Errorf("unknown scene type: %q", s)
}

// MarshalText implements encoding.TextMarshaler
func (t SceneType) MarshalText() ([]byte, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("invalid scene type %d", int(t))
	}
	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (t *SceneType) UnmarshalText(text []byte) error {
	parsed, err := ParseSceneType(string(text))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// Scene is a conversation context, optionally nested under a parent scene
// (a channel inside a guild, for example). Only one level of nesting is kept.
type Scene struct {
	ID     string    `json:"id" yaml:"id"`
	Type   SceneType `json:"type" yaml:"type"`
	Parent *Scene    `json:"parent,omitempty" yaml:"parent,omitempty"`
}

// Session is the identity tuple a MessageRecord points at
type Session struct {
	SelfID  string `json:"self_id" yaml:"self_id"`
	Adapter string `json:"adapter" yaml:"adapter"`
	Scope   string `json:"scope" yaml:"scope"`
	Scene   Scene  `json:"scene" yaml:"scene"`
	User    string `json:"user" yaml:"user"`
}

// ErrInvalidSession is returned for tuples missing a required field
var ErrInvalidSession = errors.New("invalid session")

// Validate checks the fields every persisted session needs
func (s Session) Validate() error {
	switch {
	case s.SelfID == "":
		return fmt.Errorf("%w: empty self id", ErrInvalidSession)
	case s.Adapter == "":
		return fmt.Errorf("%w: empty adapter", ErrInvalidSession)
	case s.Scene.ID == "":
		return fmt.Errorf("%w: empty scene id", ErrInvalidSession)
	case !s.Scene.Type.Valid():
		return fmt.Errorf("%w: scene type %d", ErrInvalidSession, int(s.Scene.Type))
	}
	if p := s.Scene.Parent; p != nil {
		if p.Parent != nil {
			return fmt.Errorf("%w: scenes nest at most two levels", ErrInvalidSession)
		}
		if p.ID == "" || !p.Type.Valid() {
			return fmt.Errorf("%w: incomplete parent scene", ErrInvalidSession)
		}
	}
	return nil
}

// Key is a canonical string form of the tuple, equal for equal sessions
func (s Session) Key() string {
	parentType, parentID := parentColumns(s.Scene)
	return strings.Join([]string{
		s.SelfID,
		s.Adapter,
		s.Scope,
		strconv.Itoa(int(s.Scene.Type)),
		s.Scene.ID,
		strconv.Itoa(parentType),
		parentID,
		s.User,
	}, "\x1f")
}

// Equal compares two sessions field by field, including the parent scene
func (s Session) Equal(o Session) bool {
	return s.Key() == o.Key()
}

// Columns flattens the scene into its stored form; parentType is -1 without a parent
func (sc Scene) Columns() (sceneType int, id string, parentType int, parentID string) {
	parentType, parentID = parentColumns(sc)
	return int(sc.Type), sc.ID, parentType, parentID
}

// parentColumns flattens the optional parent into storable columns (-1, "" when absent)
func parentColumns(scene Scene) (int, string) {
	if scene.Parent == nil {
		return -1, ""
	}
	return int(scene.Parent.Type), scene.Parent.ID
}

func sceneFromColumns(sceneType int, sceneID string, parentType int, parentID string) Scene {
	scene := Scene{ID: sceneID, Type: SceneType(sceneType)}
	if parentType >= 0 {
		scene.Parent = &Scene{ID: parentID, Type: SceneType(parentType)}
	}
	return scene
}
