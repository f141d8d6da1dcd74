package cache

// Kind names an entity family. Keys pair a kind with a scope id, replacing
// ad hoc string concatenation so list/family/meal-plan scopes can never
// collide.
type Kind string

// Key addresses one cache entry.
type Key struct {
	Kind  Kind
	Scope string
}

func NewKey(kind Kind, scope string) Key {
	return Key{Kind: kind, Scope: scope}
}

func (k Key) String() string {
	if k.Scope == "" {
		return string(k.Kind)
	}
	return string(k.Kind) + "/" + k.Scope
}
