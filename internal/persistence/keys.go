package persistence

import "github.com/petrijr/studyflow/pkg/api"

// DefaultKeyPrefix namespaces session keys when no prefix is configured.
const DefaultKeyPrefix = "asb"

// Keys builds the store keys of a session:
//
//	<prefix>:fsm:<user>   => state string
//	<prefix>:ctx:<user>   => HASH of context fields
//	<prefix>:quiz:<user>  => JSON quiz session
type Keys struct {
	prefix string
}

// NewKeys returns a Keys for prefix. An empty prefix selects DefaultKeyPrefix.
func NewKeys(prefix string) Keys {
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	return Keys{prefix: prefix}
}

func (k Keys) Prefix() string {
	if k.prefix == "" {
		return DefaultKeyPrefix
	}
	return k.prefix
}

func (k Keys) State(user api.UserID) string {
	return k.Prefix() + ":fsm:" + string(user)
}

func (k Keys) Context(user api.UserID) string {
	return k.Prefix() + ":ctx:" + string(user)
}

func (k Keys) Quiz(user api.UserID) string {
	return k.Prefix() + ":quiz:" + string(user)
}
