package upstream

import "strings"

// Action tells Walk how to continue after visiting a node.
type Action int

const (
	// Continue descends into the node's children.
	Continue Action = iota
	// SkipChildren moves on to the node's next sibling.
	SkipChildren
	// Stop ends the walk.
	Stop
)

// Walk visits v and its descendants in pre-order, array elements and
// object members in document order. It reports whether the walk ran to
// completion (false when a visitor returned Stop).
func Walk(v Value, visit func(Value) Action) bool {
	switch visit(v) {
	case Stop:
		return false
	case SkipChildren:
		return true
	}
	switch v.Kind() {
	case KindArray:
		for _, it := range v.Items() {
			if !Walk(it, visit) {
				return false
			}
		}
	case KindObject:
		for _, m := range v.Members() {
			if !Walk(m.Value, visit) {
				return false
			}
		}
	}
	return true
}

// TextKeys are the fields searched for summary text, in priority order.
var TextKeys = []string{"markdown", "text", "content", "output"}

// FindText returns the first non-blank string held under one of TextKeys
// by any object in v. An object's own keys are checked before its
// children.
func FindText(v Value) (string, bool) {
	var found string
	Walk(v, func(n Value) Action {
		if n.Kind() != KindObject {
			return Continue
		}
		for _, k := range TextKeys {
			field, ok := n.Get(k)
			if !ok {
				continue
			}
			if s, ok := field.Str(); ok && strings.TrimSpace(s) != "" {
				found = s
				return Stop
			}
		}
		return Continue
	})
	return found, found != ""
}

// isQuestion reports whether an object looks like a quiz question: a
// prompt under q or question plus an options field.
func isQuestion(v Value) bool {
	return v.Kind() == KindObject && (v.Has("q") || v.Has("question")) && v.Has("options")
}

// FindQuestions collects every question object in v. The search does not
// descend into a question once found.
func FindQuestions(v Value) []Value {
	var out []Value
	Walk(v, func(n Value) Action {
		if isQuestion(n) {
			out = append(out, n)
			return SkipChildren
		}
		return Continue
	})
	return out
}
