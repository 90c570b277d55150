package hook

import "strings"

const (
	// EventPrefix starts every canonical event name
	EventPrefix = "event_"
	// AlterSuffix ends the canonical name of an alter event
	AlterSuffix = "_alter"
)

// Canonical returns the plain canonical form "event_<name>".
// An empty name has no canonical form.
func Canonical(name string) (string, bool) {
	if name == "" {
		return "", false
	}
	return EventPrefix + name, true
}

// CanonicalAlter returns the alter canonical form "event_<name>_alter".
// An empty name has no canonical form.
func CanonicalAlter(name string) (string, bool) {
	if name == "" {
		return "", false
	}
	return EventPrefix + name + AlterSuffix, true
}

// IsCanonical reports whether s is a well-formed canonical event name
func IsCanonical(s string) bool {
	return strings.HasPrefix(s, EventPrefix) && len(s) > len(EventPrefix)
}

// MethodName maps a canonical event name to the name of the handler method
// bound to it. The event prefix is dropped, the remainder is split on "_",
// the first token is kept as-is and every following token is capitalized:
//
//	event_do_thing   -> doThing
//	event_ping_alter -> pingAlter
func MethodName(canonical string) string {
	trimmed := strings.TrimPrefix(canonical, EventPrefix)

	var b strings.Builder
	b.Grow(len(trimmed))

	first := true
	for _, part := range strings.Split(trimmed, "_") {
		if part == "" {
			continue
		}
		if first {
			b.WriteString(part)
			first = false
			continue
		}
		b.WriteString(strings.ToUpper(part[:1]))
		b.WriteString(part[1:])
	}

	return b.String()
}
