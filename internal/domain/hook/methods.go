package hook

import "sort"

// InvokeFunc is a handler method called by Invoke and InvokeAll.
// Returning (nil, nil) means the handler has nothing to contribute.
type InvokeFunc func(args ...any) (any, error)

// AlterFunc is a handler method in an alter chain. data and the two
// context values are shared with the caller; pass pointers or maps to make
// mutations visible.
type AlterFunc func(data, context1, context2 any) error

// Methods is the static table of methods a handler instance exposes,
// keyed by method name (see MethodName). It is built once when the
// instance is constructed and only read afterwards.
type Methods struct {
	invoke map[string]InvokeFunc
	alter  map[string]AlterFunc
}

// NewMethods creates an empty method table
func NewMethods() *Methods {
	return &Methods{
		invoke: make(map[string]InvokeFunc),
		alter:  make(map[string]AlterFunc),
	}
}

// On binds an invoke method under name
func (m *Methods) On(name string, fn InvokeFunc) *Methods {
	if fn != nil {
		m.invoke[name] = fn
	}
	return m
}

// OnAlter binds an alter method under name
func (m *Methods) OnAlter(name string, fn AlterFunc) *Methods {
	if fn != nil {
		m.alter[name] = fn
	}
	return m
}

// Invoker returns the invoke method bound under name
func (m *Methods) Invoker(name string) (InvokeFunc, bool) {
	if m == nil {
		return nil, false
	}
	fn, ok := m.invoke[name]
	return fn, ok
}

// Alterer returns the alter method bound under name
func (m *Methods) Alterer(name string) (AlterFunc, bool) {
	if m == nil {
		return nil, false
	}
	fn, ok := m.alter[name]
	return fn, ok
}

// Names returns every bound method name, sorted
func (m *Methods) Names() []string {
	if m == nil {
		return nil
	}
	names := make([]string, 0, len(m.invoke)+len(m.alter))
	for name := range m.invoke {
		names = append(names, name)
	}
	for name := range m.alter {
		if _, dup := m.invoke[name]; !dup {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// Handler is a constructed handler instance
type Handler interface {
	Methods() *Methods
}

type boundHandler struct {
	methods *Methods
}

func (b boundHandler) Methods() *Methods {
	return b.methods
}

// Bind wraps a method table as a Handler
func Bind(methods *Methods) Handler {
	return boundHandler{methods: methods}
}
