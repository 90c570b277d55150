package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/garyjia/hookmanager/internal/domain/hook"
)

// fakeCatalog implements port.Catalog for testing
type fakeCatalog struct {
	mu    sync.Mutex
	defs  []hook.Definition
	reads atomic.Int32
}

func (c *fakeCatalog) add(id string, hooks map[string]any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.defs = append(c.defs, hook.NewDefinition(id, hooks))
}

func (c *fakeCatalog) Definition(id string) (hook.Definition, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := len(c.defs) - 1; i >= 0; i-- {
		if c.defs[i].ID == id {
			return c.defs[i], true
		}
	}
	return hook.Definition{}, false
}

func (c *fakeCatalog) Definitions() []hook.Definition {
	c.reads.Add(1)
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]hook.Definition, len(c.defs))
	copy(out, c.defs)
	return out
}

// fakeFactory implements port.InstanceFactory for testing
type fakeFactory struct {
	mu    sync.Mutex
	ctors map[string]func() (hook.Handler, error)
}

func newFakeFactory() *fakeFactory {
	return &fakeFactory{ctors: make(map[string]func() (hook.Handler, error))}
}

func (f *fakeFactory) bind(id string, methods *hook.Methods) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ctors[id] = func() (hook.Handler, error) { return hook.Bind(methods), nil }
}

func (f *fakeFactory) fail(id string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ctors[id] = func() (hook.Handler, error) { return nil, err }
}

func (f *fakeFactory) CreateInstance(id string) (hook.Handler, error) {
	f.mu.Lock()
	ctor, ok := f.ctors[id]
	f.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", hook.ErrUnknownHandler, id)
	}
	return ctor()
}

// mockRecorder implements port.FailureRecorder for testing
type mockRecorder struct {
	mu       sync.Mutex
	failures []hook.Failure
}

func (m *mockRecorder) RecordFailure(_ context.Context, f hook.Failure) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures = append(m.failures, f)
}

func (m *mockRecorder) Failures() []hook.Failure {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]hook.Failure, len(m.failures))
	copy(out, m.failures)
	return out
}

type panickingRecorder struct{}

func (panickingRecorder) RecordFailure(context.Context, hook.Failure) {
	panic("recorder broke")
}

// mockTracker implements port.DispatchTracker for testing
type mockTracker struct {
	mu       sync.Mutex
	begun    []string
	ended    []int
	statuses map[string]hook.Status
}

func newMockTracker() *mockTracker {
	return &mockTracker{statuses: make(map[string]hook.Status)}
}

func (m *mockTracker) Begin(ctx context.Context, mode hook.Mode, event string) (context.Context, func(int)) {
	m.mu.Lock()
	m.begun = append(m.begun, mode.String()+":"+event)
	m.mu.Unlock()
	return ctx, func(n int) {
		m.mu.Lock()
		m.ended = append(m.ended, n)
		m.mu.Unlock()
	}
}

func (m *mockTracker) Handler(_ context.Context, mode hook.Mode, event, id string, status hook.Status, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.statuses[id+"@"+event] = status
}

// pingFixture is the single-handler catalog used by the end-to-end tests
func pingFixture() (*fakeCatalog, *fakeFactory) {
	catalog := &fakeCatalog{}
	factory := newFakeFactory()

	catalog.add("H", map[string]any{"event_ping": 0, "event_ping_alter": 0})
	factory.bind("H", hook.NewMethods().
		On("ping", func(args ...any) (any, error) {
			return map[string]any{"ok": "ok"}, nil
		}).
		OnAlter("pingAlter", func(data, _, _ any) error {
			data.(map[string]any)["ok"] = "ok"
			return nil
		}))

	return catalog, factory
}

func TestNew(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		d := New(&fakeCatalog{}, newFakeFactory())
		require.NotNil(t, d)
		assert.True(t, d.memoize)
		assert.NotNil(t, d.logger)
		assert.NotNil(t, d.tracker)
	})

	t.Run("nil options are ignored", func(t *testing.T) {
		d := New(&fakeCatalog{}, newFakeFactory(),
			WithLogger(nil), WithRecorder(nil), WithTracker(nil), WithClock(nil))
		assert.NotNil(t, d.logger)
		assert.Empty(t, d.recorders)
		assert.NotNil(t, d.now)
	})
}

func TestEndToEndPing(t *testing.T) {
	catalog, factory := pingFixture()
	d := New(catalog, factory)
	ctx := context.Background()

	result, ok := d.Invoke(ctx, "H", "ping")
	require.True(t, ok)
	assert.Equal(t, map[string]any{"ok": "ok"}, result)

	agg := d.InvokeAll(ctx, "ping")
	assert.Equal(t, map[string]any{"ok": "ok"}, agg.Fields)
	assert.Empty(t, agg.Items)

	data := map[string]any{}
	d.AlterOne(ctx, "ping", data)
	assert.Equal(t, map[string]any{"ok": "ok"}, data)
}

func TestInvoke(t *testing.T) {
	catalog := &fakeCatalog{}
	factory := newFakeFactory()
	recorder := &mockRecorder{}

	catalog.add("echo", map[string]any{"event_echo": 0, "event_nil": 0, "event_unbound": 0})
	catalog.add("broken", map[string]any{"event_echo": 0})
	catalog.add("panicky", map[string]any{"event_echo": 0})
	catalog.add("failing", map[string]any{"event_echo": 0})

	factory.bind("echo", hook.NewMethods().
		On("echo", func(args ...any) (any, error) { return args, nil }).
		On("nil", func(args ...any) (any, error) { return nil, nil }))
	factory.fail("broken", errors.New("constructor exploded"))
	factory.bind("panicky", hook.NewMethods().
		On("echo", func(args ...any) (any, error) { panic("boom") }))
	factory.bind("failing", hook.NewMethods().
		On("echo", func(args ...any) (any, error) { return nil, errors.New("nope") }))

	d := New(catalog, factory, WithRecorder(recorder))
	ctx := context.Background()

	t.Run("spreads args", func(t *testing.T) {
		got, ok := d.Invoke(ctx, "echo", "echo", 1, "two")
		require.True(t, ok)
		assert.Equal(t, []any{1, "two"}, got)
	})

	tests := []struct {
		name     string
		id       string
		event    string
		wantFail error
	}{
		{"empty name", "echo", "", nil},
		{"unknown id", "ghost", "echo", nil},
		{"undeclared event", "echo", "other", nil},
		{"unbound method", "echo", "unbound", nil},
		{"nil result", "echo", "nil", nil},
		{"constructor error", "broken", "echo", hook.ErrInstantiation},
		{"panic", "panicky", "echo", hook.ErrHandlerPanic},
		{"returned error", "failing", "echo", hook.ErrInvocation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := len(recorder.Failures())

			got, ok := d.Invoke(ctx, tt.id, tt.event)
			assert.False(t, ok)
			assert.Nil(t, got)

			failures := recorder.Failures()
			if tt.wantFail == nil {
				assert.Len(t, failures, before)
				return
			}
			require.Len(t, failures, before+1)
			last := failures[len(failures)-1]
			assert.True(t, errors.Is(last.Err, tt.wantFail), "got %v", last.Err)
			assert.Equal(t, tt.id, last.HandlerID)
			assert.Equal(t, "event_echo", last.Event)
			assert.Equal(t, hook.ModeInvoke, last.Mode)
		})
	}
}

func TestInvokeAll_Ordering(t *testing.T) {
	catalog := &fakeCatalog{}
	factory := newFakeFactory()

	var mu sync.Mutex
	var order []string
	record := func(id string) hook.InvokeFunc {
		return func(args ...any) (any, error) {
			mu.Lock()
			order = append(order, id)
			mu.Unlock()
			return nil, nil
		}
	}

	catalog.add("A", map[string]any{"event_sort": 10})
	catalog.add("B", map[string]any{"event_sort": 5})
	catalog.add("C", map[string]any{"event_sort": "10"})
	catalog.add("D", map[string]any{"event_sort": "not a number"})
	catalog.add("E", map[string]any{"event_other": 100})
	for _, id := range []string{"A", "B", "C", "D", "E"} {
		factory.bind(id, hook.NewMethods().On("sort", record(id)).On("other", record(id)))
	}

	d := New(catalog, factory)

	for i := 0; i < 3; i++ {
		order = nil
		d.InvokeAll(context.Background(), "sort")
		assert.Equal(t, []string{"A", "C", "B", "D"}, order, "run %d", i)
	}

	assert.Equal(t, []hook.Implementation{
		{ID: "A", Priority: 10},
		{ID: "C", Priority: 10},
		{ID: "B", Priority: 5},
		{ID: "D", Priority: 0},
	}, d.Implementations("sort"))
}

func TestInvokeAll_Aggregation(t *testing.T) {
	catalog := &fakeCatalog{}
	factory := newFakeFactory()

	catalog.add("X", map[string]any{"event_collect": 10})
	catalog.add("Y", map[string]any{"event_collect": 5})
	catalog.add("Z", map[string]any{"event_collect": 1})

	factory.bind("X", hook.NewMethods().On("collect", func(args ...any) (any, error) {
		return map[string]any{"a": 1, "list": []any{"x"}}, nil
	}))
	factory.bind("Y", hook.NewMethods().On("collect", func(args ...any) (any, error) {
		return map[string]any{"a": 2, "b": 3, "list": []any{"y"}}, nil
	}))
	factory.bind("Z", hook.NewMethods().On("collect", func(args ...any) (any, error) {
		return "bare", nil
	}))

	d := New(catalog, factory)
	agg := d.InvokeAll(context.Background(), "collect")

	assert.Equal(t, map[string]any{"a": 2, "b": 3, "list": []any{"x", "y"}}, agg.Fields)
	assert.Equal(t, []any{"bare"}, agg.Items)
}

func TestInvokeAll_EmptyName(t *testing.T) {
	catalog, factory := pingFixture()
	d := New(catalog, factory)

	agg := d.InvokeAll(context.Background(), "")
	require.NotNil(t, agg)
	assert.True(t, agg.IsEmpty())
	assert.Equal(t, int32(0), catalog.reads.Load())
	assert.Nil(t, d.Implementations(""))
	assert.Nil(t, d.AlterImplementations(""))
}

func TestInvokeAll_FailureIsolation(t *testing.T) {
	catalog := &fakeCatalog{}
	factory := newFakeFactory()
	recorder := &mockRecorder{}

	catalog.add("first", map[string]any{"event_build": 30})
	catalog.add("ctor", map[string]any{"event_build": 20})
	catalog.add("last", map[string]any{"event_build": 10})

	factory.bind("first", hook.NewMethods().On("build", func(args ...any) (any, error) {
		panic("first handler broke")
	}))
	factory.fail("ctor", errors.New("cannot construct"))
	factory.bind("last", hook.NewMethods().On("build", func(args ...any) (any, error) {
		return map[string]any{"survived": true}, nil
	}))

	d := New(catalog, factory, WithRecorder(recorder), WithRecorder(panickingRecorder{}))
	agg := d.InvokeAll(context.Background(), "build")

	assert.Equal(t, map[string]any{"survived": true}, agg.Fields)

	failures := recorder.Failures()
	require.Len(t, failures, 2)
	assert.Equal(t, "first", failures[0].HandlerID)
	assert.True(t, errors.Is(failures[0].Err, hook.ErrHandlerPanic))
	assert.Equal(t, "ctor", failures[1].HandlerID)
	assert.True(t, errors.Is(failures[1].Err, hook.ErrInstantiation))
	assert.Equal(t, hook.ModeInvokeAll, failures[1].Mode)
}

func TestAlter(t *testing.T) {
	t.Run("nonexistent event leaves data unchanged", func(t *testing.T) {
		catalog, factory := pingFixture()
		d := New(catalog, factory)

		data := map[string]any{"keep": []any{1, 2}, "n": 3}
		d.AlterOne(context.Background(), "nonexistent_event", data)

		assert.Equal(t, map[string]any{"keep": []any{1, 2}, "n": 3}, data)
	})

	t.Run("empty names are skipped", func(t *testing.T) {
		catalog, factory := pingFixture()
		d := New(catalog, factory)

		data := map[string]any{}
		d.Alter(context.Background(), []string{"", "ping"}, data)

		assert.Equal(t, map[string]any{"ok": "ok"}, data)
	})

	t.Run("chain runs in priority order with contexts", func(t *testing.T) {
		catalog := &fakeCatalog{}
		factory := newFakeFactory()

		catalog.add("low", map[string]any{"event_form_alter": -1})
		catalog.add("high", map[string]any{"event_form_alter": 50})
		catalog.add("plain", map[string]any{"event_form": 100})

		appendStep := func(step string) hook.AlterFunc {
			return func(data, context1, context2 any) error {
				steps := data.(*[]string)
				*steps = append(*steps, step+":"+context1.(string))
				*context2.(*int)++
				return nil
			}
		}
		factory.bind("low", hook.NewMethods().OnAlter("formAlter", appendStep("low")))
		factory.bind("high", hook.NewMethods().OnAlter("formAlter", appendStep("high")))
		factory.bind("plain", hook.NewMethods().OnAlter("formAlter", appendStep("plain")))

		d := New(catalog, factory)

		var steps []string
		calls := 0
		d.AlterOne(context.Background(), "form", &steps, "form-id", &calls, "ignored")

		assert.Equal(t, []string{"high:form-id", "low:form-id"}, steps)
		assert.Equal(t, 2, calls)
		assert.Equal(t, []hook.Implementation{
			{ID: "high", Priority: 50},
			{ID: "low", Priority: -1},
		}, d.AlterImplementations("form"))
	})

	t.Run("failed handler is skipped and earlier mutations kept", func(t *testing.T) {
		catalog := &fakeCatalog{}
		factory := newFakeFactory()
		recorder := &mockRecorder{}

		catalog.add("one", map[string]any{"event_page_alter": 3})
		catalog.add("two", map[string]any{"event_page_alter": 2})
		catalog.add("three", map[string]any{"event_page_alter": 1})

		factory.bind("one", hook.NewMethods().OnAlter("pageAlter", func(data, _, _ any) error {
			data.(map[string]any)["one"] = true
			return nil
		}))
		factory.bind("two", hook.NewMethods().OnAlter("pageAlter", func(data, _, _ any) error {
			data.(map[string]any)["two"] = "partial"
			return errors.New("two failed halfway")
		}))
		factory.bind("three", hook.NewMethods().OnAlter("pageAlter", func(data, _, _ any) error {
			data.(map[string]any)["three"] = true
			return nil
		}))

		d := New(catalog, factory, WithRecorder(recorder))

		data := map[string]any{}
		d.AlterOne(context.Background(), "page", data)

		assert.Equal(t, map[string]any{"one": true, "two": "partial", "three": true}, data)

		failures := recorder.Failures()
		require.Len(t, failures, 1)
		assert.Equal(t, "two", failures[0].HandlerID)
		assert.Equal(t, "event_page_alter", failures[0].Event)
		assert.Equal(t, hook.ModeAlter, failures[0].Mode)
		assert.True(t, errors.Is(failures[0].Err, hook.ErrInvocation))
	})

	t.Run("names processed in order", func(t *testing.T) {
		catalog := &fakeCatalog{}
		factory := newFakeFactory()

		catalog.add("h", map[string]any{"event_a_alter": 0, "event_b_alter": 0})
		factory.bind("h", hook.NewMethods().
			OnAlter("aAlter", func(data, _, _ any) error {
				*data.(*string) += "a"
				return nil
			}).
			OnAlter("bAlter", func(data, _, _ any) error {
				*data.(*string) += "b"
				return nil
			}))

		d := New(catalog, factory)

		s := ""
		d.Alter(context.Background(), []string{"b", "a", "b"}, &s)
		assert.Equal(t, "bab", s)
	})
}

func TestMemoization(t *testing.T) {
	t.Run("resolution is cached until invalidated", func(t *testing.T) {
		catalog, factory := pingFixture()
		d := New(catalog, factory)
		ctx := context.Background()

		d.InvokeAll(ctx, "ping")
		d.InvokeAll(ctx, "ping")
		assert.Equal(t, int32(1), catalog.reads.Load())
		assert.Equal(t, 1, d.cache.size())

		catalog.add("late", map[string]any{"event_ping": 99})
		factory.bind("late", hook.NewMethods().On("ping", func(args ...any) (any, error) {
			return "late", nil
		}))

		assert.Empty(t, d.InvokeAll(ctx, "ping").Items)

		d.Invalidate()
		assert.Equal(t, 0, d.cache.size())
		assert.Equal(t, []any{"late"}, d.InvokeAll(ctx, "ping").Items)
	})

	t.Run("plain and alter forms are cached separately", func(t *testing.T) {
		catalog, factory := pingFixture()
		d := New(catalog, factory)

		d.InvokeAll(context.Background(), "ping")
		d.AlterOne(context.Background(), "ping", map[string]any{})
		assert.Equal(t, 2, d.cache.size())
	})

	t.Run("disabled memoization resolves every call", func(t *testing.T) {
		catalog, factory := pingFixture()
		d := New(catalog, factory, WithMemoization(false))

		d.InvokeAll(context.Background(), "ping")
		d.InvokeAll(context.Background(), "ping")
		assert.Equal(t, int32(2), catalog.reads.Load())
		assert.Equal(t, 0, d.cache.size())
	})

	t.Run("reload swaps catalog and invalidates", func(t *testing.T) {
		catalog, factory := pingFixture()
		d := New(catalog, factory)
		d.InvokeAll(context.Background(), "ping")

		next := &fakeCatalog{}
		d.Reload(next, nil)

		assert.True(t, d.InvokeAll(context.Background(), "ping").IsEmpty())
		_, ok := d.Invoke(context.Background(), "H", "ping")
		assert.False(t, ok)
	})
}

func TestConcurrentDispatch(t *testing.T) {
	catalog := &fakeCatalog{}
	factory := newFakeFactory()
	for i := 0; i < 5; i++ {
		id := fmt.Sprintf("h%d", i)
		catalog.add(id, map[string]any{"event_count": i})
		factory.bind(id, hook.NewMethods().On("count", func(args ...any) (any, error) {
			return map[string]any{"seen": []any{id}}, nil
		}))
	}

	d := New(catalog, factory)

	var wg sync.WaitGroup
	results := make([]*hook.Aggregate, 32)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if i%8 == 0 {
				d.Invalidate()
			}
			results[i] = d.InvokeAll(context.Background(), "count")
		}(i)
	}
	wg.Wait()

	want := map[string]any{"seen": []any{"h4", "h3", "h2", "h1", "h0"}}
	for i, agg := range results {
		assert.Equal(t, want, agg.Fields, "result %d", i)
	}
}

func TestLoggingAndTracking(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	tracker := newMockTracker()

	catalog, factory := pingFixture()
	catalog.add("bad", map[string]any{"event_ping": 1})
	factory.bind("bad", hook.NewMethods().On("ping", func(args ...any) (any, error) {
		return nil, errors.New("bad ping")
	}))
	catalog.add("quiet", map[string]any{"event_ping": -1})
	factory.bind("quiet", hook.NewMethods())

	fixed := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	recorder := &mockRecorder{}
	d := New(catalog, factory,
		WithLogger(zap.New(core)),
		WithTracker(tracker),
		WithRecorder(recorder),
		WithClock(func() time.Time { return fixed }))

	d.InvokeAll(context.Background(), "ping")

	warnings := logs.FilterMessage("Handler failed").All()
	require.Len(t, warnings, 1)
	fields := warnings[0].ContextMap()
	assert.Equal(t, "bad", fields["handler_id"])
	assert.Equal(t, "event_ping", fields["event"])
	assert.Equal(t, "invoke_all", fields["mode"])

	assert.Equal(t, []string{"invoke_all:event_ping"}, tracker.begun)
	assert.Equal(t, []int{3}, tracker.ended)
	assert.Equal(t, hook.StatusFailed, tracker.statuses["bad@event_ping"])
	assert.Equal(t, hook.StatusOK, tracker.statuses["H@event_ping"])
	assert.Equal(t, hook.StatusAbsent, tracker.statuses["quiet@event_ping"])

	require.Len(t, recorder.Failures(), 1)
	assert.Equal(t, fixed, recorder.Failures()[0].At)
}
