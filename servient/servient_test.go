package servient

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/linksmart/wot-servient/wot"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServient(t *testing.T, opts ...Option) *Servient {
	t.Helper()
	logger, _ := test.NewNullLogger()
	s := New(append([]Option{WithLogger(logger)}, opts...)...)
	t.Cleanup(s.Shutdown)
	return s
}

func produce(t *testing.T, s *Servient, title string) *ExposedThing {
	t.Helper()
	thing, err := s.Produce(wot.ThingDescription{Title: title})
	require.NoError(t, err)
	return thing
}

func number() wot.PropertyAffordance {
	return wot.PropertyAffordance{DataSchema: wot.DataSchema{DataType: wot.DataTypeNumber}}
}

func TestWriteThenRead(t *testing.T) {
	s := newTestServient(t)
	thing := produce(t, s, "store")
	ctx := context.Background()

	affordance := wot.PropertyAffordance{DataSchema: wot.DataSchema{
		DataType: wot.DataTypeObject,
		ObjectSchema: &wot.ObjectSchema{
			Properties: map[string]wot.DataSchema{
				"name": {DataType: wot.DataTypeString},
				"tags": {DataType: wot.DataTypeArray, ArraySchema: &wot.ArraySchema{Items: &wot.DataSchema{DataType: wot.DataTypeString}}},
			},
			Required: []string{"name"},
		},
	}}
	require.NoError(t, thing.AddProperty("config", affordance, nil))

	values := []any{
		map[string]any{"name": "a"},
		map[string]any{"name": "b", "tags": []any{"x", "y"}},
		struct {
			Name string   `json:"name"`
			Tags []string `json:"tags"`
		}{"c", []string{"z"}},
	}
	for i, v := range values {
		t.Run(fmt.Sprint(i), func(t *testing.T) {
			require.NoError(t, thing.WriteProperty(ctx, "config", v))
			read, err := thing.ReadProperty(ctx, "config")
			require.NoError(t, err)

			expected, err := wot.Normalize(v)
			require.NoError(t, err)
			assert.Equal(t, expected, read)
		})
	}

	t.Run("read value is a copy", func(t *testing.T) {
		read, err := thing.ReadProperty(ctx, "config")
		require.NoError(t, err)
		read.(map[string]any)["name"] = "changed"

		again, err := thing.ReadProperty(ctx, "config")
		require.NoError(t, err)
		assert.Equal(t, "c", again.(map[string]any)["name"])
	})
}

func TestInvalidWriteKeepsValue(t *testing.T) {
	s := newTestServient(t)
	thing := produce(t, s, "thermostat")
	ctx := context.Background()

	lo, hi := 5.0, 30.0
	affordance := wot.PropertyAffordance{DataSchema: wot.DataSchema{
		DataType:     wot.DataTypeNumber,
		NumberSchema: &wot.NumberSchema{Minimum: &lo, Maximum: &hi},
	}}
	require.NoError(t, thing.AddProperty("target", affordance, 20))

	var handlerCalled bool
	require.NoError(t, thing.SetPropertyWriteHandler(Wildcard, func(ctx context.Context, value any) error {
		handlerCalled = true
		return nil
	}))

	for _, invalid := range []any{31, 4.9, "25", nil, []any{20}} {
		err := thing.WriteProperty(ctx, "target", invalid)
		var violation *SchemaViolationError
		require.ErrorAs(t, err, &violation, "value %v", invalid)
		assert.Equal(t, "target", violation.Name)
	}
	assert.False(t, handlerCalled)

	v, err := thing.ReadProperty(ctx, "target")
	require.NoError(t, err)
	assert.Equal(t, 20.0, v)
}

func TestReadOnlyProperty(t *testing.T) {
	s := newTestServient(t)
	thing := produce(t, s, "sensor")
	ctx := context.Background()

	temp := number()
	temp.ReadOnly = true
	require.NoError(t, thing.AddProperty("temp", temp, 21.5))

	err := thing.WriteProperty(ctx, "temp", 22)
	var notAllowed *NotAllowedError
	assert.ErrorAs(t, err, &notAllowed)

	v, err := thing.ReadProperty(ctx, "temp")
	require.NoError(t, err)
	assert.Equal(t, 21.5, v)
}

func TestConcurrentWritesNotifyEach(t *testing.T) {
	s := newTestServient(t)
	thing := produce(t, s, "counter")
	ctx := context.Background()

	p := number()
	p.Observable = true
	require.NoError(t, thing.AddProperty("level", p, 0))

	var mu sync.Mutex
	var notified []any
	_, err := thing.OnPropertyChange("level", func(value any) {
		mu.Lock()
		notified = append(notified, value)
		mu.Unlock()
	})
	require.NoError(t, err)

	var wg sync.WaitGroup
	for _, v := range []float64{1, 2, 3} {
		wg.Add(1)
		go func(v float64) {
			defer wg.Done()
			assert.NoError(t, thing.WriteProperty(ctx, "level", v))
		}(v)
	}
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	assert.ElementsMatch(t, []any{1.0, 2.0, 3.0}, notified)
}

func TestActionWithoutHandler(t *testing.T) {
	s := newTestServient(t)
	thing := produce(t, s, "device")

	require.NoError(t, thing.AddAction("reset", wot.ActionAffordance{
		Input:  &wot.DataSchema{DataType: wot.DataTypeNull},
		Output: &wot.DataSchema{DataType: wot.DataTypeBoolean},
	}))

	_, err := thing.InvokeAction(context.Background(), "reset", nil)
	var notFound *NotFoundError
	assert.ErrorAs(t, err, &notFound)
}

func TestTDRoundTrip(t *testing.T) {
	s := newTestServient(t)
	thing := produce(t, s, "roundtrip")

	a := number()
	b := wot.PropertyAffordance{DataSchema: wot.DataSchema{DataType: wot.DataTypeString}, Observable: true}
	require.NoError(t, thing.AddProperty("a", a, nil))
	require.NoError(t, thing.AddProperty("b", b, nil))
	require.NoError(t, thing.SetPropertyReadHandler("b", func(ctx context.Context) (any, error) { return "x", nil }))

	consumed, err := s.Consume(thing.TD())
	require.NoError(t, err)

	properties := consumed.TD().Properties
	require.Len(t, properties, 2)
	for name, original := range map[string]wot.PropertyAffordance{"a": a, "b": b} {
		p, found := properties[name]
		require.True(t, found, name)
		assert.Equal(t, original.DataSchema, p.DataSchema, name)
		assert.Equal(t, original.Writable(), p.Writable(), name)
		assert.Equal(t, original.Observable, p.Observable, name)
	}
}

func TestDiscoverLocalByName(t *testing.T) {
	s := newTestServient(t)
	lamp1 := produce(t, s, "lamp1")
	produce(t, s, "lamp2")

	d := s.Discover(context.Background(), ThingFilter{
		Method:   DiscoveryLocal,
		Fragment: map[string]any{"name": "lamp1"},
	})
	thing, ok := d.Next(context.Background())
	require.True(t, ok)
	assert.Equal(t, lamp1.ID(), thing.ID())

	_, ok = d.Next(context.Background())
	assert.False(t, ok)
	assert.NoError(t, d.Err())
}

func TestCancelInsideListener(t *testing.T) {
	s := newTestServient(t)
	thing := produce(t, s, "alarm")
	require.NoError(t, thing.AddEvent("ring", wot.EventAffordance{}))

	var calls int
	var sub *Subscription
	sub, err := thing.OnEvent("ring", func(payload any) {
		calls++
		sub.Cancel()
	})
	require.NoError(t, err)

	require.NoError(t, thing.EmitEvent("ring", 1))
	require.NoError(t, thing.EmitEvent("ring", 2))
	assert.Equal(t, 1, calls)
	assert.False(t, sub.Active())
}

func TestHandlerPrecedence(t *testing.T) {
	s := newTestServient(t)
	thing := produce(t, s, "handlers")
	ctx := context.Background()

	require.NoError(t, thing.AddProperty("specific", number(), 1))
	require.NoError(t, thing.AddProperty("other", number(), 2))
	require.NoError(t, thing.SetPropertyReadHandler(Wildcard, func(ctx context.Context) (any, error) { return 100, nil }))
	require.NoError(t, thing.SetPropertyReadHandler("specific", func(ctx context.Context) (any, error) { return 10, nil }))

	v, err := thing.ReadProperty(ctx, "specific")
	require.NoError(t, err)
	assert.Equal(t, 10.0, v)
	v, err = thing.ReadProperty(ctx, "other")
	require.NoError(t, err)
	assert.Equal(t, 100.0, v)

	// clearing the specific handler falls back to the wildcard
	require.NoError(t, thing.SetPropertyReadHandler("specific", nil))
	v, err = thing.ReadProperty(ctx, "specific")
	require.NoError(t, err)
	assert.Equal(t, 100.0, v)

	var notFound *NotFoundError
	assert.ErrorAs(t, thing.SetPropertyReadHandler("missing", nil), &notFound)
}

func TestHandlerFailure(t *testing.T) {
	s := newTestServient(t)
	thing := produce(t, s, "failing")
	ctx := context.Background()

	p := number()
	p.Observable = true
	require.NoError(t, thing.AddProperty("level", p, 1))

	cause := errors.New("device unreachable")
	calls := 0
	require.NoError(t, thing.SetPropertyWriteHandler("level", func(ctx context.Context, value any) error {
		calls++
		return cause
	}))
	var notified bool
	_, err := thing.OnPropertyChange("level", func(any) { notified = true })
	require.NoError(t, err)

	err = thing.WriteProperty(ctx, "level", 2)
	var handlerErr *HandlerError
	require.ErrorAs(t, err, &handlerErr)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, KindProperty, handlerErr.Kind)
	assert.Equal(t, 1, calls)
	assert.False(t, notified)

	v, err := thing.ReadProperty(ctx, "level")
	require.NoError(t, err)
	assert.Equal(t, 1.0, v)
}

func TestActions(t *testing.T) {
	s := newTestServient(t)
	thing := produce(t, s, "actions")
	ctx := context.Background()

	require.NoError(t, thing.AddAction("double", wot.ActionAffordance{
		Input:  &wot.DataSchema{DataType: wot.DataTypeNumber},
		Output: &wot.DataSchema{DataType: wot.DataTypeNumber},
	}))
	require.NoError(t, thing.AddAction("fire", wot.ActionAffordance{}))
	require.NoError(t, thing.AddAction("broken", wot.ActionAffordance{Output: &wot.DataSchema{DataType: wot.DataTypeString}}))
	require.NoError(t, thing.SetActionHandler(Wildcard, func(ctx context.Context, input any) (any, error) {
		if f, ok := input.(float64); ok {
			return f * 2, nil
		}
		return 42, nil
	}))

	t.Run("output", func(t *testing.T) {
		out, err := thing.InvokeAction(ctx, "double", 4)
		require.NoError(t, err)
		assert.Equal(t, 8.0, out)
	})

	t.Run("invalid input", func(t *testing.T) {
		_, err := thing.InvokeAction(ctx, "double", "4")
		var violation *SchemaViolationError
		assert.ErrorAs(t, err, &violation)
	})

	t.Run("no input accepted", func(t *testing.T) {
		_, err := thing.InvokeAction(ctx, "fire", 1)
		var violation *SchemaViolationError
		assert.ErrorAs(t, err, &violation)
	})

	t.Run("no output schema resolves to nil", func(t *testing.T) {
		out, err := thing.InvokeAction(ctx, "fire", nil)
		require.NoError(t, err)
		assert.Nil(t, out)
	})

	t.Run("output violating schema", func(t *testing.T) {
		_, err := thing.InvokeAction(ctx, "broken", nil)
		var violation *SchemaViolationError
		assert.ErrorAs(t, err, &violation)
	})

	t.Run("unknown action", func(t *testing.T) {
		_, err := thing.InvokeAction(ctx, "missing", nil)
		var notFound *NotFoundError
		assert.ErrorAs(t, err, &notFound)
	})

	t.Run("cancelled context", func(t *testing.T) {
		cancelled, cancel := context.WithCancel(ctx)
		cancel()
		_, err := thing.InvokeAction(cancelled, "double", 1)
		var cancelledErr *CancelledError
		assert.ErrorAs(t, err, &cancelledErr)
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestObservability(t *testing.T) {
	s := newTestServient(t)
	thing := produce(t, s, "observe")

	require.NoError(t, thing.AddProperty("plain", number(), 0))
	_, err := thing.OnPropertyChange("plain", func(any) {})
	var notAllowed *NotAllowedError
	assert.ErrorAs(t, err, &notAllowed)

	_, err = thing.OnPropertyChange("missing", func(any) {})
	var notFound *NotFoundError
	assert.ErrorAs(t, err, &notFound)

	_, err = thing.OnEvent("missing", func(any) {})
	assert.ErrorAs(t, err, &notFound)
}

func TestLifecycle(t *testing.T) {
	advertiser := &recordingAdvertiser{}
	s := newTestServient(t, WithAdvertiser(advertiser))
	thing := produce(t, s, "lifecycle")
	ctx := context.Background()

	require.NoError(t, thing.AddProperty("p", number(), 1))
	require.NoError(t, thing.Expose())
	assert.True(t, thing.Exposed())
	assert.Equal(t, []string{"advertise " + thing.ID()}, advertiser.calls())

	// changes of an exposed Thing are advertised again
	require.NoError(t, thing.AddEvent("e", wot.EventAffordance{}))
	assert.Len(t, advertiser.calls(), 2)

	var tdChanges []TDChange
	_, err := thing.OnTDChange(func(c TDChange) { tdChanges = append(tdChanges, c) })
	require.NoError(t, err)
	require.NoError(t, thing.RemoveEvent("e"))
	require.Len(t, tdChanges, 1)
	assert.Equal(t, TDChange{ChangeType: KindEvent, Method: MethodRemove, Name: "e"}, tdChanges[0])

	require.NoError(t, thing.Destroy())
	assert.Contains(t, advertiser.calls(), "withdraw "+thing.ID())
	_, err = s.Thing(thing.ID())
	var notFound *NotFoundError
	assert.ErrorAs(t, err, &notFound)

	var destroyed *DestroyedError
	_, err = thing.ReadProperty(ctx, "p")
	assert.ErrorAs(t, err, &destroyed)
	assert.ErrorAs(t, thing.WriteProperty(ctx, "p", 2), &destroyed)
	assert.ErrorAs(t, thing.EmitEvent("e", nil), &destroyed)

	var notAllowed *NotAllowedError
	assert.ErrorAs(t, thing.AddProperty("q", number(), nil), &notAllowed)
	assert.ErrorAs(t, thing.RemoveProperty("p"), &notAllowed)

	assert.NoError(t, thing.Destroy())
}

func TestListenerPanicIsIsolated(t *testing.T) {
	s := newTestServient(t)
	thing := produce(t, s, "panics")
	require.NoError(t, thing.AddEvent("tick", wot.EventAffordance{Data: &wot.DataSchema{DataType: wot.DataTypeInteger}}))

	var received []any
	_, err := thing.OnEvent("tick", func(any) { panic("listener bug") })
	require.NoError(t, err)
	_, err = thing.OnEvent("tick", func(v any) { received = append(received, v) })
	require.NoError(t, err)

	require.NoError(t, thing.EmitEvent("tick", 1))
	assert.Equal(t, []any{1.0}, received)

	var violation *SchemaViolationError
	assert.ErrorAs(t, thing.EmitEvent("tick", 1.5), &violation)
}

func TestProduce(t *testing.T) {
	s := newTestServient(t)

	_, err := s.Produce(wot.ThingDescription{})
	var violation *SchemaViolationError
	assert.ErrorAs(t, err, &violation)

	model := wot.ThingDescription{
		ID:    "urn:example:model",
		Title: "model",
		Properties: map[string]wot.PropertyAffordance{
			"on": {DataSchema: wot.DataSchema{DataType: wot.DataTypeBoolean}},
		},
		Actions: map[string]wot.ActionAffordance{"toggle": {}},
		Events:  map[string]wot.EventAffordance{"flipped": {}},
	}
	thing, err := s.Produce(model)
	require.NoError(t, err)
	assert.Equal(t, "urn:example:model", thing.ID())

	td := thing.TD()
	assert.Contains(t, td.Properties, "on")
	assert.Contains(t, td.Actions, "toggle")
	assert.Contains(t, td.Events, "flipped")

	_, err = s.Produce(model)
	var exists *AlreadyExistsError
	assert.ErrorAs(t, err, &exists)

	assert.Len(t, s.Things(), 1)
}

func TestTraceHook(t *testing.T) {
	var mu sync.Mutex
	var states []RequestState
	s := newTestServient(t, WithTraceHook(func(tr Trace) {
		mu.Lock()
		states = append(states, tr.State)
		mu.Unlock()
	}))
	thing := produce(t, s, "traced")
	require.NoError(t, thing.AddProperty("p", number(), 1))

	require.NoError(t, thing.WriteProperty(context.Background(), "p", 2))
	assert.Equal(t, []RequestState{StateReceived, StateValidating, StateExecuting, StateCompleted}, states)

	states = nil
	assert.Error(t, thing.WriteProperty(context.Background(), "p", "x"))
	assert.Equal(t, []RequestState{StateReceived, StateValidating, StateFailed}, states)
}

type recordingAdvertiser struct {
	mu  sync.Mutex
	log []string
}

func (a *recordingAdvertiser) Advertise(td wot.ThingDescription) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.log = append(a.log, "advertise "+td.ID)
	return nil
}

func (a *recordingAdvertiser) Withdraw(id string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.log = append(a.log, "withdraw "+id)
	return nil
}

func (a *recordingAdvertiser) calls() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.log...)
}

func TestHandlerPanic(t *testing.T) {
	var mu sync.Mutex
	var failed []Trace
	s := newTestServient(t, WithTraceHook(func(tr Trace) {
		if tr.State == StateFailed {
			mu.Lock()
			failed = append(failed, tr)
			mu.Unlock()
		}
	}))
	thing := produce(t, s, "unstable")
	ctx := context.Background()
	require.NoError(t, thing.AddProperty("level", number(), 1))
	require.NoError(t, thing.AddAction("reset", wot.ActionAffordance{}))

	t.Run("write", func(t *testing.T) {
		unplugged := false
		require.NoError(t, thing.SetPropertyWriteHandler("level", func(ctx context.Context, value any) error {
			if !unplugged {
				unplugged = true
				panic("device unplugged")
			}
			return nil
		}))

		err := thing.WriteProperty(ctx, "level", 2)
		var handlerErr *HandlerError
		require.ErrorAs(t, err, &handlerErr)
		assert.Equal(t, KindProperty, handlerErr.Kind)
		assert.Contains(t, err.Error(), "device unplugged")

		done := make(chan error, 1)
		go func() { done <- thing.WriteProperty(ctx, "level", 3) }()
		select {
		case err := <-done:
			require.NoError(t, err)
		case <-time.After(time.Second):
			t.Fatal("write blocked after a panicking handler")
		}
		require.NoError(t, thing.SetPropertyWriteHandler("level", nil))
	})

	t.Run("read", func(t *testing.T) {
		require.NoError(t, thing.SetPropertyReadHandler("level", func(ctx context.Context) (any, error) {
			panic("sensor gone")
		}))
		_, err := thing.ReadProperty(ctx, "level")
		var handlerErr *HandlerError
		require.ErrorAs(t, err, &handlerErr)

		require.NoError(t, thing.SetPropertyReadHandler("level", nil))
		v, err := thing.ReadProperty(ctx, "level")
		require.NoError(t, err)
		assert.Equal(t, 3.0, v)
	})

	t.Run("action", func(t *testing.T) {
		require.NoError(t, thing.SetActionHandler("reset", func(ctx context.Context, input any) (any, error) {
			panic("motor stalled")
		}))
		_, err := thing.InvokeAction(ctx, "reset", nil)
		var handlerErr *HandlerError
		require.ErrorAs(t, err, &handlerErr)
		assert.Equal(t, KindAction, handlerErr.Kind)
	})

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, failed, 3)
	for _, tr := range failed {
		var handlerErr *HandlerError
		assert.ErrorAs(t, tr.Err, &handlerErr)
	}
}

func TestDefinitionsAreCopied(t *testing.T) {
	s := newTestServient(t)
	thing := produce(t, s, "limits")
	ctx := context.Background()

	_, err := thing.OnTDChange(func(change TDChange) {
		if a, ok := change.NewDescription.(wot.PropertyAffordance); ok && a.NumberSchema != nil && a.Maximum != nil {
			*a.Maximum = -1
		}
	})
	require.NoError(t, err)

	max := 10.0
	affordance := wot.PropertyAffordance{DataSchema: wot.DataSchema{
		DataType:     wot.DataTypeNumber,
		NumberSchema: &wot.NumberSchema{Maximum: &max},
	}}
	require.NoError(t, thing.AddProperty("limit", affordance, 1))
	max = 0

	require.NoError(t, thing.WriteProperty(ctx, "limit", 5))
	var violation *SchemaViolationError
	assert.ErrorAs(t, thing.WriteProperty(ctx, "limit", 11), &violation)

	td := thing.TD()
	require.NotNil(t, td.Properties["limit"].NumberSchema)
	require.NotNil(t, td.Properties["limit"].Maximum)
	assert.Equal(t, 10.0, *td.Properties["limit"].Maximum)
}

func TestNotificationsFollowWrites(t *testing.T) {
	s := newTestServient(t)
	thing := produce(t, s, "meter")
	ctx := context.Background()

	p := number()
	p.Observable = true
	require.NoError(t, thing.AddProperty("level", p, 0))

	var mu sync.Mutex
	var last any
	_, err := thing.OnPropertyChange("level", func(value any) {
		mu.Lock()
		last = value
		mu.Unlock()
	})
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 1; i <= 20; i++ {
		wg.Add(1)
		go func(v int) {
			defer wg.Done()
			assert.NoError(t, thing.WriteProperty(ctx, "level", v))
		}(i)
	}
	wg.Wait()

	v, err := thing.ReadProperty(ctx, "level")
	require.NoError(t, err)
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, v, last)
}

func TestListenerWritesSameProperty(t *testing.T) {
	s := newTestServient(t)
	thing := produce(t, s, "follower")
	ctx := context.Background()

	p := number()
	p.Observable = true
	require.NoError(t, thing.AddProperty("level", p, 0))

	var notified []any
	_, err := thing.OnPropertyChange("level", func(value any) {
		notified = append(notified, value)
		if value == 1.0 {
			assert.NoError(t, thing.WriteProperty(ctx, "level", 2))
		}
	})
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- thing.WriteProperty(ctx, "level", 1) }()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("write from a change listener blocked")
	}
	assert.Equal(t, []any{1.0, 2.0}, notified)
}

func TestReadKeepsNewerWrite(t *testing.T) {
	s := newTestServient(t)
	thing := produce(t, s, "slow")
	ctx := context.Background()
	require.NoError(t, thing.AddProperty("level", number(), 1))

	t.Run("concurrent write", func(t *testing.T) {
		entered := make(chan struct{})
		release := make(chan struct{})
		require.NoError(t, thing.SetPropertyReadHandler("level", func(ctx context.Context) (any, error) {
			close(entered)
			<-release
			return 1, nil
		}))

		read := make(chan any, 1)
		go func() {
			v, err := thing.ReadProperty(ctx, "level")
			assert.NoError(t, err)
			read <- v
		}()
		<-entered
		require.NoError(t, thing.WriteProperty(ctx, "level", 2))
		close(release)
		assert.Equal(t, 1.0, <-read)

		require.NoError(t, thing.SetPropertyReadHandler("level", nil))
		v, err := thing.ReadProperty(ctx, "level")
		require.NoError(t, err)
		assert.Equal(t, 2.0, v)
	})

	t.Run("read refreshes cache", func(t *testing.T) {
		require.NoError(t, thing.SetPropertyReadHandler("level", func(ctx context.Context) (any, error) {
			return 7, nil
		}))
		_, err := thing.ReadProperty(ctx, "level")
		require.NoError(t, err)

		require.NoError(t, thing.SetPropertyReadHandler("level", nil))
		v, err := thing.ReadProperty(ctx, "level")
		require.NoError(t, err)
		assert.Equal(t, 7.0, v)
	})
}
