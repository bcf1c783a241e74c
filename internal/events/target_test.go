package events

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func recorder(calls *[]string, name string) *Listener {
	return NewListener(func(ev Event) error {
		*calls = append(*calls, name+":"+ev.Type)
		return nil
	})
}

func TestTarget_FireOrder(t *testing.T) {
	var target Target
	var calls []string

	target.On(All, recorder(&calls, "wild"))
	target.On("save", recorder(&calls, "first"))
	target.On("save", recorder(&calls, "second"))
	target.On("load", recorder(&calls, "other"))

	require.NoError(t, target.Fire("save", nil))

	assert.Equal(t, []string{"first:save", "second:save", "wild:save"}, calls)
}

func TestTarget_FirePassesData(t *testing.T) {
	var target Target
	var got Event

	target.On("msg", NewListener(func(ev Event) error {
		got = ev
		return nil
	}))

	require.NoError(t, target.Fire("msg", 42))
	assert.Equal(t, Event{Type: "msg", Data: 42}, got)
}

func TestTarget_DuplicatesAllowed(t *testing.T) {
	var target Target
	var calls []string
	l := recorder(&calls, "dup")

	target.On("x", l)
	target.On("x", l)
	require.NoError(t, target.Fire("x", nil))

	assert.Len(t, calls, 2)
	assert.Equal(t, 2, target.Count("x"))

	target.Off("x", l)
	assert.Equal(t, 1, target.Count("x"), "off removes only the first match")
}

func TestTarget_OffWithoutListenerClearsType(t *testing.T) {
	var target Target
	var calls []string

	target.On("x", recorder(&calls, "a"))
	target.On("x", recorder(&calls, "b"))
	target.On("y", recorder(&calls, "c"))

	target.Off("x", nil)
	require.NoError(t, target.Fire("x", nil))
	require.NoError(t, target.Fire("y", nil))

	assert.Equal(t, []string{"c:y"}, calls)
	assert.Equal(t, 0, target.Count("x"))
}

func TestTarget_OffUnknownIsNoop(t *testing.T) {
	var target Target

	assert.NotPanics(t, func() {
		target.Off("missing", nil)
		target.Off("missing", NewListener(nil))
	})
}

func TestTarget_OneRunsOnce(t *testing.T) {
	var target Target
	var calls []string

	target.One("x", recorder(&calls, "once"))

	require.NoError(t, target.Fire("x", nil))
	require.NoError(t, target.Fire("x", nil))

	assert.Equal(t, []string{"once:x"}, calls)
	assert.Equal(t, 0, target.Count("x"))
}

func TestTarget_OneRemovableByOriginal(t *testing.T) {
	var target Target
	var calls []string
	l := recorder(&calls, "once")

	target.One("x", l)
	target.Off("x", l)
	require.NoError(t, target.Fire("x", nil))

	assert.Empty(t, calls)
}

func TestTarget_OneNotRetriggeredByReentrantFire(t *testing.T) {
	var target Target
	count := 0

	target.One("x", NewListener(func(ev Event) error {
		count++
		return target.Fire("x", nil)
	}))

	require.NoError(t, target.Fire("x", nil))
	assert.Equal(t, 1, count)
}

func TestTarget_OneDoesNotSkipFollowingListener(t *testing.T) {
	var target Target
	var calls []string

	target.One("x", recorder(&calls, "once"))
	target.On("x", recorder(&calls, "always"))

	require.NoError(t, target.Fire("x", nil))
	assert.Equal(t, []string{"once:x", "always:x"}, calls)
}

func TestTarget_ListenerAddedDuringFireWaits(t *testing.T) {
	var target Target
	var calls []string
	late := recorder(&calls, "late")

	target.On("x", NewListener(func(ev Event) error {
		calls = append(calls, "early:x")
		target.On("x", late)
		return nil
	}))

	require.NoError(t, target.Fire("x", nil))
	assert.Equal(t, []string{"early:x"}, calls)
}

func TestTarget_ListenerRemovedDuringFireIsSkipped(t *testing.T) {
	var target Target
	var calls []string
	victim := recorder(&calls, "victim")

	target.On("x", NewListener(func(ev Event) error {
		target.Off("x", victim)
		return nil
	}))
	target.On("x", victim)

	require.NoError(t, target.Fire("x", nil))
	assert.Empty(t, calls)
}

func TestTarget_ErrorStopsDispatch(t *testing.T) {
	var target Target
	var calls []string
	boom := errors.New("boom")

	target.On("x", NewListener(func(ev Event) error { return boom }))
	target.On("x", recorder(&calls, "after"))
	target.On(All, recorder(&calls, "wild"))

	err := target.Fire("x", nil)

	assert.ErrorIs(t, err, boom)
	assert.Empty(t, calls)
}

func TestTarget_FireAllRunsWildcardOnce(t *testing.T) {
	var target Target
	var calls []string

	target.On(All, recorder(&calls, "wild"))
	require.NoError(t, target.Fire(All, nil))

	assert.Equal(t, []string{"wild:all"}, calls)
}
