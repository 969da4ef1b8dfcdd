package eventbus_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/beezlebug/agentgraph/eventbus"
)

func TestSubscribe_OnlyReceivesMatchingEventType(t *testing.T) {
	bus := eventbus.New(nil)
	var toolEvents, allEvents []eventbus.Event
	bus.Subscribe(eventbus.ToolSelected, func(e eventbus.Event) { toolEvents = append(toolEvents, e) })
	bus.SubscribeAll(func(e eventbus.Event) { allEvents = append(allEvents, e) })

	bus.Emit(eventbus.Event{Type: eventbus.ToolSelected, AgentName: "scout"})
	bus.Emit(eventbus.Event{Type: eventbus.ErrorOccurred, AgentName: "scout"})

	require.Len(t, toolEvents, 1)
	assert.Equal(t, eventbus.ToolSelected, toolEvents[0].Type)
	assert.Len(t, allEvents, 2)
}

func TestEmit_FillsZeroTimestamp(t *testing.T) {
	bus := eventbus.New(nil)
	var got eventbus.Event
	bus.SubscribeAll(func(e eventbus.Event) { got = e })

	bus.Emit(eventbus.Event{Type: eventbus.AgentStarted})
	assert.False(t, got.Timestamp.IsZero())
}

func TestEmit_SubscriberPanicDoesNotStopOtherSubscribers(t *testing.T) {
	bus := eventbus.New(nil)
	var calledSecond bool
	bus.SubscribeAll(func(e eventbus.Event) { panic("boom") })
	bus.SubscribeAll(func(e eventbus.Event) { calledSecond = true })

	assert.NotPanics(t, func() {
		bus.Emit(eventbus.Event{Type: eventbus.MessageSent})
	})
	assert.True(t, calledSecond)
}

func TestSubscribe_MultipleListenersForSameTypeAllFire(t *testing.T) {
	bus := eventbus.New(nil)
	var count int
	bus.Subscribe(eventbus.LLMCallCompleted, func(e eventbus.Event) { count++ })
	bus.Subscribe(eventbus.LLMCallCompleted, func(e eventbus.Event) { count++ })

	bus.Emit(eventbus.Event{Type: eventbus.LLMCallCompleted})
	assert.Equal(t, 2, count)
}
