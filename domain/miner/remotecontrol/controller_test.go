package remotecontrol

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/nipopow/nipowd/domain/consensus/model/externalapi"
	"github.com/nipopow/nipowd/domain/consensus/utils/observable"
	"github.com/nipopow/nipowd/domain/miner"
	"github.com/pkg/errors"
)

type fakeMiner struct {
	sync.Mutex
	working  bool
	hashrate float64
	events   *observable.Observable
}

func newFakeMiner() *fakeMiner {
	return &fakeMiner{events: observable.New()}
}

func (m *fakeMiner) Address() externalapi.Address { return externalapi.Address{1, 2, 3} }

func (m *fakeMiner) Hashrate() float64 {
	m.Lock()
	defer m.Unlock()
	return m.hashrate
}

func (m *fakeMiner) IsWorking() bool {
	m.Lock()
	defer m.Unlock()
	return m.working
}

func (m *fakeMiner) StartWork() {
	m.Lock()
	if m.working {
		m.Unlock()
		return
	}
	m.working = true
	m.hashrate = 1000
	m.Unlock()
	m.fire(&miner.Event{Name: miner.StartedEventName})
}

func (m *fakeMiner) StopWork() {
	m.Lock()
	if !m.working {
		m.Unlock()
		return
	}
	m.working = false
	m.hashrate = 0
	m.Unlock()
	m.fire(&miner.Event{Name: miner.StoppedEventName})
}

func (m *fakeMiner) fire(event *miner.Event) {
	m.events.Fire(event.Name, event)
}

func (m *fakeMiner) Subscribe(eventName string, handler miner.EventHandler) uint64 {
	return m.events.Subscribe(eventName, func(payload interface{}) {
		handler(payload.(*miner.Event))
	})
}

func (m *fakeMiner) Unsubscribe(id uint64) {
	m.events.Unsubscribe(id)
}

func runController(t *testing.T, eventBufferSize int) (*Controller, *fakeMiner, func()) {
	m := newFakeMiner()
	controller := New(m, eventBufferSize)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		controller.Run(ctx)
	}()

	deadline := time.Now().Add(5 * time.Second)
	for {
		controller.RLock()
		running := controller.running
		controller.RUnlock()
		if running {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("The controller did not start running")
		}
		time.Sleep(time.Millisecond)
	}

	return controller, m, func() {
		cancel()
		<-done
	}
}

func receiveEvent(t *testing.T, listener *Listener) *miner.Event {
	select {
	case event, ok := <-listener.Events():
		if !ok {
			t.Fatalf("The listener was closed")
		}
		return event
	case <-time.After(5 * time.Second):
		t.Fatalf("Timed out waiting for an event")
	}
	return nil
}

func TestControllerCommands(t *testing.T) {
	controller, m, stop := runController(t, 10)
	defer stop()
	listener := controller.AddListener()

	err := controller.Execute(context.Background(), StartWorkCommand)
	if err != nil {
		t.Fatalf("Execute(%s): %+v", StartWorkCommand, err)
	}
	if !m.IsWorking() {
		t.Fatalf("The miner did not start working")
	}
	state := controller.State()
	if !state.Working || state.Hashrate != 1000 || state.Address != m.Address() {
		t.Fatalf("Unexpected state %+v", state)
	}
	if event := receiveEvent(t, listener); event.Name != miner.StartedEventName {
		t.Fatalf("Expected a %s event, got %s", miner.StartedEventName, event.Name)
	}

	m.fire(&miner.Event{Name: miner.HashrateChangedEventName, Hashrate: 2000})
	if event := receiveEvent(t, listener); event.Name != miner.HashrateChangedEventName || event.Hashrate != 2000 {
		t.Fatalf("Expected a %s event, got %+v", miner.HashrateChangedEventName, event)
	}

	done := make(chan error, 1)
	controller.Commands() <- &Command{Name: StopWorkCommand, Done: done}
	err = <-done
	if err != nil {
		t.Fatalf("%s: %+v", StopWorkCommand, err)
	}
	if m.IsWorking() || controller.State().Working {
		t.Fatalf("The miner did not stop working")
	}
	if event := receiveEvent(t, listener); event.Name != miner.StoppedEventName {
		t.Fatalf("Expected a %s event, got %s", miner.StoppedEventName, event.Name)
	}

	err = controller.Execute(context.Background(), "self-destruct")
	if !errors.Is(err, ErrUnknownCommand) {
		t.Fatalf("Expected ErrUnknownCommand, got %v", err)
	}
}

func TestControllerDropsEventsOfFullListeners(t *testing.T) {
	controller, m, stop := runController(t, 2)
	defer stop()
	slowListener := controller.AddListener()

	for i := 0; i < 5; i++ {
		m.fire(&miner.Event{Name: miner.HashrateChangedEventName, Hashrate: float64(i)})
	}

	for i := 0; i < 2; i++ {
		event := receiveEvent(t, slowListener)
		if event.Hashrate != float64(i) {
			t.Fatalf("Expected the first events to be delivered in order, got hashrate %f at %d", event.Hashrate, i)
		}
	}
	select {
	case event := <-slowListener.Events():
		t.Fatalf("Expected the events beyond the buffer to be dropped, got %+v", event)
	default:
	}
}

func TestControllerClosesListenersOnShutdown(t *testing.T) {
	controller, m, stop := runController(t, 10)
	listener := controller.AddListener()
	removedListener := controller.AddListener()
	controller.RemoveListener(removedListener)
	if _, ok := <-removedListener.Events(); ok {
		t.Fatalf("Expected a removed listener to be closed")
	}

	err := controller.Execute(context.Background(), StartWorkCommand)
	if err != nil {
		t.Fatalf("Execute: %+v", err)
	}
	stop()

	if m.IsWorking() {
		t.Fatalf("Expected the miner to be stopped when the controller stops")
	}
	var names []string
	for event := range listener.Events() {
		names = append(names, event.Name)
	}
	if len(names) != 2 || names[0] != miner.StartedEventName || names[1] != miner.StoppedEventName {
		t.Fatalf("Expected started and stopped events before the listener closed, got %v", names)
	}

	err = controller.Execute(context.Background(), StartWorkCommand)
	if !errors.Is(err, ErrNotRunning) {
		t.Fatalf("Expected ErrNotRunning, got %v", err)
	}
}

func TestControllerCommandsRacingShutdown(t *testing.T) {
	controller, _, stop := runController(t, 10)

	const numCallers = 20
	results := make(chan error, numCallers)
	for i := 0; i < numCallers; i++ {
		go func() {
			results <- controller.Execute(context.Background(), StartWorkCommand)
		}()
	}
	stop()

	for i := 0; i < numCallers; i++ {
		select {
		case err := <-results:
			if err != nil && !errors.Is(err, ErrNotRunning) {
				t.Fatalf("Expected nil or ErrNotRunning, got %v", err)
			}
		case <-time.After(5 * time.Second):
			t.Fatalf("Execute did not return after the controller stopped")
		}
	}

	listener := controller.AddListener()
	select {
	case _, ok := <-listener.Events():
		if ok {
			t.Fatalf("Expected no events on a listener added after shutdown")
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("A listener added after shutdown was not closed")
	}
	controller.RemoveListener(listener)
}
