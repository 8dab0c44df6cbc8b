package remotecontrol

import (
	"context"
	"sync"

	"github.com/nipopow/nipowd/domain/consensus/model/externalapi"
	"github.com/nipopow/nipowd/domain/consensus/utils/observable"
	"github.com/nipopow/nipowd/domain/miner"
	"github.com/pkg/errors"
)

// Command names
const (
	StartWorkCommand = "start-work"
	StopWorkCommand  = "stop-work"
)

// ErrUnknownCommand is returned for commands other than start-work and stop-work
var ErrUnknownCommand = errors.New("unknown miner command")

// ErrNotRunning is returned when a command is executed while Run is not
// reading commands
var ErrNotRunning = errors.New("miner controller is not running")

// Miner is the part of miner.Miner the controller drives
type Miner interface {
	Address() externalapi.Address
	Hashrate() float64
	IsWorking() bool
	StartWork()
	StopWork()
	Subscribe(eventName string, handler miner.EventHandler) uint64
	Unsubscribe(id uint64)
}

// Command asks the controller to start or stop the miner. Done, if set,
// receives the outcome once the command was carried out.
type Command struct {
	Name string
	Done chan<- error
}

// State is a snapshot of the miner
type State struct {
	Address  externalapi.Address
	Hashrate float64
	Working  bool
}

// Listener receives the miner events through a buffered channel. Events
// that do not fit in the buffer are dropped.
type Listener struct {
	id     uint64
	events chan *miner.Event
}

// Events returns the channel the events are delivered on. It is closed
// when the listener is removed or the controller stops running.
func (l *Listener) Events() <-chan *miner.Event {
	return l.events
}

// Controller is the remote-control boundary of a miner. Commands are
// carried out one at a time by Run.
type Controller struct {
	miner           Miner
	commands        chan *Command
	eventBufferSize int

	sync.RWMutex
	listeners      map[uint64]*Listener
	nextListenerID uint64
	running        bool
	stopped        bool
	quit           chan struct{}
}

// New creates a controller for m. Every listener gets a buffer of
// eventBufferSize events.
func New(m Miner, eventBufferSize int) *Controller {
	if eventBufferSize < 1 {
		eventBufferSize = 1
	}
	return &Controller{
		miner:           m,
		commands:        make(chan *Command),
		eventBufferSize: eventBufferSize,
		listeners:       make(map[uint64]*Listener),
	}
}

// Commands returns the channel Run reads commands from
func (c *Controller) Commands() chan<- *Command {
	return c.commands
}

// Execute sends the command name to Run and waits for it to be carried out
func (c *Controller) Execute(ctx context.Context, name string) error {
	c.RLock()
	running, quit := c.running, c.quit
	c.RUnlock()
	if !running {
		return ErrNotRunning
	}

	done := make(chan error, 1)
	select {
	case c.commands <- &Command{Name: name, Done: done}:
	case <-quit:
		return ErrNotRunning
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-done:
		return err
	case <-quit:
		// Run answers every command it took before returning
		select {
		case err := <-done:
			return err
		default:
			return ErrNotRunning
		}
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run forwards the miner events to the listeners and carries out commands
// until ctx ends. The miner is stopped and every listener is removed
// before Run returns.
func (c *Controller) Run(ctx context.Context) {
	c.Lock()
	c.running = true
	c.stopped = false
	c.quit = make(chan struct{})
	c.Unlock()

	subscriptionID := c.miner.Subscribe(observable.Wildcard, c.notify)
	defer func() {
		c.miner.Unsubscribe(subscriptionID)
		c.miner.StopWork()
		c.removeAllListeners()
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case command := <-c.commands:
			err := c.execute(command.Name)
			if err != nil {
				log.Warnf("Miner command %q failed: %s", command.Name, err)
			}
			if command.Done != nil {
				command.Done <- err
			}
		}
	}
}

func (c *Controller) execute(name string) error {
	switch name {
	case StartWorkCommand:
		c.miner.StartWork()
	case StopWorkCommand:
		c.miner.StopWork()
	default:
		return errors.Wrapf(ErrUnknownCommand, "%q", name)
	}
	log.Debugf("Executed miner command %q", name)
	return nil
}

// State returns the current state of the miner
func (c *Controller) State() State {
	return State{
		Address:  c.miner.Address(),
		Hashrate: c.miner.Hashrate(),
		Working:  c.miner.IsWorking(),
	}
}

// AddListener registers a new listener of the miner events. Once Run has
// returned the listener it returns is already closed.
func (c *Controller) AddListener() *Listener {
	c.Lock()
	defer c.Unlock()

	c.nextListenerID++
	listener := &Listener{
		id:     c.nextListenerID,
		events: make(chan *miner.Event, c.eventBufferSize),
	}
	if c.stopped {
		close(listener.events)
		return listener
	}
	c.listeners[listener.id] = listener
	return listener
}

// RemoveListener unregisters listener and closes its channel
func (c *Controller) RemoveListener(listener *Listener) {
	c.Lock()
	defer c.Unlock()

	if _, ok := c.listeners[listener.id]; !ok {
		return
	}
	close(listener.events)
	delete(c.listeners, listener.id)
}

func (c *Controller) removeAllListeners() {
	c.Lock()
	defer c.Unlock()

	c.running = false
	c.stopped = true
	close(c.quit)
	for id, listener := range c.listeners {
		close(listener.events)
		delete(c.listeners, id)
	}
}

func (c *Controller) notify(event *miner.Event) {
	c.RLock()
	defer c.RUnlock()

	for _, listener := range c.listeners {
		select {
		case listener.events <- event:
		default:
			log.Warnf("Dropped %s event for listener %d, its buffer is full", event.Name, listener.id)
		}
	}
}
