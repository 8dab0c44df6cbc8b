package externalapi

// Chain event names
const (
	HeadChangedEventName = "head-changed"
	ReorgEventName       = "reorg"
	BlockAddedEventName  = "block"
)

// ChainEvent is an event fired by the chain after a block was committed
type ChainEvent interface {
	EventName() string
}

// ChainEventHandler handles chain events
type ChainEventHandler func(event ChainEvent)

// HeadChangedEvent is fired whenever the head of the main chain moves
type HeadChangedEvent struct {
	Block       *DomainBlock
	Hash        *DomainHash
	Rebranching bool
}

// EventName implements ChainEvent
func (*HeadChangedEvent) EventName() string { return HeadChangedEventName }

// ReorgDirection tells whether a block was applied or reverted
type ReorgDirection int

// ReorgDirection values
const (
	ReorgDirectionForward ReorgDirection = iota
	ReorgDirectionRevert
)

func (d ReorgDirection) String() string {
	if d == ReorgDirectionRevert {
		return "revert"
	}
	return "forward"
}

// ReorgStep is a single block applied to or reverted from the main chain
type ReorgStep struct {
	Block     *DomainBlock
	Hash      *DomainHash
	Direction ReorgDirection
}

// ReorgEvent is fired on rebranch. Steps hold the reverted blocks from
// the old head down to the fork point, followed by the applied blocks from
// the fork point up to the new head.
type ReorgEvent struct {
	Steps []*ReorgStep
}

// EventName implements ChainEvent
func (*ReorgEvent) EventName() string { return ReorgEventName }

// BlockAddedEvent is fired for every block that was stored
type BlockAddedEvent struct {
	Block  *DomainBlock
	Hash   *DomainHash
	Result PushResult
}

// EventName implements ChainEvent
func (*BlockAddedEvent) EventName() string { return BlockAddedEventName }
