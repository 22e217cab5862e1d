package resource

// Handle is an opaque reference to an entry in a table.
// Handle 0 is reserved and always invalid.
type Handle uint32

// Kind tells whether an entry owns a strong or a weak unit.
type Kind uint8

const (
	KindStrong Kind = iota + 1
	KindWeak
)

func (k Kind) String() string {
	switch k {
	case KindStrong:
		return "strong"
	case KindWeak:
		return "weak"
	default:
		return "invalid"
	}
}

// Event types for handle lifecycle notifications.
type EventType uint8

const (
	EventCreated EventType = iota
	EventDropped
	EventBorrowed
	EventBorrowReturned
)

func (e EventType) String() string {
	switch e {
	case EventCreated:
		return "created"
	case EventDropped:
		return "dropped"
	case EventBorrowed:
		return "borrowed"
	case EventBorrowReturned:
		return "borrow-returned"
	default:
		return "unknown"
	}
}

// Event represents a handle lifecycle event. Block is the control block
// address the handle refers to.
type Event struct {
	Block  uintptr
	Handle Handle
	Kind   Kind
	Type   EventType
}

// Observer receives notifications about handle lifecycle events.
// Observers are called synchronously and must not call back into the table.
type Observer interface {
	OnResourceEvent(Event)
}
