package shared

// AggregateRoot is an entity that records domain events as it mutates.
// Services collect the events after a successful save and hand them to the
// event bus.
type AggregateRoot interface {
	Entity
	AddDomainEvent(event DomainEvent)
	GetDomainEvents() []DomainEvent
	ClearDomainEvents()
}

// BaseAggregateRoot embeds the event buffer into an aggregate.
type BaseAggregateRoot struct {
	BaseEntity
	domainEvents []DomainEvent `gorm:"-"`
}

func NewBaseAggregateRoot() BaseAggregateRoot {
	return BaseAggregateRoot{BaseEntity: NewBaseEntity()}
}

func (a *BaseAggregateRoot) AddDomainEvent(event DomainEvent) {
	a.domainEvents = append(a.domainEvents, event)
}

func (a *BaseAggregateRoot) GetDomainEvents() []DomainEvent {
	return a.domainEvents
}

func (a *BaseAggregateRoot) ClearDomainEvents() {
	a.domainEvents = nil
}
