package enums

// OutboxAggregateType names the entity an outbox row describes.
type OutboxAggregateType string

// OutboxEventType names the change recorded in an outbox row. Event types are past
// tense and scoped to their aggregate.
type OutboxEventType string

const (
	AggregateSale OutboxAggregateType = "sale"

	EventSaleCreated OutboxEventType = "sale_created"
)

var outboxEventAggregates = map[OutboxEventType]OutboxAggregateType{
	EventSaleCreated: AggregateSale,
}

func (a OutboxAggregateType) IsValid() bool {
	for _, agg := range outboxEventAggregates {
		if agg == a {
			return true
		}
	}
	return false
}

func (e OutboxEventType) IsValid() bool {
	_, ok := outboxEventAggregates[e]
	return ok
}

// Aggregate returns the aggregate type the event is emitted for, or "" when unknown.
func (e OutboxEventType) Aggregate() OutboxAggregateType {
	return outboxEventAggregates[e]
}
