package kafka

// Topics для Kafka
const (
	TopicOrderEvents = "shop.order.events"
)

// Kafka headers событий
const (
	HeaderEventType = "x-event-type"
	HeaderEventID   = "x-event-id"
)
