package events

// Queue names are the routing contract between producers and consumers.
const (
	QueueSearchIndex       = "product_search_index"
	QueueOrderRefSync      = "product_updates_for_order"
	QueueOrderEvents       = "order_events"
	QueueStockCompensation = "stock_compensation"

	QueueUserCreated = string(UserCreated)
	QueueUserUpdated = string(UserUpdated)
	QueueUserDeleted = string(UserDeleted)
)

// UserQueues lists the user lifecycle queues, one per kind.
var UserQueues = []string{QueueUserCreated, QueueUserUpdated, QueueUserDeleted}
