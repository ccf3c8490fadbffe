package events

// Publisher is satisfied by the broker producer.
type Publisher interface {
	Publish(queue, key string, v any)
}

// Outgoing is the publish-side shape of Event.
type Outgoing struct {
	Type Kind `json:"type"`
	Data any  `json:"data"`
}

// ProductPublisher emits product lifecycle events after the product store
// commits. The same change goes to two queues in two shapes.
type ProductPublisher struct {
	Out Publisher
}

func (pp ProductPublisher) Created(p SearchProduct) { pp.upsert(ProductCreated, p) }

func (pp ProductPublisher) Updated(p SearchProduct) { pp.upsert(ProductUpdated, p) }

func (pp ProductPublisher) Deleted(id string) {
	inactive := false
	pp.Out.Publish(QueueOrderRefSync, id, Outgoing{Type: ProductDeleted, Data: RefProduct{ID: id, IsActive: &inactive}})
	pp.Out.Publish(QueueSearchIndex, id, Outgoing{Type: ProductDeleted, Data: ProductID{ID: id}})
}

func (pp ProductPublisher) upsert(kind Kind, p SearchProduct) {
	active := p.Active()
	pp.Out.Publish(QueueOrderRefSync, p.ID, Outgoing{Type: kind, Data: RefProduct{ID: p.ID, Price: p.Price, IsActive: &active}})
	pp.Out.Publish(QueueSearchIndex, p.ID, Outgoing{Type: kind, Data: p})
}

// OrderPublisher emits order lifecycle events keyed by order id.
type OrderPublisher struct {
	Out Publisher
}

func (op OrderPublisher) Created(o OrderPayload) {
	op.Out.Publish(QueueOrderEvents, o.OrderID, Outgoing{Type: OrderCreated, Data: o})
}

func (op OrderPublisher) Cancelled(o OrderPayload) {
	op.Out.Publish(QueueOrderEvents, o.OrderID, Outgoing{Type: OrderCancelled, Data: o})
}
