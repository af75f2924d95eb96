package events

import (
	"time"

	"github.com/asaskevich/EventBus"
	"go.uber.org/zap"
)

// Topics published by the order and inventory services. Subscribers must
// not assume delivery order across topics; events fire only after the
// owning database transaction has committed.
const (
	TopicOrderCreated       = "order.created"
	TopicOrderStatusChanged = "order.status_changed"
	TopicOrderCancelled     = "order.cancelled"
	TopicStockReserved      = "stock.reserved"
	TopicStockReleased      = "stock.released"
	TopicStockRestocked     = "stock.restocked"
	TopicStockLow           = "stock.low"
)

// OrderEvent is the payload for order.* topics.
type OrderEvent struct {
	OrderID     int64     `json:"order_id,string"`
	OrderNumber string    `json:"order_number"`
	FromStatus  string    `json:"from_status,omitempty"`
	ToStatus    string    `json:"to_status,omitempty"`
	OprName     string    `json:"opr_name,omitempty"`
	At          time.Time `json:"at"`
}

// StockEvent is the payload for stock.* topics.
type StockEvent struct {
	ProductID int64     `json:"product_id,string"`
	Sku       string    `json:"sku"`
	Quantity  int       `json:"quantity"`
	Remaining int       `json:"remaining"`
	At        time.Time `json:"at"`
}

var bus = EventBus.New()

// Bus returns the process-wide event bus.
func Bus() EventBus.Bus {
	return bus
}

// Subscribe registers fn for topic.
func Subscribe(topic string, fn interface{}) error {
	return bus.Subscribe(topic, fn)
}

// SubscribeAsync registers fn for topic with asynchronous delivery.
func SubscribeAsync(topic string, fn interface{}) error {
	return bus.SubscribeAsync(topic, fn, false)
}

// Unsubscribe removes fn from topic.
func Unsubscribe(topic string, fn interface{}) error {
	return bus.Unsubscribe(topic, fn)
}

// PublishOrder publishes an order event on topic.
func PublishOrder(topic string, evt OrderEvent) {
	if evt.At.IsZero() {
		evt.At = time.Now()
	}
	bus.Publish(topic, evt)
	zap.L().Debug("publish event",
		zap.String("topic", topic),
		zap.Int64("order_id", evt.OrderID),
		zap.String("order_number", evt.OrderNumber))
}

// PublishStock publishes a stock event on topic.
func PublishStock(topic string, evt StockEvent) {
	if evt.At.IsZero() {
		evt.At = time.Now()
	}
	bus.Publish(topic, evt)
	zap.L().Debug("publish event",
		zap.String("topic", topic),
		zap.Int64("product_id", evt.ProductID),
		zap.Int("remaining", evt.Remaining))
}

// WaitAsync blocks until all asynchronous handlers have completed.
func WaitAsync() {
	bus.WaitAsync()
}
