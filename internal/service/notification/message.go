// Package notification 把配送请求事件转换为短信通知。
package notification

import (
	"fmt"

	"agrinexus/internal/service/delivery/domain"
)

// Notification 是一条待发送的短信，To 是接收方的用户 ID，由短信网关解析号码
type Notification struct {
	To      string
	Message string
}

// Compose 根据事件决定通知谁、发什么。不需要通知的事件返回 false。
func Compose(evt domain.DeliveryRequestEvent) (Notification, bool) {
	ref := shortID(evt.RequestID)
	switch {
	case evt.Type == domain.EventCreated:
		return Notification{
			To:      evt.SellerID,
			Message: fmt.Sprintf("New delivery request %s on your market card. Open AgriNexus to accept or reject it.", ref),
		}, true
	case evt.Type != domain.EventStatusChanged:
		return Notification{}, false
	}

	var n Notification
	switch evt.NewStatus {
	case domain.StatusAccepted:
		n = Notification{To: evt.BuyerID, Message: fmt.Sprintf("Your delivery request %s was accepted by the seller.", ref)}
	case domain.StatusRejected:
		n = Notification{To: evt.BuyerID, Message: fmt.Sprintf("Your delivery request %s was rejected by the seller.", ref)}
	case domain.StatusCompleted:
		n = Notification{To: evt.BuyerID, Message: fmt.Sprintf("Delivery request %s is marked completed.", ref)}
	case domain.StatusCancelled:
		n = Notification{To: evt.SellerID, Message: fmt.Sprintf("The buyer cancelled delivery request %s.", ref)}
	default:
		return Notification{}, false
	}
	if evt.Note != "" {
		n.Message += " Note: " + evt.Note
	}
	return n, true
}

// shortID 短信里只放前 8 位
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
