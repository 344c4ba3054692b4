// Package metrics 定义了所有服务共用的 Prometheus 指标。
// 标签只使用低基数的枚举值，不放用户 ID / 请求 ID。
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// DeliveryTransitionsTotal 按起止状态统计投递请求的状态流转。
	DeliveryTransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "agrinexus_delivery_transitions_total",
		Help: "Delivery request status transitions, by from and to status.",
	}, []string{"from", "to"})

	// DeliveryGuardRejectionsTotal 统计因同一请求已有变更在途而被拒绝的次数。
	DeliveryGuardRejectionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "agrinexus_delivery_guard_rejections_total",
		Help: "Mutations rejected because another mutation on the same delivery request was in flight.",
	})

	// ShipmentUpdatesTotal 按处理结果统计承运商推送的物流更新。
	ShipmentUpdatesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "agrinexus_shipment_updates_total",
		Help: "Carrier shipment updates, by result (created, applied, ignored, rejected).",
	}, []string{"result"})

	// NotificationsSentTotal 按结果统计短信通知。
	NotificationsSentTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "agrinexus_notifications_sent_total",
		Help: "Outbound notifications, by result (sent, failed, skipped).",
	}, []string{"result"})

	// MarketPostingsCreatedTotal 统计新建的市场卡片与农产品挂牌。
	MarketPostingsCreatedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "agrinexus_market_postings_created_total",
		Help: "Market postings created, by kind (card, listing).",
	}, []string{"kind"})

	// PushConnections 是推送网关当前的 WebSocket 连接数。
	PushConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "agrinexus_push_connections",
		Help: "Currently connected WebSocket clients on this gateway node.",
	})
)
