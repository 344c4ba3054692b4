package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"agrinexus/internal/pkg/mq"
	"agrinexus/internal/service/delivery/domain"
)

var shipmentUpdate domain.ShipmentUpdate

// shipmentUpdateCmd 模拟承运商推送一条物流更新，联调 shipment-tracker 时使用
var shipmentUpdateCmd = &cobra.Command{
	Use:   "shipment-update <delivery-request-id> <status>",
	Short: "Publish a carrier shipment update to the tracking topic",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		u := shipmentUpdate
		u.DeliveryRequestID = args[0]
		u.Status = domain.ShipmentStatus(args[1])
		if u.OccurredAt.IsZero() {
			u.OccurredAt = time.Now().UTC()
		}

		w := mq.NewKafkaWriter(cfg.Infra.Kafka.BrokerList(), domain.TopicShipmentTrackingUpdates)
		defer w.Close()
		if err := publishShipmentUpdate(cmd.Context(), w, u); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "published %s -> %s\n", u.DeliveryRequestID, u.Status)
		return nil
	},
}

func init() {
	shipmentUpdateCmd.Flags().StringVar(&shipmentUpdate.Carrier, "carrier", "", "Carrier name")
	shipmentUpdateCmd.Flags().StringVar(&shipmentUpdate.TrackingNumber, "tracking-number", "", "Carrier tracking number")
	shipmentUpdateCmd.Flags().StringVar(&shipmentUpdate.Location, "location", "", "Last known location")
}

// publishShipmentUpdate 校验后写入 Kafka，以请求 ID 作为 key 保证同一请求有序。
func publishShipmentUpdate(ctx context.Context, w mq.MessageWriter, u domain.ShipmentUpdate) error {
	if err := u.Validate(); err != nil {
		return err
	}
	body, err := json.Marshal(u)
	if err != nil {
		return err
	}
	return mq.ProduceMessage(ctx, w, []byte(u.DeliveryRequestID), body)
}
