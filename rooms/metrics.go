package rooms

import (
	"go.opentelemetry.io/otel/metric"

	intotel "github.com/wqfan/roomrelay/internal/otel"
)

var (
	// Room metrics
	roomsActive metric.Int64UpDownCounter

	// Membership metrics
	joinsTotal       metric.Int64Counter
	leavesTotal      metric.Int64Counter
	evictionsTotal   metric.Int64Counter
	disconnectsTotal metric.Int64Counter

	// Relay metrics
	relaysDelivered metric.Int64Counter
	relaysDropped   metric.Int64Counter

	// Notification metrics
	notificationsSent   metric.Int64Counter
	notificationsFailed metric.Int64Counter
)

func init() {
	f := intotel.NewFactory("roomrelay.rooms", intotel.PrefixRooms)

	f.Int64UpDownCounter(&roomsActive, "rooms.active",
		metric.WithDescription("Number of rooms with at least one member"))

	f.Int64Counter(&joinsTotal, "joins.total",
		metric.WithDescription("Total successful room joins"))

	f.Int64Counter(&leavesTotal, "leaves.total",
		metric.WithDescription("Total memberships removed"))

	f.Int64Counter(&evictionsTotal, "evictions.total",
		metric.WithDescription("Total stale connections evicted by reconnects"))

	f.Int64Counter(&disconnectsTotal, "disconnects.total",
		metric.WithDescription("Total connection-level cleanups"))

	f.Int64Counter(&relaysDelivered, "relays.delivered",
		metric.WithDescription("Total signaling payloads relayed to peers"))

	f.Int64Counter(&relaysDropped, "relays.dropped",
		metric.WithDescription("Total signaling payloads dropped"))

	f.Int64Counter(&notificationsSent, "notifications.sent",
		metric.WithDescription("Total membership notifications sent"))

	f.Int64Counter(&notificationsFailed, "notifications.failed",
		metric.WithDescription("Total failed notification deliveries"))
}
