// Package notifier delivers order completion notices.
package notifier

import (
	"context"
	"log/slog"

	"github.com/dejobratic/lantern/internal/orders/domain"
)

// LogNotifier records completion notices as structured log entries for the
// notification service's log shipper to pick up.
type LogNotifier struct {
	logger *slog.Logger
}

func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) OrderCompleted(ctx context.Context, order domain.Order, items []domain.PurchasedItem) error {
	certificates := make([]string, 0, len(items))
	for _, item := range items {
		certificates = append(certificates, item.CertificateURL)
	}

	n.logger.InfoContext(ctx, "notification::order_completed",
		"order_id", order.ID,
		"buyer_id", order.BuyerID,
		"buyer_email", order.Buyer.Email,
		"venue_id", order.VenueID,
		"items", len(items),
		"certificates", certificates,
	)
	return nil
}
