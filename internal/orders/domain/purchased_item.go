package domain

import (
	"strings"
	"time"
)

// PurchasedItem is the buyer-facing record of one fulfilled order line.
type PurchasedItem struct {
	ID             string
	OrderID        string
	BuyerID        string
	OfferingID     string
	BelieverName   string
	OfferingName   string
	VenueName      string
	StartDate      time.Time
	ExpiryDate     time.Time
	CertificateURL string
}

// IssueItems creates one purchased item per line of a completed order. Lines without
// a duration use defaultMonths.
func IssueItems(o Order, start time.Time, defaultMonths int, certificateBaseURL string, newID func() string) []PurchasedItem {
	items := make([]PurchasedItem, 0, len(o.Lines))
	for _, line := range o.Lines {
		months := line.DurationMonths
		if months <= 0 {
			months = defaultMonths
		}

		id := newID()
		items = append(items, PurchasedItem{
			ID:             id,
			OrderID:        o.ID,
			BuyerID:        o.BuyerID,
			OfferingID:     line.OfferingID,
			BelieverName:   line.BelieverName,
			OfferingName:   line.OfferingName,
			VenueName:      line.VenueName,
			StartDate:      start,
			ExpiryDate:     start.AddDate(0, months, 0),
			CertificateURL: strings.TrimRight(certificateBaseURL, "/") + "/" + id,
		})
	}
	return items
}
