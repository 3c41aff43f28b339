package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

var (
	ErrInvalidQuantity = errors.New("quantity must be at least 1")
	ErrLineNotFound    = errors.New("cart line not found")
	ErrInvalidLine     = errors.New("invalid cart line")
)

// Line is one purchasable offering in the shopper's cart together with the
// customization recorded against it.
type Line struct {
	OfferingID     string `json:"offering_id"`
	OfferingName   string `json:"offering_name"`
	VenueID        string `json:"venue_id"`
	VenueName      string `json:"venue_name"`
	UnitPrice      int64  `json:"unit_price"`
	Quantity       int    `json:"quantity"`
	DurationMonths int    `json:"duration_months,omitempty"`
	BelieverName   string `json:"believer_name"`
	BirthDate      string `json:"birth_date,omitempty"`
	WishText       string `json:"wish_text,omitempty"`
}

// Amount is the line total in the smallest currency unit.
func (l Line) Amount() int64 {
	return l.UnitPrice * int64(l.Quantity)
}

func (l Line) validate() error {
	if strings.TrimSpace(l.OfferingID) == "" {
		return fmt.Errorf("%w: offering_id is required", ErrInvalidLine)
	}
	if strings.TrimSpace(l.VenueID) == "" {
		return fmt.Errorf("%w: venue_id is required", ErrInvalidLine)
	}
	if l.UnitPrice < 0 {
		return fmt.Errorf("%w: unit_price must not be negative", ErrInvalidLine)
	}
	if l.DurationMonths < 0 {
		return fmt.Errorf("%w: duration_months must not be negative", ErrInvalidLine)
	}
	if l.Quantity < 1 {
		return ErrInvalidQuantity
	}
	return nil
}

// Patch carries the fields a shopper may change on an existing line. Nil fields are left untouched.
type Patch struct {
	Quantity     *int    `json:"quantity,omitempty"`
	BelieverName *string `json:"believer_name,omitempty"`
	BirthDate    *string `json:"birth_date,omitempty"`
	WishText     *string `json:"wish_text,omitempty"`
}

// Cart is the ordered set of lines owned by a single shopper.
type Cart struct {
	OwnerID   string    `json:"owner_id"`
	Lines     []Line    `json:"lines"`
	UpdatedAt time.Time `json:"updated_at"`
}

func New(ownerID string) *Cart {
	return &Cart{OwnerID: ownerID, Lines: []Line{}}
}

// AddLine appends a line. Adding an offering that is already in the cart increases
// the quantity of the existing line instead of creating a second one.
func (c *Cart) AddLine(line Line) error {
	if err := line.validate(); err != nil {
		return err
	}

	if i := c.indexOf(line.OfferingID); i >= 0 {
		c.Lines[i].Quantity += line.Quantity
		return nil
	}

	c.Lines = append(c.Lines, line)
	return nil
}

// UpdateLine applies a patch to the line for offeringID. A quantity below 1 is
// rejected and leaves the line unchanged; removal goes through RemoveLine.
func (c *Cart) UpdateLine(offeringID string, patch Patch) error {
	i := c.indexOf(offeringID)
	if i < 0 {
		return ErrLineNotFound
	}
	if patch.Quantity != nil && *patch.Quantity < 1 {
		return ErrInvalidQuantity
	}

	line := c.Lines[i]
	if patch.Quantity != nil {
		line.Quantity = *patch.Quantity
	}
	if patch.BelieverName != nil {
		line.BelieverName = strings.TrimSpace(*patch.BelieverName)
	}
	if patch.BirthDate != nil {
		line.BirthDate = *patch.BirthDate
	}
	if patch.WishText != nil {
		line.WishText = *patch.WishText
	}
	c.Lines[i] = line

	return nil
}

func (c *Cart) RemoveLine(offeringID string) error {
	i := c.indexOf(offeringID)
	if i < 0 {
		return ErrLineNotFound
	}
	c.Lines = append(c.Lines[:i], c.Lines[i+1:]...)
	return nil
}

func (c *Cart) Clear() {
	c.Lines = []Line{}
}

func (c *Cart) IsEmpty() bool {
	return len(c.Lines) == 0
}

// Subtotal is recomputed from the lines on every call.
func (c *Cart) Subtotal() int64 {
	var total int64
	for _, line := range c.Lines {
		total += line.Amount()
	}
	return total
}

// MissingBelieverNames returns the offering ids of lines without a believer name.
func (c *Cart) MissingBelieverNames() []string {
	var missing []string
	for _, line := range c.Lines {
		if strings.TrimSpace(line.BelieverName) == "" {
			missing = append(missing, line.OfferingID)
		}
	}
	return missing
}

// VenueIDs lists the distinct venues in the cart in first-seen order.
func (c *Cart) VenueIDs() []string {
	seen := make(map[string]struct{}, len(c.Lines))
	var venues []string
	for _, line := range c.Lines {
		if _, ok := seen[line.VenueID]; ok {
			continue
		}
		seen[line.VenueID] = struct{}{}
		venues = append(venues, line.VenueID)
	}
	return venues
}

// ContentHash is a stable digest of the cart contents. Line order does not affect it.
func (c *Cart) ContentHash() string {
	lines := c.Snapshot()
	sort.Slice(lines, func(i, j int) bool { return lines[i].OfferingID < lines[j].OfferingID })

	h := sha256.New()
	for _, line := range lines {
		for _, field := range []string{
			line.OfferingID,
			strconv.FormatInt(line.UnitPrice, 10),
			strconv.Itoa(line.Quantity),
			strconv.Itoa(line.DurationMonths),
			line.BelieverName,
			line.BirthDate,
			line.WishText,
		} {
			h.Write([]byte(field))
			h.Write([]byte{0})
		}
		h.Write([]byte{'\n'})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Snapshot returns a copy of the lines that later cart mutations cannot touch.
func (c *Cart) Snapshot() []Line {
	lines := make([]Line, len(c.Lines))
	copy(lines, c.Lines)
	return lines
}

func (c *Cart) indexOf(offeringID string) int {
	for i, line := range c.Lines {
		if line.OfferingID == offeringID {
			return i
		}
	}
	return -1
}
