package translation

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/owenstack/chat/internal/repo"
)

// Delivery writes per-user translated copies.
type Delivery struct {
	db *gorm.DB
}

// NewDelivery returns a Delivery writing to db.
func NewDelivery(db *gorm.DB) *Delivery { return &Delivery{db: db} }

// Deliver writes one copy of translated for every recipient and reports how
// many were new. Recipients that already hold a copy of messageID keep it.
func (d *Delivery) Deliver(ctx context.Context, messageID, translated, lang string, recipients []string) (int, error) {
	n, err := repo.InsertCopies(ctx, d.db, messageID, translated, lang, recipients)
	if err != nil {
		return 0, fmt.Errorf("deliver %s: %w", messageID, err)
	}
	copiesDelivered.Add(float64(n))
	return int(n), nil
}
