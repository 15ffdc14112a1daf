package outbox

import (
	"errors"
	"fmt"
	"unicode/utf8"

	"gorm.io/gorm"

	"github.com/angelmondragon/tourlink-backend/pkg/db/models"
)

// dlqMessageLimit bounds error_message in bytes. Cuts land on rune
// boundaries so the column stays valid UTF-8.
const dlqMessageLimit = 1024

// DLQRepository stores rows the publisher gave up on. It only ever writes
// through the caller's transaction.
type DLQRepository struct{}

func NewDLQRepository() *DLQRepository {
	return &DLQRepository{}
}

// InsertTx writes entry inside the publisher's batch transaction so the DLQ
// row and the outbox row's terminal status commit together.
func (r *DLQRepository) InsertTx(tx *gorm.DB, entry models.OutboxDLQ) error {
	if tx == nil {
		return errors.New("dlq insert requires a transaction")
	}
	if !entry.ErrorReason.IsValid() {
		return fmt.Errorf("unknown dlq reason %q", entry.ErrorReason)
	}
	if entry.ErrorMessage != nil {
		clipped := clipMessage(*entry.ErrorMessage, dlqMessageLimit)
		entry.ErrorMessage = &clipped
	}
	return tx.Create(&entry).Error
}

func clipMessage(message string, limit int) string {
	if len(message) <= limit {
		return message
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(message[cut]) {
		cut--
	}
	return message[:cut]
}
