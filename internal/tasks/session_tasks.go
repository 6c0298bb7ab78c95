package tasks

import (
	"context"
	"time"

	"gorm.io/gorm"

	"natours_echo/internal/models"
)

// ExpirePaymentSessionsArgs are the arguments of expire_payment_sessions
type ExpirePaymentSessionsArgs struct {
	MaxAgeHours int `json:"max_age_hours"`
}

// ExpirePaymentSessionsTaskDef deactivates checkout sessions that were
// never completed, so the next checkout opens a fresh one.
type ExpirePaymentSessionsTaskDef struct {
	now func() time.Time
}

func (t *ExpirePaymentSessionsTaskDef) TaskID() string {
	return "expire_payment_sessions"
}

func (t *ExpirePaymentSessionsTaskDef) HandleExecution(ctx context.Context, db *gorm.DB, args map[string]interface{}) (map[string]interface{}, error) {
	parsed := ExpirePaymentSessionsArgs{MaxAgeHours: 24}
	if err := decodeArgs(args, &parsed); err != nil {
		return nil, err
	}
	if parsed.MaxAgeHours <= 0 {
		parsed.MaxAgeHours = 24
	}

	now := time.Now
	if t.now != nil {
		now = t.now
	}
	cutoff := now().Add(-time.Duration(parsed.MaxAgeHours) * time.Hour)

	res := db.WithContext(ctx).Model(&models.PaymentSession{}).
		Where("is_active = ? AND created_at < ?", true, cutoff).
		Update("is_active", false)
	if res.Error != nil {
		return nil, res.Error
	}

	return map[string]interface{}{
		"status":      "success",
		"deactivated": res.RowsAffected,
	}, nil
}

// ExpirePaymentSessionsTask is the singleton instance of ExpirePaymentSessionsTaskDef
var ExpirePaymentSessionsTask = &ExpirePaymentSessionsTaskDef{}
