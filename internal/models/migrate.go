package models

import "gorm.io/gorm"

// All lists every persisted model in migration order.
func All() []interface{} {
	return []interface{}{
		&User{},
		&Tour{},
		&TourGuide{},
		&Review{},
		&Booking{},
		&PaymentSession{},
		&PaymentCallbackHistory{},
		&ScheduledTask{},
		&ScheduledTaskHistory{},
	}
}

// Migrate registers the tour/guide join model and migrates all tables.
func Migrate(db *gorm.DB) error {
	if err := db.SetupJoinTable(&Tour{}, "Guides", &TourGuide{}); err != nil {
		return err
	}
	return db.AutoMigrate(All()...)
}
