package models

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"natours_echo/internal/apperror"
)

const (
	PasswordHashCost       = 12
	PasswordResetTokenTTL  = 10 * time.Minute
	passwordResetTokenSize = 36
	DefaultUserPhoto       = "default.jpg"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleGuide     Role = "guide"
	RoleLeadGuide Role = "lead-guide"
	RoleAdmin     Role = "admin"
)

type User struct {
	Base

	Name  string `gorm:"type:varchar(20);uniqueIndex;not null" json:"name" validate:"required,max=20,username"`
	Email string `gorm:"type:varchar(255);uniqueIndex;not null" json:"email" validate:"required,email"`
	Photo string `gorm:"type:varchar(255)" json:"photo,omitempty"`
	Role  Role   `gorm:"type:varchar(20);not null" json:"role,omitempty" validate:"omitempty,oneof=user guide lead-guide admin"`

	// Password holds the bcrypt hash. PasswordInput and PasswordConfirm
	// only exist between binding a request and persisting it.
	Password        string `gorm:"type:varchar(255);not null" json:"-"`
	PasswordInput   string `gorm:"-" json:"password,omitempty" validate:"omitempty,min=8"`
	PasswordConfirm string `gorm:"-" json:"passwordConfirm,omitempty"`

	PasswordChangedAt    *time.Time `json:"passwordChangedAt,omitempty"`
	PasswordResetToken   *string    `gorm:"type:varchar(64);index" json:"-"`
	PasswordResetExpires *time.Time `json:"-"`
	Active               bool       `gorm:"not null;index" json:"-"`
}

func (User) TableName() string { return "users" }

func (u *User) ApplyDefaults() {
	u.Role = RoleUser
	u.Photo = DefaultUserPhoto
	u.Active = true
}

func (u *User) Normalize() {
	u.Name = strings.TrimSpace(u.Name)
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	if u.Role == "" {
		u.Role = RoleUser
	}
	if u.Photo == "" {
		u.Photo = DefaultUserPhoto
	}
}

func (u *User) CheckConstraints() error {
	fields := map[string]string{}
	if u.Password == "" && u.PasswordInput == "" {
		fields["password"] = "Please provide a password"
	}
	if u.PasswordInput != "" && u.PasswordConfirm != u.PasswordInput {
		fields["passwordConfirm"] = "Passwords are not the same!"
	}
	if len(fields) > 0 {
		return apperror.JoinFields(fields)
	}
	return nil
}

// BeforePersist hashes a newly supplied password. On an existing user the
// change time is set one second in the past so a token issued right after
// the change stays valid.
func (u *User) BeforePersist(ctx context.Context, tx *gorm.DB, isNew bool) error {
	if u.PasswordInput == "" {
		return nil
	}

	if !isNew {
		changed := time.Now().Add(-time.Second)
		u.PasswordChangedAt = &changed
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(u.PasswordInput), PasswordHashCost)
	if err != nil {
		return err
	}
	u.Password = string(hash)
	u.PasswordInput = ""
	u.PasswordConfirm = ""
	return nil
}

// BeforeRemove removes a user's reviews (recomputing the affected tours) and
// guide links. Users with bookings cannot be hard deleted.
func (u *User) BeforeRemove(ctx context.Context, tx *gorm.DB) error {
	var bookings int64
	if err := tx.Model(&Booking{}).Where("user_id = ?", u.ID).Count(&bookings).Error; err != nil {
		return err
	}
	if bookings > 0 {
		return apperror.Validation("This user has bookings and cannot be deleted", nil)
	}

	var tourIDs []string
	if err := tx.Model(&Review{}).Where("user_id = ?", u.ID).Distinct().Pluck("tour_id", &tourIDs).Error; err != nil {
		return err
	}
	if err := tx.Where("user_id = ?", u.ID).Delete(&Review{}).Error; err != nil {
		return err
	}
	for _, tourID := range tourIDs {
		if err := RecalculateRatings(ctx, tx, tourID); err != nil {
			return err
		}
	}

	return tx.Where("user_id = ?", u.ID).Delete(&TourGuide{}).Error
}

func (User) Scope(db *gorm.DB) *gorm.DB {
	return db.Where("users.active = ?", true)
}

// CorrectPassword compares a candidate against the stored hash.
func (u *User) CorrectPassword(candidate string) bool {
	return bcrypt.CompareHashAndPassword([]byte(u.Password), []byte(candidate)) == nil
}

// ChangedPasswordAfter reports whether the password changed after a token
// issued at iat. Comparison is at second precision, like the token itself.
func (u *User) ChangedPasswordAfter(iat time.Time) bool {
	if u.PasswordChangedAt == nil {
		return false
	}
	return u.PasswordChangedAt.Unix() > iat.Unix()
}

// CreatePasswordResetToken stores the hash of a fresh random token and
// returns the token itself.
func (u *User) CreatePasswordResetToken() (string, error) {
	buf := make([]byte, passwordResetTokenSize)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	token := hex.EncodeToString(buf)

	hashed := HashResetToken(token)
	expires := time.Now().Add(PasswordResetTokenTTL)
	u.PasswordResetToken = &hashed
	u.PasswordResetExpires = &expires
	return token, nil
}

func (u *User) ClearPasswordResetToken() {
	u.PasswordResetToken = nil
	u.PasswordResetExpires = nil
}

func HashResetToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// HasRole reports whether the user holds one of roles.
func (u *User) HasRole(roles ...Role) bool {
	for _, r := range roles {
		if u.Role == r {
			return true
		}
	}
	return false
}
