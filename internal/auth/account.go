package auth

// User is the identity the rest of the system sees after sign-in.
type User struct {
	UID   string
	Email string
}

// Account models a persisted email/password credential record.
type Account struct {
	UserID            string `gorm:"column:user_id;primaryKey;size:190;not null"`
	Email             string `gorm:"column:email;size:320;not null;uniqueIndex"`
	PasswordHash      string `gorm:"column:password_hash;size:128;not null"`
	CreatedAtSeconds  int64  `gorm:"column:created_at_s;not null"`
	LastSeenAtSeconds int64  `gorm:"column:last_seen_at_s;not null;default:0"`
}

// TableName provides the explicit table binding for GORM.
func (Account) TableName() string {
	return "accounts"
}
