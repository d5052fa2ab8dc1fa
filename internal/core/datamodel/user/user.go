package user

import "time"

type User struct {
	ID             string    `gorm:"primaryKey;type:uuid"`
	Email          string    `gorm:"column:email;uniqueIndex;not null"`
	Name           string    `gorm:"column:name;not null"`
	PasswordHash   string    `gorm:"column:password_hash;not null"`
	Role           string    `gorm:"column:role;not null;default:'patient'"`
	Department     string    `gorm:"column:department"`
	Clearance      *int      `gorm:"column:clearance"`
	Specialization string    `gorm:"column:specialization"`
	IsBlocked      bool      `gorm:"column:is_blocked;default:false"`
	IsActive       bool      `gorm:"column:is_active;default:true"`
	CreatedAt      time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (User) TableName() string {
	return "users"
}
