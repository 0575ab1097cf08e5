package model

import (
	"errors"
	"finchat/platform"
	"fmt"
	"log"
	"time"

	"gorm.io/gorm"
)

type Role string

const (
	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
)

// User represents an account owning conversations and financial records.
type User struct {
	ID        uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	Username  string    `gorm:"type:varchar(255);not null;unique" json:"username"`
	Email     string    `gorm:"type:varchar(255);not null;unique" json:"email"`
	Password  string    `gorm:"type:varchar(255);not null" json:"-"`
	Nickname  string    `json:"nickname"`
	Role      Role      `json:"role"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (u *User) BeforeCreate(tx *gorm.DB) (err error) {
	if u.Role == "" {
		u.Role = RoleUser
	}
	return nil
}

func CreateUser(user *User) error {
	db := platform.DB
	if err := db.Create(user).Error; err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

func GetUserByUsername(username string) (*User, error) {
	var user User
	db := platform.DB
	if err := db.Where("username = ?", username).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("user not found")
		}
		return nil, fmt.Errorf("database query failed: %w", err)
	}
	return &user, nil
}

func UserExists(username, email string) bool {
	var count int64
	db := platform.DB
	if err := db.Model(&User{}).Where("username = ? OR email = ?", username, email).Count(&count).Error; err != nil {
		log.Printf("Failed to check user existence: %v", err)
		return false
	}
	return count > 0
}

// ListUsersWithEmail returns users eligible for the weekly digest mail.
func ListUsersWithEmail() ([]User, error) {
	var users []User
	db := platform.DB
	if err := db.Where("email <> ''").Find(&users).Error; err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	return users, nil
}
