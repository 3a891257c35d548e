package models

import (
	"context"
	"errors"
	"time"

	"github.com/parishops/registry_backend/config"
	"github.com/parishops/registry_backend/utils"
	"golang.org/x/crypto/bcrypt"
)

type User struct {
	ID        int       `gorm:"primary_key" json:"id"`
	ChurchId  int       `gorm:"index" json:"church_id"`
	Username  string    `gorm:"size:100;not null;unique" json:"username" binding:"required"`
	Name      string    `gorm:"size:100;not null" json:"name" binding:"required"`
	Email     *string   `gorm:"size:100;unique" json:"email"`
	Password  string    `gorm:"size:255;not null" json:"-"`
	IsActive  *bool     `gorm:"not null" json:"is_active"`
	Role      UserRole  `gorm:"type:enum('A', 'O', 'C');default:C" json:"role"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewUser struct {
	ChurchId int      `json:"church_id"`
	Username string   `json:"username" binding:"required"`
	Name     string   `json:"name" binding:"required"`
	Email    string   `json:"email"`
	Password string   `json:"password" binding:"required"`
	Role     UserRole `json:"role" binding:"required"`
}

/*
caches:
	User:$username
*/

func (user User) RemoveInstanceRedis() error {
	return config.RemoveRedisKey("User:" + user.Username)
}

func CreateUser(ctx context.Context, input *NewUser) (*User, error) {
	if err := utils.ValidateUnique[User](ctx, 0, "username", input.Username, 0); err != nil {
		return nil, utils.NewValidationError("username", "already taken")
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	var email *string
	if input.Email != "" {
		if !utils.IsValidEmail(input.Email) {
			return nil, utils.NewValidationError("email", "invalid email")
		}
		email = &input.Email
	}

	user := User{
		ChurchId: input.ChurchId,
		Username: input.Username,
		Name:     input.Name,
		Email:    email,
		Password: string(hashed),
		IsActive: utils.NewTrue(),
		Role:     input.Role,
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// Authenticate checks username/password and returns the active account.
func Authenticate(ctx context.Context, username, password string) (*User, error) {
	db := config.GetDB()

	var user User
	if err := db.WithContext(ctx).Where("username = ?", username).Take(&user).Error; err != nil {
		return nil, utils.ErrorUnauthorized
	}
	if user.IsActive == nil || !*user.IsActive {
		return nil, utils.ErrorUnauthorized
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return nil, utils.ErrorUnauthorized
	}
	return &user, nil
}

// GetUserByUsername prefers the redis cache and falls through to the DB,
// refreshing the cache on a miss.
func GetUserByUsername(ctx context.Context, username string) (*User, error) {
	var user User
	exists, err := config.GetRedisObject("User:"+username, &user)
	if err == nil && exists {
		return &user, nil
	}

	db := config.GetDB()
	if db == nil {
		return nil, errors.New("db is nil")
	}
	if err := db.WithContext(ctx).Where("username = ?", username).Take(&user).Error; err != nil {
		return nil, utils.ErrorRecordNotFound
	}
	_ = config.SetRedisObject("User:"+username, &user, 15*time.Minute)
	return &user, nil
}
