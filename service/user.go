package service

import (
	"errors"
	"finchat/model"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/crypto/bcrypt"
)

type UserService struct {
}

type User struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (service *UserService) Register(user *User) error {
	if user.Username == "" || !isValidEmail(user.Email) {
		return errors.New("validation error")
	}
	if !isValidPassword(user.Password) {
		return errors.New("password too weak")
	}

	if model.UserExists(user.Username, user.Email) {
		return errors.New("user already exists")
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(user.Password), bcrypt.DefaultCost)
	if err != nil {
		return errors.New("internal server error")
	}

	newUser := &model.User{
		Username: user.Username,
		Email:    user.Email,
		Password: string(hashedPassword),
	}
	if err := model.CreateUser(newUser); err != nil {
		return errors.New("internal server error")
	}
	return nil
}

func (service *UserService) Login(user *User) (string, error) {
	registeredUser, err := model.GetUserByUsername(user.Username)
	if err != nil {
		return "", errors.New("invalid credentials")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(registeredUser.Password), []byte(user.Password)); err != nil {
		return "", errors.New("invalid credentials")
	}

	ts := &TokenService{}
	token, err := ts.CreateToken(registeredUser.ID, registeredUser.Username)
	if err != nil {
		logger.Warnf("error generating token: %v", err)
		return "", errors.New("failed to generate token")
	}

	return token.AccessToken, nil
}

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

func isValidEmail(email string) bool {
	if strings.TrimSpace(email) == "" {
		return false
	}
	return emailRegex.MatchString(email)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// isValidPassword requires 8-64 chars covering at least three of: digits,
// lower case, upper case, punctuation.
func isValidPassword(password string) bool {
	const minLen = 8
	const maxLen = 64
	hasNumber := false
	hasLower := false
	hasUpper := false
	hasSpecial := false

	if len(password) < minLen || len(password) > maxLen {
		return false
	}

	for _, char := range password {
		switch {
		case unicode.IsDigit(char):
			hasNumber = true
		case unicode.IsLower(char):
			hasLower = true
		case unicode.IsUpper(char):
			hasUpper = true
		case unicode.IsPunct(char) || unicode.IsSymbol(char):
			hasSpecial = true
		}
	}

	return boolToInt(hasNumber)+boolToInt(hasLower)+boolToInt(hasUpper)+boolToInt(hasSpecial) >= 3
}
