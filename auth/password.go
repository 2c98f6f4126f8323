package auth

import (
	"fmt"
	"regexp"
	"strings"
	"sync"
	"unicode"

	"golang.org/x/crypto/bcrypt"

	"github.com/judyrop/electronics-store/models"
)

const (
	MinPasswordLength = 8
	// MaxPasswordBytes is the most bcrypt will hash.
	MaxPasswordBytes = 72
)

var usernamePattern = regexp.MustCompile(`^[\w.@+-]+$`)

// commonPasswords is a short deny list of the passwords most often tried.
var commonPasswords = map[string]bool{
	"password": true, "password1": true, "password123": true, "12345678": true,
	"123456789": true, "1234567890": true, "qwerty123": true, "iloveyou": true,
	"sunshine": true, "princess": true, "football": true, "baseball": true,
	"welcome1": true, "abc12345": true, "letmein1": true, "trustno1": true,
	"superman": true, "qwertyuiop": true, "11111111": true, "00000000": true,
}

func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(bytes), err
}

func CheckPasswordHash(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}

// dummyHash is compared against when a login names no account.
var dummyHash = sync.OnceValue(func() string {
	hash, _ := HashPassword("no-such-account")
	return hash
})

// Authenticate reports whether password unlocks user. A nil or inactive
// user never authenticates, but still costs one bcrypt comparison.
func Authenticate(user *models.User, password string) bool {
	if user == nil {
		CheckPasswordHash(password, dummyHash())
		return false
	}
	return CheckPasswordHash(password, user.PasswordHash) && user.IsActive
}

// ValidateUsername returns the problems with a proposed username.
func ValidateUsername(username string) []string {
	switch {
	case username == "":
		return []string{"This field is required."}
	case len([]rune(username)) > 150:
		return []string{"Ensure this value has at most 150 characters."}
	case !usernamePattern.MatchString(username):
		return []string{"Enter a valid username. This value may contain only letters, numbers, and @/./+/-/_ characters."}
	}
	return nil
}

// ValidatePassword applies the password rules to a new password.
func ValidatePassword(password, username, email string) []string {
	var msgs []string
	if len([]rune(password)) < MinPasswordLength {
		msgs = append(msgs, fmt.Sprintf("This password is too short. It must contain at least %d characters.", MinPasswordLength))
	}
	if len(password) > MaxPasswordBytes {
		msgs = append(msgs, fmt.Sprintf("This password is too long. It must contain at most %d bytes.", MaxPasswordBytes))
	}
	if commonPasswords[strings.ToLower(password)] {
		msgs = append(msgs, "This password is too common.")
	}
	if password != "" && strings.IndexFunc(password, func(r rune) bool { return !unicode.IsDigit(r) }) < 0 {
		msgs = append(msgs, "This password is entirely numeric.")
	}
	if tooSimilar(password, username) {
		msgs = append(msgs, "The password is too similar to the username.")
	} else if local, _, _ := strings.Cut(email, "@"); tooSimilar(password, local) {
		msgs = append(msgs, "The password is too similar to the email address.")
	}
	return msgs
}

// tooSimilar reports whether one value contains most of the other.
func tooSimilar(password, attr string) bool {
	p, a := strings.ToLower(password), strings.ToLower(attr)
	if len(a) < 3 || p == "" {
		return false
	}
	return strings.Contains(p, a) || strings.Contains(a, p)
}
