package user

import (
	"errors"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
)

const pinCost = 10

var ErrInvalidPIN = errors.New("PIN must be 4-6 digits")

type User struct {
	ID           string    `json:"id" bson:"id"`
	Name         string    `json:"name" bson:"name"`
	Gender       string    `json:"gender" bson:"gender"`
	PinHash      string    `json:"pinHash,omitempty" bson:"pinHash"`
	DayStartTime string    `json:"dayStartTime" bson:"dayStartTime"`
	TimeFormat   string    `json:"timeFormat" bson:"timeFormat"`
	CreatedAt    time.Time `json:"createdAt" bson:"createdAt"`
}

// Public is the user as returned to clients.
func (u *User) Public() *User {
	c := *u
	c.PinHash = ""
	return &c
}

func ValidPIN(pin string) bool {
	if len(pin) < 4 || len(pin) > 6 {
		return false
	}
	for _, c := range pin {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

// SetPIN validates and hashes pin.
func (u *User) SetPIN(pin string) error {
	if !ValidPIN(pin) {
		return ErrInvalidPIN
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(pin), pinCost)
	if err != nil {
		return err
	}
	u.PinHash = string(hash)
	return nil
}

func (u *User) VerifyPIN(pin string) bool {
	return bcrypt.CompareHashAndPassword([]byte(u.PinHash), []byte(pin)) == nil
}

// NormalizeName trims the name users register and log in with.
func NormalizeName(name string) string {
	return strings.TrimSpace(name)
}
