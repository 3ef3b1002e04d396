package otp

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"
)

const CodeLength = 6

var codeSpace = big.NewInt(1000000)

// GenerateCode returns a uniformly random numeric one-time code
func GenerateCode() string {
	n, err := rand.Int(rand.Reader, codeSpace)
	if err != nil {
		panic(err)
	}
	return fmt.Sprintf("%06d", n.Int64())
}

// HashCode hashes a code for at-rest storage
func HashCode(code string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(code), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// CompareCode reports whether code matches the stored hash
func CompareCode(hash, code string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(code)) == nil
}

// Sender delivers a generated code to its recipient. Delivery is a
// collaborator concern; a failed send never invalidates the code.
type Sender interface {
	SendCode(ctx context.Context, destination, code string, expiresAt time.Time) error
}

// LogSender is the default Sender: it only logs that a code was issued.
// Real SMS/email delivery is wired by the notification gateway deployment.
type LogSender struct{}

func (LogSender) SendCode(ctx context.Context, destination, code string, expiresAt time.Time) error {
	log.Info().
		Str("destination", destination).
		Time("expires_at", expiresAt).
		Msg("one-time code issued")
	return nil
}
