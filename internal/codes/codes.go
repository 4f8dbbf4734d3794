// Package codes generates human-shareable identifiers that must be unique in
// storage, such as booking codes and payment references.
package codes

import (
	"context"
	"fmt"
	"strings"

	"github.com/Domenick1991/airticketing/internal/domain"
	"github.com/google/uuid"
)

const DefaultMaxAttempts = 5

type Generator func() string

type ExistsFunc func(ctx context.Context, code string) (bool, error)

// BookingCode returns an 8-5 uppercase code such as "3F2A91C0-7B21E".
func BookingCode() string {
	return strings.ToUpper(chunk(8) + "-" + chunk(5))
}

// PaymentReference returns "PAY-" followed by 12 uppercase characters.
func PaymentReference() string {
	return "PAY-" + strings.ToUpper(chunk(12))
}

// Unique draws candidates until exists reports a free one. It gives up with
// ErrUniqueGenerationExhausted after maxAttempts collisions.
func Unique(ctx context.Context, gen Generator, exists ExistsFunc, maxAttempts int) (string, error) {
	return Claim(ctx, gen, exists, maxAttempts, func(string) error { return nil }, nil)
}

// Claim is Unique followed by insert for every free candidate. When insert
// fails with an error taken reports, the code was claimed between the check
// and the insert; the next candidate is drawn from the same maxAttempts.
func Claim(ctx context.Context, gen Generator, exists ExistsFunc, maxAttempts int, insert func(code string) error, taken func(error) bool) (string, error) {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		code := gen()
		used, err := exists(ctx, code)
		if err != nil {
			return "", err
		}
		if used {
			continue
		}
		err = insert(code)
		if err == nil {
			return code, nil
		}
		if taken == nil || !taken(err) {
			return "", err
		}
	}
	return "", fmt.Errorf("%w after %d attempts", domain.ErrUniqueGenerationExhausted, maxAttempts)
}

func chunk(n int) string {
	// the simple form carries 32 hex digits, more than any caller needs
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:n]
}
