package codes

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/Domenick1991/airticketing/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBookingCode_Format(t *testing.T) {
	re := regexp.MustCompile(`^[0-9A-Z]{8}-[0-9A-Z]{5}$`)
	seen := make(map[string]struct{})
	for i := 0; i < 1000; i++ {
		code := BookingCode()
		assert.Regexp(t, re, code)
		_, dup := seen[code]
		assert.False(t, dup, "duplicate code %s", code)
		seen[code] = struct{}{}
	}
}

func TestPaymentReference_Format(t *testing.T) {
	assert.Regexp(t, regexp.MustCompile(`^PAY-[0-9A-Z]{12}$`), PaymentReference())
}

func TestUnique_RetriesOnCollision(t *testing.T) {
	candidates := []string{"A", "B", "C"}
	i := 0
	gen := func() string {
		c := candidates[i]
		i++
		return c
	}
	taken := map[string]bool{"A": true, "B": true}

	code, err := Unique(context.Background(), gen, func(_ context.Context, c string) (bool, error) {
		return taken[c], nil
	}, 5)

	require.NoError(t, err)
	assert.Equal(t, "C", code)
	assert.Equal(t, 3, i)
}

func TestUnique_Exhausted(t *testing.T) {
	calls := 0
	_, err := Unique(context.Background(), func() string { return "X" }, func(context.Context, string) (bool, error) {
		calls++
		return true, nil
	}, 5)

	assert.ErrorIs(t, err, domain.ErrUniqueGenerationExhausted)
	assert.Equal(t, 5, calls)
}

func TestUnique_PropagatesLookupError(t *testing.T) {
	boom := errors.New("db down")
	_, err := Unique(context.Background(), BookingCode, func(context.Context, string) (bool, error) {
		return false, boom
	}, 3)

	assert.ErrorIs(t, err, boom)
}

func TestUnique_StopsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Unique(ctx, BookingCode, func(context.Context, string) (bool, error) { return false, nil }, 3)

	assert.ErrorIs(t, err, context.Canceled)
}

func TestClaim_InsertCollisionSharesBudget(t *testing.T) {
	taken := errors.New("taken")
	inserts := 0
	_, err := Claim(context.Background(), func() string { return "X" },
		func(context.Context, string) (bool, error) { return false, nil }, 3,
		func(string) error {
			inserts++
			return taken
		},
		func(err error) bool { return errors.Is(err, taken) })

	assert.ErrorIs(t, err, domain.ErrUniqueGenerationExhausted)
	assert.Equal(t, 3, inserts)
}

func TestClaim_RegeneratesAfterInsertCollision(t *testing.T) {
	taken := errors.New("taken")
	candidates := []string{"A", "B"}
	gen := func() string {
		c := candidates[0]
		candidates = candidates[1:]
		return c
	}
	var stored []string

	code, err := Claim(context.Background(), gen,
		func(context.Context, string) (bool, error) { return false, nil }, 5,
		func(c string) error {
			if c == "A" {
				return taken
			}
			stored = append(stored, c)
			return nil
		},
		func(err error) bool { return errors.Is(err, taken) })

	require.NoError(t, err)
	assert.Equal(t, "B", code)
	assert.Equal(t, []string{"B"}, stored)
}

func TestClaim_OtherInsertErrorsStop(t *testing.T) {
	boom := errors.New("no seats")
	inserts := 0
	_, err := Claim(context.Background(), BookingCode,
		func(context.Context, string) (bool, error) { return false, nil }, 5,
		func(string) error {
			inserts++
			return boom
		},
		func(error) bool { return false })

	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, inserts)
}
