package fraud

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestValidateReceiptFormat(t *testing.T) {
	t.Run("full persian receipt", func(t *testing.T) {
		text := "انتقال وجه\nمبلغ: 150,000 تومان\nکارت: 6037-9912-3456-7890\n1402/08/15\n14:32:05"
		v := ValidateReceiptFormat(text)
		assert.True(t, v.HasAmount)
		assert.True(t, v.HasCardNumber)
		assert.True(t, v.HasDate)
		assert.True(t, v.HasTime)
		assert.True(t, v.IsValidFormat)
	})

	t.Run("english receipt", func(t *testing.T) {
		text := "Amount: 150,000\nCard: 6037 9912 3456 7890\nDate: 2026-03-01 14:32"
		v := ValidateReceiptFormat(text)
		assert.True(t, v.HasAmount)
		assert.True(t, v.HasCardNumber)
		assert.True(t, v.HasDate)
		assert.True(t, v.IsValidFormat)
	})

	t.Run("missing card number", func(t *testing.T) {
		v := ValidateReceiptFormat("مبلغ 150,000 تومان در تاریخ 1402/08/15")
		assert.True(t, v.HasAmount)
		assert.False(t, v.HasCardNumber)
		assert.False(t, v.IsValidFormat)
	})

	t.Run("time alone does not validate", func(t *testing.T) {
		v := ValidateReceiptFormat("14:32:05")
		assert.True(t, v.HasTime)
		assert.False(t, v.IsValidFormat)
	})

	t.Run("empty text", func(t *testing.T) {
		v := ValidateReceiptFormat("")
		assert.False(t, v.HasAmount)
		assert.False(t, v.IsValidFormat)
	})
}

func TestReceiptFingerprint(t *testing.T) {
	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	fp1 := ReceiptFingerprint("REF-123", 42, at)
	fp2 := ReceiptFingerprint("REF-123", 42, at.Add(3*time.Hour))
	assert.Equal(t, fp1, fp2, "same ref, user and day must match")
	assert.Len(t, fp1, 32)

	assert.NotEqual(t, fp1, ReceiptFingerprint("REF-124", 42, at))
	assert.NotEqual(t, fp1, ReceiptFingerprint("REF-123", 43, at))
	assert.NotEqual(t, fp1, ReceiptFingerprint("REF-123", 42, at.Add(24*time.Hour)))
}

func TestReceiptFingerprintUsesUTCDay(t *testing.T) {
	tehran := time.FixedZone("IRST", int(3.5*3600))
	// 23:30 local on March 1 is already March 1 20:00 UTC; 03:00 local
	// on March 2 is March 1 23:30 UTC. Same UTC day, same fingerprint.
	late := time.Date(2026, 3, 1, 23, 30, 0, 0, tehran)
	early := time.Date(2026, 3, 2, 3, 0, 0, 0, tehran)
	assert.Equal(t,
		ReceiptFingerprint("REF-123", 42, late),
		ReceiptFingerprint("REF-123", 42, early))
}
