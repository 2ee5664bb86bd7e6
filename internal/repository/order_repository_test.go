package repository

import (
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestGenerateOrderCode_Format(t *testing.T) {
	pattern := regexp.MustCompile(`^GL-\d{8}-\d{3}$`)

	now := time.Date(2026, 2, 14, 10, 30, 0, 0, time.UTC)
	for i := 0; i < 200; i++ {
		code := GenerateOrderCode(now)
		assert.Regexp(t, pattern, code)
		assert.Equal(t, "GL-20260214-", code[:12])
	}
}

func TestGenerateOrderCode_ZeroPadsRandomDigits(t *testing.T) {
	now := time.Now()
	for i := 0; i < 500; i++ {
		code := GenerateOrderCode(now)
		assert.Len(t, code, 15)
	}
}
