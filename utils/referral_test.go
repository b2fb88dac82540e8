package utils

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateReferralCode(t *testing.T) {
	codePattern := regexp.MustCompile(`^MBR-[A-Z0-9]{6}$`)

	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		code, err := GenerateReferralCode()
		require.NoError(t, err)
		assert.Regexp(t, codePattern, code)
		seen[code] = true
	}
	// 100 draws from a 32^6 space should never collide.
	assert.Len(t, seen, 100)
}

func TestReferralLink(t *testing.T) {
	t.Run("default base", func(t *testing.T) {
		assert.Equal(t, "https://refermart.com/register?ref=MBR-ABC123", ReferralLink("MBR-ABC123"))
	})

	t.Run("configured base", func(t *testing.T) {
		t.Setenv("REFERRAL_LINK_BASE", "https://staging.refermart.com/join")
		assert.Equal(t, "https://staging.refermart.com/join?ref=MBR-ABC123", ReferralLink("MBR-ABC123"))
	})
}
