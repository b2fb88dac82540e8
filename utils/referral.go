package utils

import (
	"crypto/rand"
	"encoding/base32"
	"fmt"
	"os"
	"strings"
)

// memberCodePrefix is the entity tag on every referral code.
// Format: MBR-{RANDOM} where RANDOM is 6 alphanumeric characters.
const memberCodePrefix = "MBR"

// GenerateReferralCode generates a referral code for a new member.
// Example: MBR-ABC123. Uniqueness is enforced by the members collection's
// unique referralCode index, not here.
func GenerateReferralCode() (string, error) {
	// 4 random bytes give 6 usable characters in base32
	randomBytes := make([]byte, 4)
	_, err := rand.Read(randomBytes)
	if err != nil {
		return "", err
	}

	randomStr := base32.StdEncoding.WithPadding(base32.NoPadding).EncodeToString(randomBytes)
	randomStr = strings.ToUpper(randomStr[:6])
	randomStr = strings.Map(func(r rune) rune {
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			return r
		}
		return -1
	}, randomStr)

	if len(randomStr) < 6 {
		randomStr = randomStr + strings.Repeat("0", 6-len(randomStr))
	}

	return memberCodePrefix + "-" + randomStr, nil
}

// ReferralLink builds the shareable registration link for a code.
func ReferralLink(referralCode string) string {
	base := os.Getenv("REFERRAL_LINK_BASE")
	if base == "" {
		base = "https://refermart.com/register"
	}
	return fmt.Sprintf("%s?ref=%s", base, referralCode)
}
