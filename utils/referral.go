// utils/referral.go
package utils

import (
	"crypto/rand"
	"math/big"
	"strconv"
	"strings"
	"time"
)

const referralAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"

// GenerateReferralCode returns a code of the form REF-<time>-<random>, where
// <time> is the base36 millisecond timestamp and <random> is six base36
// characters from crypto/rand. The result is already upper case.
func GenerateReferralCode(now time.Time) (string, error) {
	suffix := make([]byte, 6)
	max := big.NewInt(int64(len(referralAlphabet)))
	for i := range suffix {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		suffix[i] = referralAlphabet[n.Int64()]
	}

	stamp := strings.ToUpper(strconv.FormatInt(now.UnixMilli(), 36))
	return "REF-" + stamp + "-" + string(suffix), nil
}

// NormalizeReferralCode trims and upper-cases a user-supplied code so lookups
// are case-insensitive.
func NormalizeReferralCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// ShareLink builds the registration link that pre-fills a referral code.
func ShareLink(clientURL, code string) string {
	return strings.TrimRight(clientURL, "/") + "/register?ref=" + code
}
