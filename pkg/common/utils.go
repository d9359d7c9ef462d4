package common

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"math/rand"
	"strings"
	"time"
)

// GenerateTrxNo returns a short human-readable transaction reference.
func GenerateTrxNo() string {
	const characters = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	r := rand.New(rand.NewSource(time.Now().UnixNano()))

	result := make([]byte, 10)
	for i := range result {
		result[i] = characters[r.Intn(len(characters))]
	}
	return "DRD" + string(result)
}

// GenerateOrderID builds the opaque order reference sent to NOWPayments.
// The user is tracked by an explicit column; this string is display-only.
func GenerateOrderID(userID uint) string {
	return fmt.Sprintf("dredd_%d_%d", userID, time.Now().Unix())
}

// AnalysisCacheKey derives the lookaside cache key for an analysis request.
func AnalysisCacheKey(contract, chain, mode string) string {
	sum := md5.Sum([]byte(strings.ToLower(contract) + strings.ToLower(chain) + strings.ToLower(mode)))
	return hex.EncodeToString(sum[:])
}
