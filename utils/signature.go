package utils

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// SignPayload возвращает HMAC-SHA256 подпись данных в hex
func SignPayload(data, key []byte) string {
	h := hmac.New(sha256.New, key)
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// VerifySignature проверяет подпись за постоянное время
func VerifySignature(data []byte, signature string, key []byte) bool {
	expected, err := hex.DecodeString(signature)
	if err != nil {
		return false
	}
	h := hmac.New(sha256.New, key)
	h.Write(data)
	return hmac.Equal(h.Sum(nil), expected)
}
