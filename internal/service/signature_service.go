package service

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"hash"
)

// HMACSignatureService implements ports.SignatureService. A single
// implementation backs both HMAC schemes this gateway needs: SHA-256 for
// outbound tenant webhook signing (§4.4) and SHA-512 for inbound upstream
// webhook verification (§4.3).
type HMACSignatureService struct {
	hashFn func() hash.Hash
}

// NewHMACSHA256SignatureService creates the outbound signer (§4.4).
func NewHMACSHA256SignatureService() *HMACSignatureService {
	return &HMACSignatureService{hashFn: sha256.New}
}

// NewHMACSHA512SignatureService creates the inbound verifier's signer
// (§4.3).
func NewHMACSHA512SignatureService() *HMACSignatureService {
	return &HMACSignatureService{hashFn: sha512.New}
}

// Sign computes HMAC(payload) using secretKey. Returns lowercase
// hex-encoded signature.
func (s *HMACSignatureService) Sign(secretKey string, payload []byte) string {
	mac := hmac.New(s.hashFn, []byte(secretKey))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify checks signatureHex against HMAC(secretKey, payload) in constant
// time.
func (s *HMACSignatureService) Verify(secretKey string, payload []byte, signatureHex string) bool {
	expected := s.Sign(secretKey, payload)
	return hmac.Equal([]byte(expected), []byte(signatureHex))
}
