package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content-addressed identity.
// Version suffix enables future algorithm migration.
const (
	DomainDriver = "morphc/driver/v1"
)

// hashWithDomain computes SHA-256 hash with domain separation.
// Format: SHA256(domain + 0x00 + data)
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// DriverHash computes the content-addressed identity of a compiled driver.
// Two drivers with the same hash render and bind identically.
func DriverHash(d CompiledDriver) (string, error) {
	data, err := MarshalDriver(d)
	if err != nil {
		return "", fmt.Errorf("DriverHash: %w", err)
	}
	return hashWithDomain(DomainDriver, data), nil
}

// MustDriverHash is DriverHash for tests and known-good drivers.
func MustDriverHash(d CompiledDriver) string {
	h, err := DriverHash(d)
	if err != nil {
		panic(err)
	}
	return h
}
