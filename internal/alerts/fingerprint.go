package alerts

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
)

// Fingerprint derives the deterministic identity key for a logical alert
// from its addon, device, type, and optional discriminator. Two events with
// the same fingerprint refer to the same underlying condition.
//
// Fields are length-prefixed before hashing so no combination of values can
// collide across field boundaries, and a nil discriminator hashes
// differently from an empty-string one.
func Fingerprint(addonID, deviceIP, alertType string, discriminator *string) string {
	h := sha256.New()

	writeField := func(s string) {
		var lenBuf [8]byte
		binary.BigEndian.PutUint64(lenBuf[:], uint64(len(s)))
		h.Write(lenBuf[:])
		h.Write([]byte(s))
	}

	writeField(addonID)
	writeField(deviceIP)
	writeField(alertType)

	if discriminator == nil {
		h.Write([]byte{0})
	} else {
		h.Write([]byte{1})
		writeField(*discriminator)
	}

	sum := h.Sum(nil)
	return hex.EncodeToString(sum[:16])
}

// FingerprintFor computes the fingerprint of a parsed alert under the given
// addon identity.
func FingerprintFor(p ParsedAlert, addonID string) string {
	return Fingerprint(addonID, p.DeviceIP, p.AlertType, p.Discriminator)
}
