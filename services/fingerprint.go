package services

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/gofiber/fiber/v2"
)

// Fingerprint derives a stable opaque identifier from client-supplied
// headers. Unsalted on purpose: the goal is cross-session stability for the
// same browser/device, not unforgeability. Anyone rewriting their headers
// gets a new fingerprint, so treat it as a heuristic signal only.
func Fingerprint(userAgent, acceptLanguage, acceptEncoding string) string {
	sum := sha256.Sum256([]byte(userAgent + "|" + acceptLanguage + "|" + acceptEncoding))
	return hex.EncodeToString(sum[:])
}

func FingerprintFromRequest(c *fiber.Ctx) string {
	return Fingerprint(
		c.Get(fiber.HeaderUserAgent),
		c.Get(fiber.HeaderAcceptLanguage),
		c.Get(fiber.HeaderAcceptEncoding),
	)
}
