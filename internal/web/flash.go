package web

// flash.go carries one-shot status messages across the POST/redirect/GET
// cycle in a signed cookie. The payload is JSON, base64url-encoded and
// authenticated with HMAC-SHA256 under the configured secret key. A
// cookie that fails verification is discarded silently, so a tampered or
// stale flash degrades to "no message" rather than an error page.

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
)

const flashCookieName = "flash"

// flashMessage is a single one-shot notice for the next page render.
// Category selects the style: "success" or "danger".
type flashMessage struct {
	Text     string `json:"text"`
	Category string `json:"category"`
}

// flashCodec signs and verifies the flash cookie.
type flashCodec struct {
	secret []byte
}

// newFlashCodec builds a codec for the given secret. An empty secret
// gets replaced with a random ephemeral key so a misconfigured server
// still signs its cookies; flashes then do not survive a restart.
func newFlashCodec(secret string) *flashCodec {
	if secret == "" {
		key := make([]byte, 32)
		if _, err := rand.Read(key); err != nil {
			panic(err)
		}
		slog.Warn("SESSION_SECRET not set, using an ephemeral flash signing key")
		return &flashCodec{secret: key}
	}
	return &flashCodec{secret: []byte(secret)}
}

// set stores msgs in the flash cookie on w.
func (c *flashCodec) set(w http.ResponseWriter, msgs []flashMessage) {
	payload, err := json.Marshal(msgs)
	if err != nil {
		slog.Error("flash encode failed", "error", err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     flashCookieName,
		Value:    c.encode(payload),
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// pop reads, verifies and clears the flash cookie. It returns nil when
// there is no cookie or the signature does not verify.
func (c *flashCodec) pop(w http.ResponseWriter, r *http.Request) []flashMessage {
	cookie, err := r.Cookie(flashCookieName)
	if err != nil {
		return nil
	}

	// Clear regardless of whether the value verifies.
	http.SetCookie(w, &http.Cookie{
		Name:     flashCookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1,
	})

	return c.decode(cookie.Value)
}

// encode produces "payload.signature" with both parts base64url-encoded.
func (c *flashCodec) encode(payload []byte) string {
	return base64.RawURLEncoding.EncodeToString(payload) + "." + base64.RawURLEncoding.EncodeToString(c.sign(payload))
}

// decode reverses encode, returning nil for malformed or forged values.
func (c *flashCodec) decode(value string) []flashMessage {
	dot := strings.LastIndexByte(value, '.')
	if dot < 0 {
		return nil
	}

	payload, err := base64.RawURLEncoding.DecodeString(value[:dot])
	if err != nil {
		return nil
	}
	sig, err := base64.RawURLEncoding.DecodeString(value[dot+1:])
	if err != nil {
		return nil
	}
	if !hmac.Equal(sig, c.sign(payload)) {
		return nil
	}

	var msgs []flashMessage
	if err := json.Unmarshal(payload, &msgs); err != nil {
		return nil
	}
	return msgs
}

func (c *flashCodec) sign(payload []byte) []byte {
	mac := hmac.New(sha256.New, c.secret)
	mac.Write(payload)
	return mac.Sum(nil)
}
