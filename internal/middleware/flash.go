package middleware

import (
	"encoding/base64"
	"encoding/json"
	"log"
	"time"

	"catalog/internal/views"

	"github.com/gofiber/fiber/v2"
)

// FlashCookie carries a notification across a redirect.
const FlashCookie = "flash"

const flashLocal = "flash"

// Flash moves a pending notification from the flash cookie into the request
// locals and clears the cookie, so each notification is shown once.
func Flash() fiber.Handler {
	return func(c *fiber.Ctx) error {
		raw := c.Cookies(FlashCookie)
		if raw == "" {
			return c.Next()
		}
		c.ClearCookie(FlashCookie)

		n, err := decodeFlash(raw)
		if err != nil {
			log.Printf("Ignoring malformed flash cookie: %v", err)
			return c.Next()
		}
		c.Locals(flashLocal, n)
		return c.Next()
	}
}

// SetFlash queues n for the next rendered page.
func SetFlash(c *fiber.Ctx, n views.Notification) {
	body, err := json.Marshal(n)
	if err != nil {
		log.Printf("Error encoding flash notification: %v", err)
		return
	}
	c.Cookie(&fiber.Cookie{
		Name:     FlashCookie,
		Value:    base64.RawURLEncoding.EncodeToString(body),
		Path:     "/",
		Expires:  time.Now().Add(time.Minute),
		HTTPOnly: true,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
}

// CurrentFlash returns the notification consumed by Flash for this request,
// or nil.
func CurrentFlash(c *fiber.Ctx) *views.Notification {
	n, _ := c.Locals(flashLocal).(*views.Notification)
	return n
}

func decodeFlash(raw string) (*views.Notification, error) {
	body, err := base64.RawURLEncoding.DecodeString(raw)
	if err != nil {
		return nil, err
	}
	var n views.Notification
	if err := json.Unmarshal(body, &n); err != nil {
		return nil, err
	}
	return &n, nil
}
