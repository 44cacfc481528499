package middlewares

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"time"

	"invoice-ledger/database"
	"invoice-ledger/models"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"
)

const (
	idempotencyHeader = "Idempotency-Key"
	replayedHeader    = "Idempotent-Replayed"

	// A pending key older than this belongs to a request that never finished.
	staleAfter = 5 * time.Minute
)

// requestHash builds a deterministic request hash: method|path|body|user.
func requestHash(method, path string, body []byte, userID string) string {
	h := sha256.New()
	h.Write([]byte(method))
	h.Write([]byte{'\n'})
	h.Write([]byte(path))
	h.Write([]byte{'\n'})
	h.Write(body)
	h.Write([]byte{'\n'})
	h.Write([]byte(userID))
	return hex.EncodeToString(h.Sum(nil))
}

type keyAction int

const (
	keyRun        keyAction = iota // this request owns the key
	keyReplay                      // a stored response exists
	keyInProgress                  // another request holds the key
	keyMismatch                    // same key, different request
)

// classifyKey decides what a request with reqHash does with an existing
// record. A pending record older than staleAfter is reclaimed.
func classifyKey(rec *models.IdempotencyKey, reqHash string, now time.Time) keyAction {
	switch {
	case rec.RequestHash != reqHash:
		return keyMismatch
	case rec.ResponseStatus != 0:
		return keyReplay
	case now.Sub(rec.CreatedAt) > staleAfter:
		return keyRun
	default:
		return keyInProgress
	}
}

// replayResponse writes a stored response without running the handler.
func replayResponse(c *fiber.Ctx, rec *models.IdempotencyKey) error {
	c.Set(replayedHeader, "true")
	c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSONCharsetUTF8)
	return c.Status(rec.ResponseStatus).Send(rec.ResponseBody)
}

// Idempotency processes Idempotency-Key for mutating HTTP methods.
// The first request with a key runs the handler and stores its response;
// repeats get the stored response. A repeat that arrives while the first is
// still running gets 409. Failed attempts (handler error or 5xx) release the
// key so the client can retry.
func Idempotency() fiber.Handler {
	return func(c *fiber.Ctx) error {
		method := strings.ToUpper(c.Method())
		if method != fiber.MethodPost && method != fiber.MethodPut && method != fiber.MethodPatch && method != fiber.MethodDelete {
			return c.Next()
		}

		key := strings.TrimSpace(c.Get(idempotencyHeader))
		if key == "" {
			return c.Next()
		}
		if len(key) > 128 {
			return fiber.NewError(fiber.StatusBadRequest, "Idempotency-Key too long")
		}

		userID := UserID(c)
		if userID == "" {
			return fiber.NewError(fiber.StatusUnauthorized, "auth context missing")
		}
		if database.DB == nil {
			return errors.New("database not initialized")
		}

		path := c.OriginalURL() // includes query string
		reqHash := requestHash(method, path, c.Body(), userID)

		// ---- Phase 1: read or create the "pending" record under a short TX
		var rec models.IdempotencyKey
		action := keyRun
		err := database.DB.Transaction(func(tx *gorm.DB) error {
			err := tx.Where("user_id = ? AND key = ?", userID, key).First(&rec).Error
			if err == nil {
				action = classifyKey(&rec, reqHash, time.Now())
				if action == keyRun {
					return tx.Model(&rec).Update("created_at", time.Now()).Error
				}
				return nil
			}
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				return fiber.NewError(fiber.StatusInternalServerError, "idempotency lookup failed")
			}

			rec = models.IdempotencyKey{
				UserID:      userID,
				Key:         key,
				RequestHash: reqHash,
				Method:      method,
				Path:        path,
			}
			if err := tx.Create(&rec).Error; err != nil {
				// Unique race: another request holds the key.
				return fiber.NewError(fiber.StatusConflict, "request with this Idempotency-Key is in progress")
			}
			return nil
		})
		if err != nil {
			return err
		}

		switch action {
		case keyMismatch:
			return fiber.NewError(fiber.StatusConflict, "Idempotency-Key reuse with different request")
		case keyInProgress:
			return fiber.NewError(fiber.StatusConflict, "request with this Idempotency-Key is in progress")
		case keyReplay:
			return replayResponse(c, &rec)
		}

		// ---- Phase 2: run the handler once
		if err := c.Next(); err != nil {
			releaseKey(userID, key)
			return err
		}
		status := c.Response().StatusCode()
		if status >= fiber.StatusInternalServerError {
			releaseKey(userID, key)
			return nil
		}

		// ---- Phase 3: store the response (best-effort)
		now := time.Now().UTC()
		resp := c.Response().Body()
		blob := make([]byte, len(resp))
		copy(blob, resp)
		if err := database.DB.Model(&models.IdempotencyKey{}).
			Where("user_id = ? AND key = ?", userID, key).
			Updates(map[string]any{
				"response_status": status,
				"response_body":   blob,
				"completed_at":    &now,
			}).Error; err != nil {
			log.Warnw("idempotency store failed", "key", key, "error", err)
		}
		return nil
	}
}

func releaseKey(userID, key string) {
	err := database.DB.
		Where("user_id = ? AND key = ? AND response_status = 0", userID, key).
		Delete(&models.IdempotencyKey{}).Error
	if err != nil {
		log.Warnw("idempotency release failed", "key", key, "error", err)
	}
}
