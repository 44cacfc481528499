package middlewares

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"invoice-ledger/ledger"
	"invoice-ledger/models"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRequest(method, target, body string, headers map[string]string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	return req
}

func do(t *testing.T, app *fiber.App, req *http.Request) (int, map[string]any) {
	t.Helper()
	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	var body map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&body)
	return resp.StatusCode, body
}

func authApp() *fiber.App {
	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler})
	app.Use(IsAuthenticatedHeader())
	app.Get("/me", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"user_id": UserID(c), "email": c.Locals("email")})
	})
	return app
}

func Test_Auth_TokenRoundTrip(t *testing.T) {
	SetJWTSecret("test-secret")
	token, expires, err := GenerateJWT("user-1", "ada@example.com")
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(24*time.Hour), expires, time.Minute)

	status, body := do(t, authApp(), newRequest("GET", "/me", "", map[string]string{
		"Authorization": "Bearer " + token,
	}))
	assert.Equal(t, 200, status)
	assert.Equal(t, "user-1", body["user_id"])
	assert.Equal(t, "ada@example.com", body["email"])
}

func Test_Auth_Rejects(t *testing.T) {
	SetJWTSecret("test-secret")

	expired := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-1",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
		},
	})
	expiredToken, err := expired.SignedString([]byte("test-secret"))
	require.NoError(t, err)

	foreign := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "user-1"},
	})
	foreignToken, err := foreign.SignedString([]byte("other-secret"))
	require.NoError(t, err)

	noSubject := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{Email: "ada@example.com"})
	noSubjectToken, err := noSubject.SignedString([]byte("test-secret"))
	require.NoError(t, err)

	for name, header := range map[string]string{
		"missing":    "",
		"not bearer": "Basic abc",
		"empty":      "Bearer ",
		"expired":    "Bearer " + expiredToken,
		"foreign":    "Bearer " + foreignToken,
		"no subject": "Bearer " + noSubjectToken,
	} {
		headers := map[string]string{}
		if header != "" {
			headers["Authorization"] = header
		}
		status, body := do(t, authApp(), newRequest("GET", "/me", "", headers))
		assert.Equal(t, 401, status, name)
		assert.NotEmpty(t, body["message"], name)
	}
}

func Test_ErrorHandler(t *testing.T) {
	type dto struct {
		Email    string          `json:"email" validate:"required,email"`
		Quantity decimal.Decimal `json:"quantity" validate:"gte=0"`
	}

	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler})
	app.Post("/dto", func(c *fiber.Ctx) error {
		var d dto
		return BindAndValidate(c, &d)
	})
	app.Get("/ledger", func(c *fiber.Ctx) error {
		verr := &ledger.ValidationError{}
		verr.Add("items[0].quantity", "must not be negative")
		return verr.Err()
	})
	app.Get("/gone", func(c *fiber.Ctx) error {
		return fiber.NewError(fiber.StatusGone, "gone")
	})
	app.Get("/boom", func(c *fiber.Ctx) error {
		return errors.New("connection refused")
	})

	status, body := do(t, app, newRequest("POST", "/dto", `{"email":"nope","quantity":"-1"}`, nil))
	assert.Equal(t, 422, status)
	assert.Equal(t, map[string]any{"email": "email", "quantity": "gte"}, body["errors"])

	status, body = do(t, app, newRequest("POST", "/dto", `{"email":`, nil))
	assert.Equal(t, 400, status)
	assert.Equal(t, "invalid request body", body["message"])

	status, _ = do(t, app, newRequest("POST", "/dto", `{"email":"ada@example.com","quantity":"2.5"}`, nil))
	assert.Equal(t, 200, status)

	status, body = do(t, app, newRequest("GET", "/ledger", "", nil))
	assert.Equal(t, 422, status)
	assert.Equal(t, map[string]any{"items[0].quantity": "must not be negative"}, body["errors"])

	status, body = do(t, app, newRequest("GET", "/gone", "", nil))
	assert.Equal(t, 410, status)
	assert.Equal(t, "gone", body["message"])

	status, body = do(t, app, newRequest("GET", "/boom", "", nil))
	assert.Equal(t, 500, status)
	assert.Equal(t, "internal server error", body["message"])
}

func Test_fieldPath(t *testing.T) {
	assert.Equal(t, "items[0].quantity", fieldPath("invoiceCreateDTO.items[0].quantity"))
	assert.Equal(t, "email", fieldPath("email"))
}

func Test_requestHash(t *testing.T) {
	base := requestHash("POST", "/api/invoice", []byte(`{"a":1}`), "u1")
	assert.Len(t, base, 64)
	assert.Equal(t, base, requestHash("POST", "/api/invoice", []byte(`{"a":1}`), "u1"))
	assert.NotEqual(t, base, requestHash("POST", "/api/invoice", []byte(`{"a":2}`), "u1"))
	assert.NotEqual(t, base, requestHash("POST", "/api/invoice", []byte(`{"a":1}`), "u2"))
	assert.NotEqual(t, base, requestHash("PUT", "/api/invoice", []byte(`{"a":1}`), "u1"))
}

func Test_Idempotency_PassThrough(t *testing.T) {
	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler})
	app.Use(Idempotency())
	app.All("/x", func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusNoContent) })

	// reads and keyless writes never touch the store
	status, _ := do(t, app, newRequest("GET", "/x", "", map[string]string{"Idempotency-Key": "k"}))
	assert.Equal(t, 204, status)
	status, _ = do(t, app, newRequest("POST", "/x", "{}", nil))
	assert.Equal(t, 204, status)

	status, _ = do(t, app, newRequest("POST", "/x", "{}", map[string]string{
		"Idempotency-Key": strings.Repeat("k", 129),
	}))
	assert.Equal(t, 400, status)

	// keyed write without an authenticated user
	status, _ = do(t, app, newRequest("POST", "/x", "{}", map[string]string{"Idempotency-Key": "k"}))
	assert.Equal(t, 401, status)
}

func Test_classifyKey(t *testing.T) {
	now := time.Date(2024, 2, 16, 12, 0, 0, 0, time.UTC)
	hash := requestHash("POST", "/api/invoice", []byte(`{"a":1}`), "u1")

	cases := map[string]struct {
		rec  models.IdempotencyKey
		hash string
		want keyAction
	}{
		"completed repeat replays": {
			models.IdempotencyKey{RequestHash: hash, ResponseStatus: 201, CreatedAt: now.Add(-time.Hour)}, hash, keyReplay,
		},
		"pending repeat waits": {
			models.IdempotencyKey{RequestHash: hash, CreatedAt: now.Add(-time.Second)}, hash, keyInProgress,
		},
		"stale pending is reclaimed": {
			models.IdempotencyKey{RequestHash: hash, CreatedAt: now.Add(-staleAfter - time.Second)}, hash, keyRun,
		},
		"different body conflicts": {
			models.IdempotencyKey{RequestHash: hash, ResponseStatus: 201}, "other", keyMismatch,
		},
		"different body never reclaims": {
			models.IdempotencyKey{RequestHash: hash, CreatedAt: now.Add(-time.Hour)}, "other", keyMismatch,
		},
	}
	for name, tc := range cases {
		assert.Equal(t, tc.want, classifyKey(&tc.rec, tc.hash, now), name)
	}
}

func Test_replayResponse(t *testing.T) {
	rec := models.IdempotencyKey{
		RequestHash:    "h",
		ResponseStatus: 201,
		ResponseBody:   []byte(`{"id":"INV-2024-001","status":"pending"}`),
	}
	calls := 0
	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler})
	app.Post("/api/invoice", func(c *fiber.Ctx) error {
		if classifyKey(&rec, "h", time.Now()) == keyReplay {
			return replayResponse(c, &rec)
		}
		calls++
		return c.SendStatus(fiber.StatusCreated)
	})

	for i := 0; i < 2; i++ {
		resp, err := app.Test(newRequest("POST", "/api/invoice", "{}", nil))
		require.NoError(t, err)
		var body map[string]any
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		resp.Body.Close()

		assert.Equal(t, 201, resp.StatusCode)
		assert.Equal(t, "true", resp.Header.Get("Idempotent-Replayed"))
		assert.Equal(t, "INV-2024-001", body["id"])
	}
	assert.Zero(t, calls)
}
