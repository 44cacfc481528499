package controllers

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"sync"
	"time"

	"invoice-ledger/database"
	"invoice-ledger/ledger"
	"invoice-ledger/middlewares"
	"invoice-ledger/models"
	"invoice-ledger/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Quantities and unit prices are stored as numeric(12,4), line totals as
// numeric(14,4) and invoice amounts as numeric(12,2).
const maxItemScale = 4

var (
	maxLineTotal = decimal.RequireFromString("9999999999.9999")
	maxAmount    = decimal.RequireFromString("9999999999.99")
)

var (
	// now is swapped in tests.
	now = time.Now

	taxMu   sync.RWMutex
	taxRate = ledger.DefaultTaxRate
)

// SetTaxRate sets the rate applied to new invoices.
func SetTaxRate(rate decimal.Decimal) {
	taxMu.Lock()
	defer taxMu.Unlock()
	taxRate = rate
}

func currentTaxRate() decimal.Decimal {
	taxMu.RLock()
	defer taxMu.RUnlock()
	return taxRate
}

type invoiceItemDTO struct {
	Description string          `json:"description" validate:"required,max=500"`
	Quantity    decimal.Decimal `json:"quantity" validate:"gte=0,lte=99999999.9999"`
	UnitPrice   decimal.Decimal `json:"unit_price" validate:"gte=0,lte=99999999.9999"`
}

type invoiceCreateDTO struct {
	Client    string           `json:"client" validate:"required,max=255"`
	Email     string           `json:"email" validate:"required,email,max=255" normalize:"lower"`
	IssueDate string           `json:"issue_date" validate:"required,datetime=2006-01-02"`
	DueDate   string           `json:"due_date" validate:"required,datetime=2006-01-02"`
	Items     []invoiceItemDTO `json:"items" validate:"required,min=1,max=200,dive"`
	Subtotal  decimal.Decimal  `json:"subtotal"`
	TaxAmount decimal.Decimal  `json:"tax_amount"`
	Total     decimal.Decimal  `json:"total"`
}

type invoiceUpdateDTO struct {
	Client  *string `json:"client" column:"client_name" validate:"omitnil,min=1,max=255"`
	Email   *string `json:"email" validate:"omitnil,email,max=255" normalize:"lower"`
	DueDate *string `json:"due_date" validate:"omitnil,datetime=2006-01-02"`
}

// buildDraft replays the submitted items through a ledger draft and checks
// that the client's totals agree with ours to the cent.
func buildDraft(dto invoiceCreateDTO, rate decimal.Decimal, id string) (*ledger.Draft, ledger.Header, error) {
	verr := &ledger.ValidationError{}

	issue, err := ledger.ParseDate(dto.IssueDate)
	if err != nil {
		verr.Add("issue_date", "is not a valid date")
	}
	due, err := ledger.ParseDate(dto.DueDate)
	if err != nil {
		verr.Add("due_date", "is not a valid date")
	}

	items := make([]ledger.LineItem, 0, len(dto.Items))
	for i, it := range dto.Items {
		prefix := "items[" + strconv.Itoa(i) + "]."
		if !withinScale(it.Quantity, maxItemScale) {
			verr.Add(prefix+"quantity", "has too many decimal places")
		}
		if !withinScale(it.UnitPrice, maxItemScale) {
			verr.Add(prefix+"unit_price", "has too many decimal places")
		}
		if it.Quantity.Mul(it.UnitPrice).GreaterThan(maxLineTotal) {
			verr.Add(prefix+"unit_price", "line total is too large")
		}
		items = append(items, ledger.LineItem{
			Description: it.Description,
			Quantity:    it.Quantity,
			UnitPrice:   it.UnitPrice,
		})
	}
	if err := verr.Err(); err != nil {
		return nil, ledger.Header{}, err
	}

	opts := []ledger.Option{ledger.WithTaxRate(rate), ledger.WithItems(items...)}
	if id != "" {
		opts = append(opts, ledger.WithID(id))
	}
	draft, err := ledger.NewDraft(opts...)
	if err != nil {
		return nil, ledger.Header{}, err
	}

	header := ledger.Header{
		Client:    dto.Client,
		Email:     dto.Email,
		IssueDate: issue,
		DueDate:   due,
	}

	want := draft.Totals().Rounded()
	if want.Total.GreaterThan(maxAmount) {
		verr.Add("total", "is too large")
		return nil, ledger.Header{}, verr
	}
	if !dto.Subtotal.Round(2).Equal(want.Subtotal) {
		verr.Add("subtotal", "does not match the line items")
	}
	if !dto.TaxAmount.Round(2).Equal(want.TaxAmount) {
		verr.Add("tax_amount", "does not match the line items")
	}
	// A client may round the exact total instead of summing rounded parts.
	total := dto.Total.Round(2)
	if !total.Equal(want.Total) && !total.Equal(draft.Totals().Total.Round(2)) {
		verr.Add("total", "does not match the line items")
	}
	if err := verr.Err(); err != nil {
		return nil, ledger.Header{}, err
	}
	return draft, header, nil
}

func withinScale(d decimal.Decimal, places int32) bool {
	return d.Equal(d.Round(places))
}

// invoiceStore persists a finalized draft inside the request transaction.
type invoiceStore struct {
	db      *gorm.DB
	userID  string
	rate    decimal.Decimal
	created *models.Invoice
}

func (s *invoiceStore) SubmitInvoice(ctx context.Context, idempotencyKey string, p ledger.Payload) (*ledger.Receipt, error) {
	db := s.db.WithContext(ctx)
	ts := now()

	client, err := upsertClient(db, s.userID, p.Client, p.Email)
	if err != nil {
		return nil, err
	}

	number, err := database.NextInvoiceNumber(db, ts.Year())
	if err != nil {
		return nil, err
	}

	inv := models.Invoice{
		Number:     number,
		UserID:     s.userID,
		ClientID:   client.Id,
		ClientName: p.Client,
		Email:      p.Email,
		IssueDate:  p.IssueDate.Time,
		DueDate:    p.DueDate.Time,
		Subtotal:   p.Subtotal,
		TaxRate:    s.rate,
		TaxAmount:  p.TaxAmount,
		Total:      p.Total,
		PaidTotal:  decimal.Zero,
	}
	for i, it := range p.Items {
		inv.Items = append(inv.Items, models.InvoiceItem{
			Position:    i + 1,
			Description: it.Description,
			Quantity:    it.Quantity,
			UnitPrice:   it.UnitPrice,
			LineTotal:   it.Quantity.Mul(it.UnitPrice),
		})
	}
	inv.Settle(ts)
	if err := db.Create(&inv).Error; err != nil {
		return nil, err
	}
	if err := snapshotVersion(db, &inv, models.VersionSubmitted); err != nil {
		return nil, err
	}

	log.Infow("invoice submitted", "number", inv.Number, "user_id", s.userID, "draft", idempotencyKey)
	s.created = &inv
	return &ledger.Receipt{
		ID:        inv.Number,
		Status:    inv.StatusAt(ts),
		Total:     inv.Total,
		CreatedAt: inv.CreatedAt,
	}, nil
}

func upsertClient(db *gorm.DB, userID, name, email string) (models.Client, error) {
	var client models.Client
	err := db.Where(models.Client{UserID: userID, Email: email}).
		Assign(models.Client{Name: name}).
		FirstOrCreate(&client).Error
	return client, err
}

// snapshotVersion stores the invoice as the next immutable version.
func snapshotVersion(db *gorm.DB, inv *models.Invoice, kind string) error {
	var last int
	if err := db.Model(&models.InvoiceVersion{}).
		Where("invoice_id = ?", inv.ID).
		Select("COALESCE(MAX(version_no), 0)").
		Scan(&last).Error; err != nil {
		return err
	}
	blob, err := json.Marshal(newInvoiceResponse(inv, now()))
	if err != nil {
		return err
	}
	return db.Create(&models.InvoiceVersion{
		InvoiceID: inv.ID,
		VersionNo: last + 1,
		Kind:      kind,
		Snapshot:  datatypes.JSON(blob),
	}).Error
}

// findInvoice loads one of the user's invoices by number, optionally
// locking the row for the rest of the transaction.
func findInvoice(db *gorm.DB, userID, number string, lock bool) (*models.Invoice, error) {
	if _, _, err := database.ParseInvoiceNumber(number); err != nil {
		return nil, fiber.NewError(fiber.StatusNotFound, "invoice not found")
	}
	q := db.Scopes(database.ForUser(userID)).Where("number = ?", number)
	if lock {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var inv models.Invoice
	if err := q.First(&inv).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fiber.NewError(fiber.StatusNotFound, "invoice not found")
		}
		return nil, err
	}
	if err := db.Where("invoice_id = ?", inv.ID).Order("position").Find(&inv.Items).Error; err != nil {
		return nil, err
	}
	return &inv, nil
}

func CreateInvoice(c *fiber.Ctx) error {
	var data invoiceCreateDTO
	if err := c.BodyParser(&data); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	utils.NormalizeDTO(&data)
	if err := middlewares.ValidateStruct(data); err != nil {
		return err
	}

	rate := currentTaxRate()
	draft, header, err := buildDraft(data, rate, c.Get("Idempotency-Key"))
	if err != nil {
		return err
	}

	db, err := database.GetDB(c)
	if err != nil {
		return err
	}
	store := &invoiceStore{db: db, userID: middlewares.UserID(c), rate: rate}
	if _, err := draft.Submit(c.UserContext(), store, header); err != nil {
		return err
	}

	return c.Status(fiber.StatusCreated).JSON(newInvoiceResponse(store.created, now()))
}

func GetInvoices(c *fiber.Ctx) error {
	db, err := database.GetDB(c)
	if err != nil {
		return err
	}

	page, limit := database.NormalizePage(
		utils.ParseIntDefault(c.Query("page"), 1),
		utils.ParseIntDefault(c.Query("limit"), database.DefaultPageSize),
	)
	ts := now()

	base := db.Model(&models.Invoice{}).
		Scopes(database.ForUser(middlewares.UserID(c)), database.Search(c.Query("q")))
	if s := c.Query("status"); s != "" {
		status, err := ledger.ParseStatus(s)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "status must be one of paid, pending, overdue")
		}
		base = base.Scopes(database.WithStatus(status, ts))
	}
	base = base.Session(&gorm.Session{})

	var total int64
	if err := base.Count(&total).Error; err != nil {
		return err
	}

	var invoices []models.Invoice
	if err := base.Scopes(database.Paginate(page, limit)).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("position") }).
		Order("issue_date DESC, id DESC").
		Find(&invoices).Error; err != nil {
		return err
	}

	out := make([]invoiceResponse, 0, len(invoices))
	for i := range invoices {
		out = append(out, newInvoiceResponse(&invoices[i], ts))
	}
	return c.JSON(fiber.Map{
		"invoices": out,
		"total":    total,
		"page":     page,
		"limit":    limit,
	})
}

func GetInvoice(c *fiber.Ctx) error {
	db, err := database.GetDB(c)
	if err != nil {
		return err
	}
	inv, err := findInvoice(db, middlewares.UserID(c), c.Params("id"), false)
	if err != nil {
		return err
	}
	return c.JSON(newInvoiceResponse(inv, now()))
}

func UpdateInvoice(c *fiber.Ctx) error {
	var data invoiceUpdateDTO
	if err := c.BodyParser(&data); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	utils.NormalizeDTO(&data)
	if err := middlewares.ValidateStruct(data); err != nil {
		return err
	}

	updates := utils.PatchColumns(&data)
	if len(updates) == 0 {
		return fiber.NewError(fiber.StatusBadRequest, "nothing to update")
	}

	db, err := database.GetDB(c)
	if err != nil {
		return err
	}
	userID := middlewares.UserID(c)
	inv, err := findInvoice(db, userID, c.Params("id"), true)
	if err != nil {
		return err
	}
	if inv.PaidAt != nil {
		return fiber.NewError(fiber.StatusConflict, "paid invoices cannot be changed")
	}

	if data.DueDate != nil {
		due, err := ledger.ParseDate(*data.DueDate)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid due_date")
		}
		if due.Before(inv.IssueDate) {
			verr := &ledger.ValidationError{}
			verr.Add("due_date", "must not be before the issue date")
			return verr
		}
		updates["due_date"] = due.Time
	}

	if data.Client != nil || data.Email != nil {
		name, email := inv.ClientName, inv.Email
		if data.Client != nil {
			name = *data.Client
		}
		if data.Email != nil {
			email = *data.Email
		}
		client, err := upsertClient(db, userID, name, email)
		if err != nil {
			return err
		}
		updates["client_id"] = client.Id
	}

	if err := db.Model(inv).Updates(updates).Error; err != nil {
		return err
	}
	inv, err = findInvoice(db, userID, inv.Number, false)
	if err != nil {
		return err
	}
	if err := snapshotVersion(db, inv, models.VersionUpdated); err != nil {
		return err
	}
	return c.JSON(newInvoiceResponse(inv, now()))
}

func DeleteInvoice(c *fiber.Ctx) error {
	db, err := database.GetDB(c)
	if err != nil {
		return err
	}
	inv, err := findInvoice(db, middlewares.UserID(c), c.Params("id"), true)
	if err != nil {
		return err
	}
	if inv.PaidAt != nil || inv.PaidTotal.IsPositive() {
		return fiber.NewError(fiber.StatusConflict, "invoices with payments cannot be deleted")
	}

	if err := db.Where("invoice_id = ?", inv.ID).Delete(&models.InvoiceVersion{}).Error; err != nil {
		return err
	}
	if err := db.Select("Items").Delete(inv).Error; err != nil {
		return err
	}
	log.Infow("invoice deleted", "number", inv.Number, "user_id", inv.UserID)
	return c.SendStatus(fiber.StatusNoContent)
}

func GetInvoiceVersions(c *fiber.Ctx) error {
	db, err := database.GetDB(c)
	if err != nil {
		return err
	}
	inv, err := findInvoice(db, middlewares.UserID(c), c.Params("id"), false)
	if err != nil {
		return err
	}
	var versions []models.InvoiceVersion
	if err := db.Where("invoice_id = ?", inv.ID).Order("version_no").Find(&versions).Error; err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"invoice":  inv.Number,
		"versions": versions,
	})
}
