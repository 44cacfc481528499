package controllers

import (
	"errors"

	"invoice-ledger/database"
	"invoice-ledger/ledger"
	"invoice-ledger/middlewares"
	"invoice-ledger/models"
	"invoice-ledger/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"github.com/shopspring/decimal"
)

type paymentCreateDTO struct {
	Amount    decimal.Decimal `json:"amount" validate:"gt=0"`
	Method    string          `json:"method" validate:"omitempty,oneof=bank_transfer card cash other" normalize:"lower"`
	Reference string          `json:"reference" validate:"max=255"`
	Note      string          `json:"note" validate:"max=1000"`
	PaidAt    string          `json:"paid_at" validate:"omitempty,datetime=2006-01-02"`
}

// CreatePayment records a payment. Once payments cover the total, the
// invoice is paid as of the payment date.
func CreatePayment(c *fiber.Ctx) error {
	var data paymentCreateDTO
	if err := c.BodyParser(&data); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	utils.NormalizeDTO(&data)
	if err := middlewares.ValidateStruct(data); err != nil {
		return err
	}

	verr := &ledger.ValidationError{}
	if !withinScale(data.Amount, 2) {
		verr.Add("amount", "has too many decimal places")
	}
	paidAt := ledger.NewDate(now().UTC())
	if data.PaidAt != "" {
		d, err := ledger.ParseDate(data.PaidAt)
		if err != nil {
			verr.Add("paid_at", "is not a valid date")
		}
		paidAt = d
	}
	if err := verr.Err(); err != nil {
		return err
	}

	db, err := database.GetDB(c)
	if err != nil {
		return err
	}
	inv, err := findInvoice(db, middlewares.UserID(c), c.Params("id"), true)
	if err != nil {
		return err
	}
	outstanding := inv.Outstanding()
	settled, err := inv.ApplyPayment(data.Amount, paidAt.Time)
	switch {
	case errors.Is(err, models.ErrInvoicePaid):
		return fiber.NewError(fiber.StatusConflict, err.Error())
	case errors.Is(err, models.ErrOverpayment):
		verr.Add("amount", "exceeds the outstanding balance of "+ledger.FormatWithSymbol(outstanding))
		return verr
	case err != nil:
		return err
	}

	method := data.Method
	if method == "" {
		method = "bank_transfer"
	}
	payment := models.Payment{
		InvoiceID: inv.ID,
		Amount:    data.Amount,
		Method:    method,
		Reference: data.Reference,
		Note:      data.Note,
		PaidAt:    paidAt.Time,
	}
	if err := db.Create(&payment).Error; err != nil {
		return err
	}

	updates := map[string]any{"paid_total": inv.PaidTotal}
	if settled {
		updates["paid_at"] = *inv.PaidAt
	}
	if err := db.Model(inv).Updates(updates).Error; err != nil {
		return err
	}
	if err := snapshotVersion(db, inv, models.VersionPayment); err != nil {
		return err
	}

	log.Infow("payment recorded", "number", inv.Number, "amount", data.Amount.StringFixed(2), "paid", inv.PaidAt != nil)
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"payment": payment,
		"invoice": newInvoiceResponse(inv, now()),
	})
}

func ListPayments(c *fiber.Ctx) error {
	db, err := database.GetDB(c)
	if err != nil {
		return err
	}
	inv, err := findInvoice(db, middlewares.UserID(c), c.Params("id"), false)
	if err != nil {
		return err
	}
	var payments []models.Payment
	if err := db.Where("invoice_id = ?", inv.ID).Order("paid_at, id").Find(&payments).Error; err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"invoice":     inv.Number,
		"paid_total":  inv.PaidTotal,
		"outstanding": inv.Outstanding(),
		"payments":    payments,
	})
}
