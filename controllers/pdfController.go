package controllers

import (
	"bytes"

	"invoice-ledger/database"
	"invoice-ledger/middlewares"
	"invoice-ledger/pdf"

	"github.com/gofiber/fiber/v2"
)

func GetInvoicePDF(c *fiber.Ctx) error {
	db, err := database.GetDB(c)
	if err != nil {
		return err
	}
	inv, err := findInvoice(db, middlewares.UserID(c), c.Params("id"), false)
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	if err := pdf.Render(&buf, inv, now()); err != nil {
		return err
	}

	c.Set(fiber.HeaderContentType, "application/pdf")
	c.Set(fiber.HeaderContentDisposition, `attachment; filename="`+inv.Number+`.pdf"`)
	return c.Send(buf.Bytes())
}
