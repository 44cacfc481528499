package controllers

import (
	"invoice-ledger/database"
	"invoice-ledger/middlewares"
	"invoice-ledger/models"

	"github.com/gofiber/fiber/v2"
)

// GetClients lists the parties the user has billed, with invoice counts.
func GetClients(c *fiber.Ctx) error {
	db, err := database.GetDB(c)
	if err != nil {
		return err
	}

	var clients []models.Client
	if err := db.Model(&models.Client{}).
		Select("clients.*, COUNT(invoices.id) AS invoices").
		Joins("LEFT JOIN invoices ON invoices.client_id = clients.id").
		Where("clients.user_id = ?", middlewares.UserID(c)).
		Group("clients.id").
		Order("clients.name").
		Find(&clients).Error; err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"clients": clients,
		"message": "success",
	})
}
