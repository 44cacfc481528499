package controllers

import (
	"invoice-ledger/database"
	"invoice-ledger/middlewares"
	"invoice-ledger/models"
	"invoice-ledger/reports"
	"invoice-ledger/utils"

	"github.com/gofiber/fiber/v2"
)

const (
	defaultDashboardMonths = 6
	maxDashboardMonths     = 24
)

func GetDashboard(c *fiber.Ctx) error {
	months := utils.ParseIntDefault(c.Query("months"), defaultDashboardMonths)
	if months < 1 || months > maxDashboardMonths {
		return fiber.NewError(fiber.StatusBadRequest, "months must be between 1 and 24")
	}

	db, err := database.GetDB(c)
	if err != nil {
		return err
	}

	var figures []reports.Figures
	if err := db.Model(&models.Invoice{}).
		Scopes(database.ForUser(middlewares.UserID(c))).
		Select("issue_date, due_date, paid_at, total, paid_total").
		Scan(&figures).Error; err != nil {
		return err
	}

	return c.JSON(reports.Summarize(figures, now(), months))
}
