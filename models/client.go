package models

import "time"

// Client is a billed party, collected from submitted invoices.
type Client struct {
	Id        uint      `json:"id" gorm:"primaryKey"`
	UserID    string    `json:"-" gorm:"size:36;not null;uniqueIndex:idx_clients_user_email,priority:1"`
	Name      string    `json:"name" gorm:"not null"`
	Email     string    `json:"email" gorm:"not null;size:255;uniqueIndex:idx_clients_user_email,priority:2"`
	Invoices  int64     `json:"invoices" gorm:"->;-:migration"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
