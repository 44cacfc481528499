// Package client talks to the invoice API over HTTP.
package client

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"invoice-ledger/ledger"
	"invoice-ledger/reports"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"
)

const DefaultTimeout = 30 * time.Second

// APIError is a non-2xx answer from the API.
type APIError struct {
	StatusCode int               `json:"-"`
	Message    string            `json:"message"`
	Errors     map[string]string `json:"errors,omitempty"`
}

func (e *APIError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = http.StatusText(e.StatusCode)
	}
	if len(e.Errors) == 0 {
		return fmt.Sprintf("api: %d %s", e.StatusCode, msg)
	}
	fields := make([]string, 0, len(e.Errors))
	for field, problem := range e.Errors {
		fields = append(fields, field+" "+problem)
	}
	sort.Strings(fields)
	return fmt.Sprintf("api: %d %s: %s", e.StatusCode, msg, strings.Join(fields, "; "))
}

// Temporary reports whether repeating the same request may succeed.
func (e *APIError) Temporary() bool {
	return e.StatusCode >= 500 || e.StatusCode == http.StatusConflict || e.StatusCode == http.StatusTooManyRequests
}

type User struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

type Session struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	User      User      `json:"user"`
}

// InvoiceSummary is an invoice as listed by the API.
type InvoiceSummary struct {
	ID          string            `json:"id"`
	Client      string            `json:"client"`
	Email       string            `json:"email"`
	IssueDate   ledger.Date       `json:"issue_date"`
	DueDate     ledger.Date       `json:"due_date"`
	Total       decimal.Decimal   `json:"total"`
	Outstanding decimal.Decimal   `json:"outstanding"`
	Status      ledger.Status     `json:"status"`
	Appearance  ledger.Appearance `json:"appearance"`
}

type InvoicePage struct {
	Invoices []InvoiceSummary `json:"invoices"`
	Total    int64            `json:"total"`
	Page     int              `json:"page"`
	Limit    int              `json:"limit"`
}

// ListOptions filters ListInvoices. Zero values are left to the server.
type ListOptions struct {
	Query  string
	Status *ledger.Status
	Page   int
	Limit  int
}

// Client is safe for concurrent use once configured.
type Client struct {
	rc *resty.Client
}

func New(baseURL string) *Client {
	rc := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetTimeout(DefaultTimeout).
		SetHeader("Accept", "application/json").
		SetError(&APIError{})
	return &Client{rc: rc}
}

// SetToken installs a bearer token, e.g. one saved from an earlier Login.
func (c *Client) SetToken(token string) *Client {
	c.rc.SetAuthToken(token)
	return c
}

func (c *Client) Token() string {
	return c.rc.Token
}

func (c *Client) SetTimeout(d time.Duration) *Client {
	c.rc.SetTimeout(d)
	return c
}

func (c *Client) Register(ctx context.Context, name, email, password string) (*User, error) {
	var user User
	body := map[string]string{
		"name":             name,
		"email":            email,
		"password":         password,
		"password_confirm": password,
	}
	if err := c.do(ctx, c.rc.R().SetBody(body).SetResult(&user), http.MethodPost, "/api/register"); err != nil {
		return nil, err
	}
	return &user, nil
}

// Login authenticates and keeps the token for later calls.
func (c *Client) Login(ctx context.Context, email, password string) (*Session, error) {
	var session Session
	body := map[string]string{"email": email, "password": password}
	if err := c.do(ctx, c.rc.R().SetBody(body).SetResult(&session), http.MethodPost, "/api/login"); err != nil {
		return nil, err
	}
	c.SetToken(session.Token)
	return &session, nil
}

// SubmitInvoice posts a finalized draft. The key travels as the
// Idempotency-Key header so a retried submission yields the same invoice.
func (c *Client) SubmitInvoice(ctx context.Context, idempotencyKey string, payload ledger.Payload) (*ledger.Receipt, error) {
	var receipt ledger.Receipt
	req := c.rc.R().
		SetHeader("Idempotency-Key", idempotencyKey).
		SetBody(payload).
		SetResult(&receipt)
	if err := c.do(ctx, req, http.MethodPost, "/api/invoice"); err != nil {
		return nil, err
	}
	if receipt.ID == "" {
		return nil, fmt.Errorf("api: receipt without invoice id")
	}
	return &receipt, nil
}

func (c *Client) ListInvoices(ctx context.Context, opts ListOptions) (*InvoicePage, error) {
	var page InvoicePage
	req := c.rc.R().SetResult(&page)
	if opts.Query != "" {
		req.SetQueryParam("q", opts.Query)
	}
	if opts.Status != nil {
		req.SetQueryParam("status", opts.Status.String())
	}
	if opts.Page > 0 {
		req.SetQueryParam("page", strconv.Itoa(opts.Page))
	}
	if opts.Limit > 0 {
		req.SetQueryParam("limit", strconv.Itoa(opts.Limit))
	}
	if err := c.do(ctx, req, http.MethodGet, "/api/invoices"); err != nil {
		return nil, err
	}
	return &page, nil
}

func (c *Client) Dashboard(ctx context.Context, months int) (*reports.Summary, error) {
	var summary reports.Summary
	req := c.rc.R().SetResult(&summary)
	if months > 0 {
		req.SetQueryParam("months", strconv.Itoa(months))
	}
	if err := c.do(ctx, req, http.MethodGet, "/api/dashboard"); err != nil {
		return nil, err
	}
	return &summary, nil
}

func (c *Client) do(ctx context.Context, req *resty.Request, method, path string) error {
	resp, err := req.SetContext(ctx).Execute(method, path)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	if !resp.IsError() {
		return nil
	}
	apiErr, ok := resp.Error().(*APIError)
	if !ok || apiErr == nil {
		apiErr = &APIError{}
	}
	apiErr.StatusCode = resp.StatusCode()
	return apiErr
}
