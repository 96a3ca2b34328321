package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application.
// It is built once at process start and passed into each component,
// so nothing reads the environment after Load returns.
type Config struct {
	// Environment
	RunMode string // Set via flag, not env

	// ClickUp API
	ClickUpToken   string
	ClickUpAPIBase string
	ClickUpTeamID  string // Optional; debug endpoint falls back to the first team

	// Lists
	ProjectsListID string
	ClientsListID  string
	InvoicesListID string

	// Custom field IDs in the Projects list
	FieldProjectClient        string
	FieldProjectHourlyRate    string
	FieldProjectTotalPrice    string
	FieldProjectReady         string
	FieldProjectInvoiceNumber string

	// Custom field IDs in the Clients list
	FieldClientShortCode   string
	FieldClientStreet      string
	FieldClientCity        string
	FieldClientZip         string
	FieldClientCountry     string
	FieldClientCompanyID   string
	FieldClientTaxID       string
	FieldClientEmail       string
	FieldClientDueDays     string
	FieldClientShowTracked string

	// Custom field IDs in the Invoices list
	FieldInvoiceNumber     string
	FieldInvoiceClientName string
	FieldInvoiceTotal      string
	FieldInvoiceIssueDate  string
	FieldInvoiceDueDate    string
	FieldInvoicePaid       string
	FieldInvoicePDFLink    string

	// Webhook
	WebhookSecret string

	// Invoicing defaults
	CurrencyCode   string
	DefaultDueDays int
	Timezone       string
	Location       *time.Location

	// Supplier block printed on invoices
	SupplierName        string
	SupplierStreet      string
	SupplierCity        string
	SupplierZip         string
	SupplierCountry     string
	SupplierCompanyID   string
	SupplierTaxID       string
	SupplierBankAccount string

	// Email
	InvoiceSenderEmail string
	InvoiceBCCEmail    string
	ResendAPIKey       string

	// Redis (idempotency markers + task queue)
	RedisAddr      string
	RedisPassword  string
	RedisDB        int
	BatchMarkerTTL time.Duration

	// AWS S3 (optional PDF archive; disabled when bucket is empty)
	AwsAccessKeyID     string
	AwsSecretAccessKey string
	AwsRegion          string
	AwsS3Bucket        string

	// Server
	ApiPort string

	// Rate limiting
	RateLimitBucketSize int
	RateLimitRefillRate int // tokens per second
}

// Load configuration from environment variables.
// RunMode needs to be passed in as it comes from command-line flags.
func Load(runMode string) (*Config, error) {
	// Load .env file, ignoring errors if it doesn't exist
	godotenv.Load()

	cfg := &Config{
		RunMode: runMode, // Set from flag
	}

	var err error

	// Helper function to get env var or default
	getEnv := func(key, defaultValue string) string {
		if value, exists := os.LookupEnv(key); exists {
			return value
		}
		return defaultValue
	}

	// Helper function to get required env var
	getRequiredEnv := func(key string) (string, error) {
		value, exists := os.LookupEnv(key)
		if !exists {
			return "", fmt.Errorf("missing required environment variable: %s", key)
		}
		return value, nil
	}

	cfg.ClickUpToken, err = getRequiredEnv("CLICKUP_API_TOKEN")
	if err != nil {
		return nil, err
	}
	cfg.ClickUpAPIBase = getEnv("CLICKUP_API_BASE", "https://api.clickup.com/api/v2")
	cfg.ClickUpTeamID = getEnv("CLICKUP_TEAM_ID", "")

	cfg.ProjectsListID, err = getRequiredEnv("CLICKUP_PROJECTS_LIST_ID")
	if err != nil {
		return nil, err
	}
	cfg.ClientsListID, err = getRequiredEnv("CLICKUP_CLIENTS_LIST_ID")
	if err != nil {
		return nil, err
	}
	cfg.InvoicesListID, err = getRequiredEnv("CLICKUP_INVOICES_LIST_ID")
	if err != nil {
		return nil, err
	}

	cfg.WebhookSecret, err = getRequiredEnv("WEBHOOK_SECRET")
	if err != nil {
		return nil, err
	}

	// Projects list fields. The first four are stable workspace fields,
	// the invoice number field was added later and is env-configured.
	cfg.FieldProjectTotalPrice = getEnv("CLICKUP_CF_TOTAL_PRICE_ID", "4f368785-f1ac-490e-9131-581c56e110a0")
	cfg.FieldProjectHourlyRate = getEnv("CLICKUP_CF_HOURLY_RATE_ID", "7ed74ee6-bacf-4526-aaa9-1580c689712b")
	cfg.FieldProjectReady = getEnv("CLICKUP_CF_READY_TO_INVOICE_ID", "c1aefd2b-2894-4e45-9edf-0e484a85bc86")
	cfg.FieldProjectClient = getEnv("CLICKUP_CF_PROJECT_CLIENT_NAME_ID", "586f7811-79a0-40a6-ad55-324b98a53824")
	cfg.FieldProjectInvoiceNumber, err = getRequiredEnv("CLICKUP_CF_PROJECT_INVOICE_NUMBER_ID")
	if err != nil {
		return nil, err
	}

	// Clients list fields
	cfg.FieldClientShortCode, err = getRequiredEnv("CLICKUP_CF_CLIENT_SHORT_CODE_ID")
	if err != nil {
		return nil, err
	}
	cfg.FieldClientStreet = getEnv("CLICKUP_CF_CLIENT_STREET_ID", "")
	cfg.FieldClientCity = getEnv("CLICKUP_CF_CLIENT_CITY_ID", "")
	cfg.FieldClientZip = getEnv("CLICKUP_CF_CLIENT_ZIP_ID", "")
	cfg.FieldClientCountry = getEnv("CLICKUP_CF_CLIENT_COUNTRY_ID", "")
	cfg.FieldClientCompanyID = getEnv("CLICKUP_CF_CLIENT_ICO_ID", "")
	cfg.FieldClientTaxID = getEnv("CLICKUP_CF_CLIENT_DIC_ID", "")
	cfg.FieldClientEmail = getEnv("CLICKUP_CF_CLIENT_EMAIL_ID", "")
	cfg.FieldClientDueDays = getEnv("CLICKUP_CF_CLIENT_DEFAULT_DUE_DAYS_ID", "")
	cfg.FieldClientShowTracked = getEnv("CLICKUP_CF_CLIENT_SHOW_TRACKED_TIME_ID", "")

	// Invoices list fields
	cfg.FieldInvoiceNumber, err = getRequiredEnv("CLICKUP_CF_INVOICE_NUMBER_ID")
	if err != nil {
		return nil, err
	}
	cfg.FieldInvoiceClientName = getEnv("CLICKUP_CF_INVOICE_CLIENT_NAME_ID", "")
	cfg.FieldInvoiceTotal = getEnv("CLICKUP_CF_INVOICE_TOTAL_ID", "")
	cfg.FieldInvoiceIssueDate = getEnv("CLICKUP_CF_INVOICE_ISSUE_DATE_ID", "")
	cfg.FieldInvoiceDueDate = getEnv("CLICKUP_CF_INVOICE_DUE_DATE_ID", "")
	cfg.FieldInvoicePaid = getEnv("CLICKUP_CF_INVOICE_PAID_ID", "")
	cfg.FieldInvoicePDFLink = getEnv("CLICKUP_CF_INVOICE_PDF_LINK_ID", "")

	cfg.CurrencyCode = getEnv("INVOICE_CURRENCY", "CZK")
	cfg.Timezone = getEnv("INVOICE_TIMEZONE", "Europe/Prague")
	cfg.Location, err = time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid INVOICE_TIMEZONE %q: %w", cfg.Timezone, err)
	}

	cfg.DefaultDueDays, err = strconv.Atoi(getEnv("INVOICE_DEFAULT_DUE_DAYS", "14"))
	if err != nil {
		return nil, fmt.Errorf("invalid INVOICE_DEFAULT_DUE_DAYS: %w", err)
	}

	cfg.SupplierName = getEnv("SUPPLIER_NAME", "Editra")
	cfg.SupplierStreet = getEnv("SUPPLIER_STREET", "")
	cfg.SupplierCity = getEnv("SUPPLIER_CITY", "")
	cfg.SupplierZip = getEnv("SUPPLIER_ZIP", "")
	cfg.SupplierCountry = getEnv("SUPPLIER_COUNTRY", "")
	cfg.SupplierCompanyID = getEnv("SUPPLIER_ICO", "")
	cfg.SupplierTaxID = getEnv("SUPPLIER_DIC", "")
	cfg.SupplierBankAccount = getEnv("SUPPLIER_BANK_ACCOUNT", "")

	cfg.InvoiceSenderEmail = getEnv("INVOICE_SENDER_EMAIL", "")
	cfg.InvoiceBCCEmail = getEnv("INVOICE_BCC_EMAIL", "")
	cfg.ResendAPIKey = getEnv("RESEND_API_KEY", "")

	cfg.RedisAddr = getEnv("REDIS_ADDR", "localhost:6379")
	cfg.RedisPassword = getEnv("REDIS_PASSWORD", "")
	cfg.RedisDB, err = strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	markerTTLMinutes, err := strconv.ParseInt(getEnv("BATCH_MARKER_TTL_MINUTES", "15"), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid BATCH_MARKER_TTL_MINUTES: %w", err)
	}
	cfg.BatchMarkerTTL = time.Duration(markerTTLMinutes) * time.Minute

	cfg.AwsAccessKeyID = getEnv("AWS_ACCESS_KEY_ID", "")
	cfg.AwsSecretAccessKey = getEnv("AWS_SECRET_ACCESS_KEY", "")
	cfg.AwsRegion = getEnv("AWS_REGION", "")
	cfg.AwsS3Bucket = getEnv("AWS_S3_BUCKET", "")

	cfg.ApiPort = getEnv("API_PORT", "8080")

	cfg.RateLimitBucketSize, err = strconv.Atoi(getEnv("RATE_LIMIT_BUCKET_SIZE", "10"))
	if err != nil {
		return nil, fmt.Errorf("invalid RATE_LIMIT_BUCKET_SIZE: %w", err)
	}
	cfg.RateLimitRefillRate, err = strconv.Atoi(getEnv("RATE_LIMIT_REFILL_RATE", "5"))
	if err != nil {
		return nil, fmt.Errorf("invalid RATE_LIMIT_REFILL_RATE: %w", err)
	}

	return cfg, nil
}
