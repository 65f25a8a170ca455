package config

import (
	"fmt"
	"os"
)

// TwilioConfig holds SMS delivery credentials.
type TwilioConfig struct {
	AccountSID string
	AuthToken  string
	From       string
}

// ResendConfig holds email delivery credentials.
type ResendConfig struct {
	APIKey string
	From   string
}

// CloudinaryConfig holds document/image upload settings.
type CloudinaryConfig struct {
	CloudName    string
	UploadPreset string
}

// Config holds the application configuration. Everything is loaded once
// here and passed explicitly at construction; nothing reads the
// environment after startup.
type Config struct {
	Port         string
	DatabaseURL  string
	JWTSecret    string
	FrontendURL  string
	ErrorLogPath string

	Twilio     TwilioConfig
	Resend     ResendConfig
	Cloudinary CloudinaryConfig

	// DevMode enables the fixed OTP bypass code. Never enable in
	// production.
	DevMode bool
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		Port:         "8080", // default port
		FrontendURL:  "http://localhost:3000",
		ErrorLogPath: "logs/errors.log",
	}

	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL environment variable is required")
	}
	cfg.DatabaseURL = databaseURL

	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET environment variable is required")
	}
	cfg.JWTSecret = jwtSecret

	if port := os.Getenv("PORT"); port != "" {
		cfg.Port = port
	}
	if frontend := os.Getenv("FRONTEND_URL"); frontend != "" {
		cfg.FrontendURL = frontend
	}
	if logPath := os.Getenv("ERROR_LOG_PATH"); logPath != "" {
		cfg.ErrorLogPath = logPath
	}

	// Delivery credentials are optional at startup; the notification
	// client reports them missing at send time.
	cfg.Twilio = TwilioConfig{
		AccountSID: os.Getenv("TWILIO_ACCOUNT_SID"),
		AuthToken:  os.Getenv("TWILIO_AUTH_TOKEN"),
		From:       os.Getenv("TWILIO_PHONE_NUMBER"),
	}
	cfg.Resend = ResendConfig{
		APIKey: os.Getenv("RESEND_API_KEY"),
		From:   os.Getenv("RESEND_FROM"),
	}
	cfg.Cloudinary = CloudinaryConfig{
		CloudName:    os.Getenv("CLOUDINARY_CLOUD_NAME"),
		UploadPreset: os.Getenv("CLOUDINARY_UPLOAD_PRESET"),
	}

	cfg.DevMode = os.Getenv("DEV_MODE") == "true"

	return cfg, nil
}
