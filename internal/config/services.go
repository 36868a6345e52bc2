package config

import (
	"os"
	"time"
)

// StorageConfig configures the S3-compatible bucket that holds listing
// images and their thumbnails.
type StorageConfig struct {
	Endpoint      string
	Region        string
	Bucket        string
	AccessKey     string
	SecretKey     string
	UsePathStyle  bool
	PublicBaseURL string // prefix for canonical object URLs; defaults to <endpoint>/<bucket>
	MaxUploadSize int64  // owner single-upload ceiling in bytes
	MaxBatchSize  int64  // batch and admin upload ceiling in bytes
	MaxImages     int    // owner-facing per-listing image ceiling
}

func LoadStorageConfig() StorageConfig {
	return StorageConfig{
		Endpoint:      os.Getenv("S3_ENDPOINT"),
		Region:        envStr("S3_REGION", "us-east-1"),
		Bucket:        os.Getenv("S3_BUCKET"),
		AccessKey:     os.Getenv("S3_ACCESS_KEY"),
		SecretKey:     os.Getenv("S3_SECRET_KEY"),
		UsePathStyle:  envBool("S3_USE_PATH_STYLE", true),
		PublicBaseURL: os.Getenv("S3_PUBLIC_BASE_URL"),
		MaxUploadSize: envInt64("UPLOAD_MAX_BYTES", 10<<20),
		MaxBatchSize:  envInt64("UPLOAD_BATCH_MAX_BYTES", 15<<20),
		MaxImages:     envInt("UPLOAD_MAX_IMAGES", 35),
	}
}

// MailConfig configures the outbound SMTP relay.  Host empty disables mail
// delivery; messages are then only logged.
type MailConfig struct {
	Host     string
	Port     string
	Username string
	Password string
	From     string
	SiteURL  string // used to build links in templates
}

func LoadMailConfig() MailConfig {
	return MailConfig{
		Host:     os.Getenv("SMTP_HOST"),
		Port:     envStr("SMTP_PORT", "465"),
		Username: os.Getenv("SMTP_USERNAME"),
		Password: os.Getenv("SMTP_PASSWORD"),
		From:     envStr("SMTP_FROM", os.Getenv("SMTP_USERNAME")),
		SiteURL:  envStr("SITE_URL", "http://localhost:3000"),
	}
}

// BrokerConfig configures RabbitMQ.  When URL is empty notifications are
// delivered in-process by the background task runner instead.
type BrokerConfig struct {
	URL   string
	Queue string
}

func LoadBrokerConfig() BrokerConfig {
	url := os.Getenv("RABBITMQ_URL")
	if url == "" {
		url = os.Getenv("AMQP_URL")
	}
	return BrokerConfig{
		URL:   url,
		Queue: envStr("NOTIFICATION_QUEUE", "notifications.email"),
	}
}

// WorkflowConfig points at the external automation workflow that performs
// property analysis and search.
type WorkflowConfig struct {
	AnalyzeURL string
	SearchURL  string
	APIKey     string
	Timeout    time.Duration
}

func LoadWorkflowConfig() WorkflowConfig {
	return WorkflowConfig{
		AnalyzeURL: os.Getenv("WORKFLOW_ANALYZE_URL"),
		SearchURL:  os.Getenv("WORKFLOW_SEARCH_URL"),
		APIKey:     os.Getenv("WORKFLOW_API_KEY"),
		Timeout:    envDur("WORKFLOW_TIMEOUT", 2*time.Minute),
	}
}
