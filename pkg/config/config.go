package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Port          string `envconfig:"PORT" default:"8080"`
	Env           string `envconfig:"ENV" default:"development"`
	LogLevel      string `envconfig:"LOG_LEVEL" default:"info"`
	PublicBaseURL string `envconfig:"PUBLIC_BASE_URL" default:"http://localhost:8080"`
	UploadDir     string `envconfig:"UPLOAD_DIR" default:"uploads"`
	MaxUploadSize int    `envconfig:"MAX_UPLOAD_BYTES" default:"33554432"`
	CORSOrigins   string `envconfig:"CORS_ORIGINS" default:"*"`

	// Empty DatabaseURL selects the in-memory repository.
	DatabaseURL string `envconfig:"DATABASE_URL"`
	// Empty RedisURL disables webhook redelivery de-duplication.
	RedisURL string `envconfig:"REDIS_URL"`

	// MinIO archive mirror, disabled when MinioEndpoint is empty
	MinioEndpoint  string `envconfig:"MINIO_ENDPOINT"`
	MinioAccessKey string `envconfig:"MINIO_ACCESS_KEY"`
	MinioSecretKey string `envconfig:"MINIO_SECRET_KEY"`
	MinioBucket    string `envconfig:"MINIO_BUCKET" default:"wabarelay-media"`
	MinioUseSSL    bool   `envconfig:"MINIO_USE_SSL" default:"false"`

	// Gateway
	AccessToken        string `envconfig:"ACCESS_TOKEN"`
	VerifyToken        string `envconfig:"VERIFY_TOKEN"`
	WhatsAppAPIURL     string `envconfig:"WHATSAPP_API_URL"`
	GraphAPIURL        string `envconfig:"GRAPH_API_URL" default:"https://graph.facebook.com/v19.0"`
	PhoneNumberID      string `envconfig:"PHONE_NUMBER_ID"`
	GatewayUploadMedia bool   `envconfig:"GATEWAY_UPLOAD_MEDIA" default:"false"`
	AutoReplyText      string `envconfig:"AUTO_REPLY_TEXT"`
	SelfID             string `envconfig:"SELF_ID" default:"me"`

	// Live stream
	HeartbeatInterval time.Duration `envconfig:"HEARTBEAT_INTERVAL" default:"25s"`
	SubscriberBuffer  int           `envconfig:"SUBSCRIBER_BUFFER" default:"64"`

	// Transcoding
	FFmpegPath       string        `envconfig:"FFMPEG_PATH" default:"ffmpeg"`
	FFprobePath      string        `envconfig:"FFPROBE_PATH" default:"ffprobe"`
	TranscodeTimeout time.Duration `envconfig:"TRANSCODE_TIMEOUT" default:"2m"`
}

// Load reads an optional .env file and then the process environment.
func Load() (*Config, error) {
	_ = godotenv.Load(".env")

	var c Config
	if err := envconfig.Process("", &c); err != nil {
		return nil, fmt.Errorf("unable to process env config: %w", err)
	}
	c.PublicBaseURL = strings.TrimRight(c.PublicBaseURL, "/")
	return &c, nil
}

// MessagesURL is the gateway endpoint outbound messages are posted to.
func (c *Config) MessagesURL() string {
	if c.WhatsAppAPIURL != "" {
		return c.WhatsAppAPIURL
	}
	if c.PhoneNumberID == "" {
		return ""
	}
	return strings.TrimRight(c.GraphAPIURL, "/") + "/" + c.PhoneNumberID + "/messages"
}

// MediaUploadURL is the gateway endpoint for pre-uploading media.
func (c *Config) MediaUploadURL() string {
	if c.PhoneNumberID == "" {
		return ""
	}
	return strings.TrimRight(c.GraphAPIURL, "/") + "/" + c.PhoneNumberID + "/media"
}

func (c *Config) Origins() []string {
	origins := strings.Split(c.CORSOrigins, ",")
	for i := range origins {
		origins[i] = strings.TrimSpace(origins[i])
	}
	return origins
}

func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}
