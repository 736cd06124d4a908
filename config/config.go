package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

type (
	APP struct {
		Name          string
		Host          string
		Port          string
		Env           string
		JWTSecret     string
		PublicBaseURL string
		CORSOrigins   []string
	}
	DB struct {
		User     string
		Password string
		Name     string
		Host     string
		Port     string
	}
	Storage struct {
		Backend string

		// loopback
		LoopbackRoot            string
		LoopbackAllowedPrefixes []string

		// gcs
		GCSEndpoint        string
		GCSAccessID        string
		GCSBucket          string
		GCSPrivateKeyFile  string
		GCSCredentialsFile string

		UploadSlotTTL time.Duration
	}
	Policy struct {
		AllowedContentTypes []string
		AllowedExtensions   []string
		MaxSizeBytes        int64
		SanitizeOnComplete  bool
		JPEGQuality         int
	}
	Signing struct {
		Secret            string
		DefaultTTLMinutes int
		MaxTTLMinutes     int
	}
	MQ struct {
		User         string
		Password     string
		Vhost        string
		Host         string
		AmqpPort     string
		Exchange     string
		ExchangeType string
		QueueName    string
	}

	Config struct {
		App     APP
		DB      DB
		Storage Storage
		Policy  Policy
		Signing Signing
		MQ      MQ
	}
)

func getEnv(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	v, err := strconv.Atoi(getEnv(key, ""))
	if err != nil {
		return def
	}
	return v
}

func getEnvBool(key string, def bool) bool {
	v, err := strconv.ParseBool(getEnv(key, ""))
	if err != nil {
		return def
	}
	return v
}

func getEnvList(key, def string) []string {
	var out []string
	for _, p := range strings.Split(getEnv(key, def), ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func Load() Config {
	app := APP{
		Name:          getEnv("SERVICE_NAME", "attachmentapi"),
		Host:          getEnv("SERVICE_HOST", ""),
		Port:          getEnv("SERVICE_PORT", "8080"),
		Env:           getEnv("SERVICE_ENV", ""),
		JWTSecret:     getEnv("SERVICE_JWT_SECRET", ""),
		PublicBaseURL: getEnv("SERVICE_PUBLIC_BASE_URL", "http://localhost:8080"),
		CORSOrigins:   getEnvList("SERVICE_CORS_ORIGINS", "*"),
	}
	db := DB{
		User:     getEnv("POSTGRES_USER", ""),
		Password: getEnv("POSTGRES_PASSWORD", ""),
		Name:     getEnv("POSTGRES_DB", ""),
		Host:     getEnv("POSTGRES_HOST", ""),
		Port:     getEnv("POSTGRES_PORT", ""),
	}
	st := Storage{
		Backend:                 getEnv("STORAGE_BACKEND", "loopback"),
		LoopbackRoot:            getEnv("STORAGE_LOOPBACK_ROOT", "data/attachments"),
		LoopbackAllowedPrefixes: getEnvList("STORAGE_LOOPBACK_ALLOWED_PREFIXES", "incidents/,comments/"),
		GCSEndpoint:             getEnv("STORAGE_GCS_ENDPOINT", "https://storage.googleapis.com"),
		GCSAccessID:             getEnv("STORAGE_GCS_ACCESS_ID", ""),
		GCSBucket:               getEnv("STORAGE_GCS_BUCKET", ""),
		GCSPrivateKeyFile:       getEnv("STORAGE_GCS_PRIVATE_KEY_FILE", ""),
		GCSCredentialsFile:      getEnv("STORAGE_GCS_CREDENTIALS_FILE", ""),
		UploadSlotTTL:           time.Duration(getEnvInt("STORAGE_UPLOAD_SLOT_TTL_MINUTES", 15)) * time.Minute,
	}
	policy := Policy{
		AllowedContentTypes: getEnvList("POLICY_ALLOWED_CONTENT_TYPES", "image/png,image/jpeg,image/gif,application/pdf,text/plain"),
		AllowedExtensions:   getEnvList("POLICY_ALLOWED_EXTENSIONS", ".png,.jpg,.jpeg,.gif,.pdf,.txt"),
		MaxSizeBytes:        int64(getEnvInt("POLICY_MAX_SIZE_BYTES", 10<<20)),
		SanitizeOnComplete:  getEnvBool("POLICY_SANITIZE_ON_COMPLETE", true),
		JPEGQuality:         getEnvInt("POLICY_JPEG_QUALITY", 90),
	}
	signing := Signing{
		Secret:            getEnv("SIGNING_SECRET", ""),
		DefaultTTLMinutes: getEnvInt("SIGNING_DEFAULT_TTL_MINUTES", 15),
		MaxTTLMinutes:     getEnvInt("SIGNING_MAX_TTL_MINUTES", 1440),
	}
	mq := MQ{
		User:         getEnv("RABBITMQ_USER", ""),
		Password:     getEnv("RABBITMQ_PASSWORD", ""),
		Vhost:        getEnv("RABBITMQ_VHOST", ""),
		Host:         getEnv("RABBITMQ_HOST", ""),
		AmqpPort:     getEnv("RABBITMQ_AMQP_PORT", ""),
		Exchange:     getEnv("RABBITMQ_EXCHANGE", "attachments"),
		ExchangeType: getEnv("RABBITMQ_EXCHANGE_TYPE", "direct"),
		QueueName:    getEnv("RABBITMQ_QUEUE_NAME", "attachments.audit"),
	}

	return Config{
		App:     app,
		DB:      db,
		Storage: st,
		Policy:  policy,
		Signing: signing,
		MQ:      mq,
	}
}

func (c Config) DBDSN() (string, error) {
	if c.DB.User == "" || c.DB.Name == "" || c.DB.Host == "" || c.DB.Port == "" {
		return "", fmt.Errorf("incomplete DB config")
	}
	return fmt.Sprintf(
		"postgres://%s@%s:%s/%s",
		url.UserPassword(c.DB.User, c.DB.Password).String(),
		c.DB.Host,
		c.DB.Port,
		c.DB.Name,
	), nil
}

// MQEnabled reports whether a broker is configured; without one the audit
// trail goes to the log only.
func (c Config) MQEnabled() bool { return c.MQ.Host != "" }

func (c Config) AMQPDSN() (string, error) {
	if c.MQ.User == "" || c.MQ.Host == "" || c.MQ.AmqpPort == "" {
		return "", fmt.Errorf("invalid MQ config: user, host and amqp port are required")
	}

	return fmt.Sprintf(
		"%s://%s@%s:%s/%s",
		"amqp",
		url.UserPassword(c.MQ.User, c.MQ.Password).String(),
		c.MQ.Host,
		c.MQ.AmqpPort,
		url.PathEscape(c.MQ.Vhost),
	), nil
}
