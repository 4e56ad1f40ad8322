package config

type AppConfig struct {
	APIPort     string `env:"PORT,required" envDefault:"12222"`
	APIKey      string `env:"API_KEY,required"`
	RabbitMQURL string `env:"RABBITMQ_URL"`

	// Controller tuning
	SyncWorkers     int `env:"SYNC_WORKERS" envDefault:"4"`
	MaxSendAttempts int `env:"MAX_SEND_ATTEMPTS" envDefault:"5"`
}

type DatabaseConfig struct {
	Host            string `env:"MAILSYNC_POSTGRES_HOST,required"`
	Port            string `env:"MAILSYNC_POSTGRES_PORT,required"`
	User            string `env:"MAILSYNC_POSTGRES_USER,required"`
	DBName          string `env:"MAILSYNC_POSTGRES_DB_NAME,required"`
	Password        string `env:"MAILSYNC_POSTGRES_PASSWORD,required"`
	MaxConn         int    `env:"MAILSYNC_POSTGRES_DB_MAX_CONN"`
	MaxIdleConn     int    `env:"MAILSYNC_POSTGRES_DB_MAX_IDLE_CONN"`
	ConnMaxLifetime int    `env:"MAILSYNC_POSTGRES_DB_CONN_MAX_LIFETIME"`
	LogLevel        string `env:"MAILSYNC_POSTGRES_LOG_LEVEL" envDefault:"WARN"`
	SSLMode         string `env:"MAILSYNC_POSTGRES_SSL_MODE"`
}

type R2StorageConfig struct {
	AccountID        string `env:"CLOUDFLARE_R2_ACCOUNT_ID,required"`
	AccessKeyID      string `env:"CLOUDFLARE_R2_ACCESS_KEY_ID,required"`
	AccessKeySecret  string `env:"CLOUDFLARE_R2_ACCESS_KEY_SECRET,required"`
	RawMessageBucket string `env:"BUCKET_NAME_RAW_MESSAGES" envDefault:"raw-messages"`
}
