package config

import "fmt"

// DBConfig holds the MySQL connection settings. Each field falls back to the
// provider-supplied alias (Railway exposes MYSQLHOST etc. instead of DB_*).
type DBConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string
}

// DSN builds the go-sql-driver DSN for gorm's mysql dialector.
func (d DBConfig) DSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=UTC",
		d.User, d.Password, d.Host, d.Port, d.Name)
}

// MailConfig covers both delivery channels: the ZeptoMail HTTP API (used
// exclusively when ZeptoToken is set) and direct SMTP otherwise.
type MailConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	From     string
	FromName string
	Secure   bool

	ZeptoToken         string
	ZeptoSendURL       string
	ZeptoBounceAddress string
}

type Config struct {
	Port        string
	FrontendURL string

	MinPasswordLength        int
	RequireEmailVerification bool
	CodeExpirationMinutes    int

	JWTSecret            string
	JWTExpirationSeconds int

	DB   DBConfig
	Mail MailConfig
}

// Load reads the whole configuration surface from the environment.
func Load() *Config {
	mailUser := GetEnvAsStr("EMAIL_USER", "")

	return &Config{
		Port:        GetEnvAsStr("PORT", "3001"),
		FrontendURL: GetEnvAsStr("FRONTEND_URL", "http://localhost:3000"),

		MinPasswordLength:        GetEnvAsInt("MIN_PASSWORD_LENGTH", 8, true),
		RequireEmailVerification: GetEnvAsBool("REQUIRE_EMAIL_VERIFICATION", false),
		CodeExpirationMinutes:    GetEnvAsInt("VERIFICATION_EXPIRATION_MINUTES", 5, true),

		JWTSecret:            GetEnv("JWT_SECRET_KEY"),
		JWTExpirationSeconds: GetEnvAsInt("JWT_EXPIRATION_SECONDS", 86400, true),

		DB: DBConfig{
			Host:     FirstEnv("DB_HOST", "MYSQLHOST"),
			Port:     GetEnvAsInt("MYSQLPORT", GetEnvAsInt("DB_PORT", 3306, true), true),
			User:     FirstEnv("DB_USER", "MYSQLUSER"),
			Password: FirstEnv("DB_PASSWORD", "MYSQLPASSWORD"),
			Name:     FirstEnv("DB_NAME", "MYSQLDATABASE"),
		},

		Mail: MailConfig{
			Host:     GetEnvAsStr("EMAIL_HOST", ""),
			Port:     GetEnvAsInt("EMAIL_PORT", 587, true),
			User:     mailUser,
			Password: GetEnvAsStr("EMAIL_PASS", ""),
			From:     GetEnvAsStr("EMAIL_FROM", mailUser),
			FromName: GetEnvAsStr("EMAIL_FROM_NAME", "Roblex"),
			Secure:   GetEnvAsBool("EMAIL_SECURE", false),

			ZeptoToken:         GetEnvAsStr("ZEPTO_API_TOKEN", ""),
			ZeptoSendURL:       GetEnvAsStr("ZEPTO_SEND_URL", "https://mail.zeptomail.com/api/sendmail"),
			ZeptoBounceAddress: GetEnvAsStr("ZEPTO_BOUNCE_ADDRESS", ""),
		},
	}
}
