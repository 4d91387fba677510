package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Server   ServerConfig
	DB       DBConfig
	Redis    RedisConfig
	Quiz     QuizServiceConfig
	RabbitMQ RabbitMQConfig
	S3       S3Config
	Auth     AuthConfig
	Log      LogConfig
	Game     GameConfig
}

type ServerConfig struct {
	HTTPPort       string
	AllowedOrigins []string
}

type DBConfig struct {
	Enabled  bool
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     string
	Password string
	DB       int
	QuizTTL  time.Duration
}

type QuizServiceConfig struct {
	Host string
	Port string
	// File, when set, serves quizzes from a local JSON file instead of the quiz service.
	File string
}

type RabbitMQConfig struct {
	Enabled  bool
	Host     string
	Port     string
	User     string
	Password string
}

type S3Config struct {
	Enabled   bool
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

type AuthConfig struct {
	JWTSecret string
	// TrustGatewayHeaders accepts X-User-ID from an authenticating gateway.
	TrustGatewayHeaders bool
}

type LogConfig struct {
	Level  string
	Pretty bool
}

type GameConfig struct {
	GracePeriod            time.Duration
	AnswerPhaseDuration    time.Duration
	ResultsPhaseDuration   time.Duration
	DefaultTimePerQuestion int
	DefaultMaxPlayers      int
	MaxPlayersLimit        int
	MinPlayersToStart      int
	RoomCodeLength         int
	BasePoints             int
	SpeedBonusRatio        float64
	BonusDecayExponent     float64
	ChatMaxLength          int
	ChatHistoryLimit       int
	ChatRatePerSecond      float64
	FinishedRoomTTL        time.Duration
	JanitorInterval        time.Duration
}

func Load() *Config {
	return &Config{
		Server: ServerConfig{
			HTTPPort:       getEnv("HTTP_PORT", "8080"),
			AllowedOrigins: getEnvAsList("ALLOWED_ORIGINS", []string{"*"}),
		},
		DB: DBConfig{
			Enabled:  getEnvAsBool("DB_ENABLED", true),
			Host:     getEnv("DB_HOST", "postgres"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "quiz"),
			Password: getEnv("DB_PASSWORD", "quiz_password"),
			DBName:   getEnv("DB_NAME", "quiz_sessions"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Enabled:  getEnvAsBool("REDIS_ENABLED", true),
			Host:     getEnv("REDIS_HOST", "redis"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
			QuizTTL:  getEnvAsDuration("REDIS_QUIZ_TTL", 24*time.Hour),
		},
		Quiz: QuizServiceConfig{
			Host: getEnv("QUIZ_SERVICE_HOST", "localhost"),
			Port: getEnv("QUIZ_SERVICE_PORT", "50051"),
			File: getEnv("QUIZ_FILE", ""),
		},
		RabbitMQ: RabbitMQConfig{
			Enabled:  getEnvAsBool("RABBITMQ_ENABLED", false),
			Host:     getEnv("RABBITMQ_HOST", "rabbitmq"),
			Port:     getEnv("RABBITMQ_PORT", "5672"),
			User:     getEnv("RABBITMQ_USER", "guest"),
			Password: getEnv("RABBITMQ_PASSWORD", "guest"),
		},
		S3: S3Config{
			Enabled:   getEnvAsBool("S3_ENABLED", false),
			Endpoint:  getEnv("S3_ENDPOINT", "minio:9000"),
			AccessKey: getEnv("S3_ACCESS_KEY", "minioadmin"),
			SecretKey: getEnv("S3_SECRET_KEY", "minioadmin"),
			Bucket:    getEnv("S3_BUCKET", "quiz-results"),
			UseSSL:    getEnvAsBool("S3_USE_SSL", false),
		},
		Auth: AuthConfig{
			JWTSecret:           getEnv("JWT_SECRET", ""),
			TrustGatewayHeaders: getEnvAsBool("TRUST_GATEWAY_HEADERS", false),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Pretty: getEnvAsBool("LOG_PRETTY", false),
		},
		Game: GameConfig{
			GracePeriod:            getEnvAsDuration("GRACE_PERIOD", 30*time.Second),
			AnswerPhaseDuration:    getEnvAsDuration("ANSWER_PHASE_DURATION", 3*time.Second),
			ResultsPhaseDuration:   getEnvAsDuration("RESULTS_PHASE_DURATION", 5*time.Second),
			DefaultTimePerQuestion: getEnvAsInt("DEFAULT_TIME_PER_QUESTION", 20),
			DefaultMaxPlayers:      getEnvAsInt("DEFAULT_MAX_PLAYERS", 10),
			MaxPlayersLimit:        getEnvAsInt("MAX_PLAYERS_LIMIT", 100),
			MinPlayersToStart:      getEnvAsInt("MIN_PLAYERS_TO_START", 1),
			RoomCodeLength:         getEnvAsInt("ROOM_CODE_LENGTH", 6),
			BasePoints:             getEnvAsInt("BASE_POINTS", 1000),
			SpeedBonusRatio:        getEnvAsFloat("SPEED_BONUS_RATIO", 0.5),
			BonusDecayExponent:     getEnvAsFloat("BONUS_DECAY_EXPONENT", 1.0),
			ChatMaxLength:          getEnvAsInt("CHAT_MAX_LENGTH", 500),
			ChatHistoryLimit:       getEnvAsInt("CHAT_HISTORY_LIMIT", 200),
			ChatRatePerSecond:      getEnvAsFloat("CHAT_RATE_PER_SECOND", 2),
			FinishedRoomTTL:        getEnvAsDuration("FINISHED_ROOM_TTL", 10*time.Minute),
			JanitorInterval:        getEnvAsDuration("JANITOR_INTERVAL", time.Minute),
		},
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(valueStr, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
