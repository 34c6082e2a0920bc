package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	CRDBDSN      string
	MongoURI     string
	RedisAddr    string
	RabbitURL    string
	JWTPublicKey string
	OTLPEndpoint string
	HTTPAddr     string

	// PendingTTL is how long a PENDING booking may wait for payment before the sweeper expires it.
	PendingTTL     time.Duration
	SweepInterval  time.Duration
	PaymentTimeout time.Duration

	// PaymentResultURL is the static page browsers land on after a provider redirect.
	PaymentResultURL string

	MoMo  MoMoConfig
	VNPay VNPayConfig
}

type MoMoConfig struct {
	PartnerCode string
	AccessKey   string
	SecretKey   string
	Endpoint    string
	RedirectURL string
	IPNURL      string
}

type VNPayConfig struct {
	TmnCode    string
	HashSecret string
	PayURL     string
	ReturnURL  string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	pendingTTL := 15 * time.Minute
	if minutes, err := strconv.Atoi(os.Getenv("PENDING_TTL_MINUTES")); err == nil && minutes > 0 {
		pendingTTL = time.Duration(minutes) * time.Minute
	}

	return &Config{
		CRDBDSN:          os.Getenv("CRDB_DSN"),
		MongoURI:         os.Getenv("MONGO_URI"),
		RedisAddr:        os.Getenv("REDIS_ADDR"),
		RabbitURL:        os.Getenv("RABBIT_URL"),
		JWTPublicKey:     os.Getenv("JWT_PUBLIC_KEY"),
		OTLPEndpoint:     os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		HTTPAddr:         getenv("HTTP_ADDR", ":8080"),
		PendingTTL:       pendingTTL,
		SweepInterval:    duration("SWEEP_INTERVAL", 5*time.Minute),
		PaymentTimeout:   duration("PAYMENT_TIMEOUT", 10*time.Second),
		PaymentResultURL: getenv("PAYMENT_RESULT_URL", "http://localhost:3000/payment-result"),
		MoMo: MoMoConfig{
			PartnerCode: os.Getenv("MOMO_PARTNER_CODE"),
			AccessKey:   os.Getenv("MOMO_ACCESS_KEY"),
			SecretKey:   os.Getenv("MOMO_SECRET_KEY"),
			Endpoint:    getenv("MOMO_ENDPOINT", "https://test-payment.momo.vn/v2/gateway/api/create"),
			RedirectURL: os.Getenv("MOMO_REDIRECT_URL"),
			IPNURL:      os.Getenv("MOMO_IPN_URL"),
		},
		VNPay: VNPayConfig{
			TmnCode:    os.Getenv("VNPAY_TMN_CODE"),
			HashSecret: os.Getenv("VNPAY_HASH_SECRET"),
			PayURL:     getenv("VNPAY_PAY_URL", "https://sandbox.vnpayment.vn/paymentv2/vpcpay.html"),
			ReturnURL:  os.Getenv("VNPAY_RETURN_URL"),
		},
	}, nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func duration(key string, fallback time.Duration) time.Duration {
	d, _ := time.ParseDuration(os.Getenv(key))
	if d <= 0 {
		return fallback
	}
	return d
}
