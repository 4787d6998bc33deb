package email

// Config holds email delivery configuration.
// Postmark tokens may be empty when Driver is "dev".
type Config struct {
	Driver               string `env:"EMAIL_DRIVER" envDefault:"postmark"`
	PostmarkServerToken  string `env:"POSTMARK_SERVER_TOKEN"`
	PostmarkAccountToken string `env:"POSTMARK_ACCOUNT_TOKEN"`
	SenderEmail          string `env:"SENDER_EMAIL,required"`
	SupportEmail         string `env:"SUPPORT_EMAIL,required"`
	DevOutputDir         string `env:"EMAIL_DEV_DIR" envDefault:"data/emails"`
}

// Supported drivers.
const (
	DriverPostmark = "postmark"
	DriverDev      = "dev"
)
