// Package mailer delivers verification codes to an email address. It prefers
// a transactional HTTP mail API when a token is configured and otherwise
// speaks SMTP directly, degrading to the well-known STARTTLS/SSL port pairs
// when the configured port is unreachable.
package mailer

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/megafartCc/Roblex.io/internals/config"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	deliveryTimeout = 15 * time.Second
	starttlsPort    = 587
	sslPort         = 465
)

type Mailer struct {
	cfg        config.MailConfig
	client     *http.Client
	transports TransportFactory
	log        zerolog.Logger
}

func New(cfg config.MailConfig, logger zerolog.Logger) *Mailer {
	return &Mailer{
		cfg:        cfg,
		client:     &http.Client{Timeout: deliveryTimeout},
		transports: defaultTransportFactory(cfg.User, cfg.Password, deliveryTimeout),
		log:        logger,
	}
}

// SendVerificationCode delivers the 6-digit code to the given address.
// Exactly one channel is used: with an API token configured the HTTP API is
// authoritative and its failure propagates without any SMTP fallback.
func (m *Mailer) SendVerificationCode(to, code string) error {
	subject := fmt.Sprintf("Your %s Account Verification Code", m.cfg.FromName)
	body := verificationEmailBody(m.cfg.FromName, code)

	if m.cfg.ZeptoToken != "" {
		return m.sendViaAPI(to, subject, body)
	}
	return m.sendViaSMTP(to, subject, body)
}

type zeptoAddress struct {
	Address string `json:"address"`
	Name    string `json:"name,omitempty"`
}

type zeptoRecipient struct {
	EmailAddress zeptoAddress `json:"email_address"`
}

type zeptoPayload struct {
	BounceAddress string           `json:"bounce_address"`
	From          zeptoAddress     `json:"from"`
	To            []zeptoRecipient `json:"to"`
	Subject       string           `json:"subject"`
	HTMLBody      string           `json:"htmlbody"`
}

func (m *Mailer) sendViaAPI(to, subject, htmlBody string) error {
	if m.cfg.ZeptoBounceAddress == "" {
		return &DeliveryError{Kind: DeliveryConfig, Err: errors.New("ZEPTO_BOUNCE_ADDRESS not provided")}
	}
	if m.cfg.From == "" {
		return &DeliveryError{Kind: DeliveryConfig, Err: errors.New("EMAIL_FROM must be set to a verified sender address")}
	}

	payload, err := json.Marshal(zeptoPayload{
		BounceAddress: m.cfg.ZeptoBounceAddress,
		From:          zeptoAddress{Address: m.cfg.From, Name: m.cfg.FromName},
		To:            []zeptoRecipient{{EmailAddress: zeptoAddress{Address: to}}},
		Subject:       subject,
		HTMLBody:      htmlBody,
	})
	if err != nil {
		return &DeliveryError{Kind: DeliveryConfig, Err: err}
	}

	req, err := http.NewRequest(http.MethodPost, m.cfg.ZeptoSendURL, bytes.NewReader(payload))
	if err != nil {
		return &DeliveryError{Kind: DeliveryConfig, Err: err}
	}
	req.Header.Set("Authorization", "Zoho-enczapikey "+m.cfg.ZeptoToken)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	m.log.Info().Str("to", to).Msg("sending verification code via mail API")

	resp, err := m.client.Do(req)
	if err != nil {
		return &DeliveryError{Kind: DeliveryConnection, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return &DeliveryError{
			Kind: DeliveryRejection,
			Err:  fmt.Errorf("mail API %s: %s", resp.Status, strings.TrimSpace(string(detail))),
		}
	}
	return nil
}

func (m *Mailer) sendViaSMTP(to, subject, htmlBody string) error {
	if m.cfg.Host == "" || m.cfg.User == "" || m.cfg.Password == "" {
		return &DeliveryError{
			Kind: DeliveryConfig,
			Err:  errors.New("email transport not configured; set EMAIL_HOST/EMAIL_USER/EMAIL_PASS or provide ZEPTO_API_TOKEN"),
		}
	}

	msg := buildMessage(m.cfg.From, to, subject, htmlBody)

	// 465 implies SSL even without the explicit flag.
	secure := m.cfg.Secure || m.cfg.Port == sslPort
	err := m.attempt(m.cfg.Host, m.cfg.Port, secure, to, msg)
	if err == nil {
		return nil
	}
	if !retryableDelivery(err) {
		return err
	}

	// Connection-level failure: try the common port/security pairs once each,
	// in fixed order, skipping whichever matches the configured port.
	lastErr := err
	for _, alt := range fallbackPlan(m.cfg.Port) {
		altErr := m.attempt(m.cfg.Host, alt.port, alt.secure, to, msg)
		if altErr == nil {
			m.log.Info().Int("port", alt.port).Bool("secure", alt.secure).Str("to", to).Msg("fallback delivery succeeded")
			return nil
		}
		lastErr = altErr
	}
	return lastErr
}

type portMode struct {
	port   int
	secure bool
}

func fallbackPlan(primaryPort int) []portMode {
	var plan []portMode
	if primaryPort != starttlsPort {
		plan = append(plan, portMode{starttlsPort, false})
	}
	if primaryPort != sslPort {
		plan = append(plan, portMode{sslPort, true})
	}
	return plan
}

func (m *Mailer) attempt(host string, port int, secure bool, to string, msg []byte) error {
	m.log.Info().Str("host", host).Int("port", port).Bool("secure", secure).Str("to", to).Msg("attempting SMTP delivery")
	err := m.transports(host, port, secure).Send(m.cfg.From, to, msg)
	if err != nil {
		m.log.Error().Err(err).Str("host", host).Int("port", port).Bool("secure", secure).Str("to", to).Msg("SMTP delivery attempt failed")
	}
	return err
}

// buildMessage assembles the RFC 822 message. Note the \r\n line endings and
// the blank line separating headers from the body.
func buildMessage(from, to, subject, htmlBody string) []byte {
	headers := []string{
		fmt.Sprintf("From: %s", from),
		fmt.Sprintf("To: %s", to),
		fmt.Sprintf("Subject: %s", subject),
		fmt.Sprintf("Message-ID: <%s@%s>", uuid.New().String(), domainOf(from)),
		fmt.Sprintf("Date: %s", time.Now().Format(time.RFC1123Z)),
		"MIME-Version: 1.0",
		"Content-Type: text/html; charset=\"UTF-8\"",
		"",
		htmlBody,
	}
	return []byte(strings.Join(headers, "\r\n"))
}

func domainOf(addr string) string {
	if i := strings.LastIndex(addr, "@"); i >= 0 && i+1 < len(addr) {
		return addr[i+1:]
	}
	return "localhost"
}

func verificationEmailBody(brandName, code string) string {
	return fmt.Sprintf(`
        <div style="font-family: Arial, sans-serif; padding: 20px; border: 1px solid #ccc; max-width: 600px; margin: auto;">
            <h2 style="color: #333;">Welcome to %s!</h2>
            <p>Thank you for registering. Please use the following 6-digit code to verify your account:</p>
            <div style="text-align: center; margin: 30px 0;">
                <span style="font-size: 32px; font-weight: bold; color: #007bff; background-color: #f4f4f4; padding: 10px 20px; border-radius: 5px; letter-spacing: 5px;">
                    %s
                </span>
            </div>
            <p>This code will expire in 5 minutes.</p>
            <p>If you did not request this, please ignore this email.</p>
            <p>Best regards,<br>The %s Team</p>
        </div>
    `, brandName, code, brandName)
}
