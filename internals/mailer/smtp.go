package mailer

import (
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"net/smtp"
	"strconv"
	"syscall"
	"time"
)

// DeliveryKind separates the failure families the caller can react to:
// connection failures are eligible for port fallback, rejections and
// configuration problems are not.
type DeliveryKind int

const (
	DeliveryConnection DeliveryKind = iota
	DeliveryRejection
	DeliveryConfig
)

func (k DeliveryKind) String() string {
	switch k {
	case DeliveryConnection:
		return "connection"
	case DeliveryRejection:
		return "rejection"
	case DeliveryConfig:
		return "configuration"
	}
	return "unknown"
}

// DeliveryError wraps every Notifier failure with its kind.
type DeliveryError struct {
	Kind DeliveryKind
	Err  error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("mail delivery (%s): %v", e.Kind, e.Err)
}

func (e *DeliveryError) Unwrap() error { return e.Err }

// failureClass is the closed set of retryable connection-failure categories.
// The retry policy checks membership here, never error strings, so it stays
// auditable and testable without a real network.
type failureClass int

const (
	failNone failureClass = iota
	failTimeout
	failRefused
	failDNS
	failSocket
)

func (c failureClass) Retryable() bool { return c != failNone }

func classifyConnFailure(err error) failureClass {
	if err == nil {
		return failNone
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return failTimeout
	}
	if errors.Is(err, syscall.ECONNREFUSED) {
		return failRefused
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return failDNS
	}
	if errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.EPIPE) ||
		errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return failSocket
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return failSocket
	}
	return failNone
}

// retryableDelivery reports whether the port/security fallback applies:
// only connection-kind failures in a recognized class, never authentication
// or message-rejection errors.
func retryableDelivery(err error) bool {
	var de *DeliveryError
	if !errors.As(err, &de) || de.Kind != DeliveryConnection {
		return false
	}
	return classifyConnFailure(de.Err).Retryable()
}

// Transport performs one SMTP delivery over one (host, port, security) tuple.
type Transport interface {
	Send(from, to string, msg []byte) error
}

// TransportFactory builds a Transport for an attempt. The Mailer takes it as
// a dependency so tests can script connection outcomes.
type TransportFactory func(host string, port int, secure bool) Transport

func defaultTransportFactory(user, password string, timeout time.Duration) TransportFactory {
	return func(host string, port int, secure bool) Transport {
		return &smtpTransport{
			host:     host,
			port:     port,
			secure:   secure,
			user:     user,
			password: password,
			timeout:  timeout,
		}
	}
}

// smtpTransport dials the server, negotiates TLS (implicit on the SSL port,
// STARTTLS elsewhere when offered), authenticates, and submits the message.
type smtpTransport struct {
	host     string
	port     int
	secure   bool
	user     string
	password string
	timeout  time.Duration
}

func (t *smtpTransport) Send(from, to string, msg []byte) error {
	addr := net.JoinHostPort(t.host, strconv.Itoa(t.port))
	dialer := &net.Dialer{Timeout: t.timeout}

	// Shared hosts frequently present self-signed certs; keep STARTTLS
	// working against them but insist on a modern protocol version.
	tlsCfg := &tls.Config{
		ServerName:         t.host,
		InsecureSkipVerify: true,
		MinVersion:         tls.VersionTLS12,
	}

	var conn net.Conn
	var err error
	if t.secure {
		conn, err = tls.DialWithDialer(dialer, "tcp", addr, tlsCfg)
	} else {
		conn, err = dialer.Dial("tcp", addr)
	}
	if err != nil {
		return &DeliveryError{Kind: DeliveryConnection, Err: err}
	}
	defer conn.Close()

	// Bounds the whole SMTP conversation, not just the dial.
	if err := conn.SetDeadline(time.Now().Add(t.timeout)); err != nil {
		return &DeliveryError{Kind: DeliveryConnection, Err: err}
	}

	client, err := smtp.NewClient(conn, t.host)
	if err != nil {
		return &DeliveryError{Kind: DeliveryConnection, Err: err}
	}
	defer client.Close()

	if !t.secure {
		if ok, _ := client.Extension("STARTTLS"); ok {
			if err := client.StartTLS(tlsCfg); err != nil {
				return &DeliveryError{Kind: DeliveryConnection, Err: err}
			}
		}
	}

	if ok, _ := client.Extension("AUTH"); ok {
		auth := smtp.PlainAuth("", t.user, t.password, t.host)
		if err := client.Auth(auth); err != nil {
			return &DeliveryError{Kind: DeliveryRejection, Err: err}
		}
	}

	if err := client.Mail(from); err != nil {
		return &DeliveryError{Kind: DeliveryRejection, Err: err}
	}
	if err := client.Rcpt(to); err != nil {
		return &DeliveryError{Kind: DeliveryRejection, Err: err}
	}

	w, err := client.Data()
	if err != nil {
		return &DeliveryError{Kind: DeliveryRejection, Err: err}
	}
	if _, err := w.Write(msg); err != nil {
		w.Close()
		return &DeliveryError{Kind: DeliveryConnection, Err: err}
	}
	if err := w.Close(); err != nil {
		return &DeliveryError{Kind: DeliveryRejection, Err: err}
	}

	return client.Quit()
}
