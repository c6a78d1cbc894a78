package notifications

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"time"
)

const verifyTimeout = 30 * time.Second

// sendMail delivers one message over STARTTLS. The session is bounded by ctx.
var sendMail = func(ctx context.Context, addr, host string, auth smtp.Auth, from string, to []string, msg []byte) error {
	client, closeClient, err := dialSMTP(ctx, addr, host)
	if err != nil {
		return contextError(ctx, err)
	}
	defer closeClient()

	if err := startSession(client, host, auth); err != nil {
		return contextError(ctx, err)
	}
	if err := client.Mail(from); err != nil {
		return contextError(ctx, err)
	}
	for _, rcpt := range to {
		if err := client.Rcpt(rcpt); err != nil {
			return contextError(ctx, err)
		}
	}
	w, err := client.Data()
	if err != nil {
		return contextError(ctx, err)
	}
	if _, err := w.Write(msg); err != nil {
		return contextError(ctx, err)
	}
	if err := w.Close(); err != nil {
		return contextError(ctx, err)
	}
	return contextError(ctx, client.Quit())
}

// verifyLogin opens a STARTTLS session and authenticates without sending anything.
var verifyLogin = func(ctx context.Context, addr, host string, auth smtp.Auth) error {
	client, closeClient, err := dialSMTP(ctx, addr, host)
	if err != nil {
		return contextError(ctx, err)
	}
	defer closeClient()

	if err := startSession(client, host, auth); err != nil {
		return contextError(ctx, err)
	}
	return contextError(ctx, client.Quit())
}

// dialSMTP connects to addr and reads the greeting. The connection deadline follows
// ctx, and cancelling ctx closes the connection, so a stalled server cannot hold the
// caller past ctx. The returned func closes the client.
func dialSMTP(ctx context.Context, addr, host string) (*smtp.Client, func(), error) {
	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, nil, err
	}
	if deadline, ok := ctx.Deadline(); ok {
		if err := conn.SetDeadline(deadline); err != nil {
			conn.Close()
			return nil, nil, err
		}
	}
	stop := context.AfterFunc(ctx, func() { conn.Close() })

	client, err := smtp.NewClient(conn, host)
	if err != nil {
		stop()
		conn.Close()
		return nil, nil, err
	}
	return client, func() {
		stop()
		client.Close()
	}, nil
}

func startSession(client *smtp.Client, host string, auth smtp.Auth) error {
	if ok, _ := client.Extension("STARTTLS"); ok {
		if err := client.StartTLS(&tls.Config{ServerName: host}); err != nil {
			return err
		}
	}
	if auth == nil {
		return nil
	}
	if ok, _ := client.Extension("AUTH"); !ok {
		return errors.New("smtp server does not support AUTH")
	}
	return client.Auth(auth)
}

// contextError reports ctx's error in place of the network error it caused.
func contextError(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("%w: %v", ctxErr, err)
	}
	return err
}

// SmtpAlarmSender mails alarms to every recipient of the alarm account.
type SmtpAlarmSender struct {
	Host       string
	Port       int
	Username   string
	Password   string
	Recipients []string
}

func NewSmtpAlarmSender(host string, port int, username, password string, recipients []string) *SmtpAlarmSender {
	return &SmtpAlarmSender{
		Host:       host,
		Port:       port,
		Username:   username,
		Password:   password,
		Recipients: recipients,
	}
}

func (s *SmtpAlarmSender) addr() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

// SendAlarm sends one message per recipient, from the account's own address.
func (s *SmtpAlarmSender) SendAlarm(ctx context.Context, alarm Alarm) error {
	if len(s.Recipients) == 0 {
		return NewNotificationError("smtp", alarm.CameraID, errors.New("no recipients configured"))
	}

	auth := smtp.PlainAuth("", s.Username, s.Password, s.Host)
	body := alarm.Body()

	var errs []error
	for _, to := range s.Recipients {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}

		msg := []byte("To: " + to + "\r\n" +
			"From: " + s.Username + "\r\n" +
			"Subject: " + AlarmSubject + "\r\n" +
			"\r\n" +
			body + "\r\n")

		if err := sendMail(ctx, s.addr(), s.Host, auth, s.Username, []string{to}, msg); err != nil {
			errs = append(errs, fmt.Errorf("recipient %s: %w", to, err))
		}
	}

	if err := errors.Join(errs...); err != nil {
		return NewNotificationError("smtp", alarm.CameraID, err)
	}
	return nil
}

// VerifyAccount logs into the SMTP server with the given credentials.
func VerifyAccount(host string, port int, username, password string) error {
	addr := net.JoinHostPort(host, strconv.Itoa(port))
	auth := smtp.PlainAuth("", username, password, host)

	ctx, cancel := context.WithTimeout(context.Background(), verifyTimeout)
	defer cancel()

	if err := verifyLogin(ctx, addr, host, auth); err != nil {
		return &AccountVerificationError{Username: username, Err: err}
	}
	return nil
}
