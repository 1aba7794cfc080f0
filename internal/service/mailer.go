package service

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"quizhub_backend/internal/config"
	"quizhub_backend/pkg/logger"

	"go.uber.org/zap"
)

type Mailer interface {
	Send(ctx context.Context, to, subject, body string) error
}

// SMTPMailer 通过 SMTP 发送纯文本邮件
type SMTPMailer struct {
	Cfg config.MailConfig
}

func (m *SMTPMailer) Send(ctx context.Context, to, subject, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	addr := fmt.Sprintf("%s:%d", m.Cfg.Host, m.Cfg.Port)

	var msg strings.Builder
	msg.WriteString("MIME-version: 1.0;\r\nContent-Type: text/plain; charset=\"UTF-8\";\r\n")
	fmt.Fprintf(&msg, "From: %s\r\n", m.Cfg.From)
	fmt.Fprintf(&msg, "To: %s\r\n", to)
	fmt.Fprintf(&msg, "Subject: %s\r\n\r\n", subject)
	msg.WriteString(body)

	var auth smtp.Auth
	if m.Cfg.Username != "" {
		auth = smtp.PlainAuth("", m.Cfg.Username, m.Cfg.Password, m.Cfg.Host)
	}
	return smtp.SendMail(addr, auth, m.Cfg.From, []string{to}, []byte(msg.String()))
}

// LogMailer 开发环境下只记录日志
type LogMailer struct{}

func (LogMailer) Send(ctx context.Context, to, subject, body string) error {
	logger.Log.Info("mail (not sent)", zap.String("to", to), zap.String("subject", subject))
	logger.Log.Debug("mail body", zap.String("to", to), zap.String("body", body))
	return nil
}

func NewMailer(cfg config.MailConfig) Mailer {
	if !cfg.Enabled || cfg.Host == "" {
		return LogMailer{}
	}
	return &SMTPMailer{Cfg: cfg}
}
