package writers

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"strings"

	"github.com/BartekS5/mapflow/internal/config"
	"github.com/BartekS5/mapflow/internal/etl"
	"github.com/BartekS5/mapflow/pkg/logger"
	"github.com/BartekS5/mapflow/pkg/models"
)

// Mail collects the rendered records of a run and sends them as one plain
// text mail when the last batch arrives. Nothing is sent for a failed run.
// Keys:
//
//	<w>_smtp_host, <w>_smtp_port (default 25)
//	<w>_user, <w>_password (may be encrypted)
//	<w>_from, <w>_to (list), <w>_subject
type Mail struct {
	mapped
	addr    string
	auth    smtp.Auth
	from    string
	to      []string
	subject string
	body    bytes.Buffer
	sent    bool

	// send defaults to smtp.SendMail.
	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

// Exclusive makes the run serial; the mail body is built in batch order.
func (m *Mail) Exclusive() bool { return true }

func (m *Mail) Initialize(_ context.Context, rc config.Resolver) error {
	m.init(rc)
	host, err := rc.Require("", "smtp_host")
	if err != nil {
		return err
	}
	m.addr = net.JoinHostPort(host, strconv.Itoa(rc.Number("", "smtp_port", 25)))
	if m.from, err = rc.Require("", "from"); err != nil {
		return err
	}
	if m.to = rc.List("", "to"); len(m.to) == 0 {
		return config.Errorf(rc.Key("to"), "at least one recipient is required")
	}
	m.subject = rc.String("", "subject", "mapflow run")
	if user := rc.String("", "user", ""); user != "" {
		pass, err := rc.Decoded("", "password")
		if err != nil {
			return err
		}
		m.auth = smtp.PlainAuth("", user, pass, host)
	}
	if m.send == nil {
		m.send = smtp.SendMail
	}
	return nil
}

func (m *Mail) InitializeEntity(_ context.Context, e *models.SourceEntity) error {
	_, err := m.load(e)
	return err
}

func (m *Mail) WriteHeader(_ context.Context, e *models.SourceEntity) error {
	wm, err := m.mapping(e)
	if err != nil {
		return err
	}
	fmt.Fprintf(&m.body, "[Entity: %s]\r\n%s\r\n", e.Name(), header(wm))
	return nil
}

func (m *Mail) WriteBatch(_ context.Context, b *etl.BatchData, e *models.SourceEntity) error {
	wm, err := m.mapping(e)
	if err != nil {
		return err
	}
	ls, err := lines(wm, b)
	if err != nil {
		return err
	}
	for _, l := range ls {
		m.body.WriteString(l + "\r\n")
	}
	if b.IsLast() {
		return m.flush()
	}
	return nil
}

func (m *Mail) flush() error {
	if m.sent {
		return nil
	}
	m.sent = true
	var msg bytes.Buffer
	fmt.Fprintf(&msg, "From: %s\r\nTo: %s\r\nSubject: %s\r\n", m.from, strings.Join(m.to, ", "), m.subject)
	msg.WriteString("MIME-Version: 1.0\r\nContent-Type: text/plain; charset=UTF-8\r\n\r\n")
	msg.Write(m.body.Bytes())
	if err := m.send(m.addr, m.auth, m.from, m.to, msg.Bytes()); err != nil {
		return err
	}
	logger.Infof("writer %s: mail sent to %d recipients", m.rc.Name(), len(m.to))
	return nil
}

// Close drops what was collected when the run ended without a last batch,
// which only happens when it failed.
func (m *Mail) Close(context.Context) error {
	if !m.sent && m.body.Len() > 0 {
		logger.Warnf("writer %s: run did not complete, mail not sent", m.rc.Name())
	}
	m.body.Reset()
	return nil
}
