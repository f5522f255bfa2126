package mail

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"

	"NewsletterScanner/internal/domain"
	"NewsletterScanner/internal/ports"
)

// IMAPConfig holds mailbox connection details.
type IMAPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	UseTLS   bool
	Mailbox  string
}

// IMAPSource reads newsletters from an IMAP mailbox without marking them read.
type IMAPSource struct {
	cfg    IMAPConfig
	logger *slog.Logger
}

var _ ports.MailSource = (*IMAPSource)(nil)

// NewIMAPSource wires connection settings; Mailbox defaults to INBOX.
func NewIMAPSource(cfg IMAPConfig, logger *slog.Logger) *IMAPSource {
	if cfg.Port == 0 {
		cfg.Port = 993
	}
	if cfg.Mailbox == "" {
		cfg.Mailbox = "INBOX"
	}
	return &IMAPSource{cfg: cfg, logger: logger}
}

// Fetch searches messages since the query window and returns the newest
// matching ones. Connection and protocol errors are fatal to the caller.
func (s *IMAPSource) Fetch(ctx context.Context, query ports.MailQuery) ([]domain.NewsletterEmail, error) {
	if s.cfg.Host == "" || s.cfg.Username == "" {
		return nil, fmt.Errorf("imap not configured")
	}

	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	var (
		c   *client.Client
		err error
	)
	if s.cfg.UseTLS {
		c, err = client.DialTLS(addr, nil)
	} else {
		c, err = client.Dial(addr)
	}
	if err != nil {
		return nil, fmt.Errorf("connect imap %s: %w", addr, err)
	}
	defer c.Logout()

	// go-imap v1 is not context aware; closing the connection unblocks it.
	stop := context.AfterFunc(ctx, func() { _ = c.Terminate() })
	defer stop()

	if err := c.Login(s.cfg.Username, s.cfg.Password); err != nil {
		return nil, fmt.Errorf("imap login: %w", err)
	}

	mbox, err := c.Select(s.cfg.Mailbox, true)
	if err != nil {
		return nil, fmt.Errorf("select %s: %w", s.cfg.Mailbox, err)
	}
	if mbox.Messages == 0 {
		s.debug("mailbox empty", "mailbox", s.cfg.Mailbox)
		return []domain.NewsletterEmail{}, nil
	}

	criteria := imap.NewSearchCriteria()
	if !query.Since.IsZero() {
		criteria.Since = query.Since
	}
	if len(query.SenderFilter) == 1 {
		criteria.Header.Add("From", query.SenderFilter[0])
	}

	seqNums, err := c.Search(criteria)
	if err != nil {
		return nil, fmt.Errorf("imap search: %w", err)
	}
	if len(seqNums) == 0 {
		s.debug("no messages matched", "mailbox", s.cfg.Mailbox)
		return []domain.NewsletterEmail{}, nil
	}
	s.debug("messages matched", "count", len(seqNums))

	seqSet := new(imap.SeqSet)
	seqSet.AddNum(seqNums...)

	section := &imap.BodySectionName{Peek: true}
	messages := make(chan *imap.Message, len(seqNums))
	done := make(chan error, 1)
	go func() {
		done <- c.Fetch(seqSet, []imap.FetchItem{imap.FetchEnvelope, section.FetchItem()}, messages)
	}()

	var emails []domain.NewsletterEmail
	for msg := range messages {
		if msg == nil {
			continue
		}
		body := msg.GetBody(section)
		if body == nil {
			s.warn("message without body", "seq", msg.SeqNum)
			continue
		}
		email, err := ParseMessage(body)
		if err != nil {
			s.warn("skip unparseable message", "seq", msg.SeqNum, "error", err)
			continue
		}
		if email.Subject == "" && msg.Envelope != nil {
			email.Subject = msg.Envelope.Subject
		}
		emails = append(emails, email)
	}

	if err := <-done; err != nil {
		return nil, fmt.Errorf("imap fetch: %w", err)
	}

	return Select(emails, query), nil
}

func (s *IMAPSource) debug(msg string, args ...interface{}) {
	if s.logger != nil {
		s.logger.Debug(msg, args...)
	}
}

func (s *IMAPSource) warn(msg string, args ...interface{}) {
	if s.logger != nil {
		s.logger.Warn(msg, args...)
	}
}
