package mail

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"autocloudskill/config"
	"autocloudskill/domain/interfaces"
)

// Sender and subject the target site uses for account confirmation mail.
const (
	confirmationSender  = "noreply@cloudskillsboost.google"
	confirmationSubject = "confirmation"
)

var hrefPattern = regexp.MustCompile(`href=["']([^"']+)["']`)

// MailboxClient searches a JSON mailbox API for messages. The API is
// expected to expose GET /messages with recipient/sender/subject filters and
// return each message's HTML body.
type MailboxClient struct {
	baseURL    string
	token      string
	httpClient *http.Client
	log        *zap.Logger
}

// NewMailboxClient - builds a mailbox search client
func NewMailboxClient(cfg config.ServicesConfig, log *zap.Logger) *MailboxClient {
	return &MailboxClient{
		baseURL:    strings.TrimRight(cfg.MailboxURL, "/"),
		token:      cfg.MailboxToken,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		log:        log.Named("mailbox"),
	}
}

type mailboxMessage struct {
	ID      string `json:"id"`
	Subject string `json:"subject"`
	From    string `json:"from"`
	HTML    string `json:"html"`
	Text    string `json:"text"`
}

// Search queries the mailbox and extracts links from each message body.
func (c *MailboxClient) Search(ctx context.Context, q interfaces.MailQuery) ([]interfaces.MailMessage, error) {
	if c.baseURL == "" {
		return nil, fmt.Errorf("mailbox URL is not configured")
	}

	params := url.Values{}
	if q.Recipient != "" {
		params.Set("to", q.Recipient)
	}
	if q.Sender != "" {
		params.Set("from", q.Sender)
	}
	if q.Subject != "" {
		params.Set("subject", q.Subject)
	}
	if q.Limit > 0 {
		params.Set("limit", strconv.Itoa(q.Limit))
	}

	endpoint := c.baseURL + "/messages?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build mailbox request: %w", err)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("mailbox request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("mailbox API returned status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read mailbox response: %w", err)
	}

	var raw []mailboxMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to decode mailbox response: %w", err)
	}

	messages := make([]interfaces.MailMessage, 0, len(raw))
	for _, m := range raw {
		messages = append(messages, interfaces.MailMessage{
			ID:      m.ID,
			Subject: m.Subject,
			Sender:  m.From,
			Links:   ExtractLinks(m.HTML),
		})
	}
	return messages, nil
}

// ExtractLinks pulls every absolute href out of an HTML body, in document
// order and de-duplicated.
func ExtractLinks(html string) []string {
	matches := hrefPattern.FindAllStringSubmatch(html, -1)
	seen := make(map[string]struct{}, len(matches))
	var links []string
	for _, m := range matches {
		link := m[1]
		if !strings.HasPrefix(link, "http://") && !strings.HasPrefix(link, "https://") {
			continue
		}
		if _, dup := seen[link]; dup {
			continue
		}
		seen[link] = struct{}{}
		links = append(links, link)
	}
	return links
}

// PickConfirmationLink chooses the account-confirmation URL out of a
// message's links. The site's mail carries one link whose path mentions
// confirmation; fall back to the first link on the site's own host.
func PickConfirmationLink(links []string) string {
	for _, link := range links {
		if strings.Contains(strings.ToLower(link), "confirmation") {
			return link
		}
	}
	for _, link := range links {
		if strings.Contains(link, "cloudskillsboost.google") {
			return link
		}
	}
	return ""
}

// WaitForVerificationLink polls the mailbox until the confirmation mail for
// the recipient arrives, bounded by the context deadline.
func (c *MailboxClient) WaitForVerificationLink(ctx context.Context, recipient string, poll time.Duration) (string, error) {
	query := interfaces.MailQuery{
		Recipient: recipient,
		Sender:    confirmationSender,
		Subject:   confirmationSubject,
		Limit:     5,
	}

	for {
		messages, err := c.Search(ctx, query)
		if err != nil {
			c.log.Warn("mailbox poll failed", zap.Error(err))
		}
		for _, msg := range messages {
			if link := PickConfirmationLink(msg.Links); link != "" {
				c.log.Info("confirmation link found",
					zap.String("message_id", msg.ID),
					zap.String("subject", msg.Subject))
				return link, nil
			}
		}

		select {
		case <-ctx.Done():
			return "", fmt.Errorf("no confirmation mail for %s: %w", recipient, ctx.Err())
		case <-time.After(poll):
		}
	}
}
