package emails

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

const brevoAPI = "https://api.brevo.com/v3/smtp/email"

// BrevoSendRequest matches the Brevo API v3 transactional email body.
type BrevoSendRequest struct {
	Sender      BrevoSender `json:"sender"`
	To          []BrevoTo   `json:"to"`
	Subject     string      `json:"subject"`
	HTMLContent string      `json:"htmlContent"`
}

type BrevoSender struct {
	Email string `json:"email"`
	Name  string `json:"name"`
}

type BrevoTo struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

// Sender sends member notifications. A nil Sender means no email is sent.
type Sender interface {
	SendRegistrationReceived(ctx context.Context, toEmail, name string) error
	SendMembershipApproved(ctx context.Context, toEmail, name string) error
}

// BrevoClient sends emails via the Brevo (Sendinblue) API.
// Env: SENDINBLUE_API_KEY, MAIL_FROM, SACCO_NAME.
type BrevoClient struct {
	APIKey   string
	MailFrom string
	OrgName  string
	Endpoint string // defaults to the Brevo API
	Client   *http.Client
}

func (c *BrevoClient) from() string {
	if c.MailFrom != "" {
		return c.MailFrom
	}
	return "noreply@sacco.local"
}

func (c *BrevoClient) org() string {
	if c.OrgName != "" {
		return c.OrgName
	}
	return "SACCO"
}

func (c *BrevoClient) send(ctx context.Context, toEmail, name, subject, html string) error {
	if c.APIKey == "" || toEmail == "" {
		return nil
	}
	body := BrevoSendRequest{
		Sender:      BrevoSender{Email: c.from(), Name: c.org()},
		To:          []BrevoTo{{Email: toEmail, Name: name}},
		Subject:     subject,
		HTMLContent: html,
	}
	bodyBytes, err := json.Marshal(body)
	if err != nil {
		return err
	}
	endpoint := c.Endpoint
	if endpoint == "" {
		endpoint = brevoAPI
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(bodyBytes))
	if err != nil {
		return err
	}
	req.Header.Set("api-key", c.APIKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	client := c.Client
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("brevo send failed: status %d", resp.StatusCode)
	}
	return nil
}

// SendRegistrationReceived confirms a self-registration that now waits for approval.
func (c *BrevoClient) SendRegistrationReceived(ctx context.Context, toEmail, name string) error {
	content := fmt.Sprintf(`
    <h1>Registration received</h1>
    <p>Hi %s,</p>
    <p>Thank you for applying to join <strong>%s</strong>. An administrator will review your membership shortly. You can sign in once it has been approved.</p>
`, EscapeHTML(greetingName(name)), EscapeHTML(c.org()))
	return c.send(ctx, toEmail, name, "Your membership application was received", EmailLayout(c.org(), content))
}

// SendMembershipApproved tells a member their account is active.
func (c *BrevoClient) SendMembershipApproved(ctx context.Context, toEmail, name string) error {
	content := fmt.Sprintf(`
    <h1>Membership approved</h1>
    <p>Hi %s,</p>
    <p>Your membership of <strong>%s</strong> has been approved. You can now sign in to view your shares, transfers and dividend history.</p>
`, EscapeHTML(greetingName(name)), EscapeHTML(c.org()))
	return c.send(ctx, toEmail, name, "Your membership has been approved", EmailLayout(c.org(), content))
}

func greetingName(name string) string {
	if name == "" {
		return "there"
	}
	return name
}
