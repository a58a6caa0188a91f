package email

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"html"
	"net/http"
)

const apiURL = "https://api.postmarkapp.com/email"

type Client struct {
	serverToken string
	fromEmail   string
	baseURL     string
	httpClient  *http.Client
}

type Option func(*Client)

func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		cl.httpClient = c
	}
}

func NewClient(serverToken, fromEmail, baseURL string, opts ...Option) *Client {
	c := &Client{
		serverToken: serverToken,
		fromEmail:   fromEmail,
		baseURL:     baseURL,
		httpClient:  http.DefaultClient,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Configured returns true if the server token is set.
func (c *Client) Configured() bool {
	return c != nil && c.serverToken != ""
}

type postmarkEmail struct {
	From          string `json:"From"`
	To            string `json:"To"`
	Subject       string `json:"Subject"`
	HtmlBody      string `json:"HtmlBody"`
	TextBody      string `json:"TextBody"`
	Tag           string `json:"Tag,omitempty"`
	MessageStream string `json:"MessageStream"`
}

// postmarkError is the body Postmark returns with a 4xx/5xx status.
type postmarkError struct {
	ErrorCode int    `json:"ErrorCode"`
	Message   string `json:"Message"`
}

// SendPendingSignup tells the inviting leader that someone is waiting for
// approval.
func (c *Client) SendPendingSignup(ctx context.Context, leaderEmail, applicantName, applicantEmail string) error {
	link := c.baseURL + "/admin"
	text := fmt.Sprintf("%s (%s) pediu para entrar na Rede Virtus usando o seu convite.\n\nRevise o cadastro em:\n%s",
		applicantName, applicantEmail, link)
	body := fmt.Sprintf(`<p><strong>%s</strong> (%s) pediu para entrar na Rede Virtus usando o seu convite.</p><p><a href="%s">Revisar cadastros pendentes</a></p>`,
		html.EscapeString(applicantName), html.EscapeString(applicantEmail), link)
	return c.send(ctx, leaderEmail, "Novo cadastro aguardando aprovação", "pending-signup", body, text)
}

// SendApproval welcomes a newly approved member.
func (c *Client) SendApproval(ctx context.Context, toEmail, name string) error {
	link := c.baseURL + "/login"
	text := fmt.Sprintf("Olá, %s!\n\nSeu cadastro na Rede Virtus foi aprovado. Entre em:\n%s\n\nO silêncio também é uma oração.",
		name, link)
	body := fmt.Sprintf(`<p>Olá, %s!</p><p>Seu cadastro na Rede Virtus foi aprovado.</p><p><a href="%s">Entrar</a></p><p><em>O silêncio também é uma oração.</em></p>`,
		html.EscapeString(name), link)
	return c.send(ctx, toEmail, "Bem-vindo à Rede Virtus", "approval", body, text)
}

func (c *Client) send(ctx context.Context, to, subject, tag, htmlBody, textBody string) error {
	if !c.Configured() {
		return fmt.Errorf("email client not configured: missing server token")
	}

	payload := postmarkEmail{
		From:          c.fromEmail,
		To:            to,
		Subject:       subject,
		HtmlBody:      htmlBody,
		TextBody:      textBody,
		Tag:           tag,
		MessageStream: "outbound",
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal email: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, apiURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Postmark-Server-Token", c.serverToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var pe postmarkError
		if json.NewDecoder(resp.Body).Decode(&pe) == nil && pe.Message != "" {
			return fmt.Errorf("postmark API error %d: %s (status %d)", pe.ErrorCode, pe.Message, resp.StatusCode)
		}
		return fmt.Errorf("postmark API error: status %d", resp.StatusCode)
	}

	return nil
}
