package notification

import (
	"bytes"
	"fmt"
	"html"
	"html/template"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var verificationTemplate = template.Must(template.New("verification").Parse(`<!DOCTYPE html>
<html>
<body style="font-family: Arial, sans-serif; background-color: #f8f9fa; padding: 20px;">
  <div style="max-width: 600px; margin: 0 auto; background-color: white; padding: 30px; border-radius: 10px;">
    <h1 style="color: #4f46e5;">Welcome to Birthday Club, {{.Name}}!</h1>
    <p>Use the code below to verify your email address.</p>
    <p style="font-size: 32px; letter-spacing: 8px; font-weight: bold; text-align: center;">{{.Code}}</p>
    <p>The code expires in {{.ValidFor}}, at {{.ExpiresAt}}.</p>
    <p style="color: #9ca3af; font-size: 14px;">If you did not sign up, you can ignore this email.</p>
  </div>
</body>
</html>`))

var birthdayTemplate = template.Must(template.New("birthday").Parse(`<!DOCTYPE html>
<html>
<body style="font-family: Arial, sans-serif; background-color: #f8f9fa; padding: 20px;">
  <div style="max-width: 600px; margin: 0 auto; background-color: white; padding: 30px; border-radius: 10px;">
    <h1 style="color: #4f46e5; text-align: center;">Birthday Celebration!</h1>
    <h2 style="text-align: center;">Happy Birthday, {{.CelebrantName}}!</h2>
    <p>Hi {{.RecipientName}},</p>
    <p>Today is <strong>{{.CelebrantName}}'s</strong> special day. Why not send them a birthday wish?</p>
    <p style="font-style: italic; text-align: center;">"Birthdays are a time to celebrate the joy of life and the people we cherish."</p>
    <p style="text-align: center;">
      <a href="mailto:{{.CelebrantEmail}}?subject=Happy%20Birthday!" style="background-color: #4f46e5; color: white; padding: 12px 25px; text-decoration: none; border-radius: 6px;">Send Birthday Wishes to {{.CelebrantEmail}}</a>
    </p>
    <p style="color: #9ca3af; font-size: 14px; text-align: center;">This reminder was sent by Birthday Club.</p>
  </div>
</body>
</html>`))

type verificationData struct {
	Name      string
	Code      string
	ValidFor  string
	ExpiresAt string
}

type birthdayData struct {
	RecipientName  string
	CelebrantName  string
	CelebrantEmail string
}

// render executes t and returns the HTML body plus a plain-text rendering of it
func render(t *template.Template, data interface{}) (string, string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", "", fmt.Errorf("failed to render %s email: %w", t.Name(), err)
	}
	body := buf.String()
	text, err := plainText(body)
	if err != nil {
		return "", "", err
	}
	return body, text, nil
}

// displayName turns a stored name back into plain text. Names are kept
// HTML-escaped in the directory and the templates escape them again.
func displayName(stored string) string {
	return html.UnescapeString(stored)
}

// plainText keeps the readable blocks of an HTML email, one per paragraph.
func plainText(body string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to parse email html: %w", err)
	}

	var blocks []string
	doc.Find("h1, h2, p").Each(func(_ int, s *goquery.Selection) {
		line := strings.Join(strings.Fields(s.Text()), " ")
		if line != "" {
			blocks = append(blocks, line)
		}
	})
	return strings.Join(blocks, "\n\n"), nil
}
