package gmail

import (
	"bytes"
	"fmt"
	"html/template"
	"mime"
	"mime/multipart"
	"mime/quotedprintable"
	"net/textproto"
	"strings"
	texttemplate "text/template"

	"github.com/JakeFAU/circular-watch/internal/circular"
)

// SubjectPrefix starts every notification subject line.
const SubjectPrefix = "New RBI Circular Released: "

type emailData struct {
	Circular      circular.Summary
	CircularLink  string
	ChecklistLink string
	Signature     []string
}

var plainBody = texttemplate.Must(texttemplate.New("plain").Parse(`Hello Team,
A new RBI circular has been published.

Circular Number: {{.Circular.CircularNumber}}
Date: {{.Circular.Date}}
Subject: {{.Circular.Subject}}

You can view the circular here:
{{.CircularLink}}
{{if .ChecklistLink}}
You can also view the compliance checklist here:
{{.ChecklistLink}}
{{end}}
{{range .Signature}}{{.}}
{{end}}`))

var htmlBody = template.Must(template.New("html").Parse(`<html>
  <body>
    <p>Hello Team,</p>
    <p>A new RBI circular has been published.</p>
    <p><b>Circular Number:</b> {{.Circular.CircularNumber}}<br>
    <b>Date:</b> {{.Circular.Date}}<br>
    <b>Subject:</b> {{.Circular.Subject}}</p>
    <p>You can view the circular here:<br>
    <a href="{{.CircularLink}}">{{.CircularLink}}</a></p>
    {{- if .ChecklistLink}}
    <p>You can also view the compliance checklist here:<br>
    <a href="{{.ChecklistLink}}">{{.ChecklistLink}}</a></p>
    {{- end}}
    <p style="margin-top: 20px;">
    {{- range $i, $line := .Signature}}
      {{if eq $i 0}}<strong>{{$line}}</strong>{{else}}<span style="color: #2b2b99;"><strong>{{$line}}</strong></span>{{end}}<br>
    {{- end}}
    </p>
    <hr style="margin-top: 20px; border: 0; height: 1px; background: #ccc;">
  </body>
</html>
`))

// Subject returns the notification subject for a circular.
func Subject(s circular.Summary) string {
	return SubjectPrefix + s.CircularNumber
}

// Compose renders an RFC 5322 multipart/alternative message with plain-text and
// HTML parts for n.
func Compose(cfg Config, n circular.Notification) ([]byte, error) {
	data := emailData{
		Circular:      n.Circular,
		CircularLink:  n.Links.Circular,
		ChecklistLink: n.Links.Checklist,
		Signature:     cfg.Signature,
	}
	var plain, rich bytes.Buffer
	if err := plainBody.Execute(&plain, data); err != nil {
		return nil, fmt.Errorf("render plain body: %w", err)
	}
	if err := htmlBody.Execute(&rich, data); err != nil {
		return nil, fmt.Errorf("render html body: %w", err)
	}

	var msg bytes.Buffer
	mw := multipart.NewWriter(&msg)
	headers := []string{
		"From: " + cfg.Sender,
		"To: " + strings.Join(cfg.Recipients, ", "),
		"Subject: " + mime.QEncoding.Encode("utf-8", Subject(n.Circular)),
		"MIME-Version: 1.0",
		fmt.Sprintf("Content-Type: multipart/alternative; boundary=%q", mw.Boundary()),
	}
	var out bytes.Buffer
	out.WriteString(strings.Join(headers, "\r\n"))
	out.WriteString("\r\n\r\n")

	if err := writePart(mw, "text/plain; charset=utf-8", plain.Bytes()); err != nil {
		return nil, err
	}
	if err := writePart(mw, "text/html; charset=utf-8", rich.Bytes()); err != nil {
		return nil, err
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("close multipart: %w", err)
	}
	out.Write(msg.Bytes())
	return out.Bytes(), nil
}

func writePart(mw *multipart.Writer, contentType string, body []byte) error {
	h := textproto.MIMEHeader{}
	h.Set("Content-Type", contentType)
	h.Set("Content-Transfer-Encoding", "quoted-printable")
	pw, err := mw.CreatePart(h)
	if err != nil {
		return fmt.Errorf("create %s part: %w", contentType, err)
	}
	qp := quotedprintable.NewWriter(pw)
	if _, err := qp.Write(body); err != nil {
		return fmt.Errorf("encode %s part: %w", contentType, err)
	}
	if err := qp.Close(); err != nil {
		return fmt.Errorf("flush %s part: %w", contentType, err)
	}
	return nil
}
