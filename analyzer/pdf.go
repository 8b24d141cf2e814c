package analyzer

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"

	"compliance-scanner/compliance"
)

// analyzePDF handles policy documents served directly as PDF. Cookie
// consent has no meaning in a document, the document itself is the
// privacy policy, and there is no script context for trackers; CCPA and
// contact detection run over the extracted text.
func (a *Analyzer) analyzePDF(body []byte) (compliance.Findings, error) {
	text, err := PDFText(body)
	if err != nil {
		return compliance.Findings{}, fmt.Errorf("%w: reading pdf: %v", compliance.ErrScan, err)
	}
	return a.findingsFromPolicyText(text), nil
}

// findingsFromPolicyText categorizes extracted document text.
func (a *Analyzer) findingsFromPolicyText(text string) compliance.Findings {
	findings := compliance.Findings{
		CookieConsent: compliance.Finding{Status: compliance.StatusNotApplicable, Evidence: "not applicable to documents"},
		PrivacyPolicy: compliance.Finding{Status: compliance.StatusFound, Evidence: "document is a privacy policy"},
		CcpaNotice:    compliance.Finding{Status: compliance.StatusNotFound},
		ContactInfo:   compliance.Finding{Status: compliance.StatusNotFound},
	}

	if a.rules.ccpaPattern.MatchString(text) {
		findings.CcpaNotice = compliance.Finding{Status: compliance.StatusFound, Evidence: "do-not-sell language in document"}
	}

	var channels []string
	if a.rules.emailPattern.MatchString(text) {
		channels = append(channels, "email")
	}
	if a.rules.phonePattern.MatchString(text) {
		channels = append(channels, "phone")
	}
	if len(channels) > 0 {
		findings.ContactInfo = compliance.Finding{Status: compliance.StatusFound, Evidence: strings.Join(channels, ", ")}
	}

	return findings
}

// PDFText extracts plain text page by page. The underlying reader
// panics on some malformed files, so extraction is fenced and reported
// as an ordinary error.
func PDFText(body []byte) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("malformed pdf: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(body), int64(len(body)))
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		pageText, err := page.GetPlainText(nil)
		if err != nil {
			// Best-effort: skip unreadable pages rather than abort.
			continue
		}
		sb.WriteString(pageText)
		sb.WriteString("\n")
	}

	return sb.String(), nil
}
