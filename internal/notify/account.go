// AngelaMos | 2026
// account.go

package notify

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"strings"

	"github.com/reportriser/backend/internal/entitlement"
)

// Recipients resolves a user id to a deliverable address.
type Recipients interface {
	EmailFor(ctx context.Context, userID string) (string, error)
}

// AccountMailer sends the mail tied to an account: plan upgrades and
// report delivery.
type AccountMailer struct {
	mailer       Mailer
	recipients   Recipients
	dashboardURL string
}

func NewAccountMailer(m Mailer, r Recipients, dashboardURL string) *AccountMailer {
	return &AccountMailer{mailer: m, recipients: r, dashboardURL: dashboardURL}
}

func (a *AccountMailer) SendUpgradeNotice(
	ctx context.Context,
	userID string,
	tier entitlement.Tier,
) error {
	to, err := a.recipients.EmailFor(ctx, userID)
	if err != nil {
		return fmt.Errorf("resolve recipient: %w", err)
	}

	msg, err := UpgradeMessage(to, tier, a.dashboardURL)
	if err != nil {
		return err
	}
	return a.mailer.Send(ctx, msg)
}

func (a *AccountMailer) SendReport(
	ctx context.Context,
	userID, siteURL string,
	pdf []byte,
) error {
	to, err := a.recipients.EmailFor(ctx, userID)
	if err != nil {
		return fmt.Errorf("resolve recipient: %w", err)
	}

	msg, err := ReportMessage(to, siteURL, pdf, a.dashboardURL)
	if err != nil {
		return err
	}
	return a.mailer.Send(ctx, msg)
}

var upgradeTemplate = template.Must(template.New("upgrade").Parse(`<!DOCTYPE html>
<html>
  <body style="font-family: Helvetica, Arial, sans-serif; color: #1f2937;">
    <h2 style="color: #1E3A8A;">Thank you for upgrading</h2>
    <p>You're now on the <strong>{{.Plan}}</strong> plan.</p>
    <p><strong>Your plan includes:</strong></p>
    <ul>
      {{range .Features}}<li>{{.}}</li>
      {{end}}
    </ul>
    <p><a href="{{.Dashboard}}" style="color: #1E3A8A;">Go to your dashboard</a></p>
  </body>
</html>`))

func UpgradeMessage(to string, tier entitlement.Tier, dashboardURL string) (Message, error) {
	plan := planName(tier)
	features := PlanFeatures(tier)

	var buf bytes.Buffer
	err := upgradeTemplate.Execute(&buf, struct {
		Plan      string
		Features  []string
		Dashboard string
	}{Plan: plan, Features: features, Dashboard: dashboardURL})
	if err != nil {
		return Message{}, fmt.Errorf("render upgrade email: %w", err)
	}

	return Message{
		To:      to,
		Subject: "Welcome to ReportRiser " + plan,
		HTML:    buf.String(),
		Text: fmt.Sprintf(
			"You're now on the %s plan.\n\n- %s\n\nDashboard: %s",
			plan,
			strings.Join(features, "\n- "),
			dashboardURL,
		),
	}, nil
}

// PlanFeatures lists what the tier grants, in the order shown to users.
func PlanFeatures(tier entitlement.Tier) []string {
	limits := entitlement.LimitsFor(tier)
	features := make([]string, 0, 5)

	if limits.ReportsUnlimited() {
		features = append(features, "Unlimited reports")
	} else {
		features = append(features, fmt.Sprintf("%d reports per month", limits.MaxReportsPerPeriod))
	}

	if limits.SitesUnlimited() {
		features = append(features, "Unlimited sites")
	} else {
		features = append(features, fmt.Sprintf("%d sites", limits.MaxSites))
	}

	if limits.WhiteLabel {
		features = append(features, "White-label reports")
	}
	if limits.APIAccess {
		features = append(features, "API access")
	}
	if limits.EmailScheduling {
		features = append(features, "Email scheduling")
	}

	return features
}

func planName(tier entitlement.Tier) string {
	s := string(tier)
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

var reportTemplate = template.Must(template.New("report").Parse(`<!DOCTYPE html>
<html>
  <body style="font-family: Helvetica, Arial, sans-serif; color: #1f2937;">
    <h2 style="color: #1E3A8A;">Your SEO report is ready</h2>
    <p>We've generated your latest SEO report for <strong>{{.Site}}</strong>.</p>
    <ul>
      <li>Traffic analysis for the past 30 days</li>
      <li>Top performing pages and keywords</li>
      <li>Core Web Vitals scores</li>
      <li>Actionable recommendations</li>
    </ul>
    <p>The report is attached. You can also find it any time in your <a href="{{.Dashboard}}" style="color: #1E3A8A;">dashboard</a>.</p>
  </body>
</html>`))

func ReportMessage(to, siteURL string, pdf []byte, dashboardURL string) (Message, error) {
	if len(pdf) == 0 {
		return Message{}, fmt.Errorf("report email for %s has no attachment", siteURL)
	}

	var buf bytes.Buffer
	err := reportTemplate.Execute(&buf, struct {
		Site      string
		Dashboard string
	}{Site: siteURL, Dashboard: dashboardURL})
	if err != nil {
		return Message{}, fmt.Errorf("render report email: %w", err)
	}

	return Message{
		To:      to,
		Subject: "Your SEO Report for " + siteURL,
		HTML:    buf.String(),
		Text: fmt.Sprintf(
			"Your SEO report for %s is attached.\n\nDashboard: %s",
			siteURL,
			dashboardURL,
		),
		Attachments: []Attachment{{
			Filename: ReportAttachmentName(siteURL),
			Content:  pdf,
		}},
	}, nil
}

// ReportAttachmentName is seo-report-<site>.pdf with the scheme removed
// and path separators flattened.
func ReportAttachmentName(siteURL string) string {
	name := strings.TrimSpace(siteURL)
	name = strings.TrimPrefix(name, "https://")
	name = strings.TrimPrefix(name, "http://")
	name = strings.TrimRight(name, "/")
	name = strings.ReplaceAll(name, "/", "-")
	if name == "" {
		name = "site"
	}
	return "seo-report-" + name + ".pdf"
}
