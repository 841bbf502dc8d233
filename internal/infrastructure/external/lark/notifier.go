package lark

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/garyjia/ncr-tracker/internal/application/port"
	"github.com/garyjia/ncr-tracker/internal/domain/entity"
)

// MaxDigestLines caps how many reports an overdue digest lists by number
const MaxDigestLines = 20

// Notifier posts NCR events to a Lark group as interactive cards
type Notifier struct {
	sender        MessageSender
	chatID        string
	receiveIDType string
	logger        *zap.Logger
}

// NewNotifier creates a notifier that posts to cfg.ChatID
func NewNotifier(sender MessageSender, cfg Config, logger *zap.Logger) (*Notifier, error) {
	if cfg.ChatID == "" {
		return nil, fmt.Errorf("lark chat id is required")
	}
	idType := cfg.ReceiveIDType
	if idType == "" {
		idType = "chat_id"
	}
	return &Notifier{
		sender:        sender,
		chatID:        cfg.ChatID,
		receiveIDType: idType,
		logger:        logger,
	}, nil
}

func (n *Notifier) NotifyCreated(ctx context.Context, report *entity.NonConformanceReport) error {
	card := buildCard(
		fmt.Sprintf("New NCR %s (%s)", report.ReportNumber, report.Severity),
		severityTemplate(report.Severity),
		reportLines(report),
	)
	return n.sendCard(ctx, card, report.ReportNumber)
}

func (n *Notifier) NotifyStatusChanged(ctx context.Context, report *entity.NonConformanceReport, from entity.Status) error {
	lines := append([]string{fmt.Sprintf("**Status:** %s → %s", from, report.Status)}, reportLines(report)...)
	if report.ClosureDate != nil {
		lines = append(lines, "**Closed on:** "+report.ClosureDate.Format("2006-01-02"))
	}

	template := "blue"
	if report.Status == entity.StatusClosed {
		template = "green"
	}
	card := buildCard(fmt.Sprintf("NCR %s is now %s", report.ReportNumber, report.Status), template, lines)
	return n.sendCard(ctx, card, report.ReportNumber)
}

func (n *Notifier) NotifyOverdue(ctx context.Context, reports []*entity.NonConformanceReport) error {
	if len(reports) == 0 {
		return nil
	}

	lines := make([]string, 0, MaxDigestLines+1)
	for i, r := range reports {
		if i == MaxDigestLines {
			lines = append(lines, fmt.Sprintf("…and %d more", len(reports)-MaxDigestLines))
			break
		}
		lines = append(lines, fmt.Sprintf("- **%s** %s, due %s, %s",
			r.ReportNumber, r.Severity, formatDate(r.TargetDate), orDash(r.ResponsiblePerson)))
	}

	card := buildCard(fmt.Sprintf("%d overdue NCR(s)", len(reports)), "red", lines)
	return n.sendCard(ctx, card, "overdue-digest")
}

func (n *Notifier) sendCard(ctx context.Context, card map[string]interface{}, subject string) error {
	content, err := json.Marshal(card)
	if err != nil {
		return fmt.Errorf("failed to marshal card content: %w", err)
	}

	if _, err := n.sender.Send(ctx, n.receiveIDType, n.chatID, "interactive", string(content)); err != nil {
		n.logger.Warn("Lark notification failed",
			zap.String("subject", subject),
			zap.Error(err))
		return fmt.Errorf("failed to send card message: %w", err)
	}
	return nil
}

func buildCard(title, template string, lines []string) map[string]interface{} {
	return map[string]interface{}{
		"config": map[string]interface{}{"wide_screen_mode": true},
		"header": map[string]interface{}{
			"template": template,
			"title":    map[string]interface{}{"tag": "plain_text", "content": title},
		},
		"elements": []interface{}{
			map[string]interface{}{
				"tag":  "div",
				"text": map[string]interface{}{"tag": "lark_md", "content": strings.Join(lines, "\n")},
			},
		},
	}
}

func reportLines(r *entity.NonConformanceReport) []string {
	return []string{
		"**Description:** " + orDash(r.Description),
		"**Department:** " + orDash(r.Department),
		"**Area:** " + orDash(r.Area),
		"**Raised by:** " + orDash(r.RaisedByName),
		"**Target date:** " + formatDate(r.TargetDate),
	}
}

func severityTemplate(s entity.Severity) string {
	switch s {
	case entity.SeverityCritical:
		return "red"
	case entity.SeverityMajor:
		return "orange"
	default:
		return "blue"
	}
}

func formatDate(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Format("2006-01-02")
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}

// NoopNotifier drops every notification
type NoopNotifier struct{}

func (NoopNotifier) NotifyCreated(context.Context, *entity.NonConformanceReport) error { return nil }
func (NoopNotifier) NotifyStatusChanged(context.Context, *entity.NonConformanceReport, entity.Status) error {
	return nil
}
func (NoopNotifier) NotifyOverdue(context.Context, []*entity.NonConformanceReport) error { return nil }

var (
	_ port.Notifier = (*Notifier)(nil)
	_ port.Notifier = NoopNotifier{}
	_ MessageSender = (*SDKClient)(nil)
)
