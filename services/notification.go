package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"log/slog"

	"github.com/google/uuid"

	"groupbuy-backend/events"
	"groupbuy-backend/models"
)

// PushSender delivers a push notification to one device token.
type PushSender interface {
	Send(ctx context.Context, token, title, body string, data map[string]string) error
}

// EmailSender delivers one HTML email.
type EmailSender interface {
	Send(ctx context.Context, toEmail, toName, subject, htmlBody string) error
}

// UserDirectory resolves member ids to contact records.
type UserDirectory interface {
	GetUsers(ctx context.Context, ids []uuid.UUID) ([]models.User, error)
}

// NotificationService turns settlement events into push and email messages.
// It implements events.Publisher so it can sit next to the broker publishers.
type NotificationService struct {
	users   UserDirectory
	push    PushSender  // optional
	email   EmailSender // optional
	appName string
}

func NewNotificationService(users UserDirectory, push PushSender, email EmailSender, appName string) *NotificationService {
	return &NotificationService{users: users, push: push, email: email, appName: appName}
}

func (ns *NotificationService) Publish(ctx context.Context, event *events.Event) error {
	switch event.Type {
	case events.TypeSettlementCompleted:
		return ns.NotifySettlement(ctx, event)
	case events.TypeNoShowApplied:
		return ns.NotifyNoShow(ctx, event)
	}
	return nil
}

func (ns *NotificationService) Close() error { return nil }

// NotifySettlement tells the leader about the payout and every debited
// member that their share was paid.
func (ns *NotificationService) NotifySettlement(ctx context.Context, event *events.Event) error {
	ids := append([]uuid.UUID{event.LeaderID}, event.Members...)
	users, err := ns.lookup(ctx, ids)
	if err != nil {
		return err
	}
	data := map[string]string{
		"type":     event.Type,
		"group_id": event.GroupID.String(),
		"order_id": event.OrderID.String(),
	}

	var errs []error
	if leader, ok := users[event.LeaderID]; ok {
		title := "Group order settled"
		body := fmt.Sprintf("You received INR %s after a platform fee of INR %s", event.Amount.StringFixed(2), event.PlatformFee.StringFixed(2))
		errs = append(errs, ns.deliver(ctx, leader, title, body, data, "Group order settled", settlementLeaderTmpl, map[string]interface{}{
			"Name":   leader.Name,
			"Payout": event.Amount.StringFixed(2),
			"Fee":    event.PlatformFee.StringFixed(2),
		}))
	}
	for _, id := range event.Members {
		member, ok := users[id]
		if !ok {
			continue
		}
		title := "Your group order share was paid"
		body := "Your share of the group order was paid from your wallet"
		errs = append(errs, ns.deliver(ctx, member, title, body, data, title, settlementMemberTmpl, map[string]interface{}{
			"Name": member.Name,
		}))
	}
	return errors.Join(errs...)
}

// NotifyNoShow tells the penalized member and the leader about a penalty.
func (ns *NotificationService) NotifyNoShow(ctx context.Context, event *events.Event) error {
	users, err := ns.lookup(ctx, []uuid.UUID{event.UserID, event.LeaderID})
	if err != nil {
		return err
	}
	amount := event.Amount.StringFixed(2)
	data := map[string]string{
		"type":     event.Type,
		"group_id": event.GroupID.String(),
		"order_id": event.OrderID.String(),
	}

	var errs []error
	if member, ok := users[event.UserID]; ok {
		title := "No-show penalty charged"
		body := fmt.Sprintf("INR %s was charged because your items were not collected", amount)
		errs = append(errs, ns.deliver(ctx, member, title, body, data, title, noShowMemberTmpl, map[string]interface{}{
			"Name":   member.Name,
			"Amount": amount,
		}))
	}
	if leader, ok := users[event.LeaderID]; ok {
		title := "No-show penalty received"
		body := fmt.Sprintf("You received INR %s from a member who did not collect their items", amount)
		errs = append(errs, ns.deliver(ctx, leader, title, body, data, title, noShowLeaderTmpl, map[string]interface{}{
			"Name":   leader.Name,
			"Amount": amount,
		}))
	}
	return errors.Join(errs...)
}

func (ns *NotificationService) lookup(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.User, error) {
	users, err := ns.users.GetUsers(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to look up recipients: %w", err)
	}
	byID := make(map[uuid.UUID]models.User, len(users))
	for _, u := range users {
		byID[u.ID] = u
	}
	return byID, nil
}

func (ns *NotificationService) deliver(ctx context.Context, user models.User, title, body string, data map[string]string,
	subject string, tmpl *template.Template, vars map[string]interface{}) error {
	var errs []error

	if ns.push != nil && user.FCMToken != "" {
		if err := ns.push.Send(ctx, user.FCMToken, title, body, data); err != nil {
			slog.Warn("Push notification failed", "user_id", user.ID, "error", err)
			errs = append(errs, err)
		}
	}

	if ns.email != nil && user.Email != "" {
		vars["AppName"] = ns.appName
		var buf bytes.Buffer
		if err := tmpl.Execute(&buf, vars); err != nil {
			return fmt.Errorf("failed to render %s: %w", tmpl.Name(), err)
		}
		if err := ns.email.Send(ctx, user.Email, user.Name, subject, buf.String()); err != nil {
			slog.Warn("Email notification failed", "user_id", user.ID, "error", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// ============================================================
// EMAIL TEMPLATES
// ============================================================

const emailLayout = `
<!DOCTYPE html>
<html>
<body style="font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; max-width: 600px; margin: 0 auto; padding: 20px; background-color: #f5f5f5;">
	<div style="background: white; border-radius: 12px; padding: 32px; box-shadow: 0 2px 8px rgba(0,0,0,0.1);">
		{{template "content" .}}
		<p style="color: #999; font-size: 12px; margin-top: 24px;">{{.AppName}}</p>
	</div>
</body>
</html>`

func emailTemplate(name, content string) *template.Template {
	return template.Must(template.Must(template.New(name).Parse(emailLayout)).New("content").Parse(content)).Lookup(name)
}

var (
	settlementLeaderTmpl = emailTemplate("settlement_leader", `
		<h2 style="color: #1DB954; margin-top: 0;">Group order settled</h2>
		<p>Hi <strong>{{.Name}}</strong>,</p>
		<p>Every member approved their split and the order has been paid.</p>
		<div style="background: #f8f9fa; border-radius: 8px; padding: 16px; margin: 16px 0;">
			<p style="margin: 4px 0; font-size: 18px;"><strong>Payout: INR {{.Payout}}</strong></p>
			<p style="margin: 4px 0; color: #666;">Platform fee: INR {{.Fee}}</p>
		</div>`)

	settlementMemberTmpl = emailTemplate("settlement_member", `
		<h2 style="color: #1DB954; margin-top: 0;">Your share was paid</h2>
		<p>Hi <strong>{{.Name}}</strong>,</p>
		<p>Your approved share of the group order was paid from your wallet. Remember to collect your items.</p>`)

	noShowMemberTmpl = emailTemplate("noshow_member", `
		<h2 style="color: #e53e3e; margin-top: 0;">No-show penalty</h2>
		<p>Hi <strong>{{.Name}}</strong>,</p>
		<p>Your items were not collected in time, so a penalty of <strong>INR {{.Amount}}</strong> was moved to the group leader.</p>`)

	noShowLeaderTmpl = emailTemplate("noshow_leader", `
		<h2 style="color: #1DB954; margin-top: 0;">No-show penalty received</h2>
		<p>Hi <strong>{{.Name}}</strong>,</p>
		<p>A member did not collect their items. <strong>INR {{.Amount}}</strong> was credited to your wallet.</p>`)
)
