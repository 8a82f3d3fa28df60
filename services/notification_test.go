package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"groupbuy-backend/events"
	"groupbuy-backend/models"
)

type directory map[uuid.UUID]models.User

func (d directory) GetUsers(ctx context.Context, ids []uuid.UUID) ([]models.User, error) {
	var out []models.User
	for _, id := range ids {
		if u, ok := d[id]; ok {
			out = append(out, u)
		}
	}
	return out, nil
}

type sentPush struct{ token, title string }

type fakePush struct{ sent []sentPush }

func (f *fakePush) Send(ctx context.Context, token, title, body string, data map[string]string) error {
	f.sent = append(f.sent, sentPush{token, title})
	return nil
}

type sentEmail struct{ to, subject, body string }

type fakeEmail struct {
	sent []sentEmail
	err  error
}

func (f *fakeEmail) Send(ctx context.Context, toEmail, toName, subject, htmlBody string) error {
	f.sent = append(f.sent, sentEmail{toEmail, subject, htmlBody})
	return f.err
}

func TestNotifySettlement(t *testing.T) {
	leader := models.User{ID: uuid.New(), Name: "Ravi", Email: "ravi@example.com", FCMToken: "tok-ravi"}
	member := models.User{ID: uuid.New(), Name: "Meera", Email: "meera@example.com"}
	push, email := &fakePush{}, &fakeEmail{}
	ns := NewNotificationService(directory{leader.ID: leader, member.ID: member}, push, email, "GroupBuy")

	err := ns.Publish(context.Background(), &events.Event{
		Type:        events.TypeSettlementCompleted,
		LeaderID:    leader.ID,
		Members:     []uuid.UUID{member.ID, uuid.New()}, // unknown user is skipped
		Amount:      decimal.RequireFromString("602.7"),
		PlatformFee: decimal.RequireFromString("12.3"),
	})
	if err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	if len(push.sent) != 1 || push.sent[0].token != "tok-ravi" {
		t.Errorf("push = %+v, want one push to the leader", push.sent)
	}
	if len(email.sent) != 2 {
		t.Fatalf("sent %d emails, want 2", len(email.sent))
	}
	if email.sent[0].to != leader.Email || !strings.Contains(email.sent[0].body, "INR 602.70") {
		t.Errorf("leader email = %+v", email.sent[0])
	}
	if !strings.Contains(email.sent[0].body, "GroupBuy") {
		t.Error("layout not rendered")
	}
	if email.sent[1].to != member.Email {
		t.Errorf("member email to %s", email.sent[1].to)
	}
}

func TestNotifyNoShow(t *testing.T) {
	leader := models.User{ID: uuid.New(), Name: "Ravi", Email: "ravi@example.com"}
	member := models.User{ID: uuid.New(), Name: "Meera", Email: "meera@example.com", FCMToken: "tok-meera"}
	push := &fakePush{}
	boom := errors.New("sendgrid down")
	email := &fakeEmail{err: boom}
	ns := NewNotificationService(directory{leader.ID: leader, member.ID: member}, push, email, "GroupBuy")

	err := ns.Publish(context.Background(), &events.Event{
		Type:     events.TypeNoShowApplied,
		LeaderID: leader.ID,
		UserID:   member.ID,
		Amount:   decimal.RequireFromString("41"),
	})
	if !errors.Is(err, boom) {
		t.Errorf("Publish() error = %v, want %v", err, boom)
	}
	// Both recipients are still attempted.
	if len(email.sent) != 2 || len(push.sent) != 1 {
		t.Errorf("emails = %d, pushes = %d", len(email.sent), len(push.sent))
	}
	if !strings.Contains(email.sent[0].body, "INR 41.00") {
		t.Errorf("member email body = %s", email.sent[0].body)
	}
}

func TestNotificationsWithoutSenders(t *testing.T) {
	u := models.User{ID: uuid.New(), Email: "x@example.com", FCMToken: "t"}
	ns := NewNotificationService(directory{u.ID: u}, nil, nil, "GroupBuy")
	err := ns.Publish(context.Background(), &events.Event{Type: events.TypeNoShowApplied, UserID: u.ID, LeaderID: u.ID})
	if err != nil {
		t.Errorf("Publish() error = %v", err)
	}
	if err := ns.Publish(context.Background(), &events.Event{Type: "unknown"}); err != nil {
		t.Errorf("unknown event error = %v", err)
	}
}
