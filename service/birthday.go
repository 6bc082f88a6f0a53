package service

import (
	"context"
	"time"

	"github.com/raushankrgupta/birthday-club/apperrors"
	"github.com/raushankrgupta/birthday-club/models"
	"github.com/raushankrgupta/birthday-club/notification"
	"go.uber.org/zap"
)

// BirthdayOperation is the rate limited operation name of the broadcast.
const BirthdayOperation = "send-birthday-emails"

type CelebrantReport struct {
	Name             string   `json:"name"`
	Email            string   `json:"email"`
	Attempted        int      `json:"attempted"`
	Succeeded        int      `json:"succeeded"`
	Failed           int      `json:"failed"`
	FailedRecipients []string `json:"failedRecipients,omitempty"`
}

type BroadcastReport struct {
	Message        string            `json:"message"`
	Date           string            `json:"date"`
	TotalBirthdays int               `json:"totalBirthdays"`
	Attempted      int               `json:"attempted"`
	Succeeded      int               `json:"succeeded"`
	Failed         int               `json:"failed"`
	Results        []CelebrantReport `json:"results"`
}

type BirthdayPerson struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

type BirthdayPreview struct {
	Date      string           `json:"todaysDate"`
	Count     int              `json:"birthdayCount"`
	Birthdays []BirthdayPerson `json:"birthdays"`
}

func isLeap(year int) bool {
	return year%4 == 0 && (year%100 != 0 || year%400 == 0)
}

// birthdaysOn returns the verified users celebrating on day. Users born on
// February 29 celebrate on February 28 in common years.
func (s *Service) birthdaysOn(ctx context.Context, day time.Time) ([]models.User, error) {
	users, err := s.users.FindBirthdays(ctx, day.Month(), day.Day())
	if err != nil {
		return nil, storeErr(err)
	}
	if day.Month() == time.February && day.Day() == 28 && !isLeap(day.Year()) {
		leap, err := s.users.FindBirthdays(ctx, time.February, 29)
		if err != nil {
			return nil, storeErr(err)
		}
		users = append(users, leap...)
	}
	return users, nil
}

// TodaysBirthdays lists today's celebrants without sending anything
func (s *Service) TodaysBirthdays(ctx context.Context) (BirthdayPreview, error) {
	today := s.today()
	users, err := s.birthdaysOn(ctx, today)
	if err != nil {
		return BirthdayPreview{}, err
	}
	preview := BirthdayPreview{
		Date:      today.Format("2006-01-02"),
		Count:     len(users),
		Birthdays: make([]BirthdayPerson, 0, len(users)),
	}
	for _, u := range users {
		preview.Birthdays = append(preview.Birthdays, BirthdayPerson{Name: u.Name, Email: u.Email})
	}
	return preview, nil
}

// SendBirthdayEmails notifies every verified user about each of today's
// celebrants. The run consumes a slot of the broadcast rate limit first and
// touches nothing else when the limit is exhausted.
func (s *Service) SendBirthdayEmails(ctx context.Context) (BroadcastReport, error) {
	decision, err := s.limiter.CheckAndIncrement(ctx, BirthdayOperation)
	if err != nil {
		return BroadcastReport{}, storeErr(err)
	}
	if !decision.Allowed {
		return BroadcastReport{}, &apperrors.RateLimitError{Operation: BirthdayOperation, ResetTime: decision.ResetTime}
	}

	today := s.today()
	report := BroadcastReport{Date: today.Format("2006-01-02"), Results: []CelebrantReport{}}

	celebrants, err := s.birthdaysOn(ctx, today)
	if err != nil {
		return BroadcastReport{}, err
	}
	if len(celebrants) == 0 {
		report.Message = "No birthdays today"
		return report, nil
	}
	report.TotalBirthdays = len(celebrants)

	pool, err := s.users.FindAuthenticated(ctx)
	if err != nil {
		return BroadcastReport{}, storeErr(err)
	}
	if len(pool) < 2 {
		report.Message = "Not enough users to send birthday notifications"
		return report, nil
	}

	for _, c := range celebrants {
		recipients := make([]notification.Recipient, 0, len(pool))
		for _, u := range pool {
			if u.ID == c.ID || u.Email == c.Email {
				continue
			}
			recipients = append(recipients, notification.Recipient{Name: u.Name, Email: u.Email})
		}

		cr := CelebrantReport{Name: c.Name, Email: c.Email, Attempted: len(recipients)}
		for _, d := range s.notifier.SendBirthdayNotices(ctx, notification.Recipient{Name: c.Name, Email: c.Email}, recipients) {
			if d.OK() {
				cr.Succeeded++
				continue
			}
			cr.Failed++
			cr.FailedRecipients = append(cr.FailedRecipients, d.Email)
		}

		s.logger.Info("Birthday notices sent",
			zap.String("celebrant", c.Email),
			zap.Int("attempted", cr.Attempted),
			zap.Int("succeeded", cr.Succeeded),
			zap.Int("failed", cr.Failed),
		)
		report.Attempted += cr.Attempted
		report.Succeeded += cr.Succeeded
		report.Failed += cr.Failed
		report.Results = append(report.Results, cr)
	}

	report.Message = "Birthday emails processed"
	return report, nil
}
