package utils

import (
	"context"
	"fmt"
	"html"
	"net/smtp"
	"strings"

	"gorm.io/gorm"

	"lms/config"
	"lms/logger"
	"lms/models"
	creditModels "lms/models/credit"
)

// Generic Send Email
func SendEmail(to []string, subject string, htmlBody string) error {
	smtpHost := config.AppConfig.SMTPHost
	smtpPort := config.AppConfig.SMTPPort

	from := config.AppConfig.EmailSender
	password := config.AppConfig.Password

	// MIME basics
	msg := "MIME-version: 1.0;\nContent-Type: text/html; charset=\"UTF-8\";\n"
	msg += fmt.Sprintf("From: Learning Platform <%s>\r\n", from)
	msg += fmt.Sprintf("To: %s\r\n", strings.Join(to, ","))
	msg += fmt.Sprintf("Subject: %s\r\n\r\n", subject)
	msg += htmlBody

	auth := smtp.PlainAuth("", from, password, smtpHost)

	logger.Log.Infow("sending email", "to", to, "subject", subject)

	if err := smtp.SendMail(smtpHost+":"+smtpPort, auth, from, to, []byte(msg)); err != nil {
		logger.Log.Errorw("error sending email", "to", to, "error", err)
		return err
	}
	return nil
}

// HTML wrapper shared by every notification
func getEmailTemplate(title string, bodyContent string) string {
	return fmt.Sprintf(`
	<!DOCTYPE html>
	<html>
	<head>
		<style>
			body { font-family: 'Helvetica Neue', Helvetica, Arial, sans-serif; background-color: #F6F6F6; margin: 0; padding: 0; }
			.container { max-width: 600px; margin: 40px auto; background: #FFFFFF; border-radius: 8px; overflow: hidden; }
			.header { background-color: #0B3D5C; padding: 30px; text-align: center; }
			.header h1 { color: #FFFFFF; margin: 0; font-size: 24px; letter-spacing: 1px; }
			.content { padding: 40px 30px; color: #0B3D5C; line-height: 1.6; }
			.info-box { background: #E8F0FE; padding: 15px; border-radius: 4px; border-left: 4px solid #2E8BC0; margin: 20px 0; }
			.footer { background-color: #F6F6F6; padding: 20px; text-align: center; font-size: 12px; color: #666666; }
		</style>
	</head>
	<body>
		<div class="container">
			<div class="header"><h1>COURSE CREDIT</h1></div>
			<div class="content">
				<h2>%s</h2>
				%s
			</div>
			<div class="footer">You are receiving this email because you requested academic credit.</div>
		</div>
	</body>
	</html>
	`, title, bodyContent)
}

// CreditStatusEmail renders the subject and body sent after a provider decision.
func CreditStatusEmail(name, courseKey, providerName, status string) (string, string) {
	verdict := "approved"
	title := "Credit Request Approved"
	if status == creditModels.RequestStatusRejected {
		verdict = "rejected"
		title = "Credit Request Rejected"
	}
	subject := fmt.Sprintf("Your credit request for %s was %s", courseKey, verdict)
	body := fmt.Sprintf(`
		<p>Dear %s,</p>
		<p><strong>%s</strong> has %s your request for credit in <strong>%s</strong>.</p>
		<div class="info-box">Contact the provider directly for questions about this decision.</div>
	`, html.EscapeString(name), html.EscapeString(providerName), verdict, html.EscapeString(courseKey))
	return subject, getEmailTemplate(title, body)
}

// EmailNotifier emails learners when a provider decides on their request.
type EmailNotifier struct {
	DB   *gorm.DB
	Send func(to []string, subject, htmlBody string) error
}

func NewEmailNotifier(db *gorm.DB) *EmailNotifier {
	return &EmailNotifier{DB: db, Send: SendEmail}
}

func (n *EmailNotifier) NotifyRequestStatus(ctx context.Context, req *creditModels.CreditRequest, status string) error {
	var user models.User
	if err := n.DB.WithContext(ctx).Preload("Profile").Where("username = ?", req.Username).First(&user).Error; err != nil {
		return fmt.Errorf("load credit request owner %s: %w", req.Username, err)
	}
	if user.Email == "" {
		return nil
	}

	name := user.Profile.Name
	if name == "" {
		name = user.Username
	}
	providerName := req.CreditProvider.DisplayName
	if providerName == "" {
		providerName = req.CreditProvider.ProviderID
	}
	subject, body := CreditStatusEmail(name, req.CreditCourse.CourseKey, providerName, status)

	// Send asynchronously like every other notification mail
	go func() {
		if err := n.Send([]string{user.Email}, subject, body); err != nil {
			logger.Log.Warnw("credit status email failed", "request_uuid", req.UUID, "error", err)
		}
	}()
	return nil
}
