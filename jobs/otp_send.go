package jobs

import (
	"context"
	"log/slog"

	"github.com/hibiken/asynq"
)

// OTPGateway delivers login codes. Production wires an SMS provider;
// development logs and mails through the relay.
type OTPGateway interface {
	Deliver(ctx context.Context, phone, code string) error
}

// MailOTPGateway sends codes through the SMTP relay, addressed by
// phone, which Mailpit captures in development.
type MailOTPGateway struct {
	Mailer Mailer
}

// Deliver sends one code.
func (g MailOTPGateway) Deliver(ctx context.Context, phone, code string) error {
	return g.Mailer.Send(phone+"@sms.sevatrack.local", "Your SevaTrack login code", "Login code: "+code)
}

// OTPSendJob processes queued login-code deliveries.
type OTPSendJob struct {
	gateway OTPGateway
	logger  *slog.Logger
}

// NewOTPSendJob constructs OTPSendJob.
func NewOTPSendJob(gateway OTPGateway, logger *slog.Logger) *OTPSendJob {
	return &OTPSendJob{gateway: gateway, logger: logger}
}

// Handle processes TaskTypeSendOTP tasks.
func (j *OTPSendJob) Handle(ctx context.Context, t *asynq.Task) error {
	var payload SendOTPPayload
	if err := decodePayload(t, &payload); err != nil {
		return err
	}
	if err := j.gateway.Deliver(ctx, payload.Phone, payload.Code); err != nil {
		return err
	}
	j.logger.Info("otp dispatched", slog.String("phone", maskPhone(payload.Phone)))
	return nil
}

func maskPhone(phone string) string {
	if len(phone) <= 4 {
		return "****"
	}
	return "*******" + phone[len(phone)-4:]
}
