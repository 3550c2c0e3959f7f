package notify

import (
	"context"
	"errors"
	"fmt"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	apperrors "github.com/keepstack/keepsync/pkg/errors"
	"github.com/keepstack/keepsync/pkg/logger"
)

// fcmSender is the subset of *messaging.Client the deliverer needs.
type fcmSender interface {
	Send(ctx context.Context, message *messaging.Message) (string, error)
}

// FCMConfig configures push delivery through Firebase Cloud Messaging.
type FCMConfig struct {
	CredentialsFile string
	DeviceToken     string
}

// FCMDeliverer pushes notifications to the device through FCM. Pushes are sent
// high priority so reminders surface promptly even when the app is
// backgrounded.
type FCMDeliverer struct {
	client fcmSender
	token  string
	log    *zap.Logger
}

// NewFCMDeliverer initializes the Firebase app and messaging client.
func NewFCMDeliverer(ctx context.Context, cfg FCMConfig) (*FCMDeliverer, error) {
	if cfg.CredentialsFile == "" {
		return nil, errors.New("fcm deliverer: credentials file is required")
	}
	if cfg.DeviceToken == "" {
		return nil, errors.New("fcm deliverer: device token is required")
	}

	app, err := firebase.NewApp(ctx, nil, option.WithCredentialsFile(cfg.CredentialsFile))
	if err != nil {
		return nil, fmt.Errorf("fcm deliverer: init app: %w", err)
	}
	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("fcm deliverer: messaging client: %w", err)
	}

	return &FCMDeliverer{
		client: client,
		token:  cfg.DeviceToken,
		log:    logger.WithModule("fcm"),
	}, nil
}

// Deliver sends the notification as a high-priority push.
func (d *FCMDeliverer) Deliver(ctx context.Context, notification Notification) error {
	msg := &messaging.Message{
		Token: d.token,
		Notification: &messaging.Notification{
			Title: notification.Title,
			Body:  notification.Body,
		},
		Data: notification.Payload,
		Android: &messaging.AndroidConfig{
			Priority: "high",
			Notification: &messaging.AndroidNotification{
				ChannelID: "insights",
				Sound:     "default",
			},
		},
		APNS: &messaging.APNSConfig{
			Headers: map[string]string{
				"apns-priority":  "10",
				"apns-push-type": "alert",
			},
			Payload: &messaging.APNSPayload{
				Aps: &messaging.Aps{Sound: "default"},
			},
		},
	}

	id, err := d.client.Send(ctx, msg)
	if err != nil {
		return apperrors.ErrDelivery.WithInternal(fmt.Errorf("fcm deliverer: send: %w", err))
	}

	d.log.Debug("push sent",
		zap.String("insight_id", notification.InsightID),
		zap.String("message_id", id),
	)
	return nil
}
