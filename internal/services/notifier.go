package services

import (
	"context"
	"fmt"

	"ourapp-backend/internal/models"

	"github.com/rs/zerolog/log"
	"github.com/sideshow/apns2"
	"github.com/sideshow/apns2/payload"
	"github.com/sideshow/apns2/token"
)

// Notifier tells an issuer's device that someone joined their code
type Notifier interface {
	PartnerJoined(ctx context.Context, issuer, partner models.User) error
}

// NoopNotifier is used when push notifications are not configured
type NoopNotifier struct{}

func (NoopNotifier) PartnerJoined(context.Context, models.User, models.User) error { return nil }

type apnsPusher interface {
	PushWithContext(ctx apns2.Context, n *apns2.Notification) (*apns2.Response, error)
}

// APNsNotifier delivers partner-joined alerts through Apple Push Notification service
type APNsNotifier struct {
	client apnsPusher
	topic  string
}

// NewAPNsNotifier builds a token-based APNs client from a .p8 auth key
func NewAPNsNotifier(keyFile, keyID, teamID, topic string, production bool) (*APNsNotifier, error) {
	authKey, err := token.AuthKeyFromFile(keyFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load APNs auth key: %w", err)
	}

	client := apns2.NewTokenClient(&token.Token{
		AuthKey: authKey,
		KeyID:   keyID,
		TeamID:  teamID,
	})
	if production {
		client = client.Production()
	} else {
		client = client.Development()
	}

	return &APNsNotifier{client: client, topic: topic}, nil
}

// PartnerJoined pushes to the issuer's device. Issuers without a device
// token are skipped.
func (n *APNsNotifier) PartnerJoined(ctx context.Context, issuer, partner models.User) error {
	if issuer.PushToken == nil || *issuer.PushToken == "" {
		return nil
	}

	notification := &apns2.Notification{
		DeviceToken: *issuer.PushToken,
		Topic:       n.topic,
		Payload: payload.NewPayload().
			AlertTitle("You're now paired!").
			AlertBody(fmt.Sprintf("%s joined with your code 💜", partner.Name)).
			Sound("default").
			Custom("type", "partner_joined").
			Custom("partner_id", partner.ID),
	}

	res, err := n.client.PushWithContext(ctx, notification)
	if err != nil {
		return fmt.Errorf("failed to push notification: %w", err)
	}
	if !res.Sent() {
		return fmt.Errorf("apns rejected notification: %d %s", res.StatusCode, res.Reason)
	}

	log.Debug().
		Str("issuer_id", issuer.ID).
		Str("apns_id", res.ApnsID).
		Msg("Partner joined notification sent")

	return nil
}
