package services

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"ourapp-backend/internal/models"

	"github.com/sideshow/apns2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePusher struct {
	sent []*apns2.Notification
	res  *apns2.Response
	err  error
}

func (p *fakePusher) PushWithContext(_ apns2.Context, n *apns2.Notification) (*apns2.Response, error) {
	p.sent = append(p.sent, n)
	return p.res, p.err
}

func TestAPNsNotifier_PartnerJoined(t *testing.T) {
	pusher := &fakePusher{res: &apns2.Response{StatusCode: http.StatusOK, ApnsID: "id-1"}}
	n := &APNsNotifier{client: pusher, topic: "com.example.ourapp"}

	deviceToken := "device-token"
	issuer := models.User{ID: "u-alice", Name: "Alice", PushToken: &deviceToken}
	partner := models.User{ID: "u-bob", Name: "Bob"}

	require.NoError(t, n.PartnerJoined(context.Background(), issuer, partner))
	require.Len(t, pusher.sent, 1)

	sent := pusher.sent[0]
	assert.Equal(t, deviceToken, sent.DeviceToken)
	assert.Equal(t, "com.example.ourapp", sent.Topic)

	body, err := json.Marshal(sent.Payload)
	require.NoError(t, err)
	assert.Contains(t, string(body), `"type":"partner_joined"`)
	assert.Contains(t, string(body), `"partner_id":"u-bob"`)
	assert.Contains(t, string(body), "Bob joined with your code")
}

func TestAPNsNotifier_SkipsIssuerWithoutToken(t *testing.T) {
	pusher := &fakePusher{}
	n := &APNsNotifier{client: pusher, topic: "com.example.ourapp"}

	require.NoError(t, n.PartnerJoined(context.Background(), models.User{ID: "u-alice"}, models.User{ID: "u-bob"}))
	assert.Empty(t, pusher.sent)
}

func TestAPNsNotifier_Failures(t *testing.T) {
	deviceToken := "device-token"
	issuer := models.User{ID: "u-alice", PushToken: &deviceToken}

	rejected := &APNsNotifier{client: &fakePusher{res: &apns2.Response{StatusCode: http.StatusBadRequest, Reason: apns2.ReasonBadDeviceToken}}}
	assert.Error(t, rejected.PartnerJoined(context.Background(), issuer, models.User{}))

	unreachable := &APNsNotifier{client: &fakePusher{err: errors.New("connection reset")}}
	assert.Error(t, unreachable.PartnerJoined(context.Background(), issuer, models.User{}))
}
