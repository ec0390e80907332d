package sms

import (
	"context"
	"fmt"
	"strings"

	"github.com/twilio/twilio-go"
	openapi "github.com/twilio/twilio-go/rest/api/v2010"
)

// messageCreator is the slice of the Twilio API client the sender uses.
type messageCreator interface {
	CreateMessage(params *openapi.CreateMessageParams) (*openapi.ApiV2010Message, error)
}

// Twilio sends through the Twilio Messages API.
type Twilio struct {
	api  messageCreator
	from string
}

func NewTwilio(accountSID, authToken, from string) *Twilio {
	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: accountSID,
		Password: authToken,
	})
	return &Twilio{api: client.Api, from: from}
}

// Send converts the canonical number to E.164 before handing it to Twilio.
// The Twilio client is not context-aware.
func (t *Twilio) Send(_ context.Context, phone, message string) error {
	params := &openapi.CreateMessageParams{}
	params.SetTo(toE164(phone))
	params.SetFrom(t.from)
	params.SetBody(message)
	if _, err := t.api.CreateMessage(params); err != nil {
		return fmt.Errorf("twilio: %w: %w", ErrRejected, err)
	}
	return nil
}

func toE164(phone string) string {
	if strings.HasPrefix(phone, "0") {
		return "+98" + phone[1:]
	}
	return phone
}
