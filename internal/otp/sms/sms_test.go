package sms

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	openapi "github.com/twilio/twilio-go/rest/api/v2010"
)

func TestKavenegarSend(t *testing.T) {
	var gotPath, gotReceptor, gotSender string
	status := 200
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		gotPath = r.URL.Path
		gotReceptor = r.PostForm.Get("receptor")
		gotSender = r.PostForm.Get("sender")
		w.Header().Set("Content-Type", "application/json")
		if status != 200 {
			_, _ = w.Write([]byte(`{"return":{"status":418,"message":"invalid sender"}}`))
			return
		}
		_, _ = w.Write([]byte(`{"return":{"status":200,"message":"ok"}}`))
	}))
	defer srv.Close()

	k := NewKavenegar("secret-key", "1000596446").WithBaseURL(srv.URL)

	t.Run("accepted", func(t *testing.T) {
		err := k.Send(context.Background(), "09123456789", "code 123456")
		require.NoError(t, err)
		assert.Equal(t, "/secret-key/sms/send.json", gotPath)
		assert.Equal(t, "09123456789", gotReceptor)
		assert.Equal(t, "1000596446", gotSender)
	})

	t.Run("api level rejection", func(t *testing.T) {
		status = 418
		err := k.Send(context.Background(), "09123456789", "code 123456")
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrRejected)
		assert.Equal(t, "sms provider rejected the message", Category(err))
	})
}

func TestKavenegarUnreachable(t *testing.T) {
	k := NewKavenegar("key", "").WithBaseURL("http://127.0.0.1:1")
	err := k.Send(context.Background(), "09123456789", "code")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnavailable)
}

type fakeCreator struct {
	params *openapi.CreateMessageParams
	err    error
}

func (f *fakeCreator) CreateMessage(params *openapi.CreateMessageParams) (*openapi.ApiV2010Message, error) {
	f.params = params
	return &openapi.ApiV2010Message{}, f.err
}

func TestTwilioSend(t *testing.T) {
	api := &fakeCreator{}
	s := &Twilio{api: api, from: "+15005550006"}

	require.NoError(t, s.Send(context.Background(), "09123456789", "code 654321"))
	require.NotNil(t, api.params)
	assert.Equal(t, "+989123456789", *api.params.To)
	assert.Equal(t, "+15005550006", *api.params.From)
	assert.Equal(t, "code 654321", *api.params.Body)

	api.err = errors.New("21211 invalid To")
	err := s.Send(context.Background(), "09123456789", "code")
	assert.ErrorIs(t, err, ErrRejected)
}

func TestNewSelectsProvider(t *testing.T) {
	s, err := New(Config{}, nil)
	require.NoError(t, err)
	assert.IsType(t, &LogSender{}, s)

	_, err = New(Config{Provider: ProviderKavenegar}, nil)
	assert.ErrorIs(t, err, ErrNotConfigured)

	_, err = New(Config{Provider: ProviderTwilio, TwilioAccountSID: "AC1"}, nil)
	assert.ErrorIs(t, err, ErrNotConfigured)

	s, err = New(Config{Provider: ProviderTwilio, TwilioAccountSID: "AC1", TwilioAuthToken: "t", TwilioFromNumber: "+1"}, nil)
	require.NoError(t, err)
	assert.IsType(t, &Twilio{}, s)

	_, err = New(Config{Provider: "carrier-pigeon"}, nil)
	assert.Error(t, err)
}
