package sms

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/go-resty/resty/v2"
)

const kavenegarBaseURL = "https://api.kavenegar.com/v1"

// Kavenegar sends through the Kavenegar REST API.
type Kavenegar struct {
	client  *resty.Client
	apiKey  string
	sender  string
	baseURL string
}

type kavenegarResponse struct {
	Return struct {
		Status  int    `json:"status"`
		Message string `json:"message"`
	} `json:"return"`
}

func NewKavenegar(apiKey, sender string) *Kavenegar {
	return &Kavenegar{
		client:  resty.New().SetTimeout(10 * time.Second),
		apiKey:  apiKey,
		sender:  sender,
		baseURL: kavenegarBaseURL,
	}
}

// WithBaseURL points the client at another host; used by tests.
func (k *Kavenegar) WithBaseURL(base string) *Kavenegar {
	k.baseURL = base
	return k
}

// Send succeeds only on HTTP 200 with return.status 200.
func (k *Kavenegar) Send(ctx context.Context, phone, message string) error {
	form := map[string]string{
		"receptor": phone,
		"message":  message,
	}
	if k.sender != "" {
		form["sender"] = k.sender
	}

	var out kavenegarResponse
	resp, err := k.client.R().
		SetContext(ctx).
		SetFormData(form).
		SetResult(&out).
		SetError(&out).
		Post(fmt.Sprintf("%s/%s/sms/send.json", k.baseURL, url.PathEscape(k.apiKey)))
	if err != nil {
		return fmt.Errorf("kavenegar: %w: %w", ErrUnavailable, err)
	}
	if resp.StatusCode() != 200 {
		return fmt.Errorf("kavenegar: %w: status %d %s", ErrRejected, resp.StatusCode(), out.Return.Message)
	}
	if out.Return.Status != 200 {
		return fmt.Errorf("kavenegar: %w: %s", ErrRejected, out.Return.Message)
	}
	return nil
}
