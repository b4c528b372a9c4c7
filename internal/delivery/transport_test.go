package delivery_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/mail"
	"net/url"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/ignite/guestcomms/internal/config"
	"github.com/ignite/guestcomms/internal/delivery"
	"github.com/ignite/guestcomms/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSES struct {
	input *sesv2.SendEmailInput
	err   error
}

func (f *fakeSES) SendEmail(ctx context.Context, in *sesv2.SendEmailInput, _ ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error) {
	if _, ok := ctx.Deadline(); !ok {
		return nil, errors.New("missing deadline")
	}
	f.input = in
	if f.err != nil {
		return nil, f.err
	}
	return &sesv2.SendEmailOutput{MessageId: aws.String("ses-abc")}, nil
}

func TestSESTransportSend(t *testing.T) {
	client := &fakeSES{}
	tr := delivery.NewSESTransportWithClient(client, config.SESConfig{
		FromEmail: "stays@example.com", FromName: "Example Stays", ReplyTo: "help@example.com", TimeoutSeconds: 5,
	})
	assert.Equal(t, domain.ChannelEmail, tr.Channel())

	r, err := tr.Send(context.Background(), delivery.Message{
		MessageID: "msg-1",
		AccountID: "acct-1",
		Recipient: domain.Recipient{Name: "Amara", Email: "amara@example.com"},
		Subject:   "Your stay",
		Body:      "Line one\n<Line two>",
	})
	require.NoError(t, err)
	assert.Equal(t, "ses-abc", r.ProviderMessageID)

	in := client.input
	require.NotNil(t, in)
	assert.Equal(t, `"Example Stays" <stays@example.com>`, aws.ToString(in.FromEmailAddress))
	assert.Equal(t, []string{`"Amara" <amara@example.com>`}, in.Destination.ToAddresses)
	assert.Equal(t, "Your stay", aws.ToString(in.Content.Simple.Subject.Data))
	assert.Equal(t, "Line one\n<Line two>", aws.ToString(in.Content.Simple.Body.Text.Data))
	assert.Contains(t, aws.ToString(in.Content.Simple.Body.Html.Data), "Line one<br>\n&lt;Line two&gt;")
	assert.Equal(t, []string{"help@example.com"}, in.ReplyToAddresses)
	assert.Len(t, in.EmailTags, 2)
}

func TestSESTransportDisplayNames(t *testing.T) {
	tests := []struct {
		name      string
		guestName string
		fromName  string
	}{
		{"comma in name", "Okafor, Amara", "Stays, Ltd"},
		{"non-ascii name", "Zoë Ñúñez", "Café Résidence"},
		{"quotes and parens", `Amara "Ama" (guest)`, "Example Stays"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := &fakeSES{}
			tr := delivery.NewSESTransportWithClient(client, config.SESConfig{FromEmail: "stays@example.com", FromName: tt.fromName})
			_, err := tr.Send(context.Background(), delivery.Message{
				Recipient: domain.Recipient{Name: tt.guestName, Email: "amara@example.com"},
				Subject:   "Hi",
				Body:      "x",
			})
			require.NoError(t, err)

			to, err := mail.ParseAddressList(client.input.Destination.ToAddresses[0])
			require.NoError(t, err)
			require.Len(t, to, 1)
			assert.Equal(t, tt.guestName, to[0].Name)
			assert.Equal(t, "amara@example.com", to[0].Address)

			from, err := mail.ParseAddress(aws.ToString(client.input.FromEmailAddress))
			require.NoError(t, err)
			assert.Equal(t, tt.fromName, from.Name)
			assert.Equal(t, "stays@example.com", from.Address)
		})
	}
}

func TestSESTransportBareAddressWithoutName(t *testing.T) {
	client := &fakeSES{}
	tr := delivery.NewSESTransportWithClient(client, config.SESConfig{FromEmail: "stays@example.com"})
	_, err := tr.Send(context.Background(), delivery.Message{Recipient: domain.Recipient{Email: "b@example.com"}, Body: "x"})
	require.NoError(t, err)
	assert.Equal(t, "stays@example.com", aws.ToString(client.input.FromEmailAddress))
	assert.Equal(t, []string{"b@example.com"}, client.input.Destination.ToAddresses)
}

func TestSESTransportPropagatesError(t *testing.T) {
	tr := delivery.NewSESTransportWithClient(&fakeSES{err: errors.New("MessageRejected")}, config.SESConfig{FromEmail: "a@example.com"})
	_, err := tr.Send(context.Background(), delivery.Message{Recipient: domain.Recipient{Email: "b@example.com"}, Body: "x"})
	assert.ErrorContains(t, err, "MessageRejected")
}

func TestSMSTransportSend(t *testing.T) {
	var got url.Values
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/2010-04-01/Accounts/AC123/Messages.json", r.URL.Path)
		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "AC123", user)
		assert.Equal(t, "secret", pass)
		assert.NoError(t, r.ParseForm())
		got = r.PostForm
		w.WriteHeader(http.StatusCreated)
		io.WriteString(w, `{"sid":"SM42","status":"queued"}`)
	}))
	defer srv.Close()

	tr := delivery.NewSMSTransport(config.SMSConfig{
		BaseURL: srv.URL, AccountSID: "AC123", AuthToken: "secret", From: "+15550100", TimeoutSeconds: 2, MaxRetries: -1,
	}, nil)
	r, err := tr.Send(context.Background(), delivery.Message{
		Recipient: domain.Recipient{Phone: "+1 (415) 555-0134"},
		Body:      "Door code 4821",
	})
	require.NoError(t, err)
	assert.Equal(t, "SM42", r.ProviderMessageID)
	assert.Equal(t, "+14155550134", got.Get("To"))
	assert.Equal(t, "+15550100", got.Get("From"))
	assert.Equal(t, "Door code 4821", got.Get("Body"))
}

func TestSMSTransportRejection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		io.WriteString(w, `{"code":21211,"message":"The 'To' number is not a valid phone number."}`)
	}))
	defer srv.Close()

	tr := delivery.NewSMSTransport(config.SMSConfig{BaseURL: srv.URL, AccountSID: "AC1", AuthToken: "t", From: "+1"}, nil)
	_, err := tr.Send(context.Background(), delivery.Message{Recipient: domain.Recipient{Phone: "+10000000"}, Body: "x"})

	var pe *delivery.ProviderError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, http.StatusBadRequest, pe.StatusCode)
	assert.Contains(t, pe.Message, "not a valid phone number")
}

func TestWhatsAppTransportSend(t *testing.T) {
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v19.0/1098/messages", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		io.WriteString(w, `{"messaging_product":"whatsapp","messages":[{"id":"wamid.XYZ"}]}`)
	}))
	defer srv.Close()

	tr := delivery.NewWhatsAppTransport(config.WhatsAppConfig{
		BaseURL: srv.URL, APIVersion: "v19.0", PhoneNumberID: "1098", AccessToken: "tok",
	}, nil)
	r, err := tr.Send(context.Background(), delivery.Message{
		Recipient: domain.Recipient{Phone: "+44 7700 900123"},
		Body:      "Checkout is at 11:00",
	})
	require.NoError(t, err)
	assert.Equal(t, "wamid.XYZ", r.ProviderMessageID)
	assert.Equal(t, "whatsapp", body["messaging_product"])
	assert.Equal(t, "447700900123", body["to"])
	assert.Equal(t, "Checkout is at 11:00", body["text"].(map[string]any)["body"])
}

func TestWhatsAppTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		io.WriteString(w, `{"error":{"message":"Invalid OAuth access token.","code":190}}`)
	}))
	defer srv.Close()

	tr := delivery.NewWhatsAppTransport(config.WhatsAppConfig{BaseURL: srv.URL, APIVersion: "v19.0", PhoneNumberID: "1", AccessToken: "bad"}, nil)
	_, err := tr.Send(context.Background(), delivery.Message{Recipient: domain.Recipient{Phone: "+4477009001"}, Body: "x"})
	var pe *delivery.ProviderError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, "Invalid OAuth access token.", pe.Message)
}

type fakeSQS struct {
	input *sqs.SendMessageInput
}

func (f *fakeSQS) SendMessage(_ context.Context, in *sqs.SendMessageInput, _ ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
	f.input = in
	return &sqs.SendMessageOutput{MessageId: aws.String("sqs-7")}, nil
}

func TestInAppTransportPublishes(t *testing.T) {
	client := &fakeSQS{}
	tr := delivery.NewInAppTransportWithClient(client, config.InAppConfig{QueueURL: "https://sqs.example/q"})
	r, err := tr.Send(context.Background(), delivery.Message{
		MessageID: "msg-9", AccountID: "acct-1", Recipient: domain.Recipient{Name: "Lee"}, Body: "Rent is due",
	})
	require.NoError(t, err)
	assert.Equal(t, "sqs-7", r.ProviderMessageID)
	assert.Equal(t, "https://sqs.example/q", aws.ToString(client.input.QueueUrl))

	var rec delivery.InAppRecord
	require.NoError(t, json.Unmarshal([]byte(aws.ToString(client.input.MessageBody)), &rec))
	assert.Equal(t, "msg-9", rec.MessageID)
	assert.Equal(t, "Rent is due", rec.Body)
	assert.Equal(t, "acct-1", aws.ToString(client.input.MessageAttributes["account_id"].StringValue))
}

func TestNoopTransport(t *testing.T) {
	tr := delivery.NewNoopTransport(domain.ChannelInApp)
	r, err := tr.Send(context.Background(), delivery.Message{})
	require.NoError(t, err)
	assert.NotEmpty(t, r.ProviderMessageID)
}

func TestNewFromConfigRegistersConfiguredChannels(t *testing.T) {
	p, err := delivery.NewFromConfig(context.Background(), config.DeliveryConfig{
		Mode: "live",
		SMS:  config.SMSConfig{BaseURL: "http://localhost", AccountSID: "AC1", AuthToken: "t", From: "+1"},
	})
	require.NoError(t, err)
	assert.True(t, p.Configured(domain.ChannelSMS))
	assert.True(t, p.Configured(domain.ChannelInApp))
	assert.False(t, p.Configured(domain.ChannelEmail))
	assert.False(t, p.Configured(domain.ChannelWhatsApp))
	assert.Equal(t, delivery.ModeLive, p.Mode())
}
