package delivery

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/campaign-autopilot/internal/pkg/logger"
)

type fakeSES struct {
	inputs  []*sesv2.SendEmailInput
	failFor map[string]error
}

func (f *fakeSES) SendEmail(ctx context.Context, input *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error) {
	f.inputs = append(f.inputs, input)
	to := input.Destination.ToAddresses[0]
	if err, ok := f.failFor[to]; ok {
		return nil, err
	}
	return &sesv2.SendEmailOutput{MessageId: aws.String("msg-" + to)}, nil
}

func newTestSink(api sesAPI) *SESSink {
	return &SESSink{client: api, region: "us-east-1", log: logger.Component("delivery.ses")}
}

func TestDeliverAllRecipients(t *testing.T) {
	fake := &fakeSES{}
	sink := newTestSink(fake)

	res, err := sink.Deliver(context.Background(), &Message{
		CampaignID:  "c1",
		EmailNumber: 3,
		Subject:     "Hello",
		Body:        "First paragraph.\n\nSecond paragraph.",
		FromEmail:   "news@example.com",
		FromName:    "Example",
		Recipients:  []string{"a@example.com", "b@example.com"},
	})
	require.NoError(t, err)

	assert.Equal(t, 2, res.Delivered)
	assert.Equal(t, 0, res.Failed)
	assert.False(t, res.AllFailed())
	require.Len(t, fake.inputs, 2)

	first := fake.inputs[0]
	assert.Equal(t, "Example <news@example.com>", *first.FromEmailAddress)
	assert.Equal(t, "Hello", *first.Content.Simple.Subject.Data)
	assert.Contains(t, *first.Content.Simple.Body.Html.Data, "<p>First paragraph.</p>")
	assert.Equal(t, "campaign_id", *first.EmailTags[0].Name)
	assert.Equal(t, "c1", *first.EmailTags[0].Value)
}

func TestDeliverPartialFailure(t *testing.T) {
	fake := &fakeSES{failFor: map[string]error{"b@example.com": errors.New("throttled")}}
	sink := newTestSink(fake)

	res, err := sink.Deliver(context.Background(), &Message{
		CampaignID: "c1",
		Subject:    "Hello",
		Body:       "Body",
		FromEmail:  "news@example.com",
		FromName:   "Example",
		Recipients: []string{"a@example.com", "b@example.com", "c@example.com"},
	})
	require.NoError(t, err)

	assert.Equal(t, 2, res.Delivered)
	assert.Equal(t, 1, res.Failed)
	assert.False(t, res.AllFailed())
	require.Len(t, res.Results, 3)
	assert.False(t, res.Results[1].Success)
	assert.Error(t, res.Results[1].Error)
}

func TestDeliverAllFailed(t *testing.T) {
	fake := &fakeSES{failFor: map[string]error{
		"a@example.com": errors.New("rejected"),
		"b@example.com": errors.New("rejected"),
	}}
	sink := newTestSink(fake)

	res, err := sink.Deliver(context.Background(), &Message{
		CampaignID: "c1",
		Subject:    "Hello",
		Body:       "Body",
		FromEmail:  "news@example.com",
		FromName:   "Example",
		Recipients: []string{"a@example.com", "b@example.com"},
	})
	require.NoError(t, err)
	assert.True(t, res.AllFailed())
}

func TestDeliverNoRecipients(t *testing.T) {
	fake := &fakeSES{}
	sink := newTestSink(fake)

	res, err := sink.Deliver(context.Background(), &Message{CampaignID: "c1"})
	require.NoError(t, err)
	assert.Equal(t, 0, res.Delivered)
	assert.Equal(t, 0, res.Failed)
	assert.False(t, res.AllFailed())
	assert.Empty(t, fake.inputs)
}

func TestRenderHTMLEscapes(t *testing.T) {
	out := renderHTML("Use <b>bold</b> & more.\nSecond line.")
	assert.Contains(t, out, "&lt;b&gt;bold&lt;/b&gt; &amp; more.<br>Second line.")
	assert.NotContains(t, out, "<b>")
}
