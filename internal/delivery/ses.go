package delivery

import (
	"context"
	"fmt"
	"html"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"

	"github.com/ignite/campaign-autopilot/internal/pkg/logger"
)

// sesAPI is the slice of the SES v2 client the sink uses.
type sesAPI interface {
	SendEmail(ctx context.Context, input *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

// SESSink delivers campaign emails through AWS SES v2, one SendEmail call
// per recipient.
type SESSink struct {
	client sesAPI
	region string
	log    *logger.Logger
}

// NewSESSink creates an SES-backed sink. Static credentials are used when
// provided; otherwise the default AWS credential chain applies.
func NewSESSink(ctx context.Context, accessKey, secretKey, region string) (*SESSink, error) {
	if region == "" {
		region = "us-east-1"
	}

	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(region)}
	if accessKey != "" && secretKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(accessKey, secretKey, ""),
		))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}

	return &SESSink{
		client: sesv2.NewFromConfig(cfg),
		region: region,
		log:    logger.Component("delivery.ses"),
	}, nil
}

// Deliver sends the message to every recipient. SES has no true bulk send
// for distinct destinations, so recipients are dispatched individually; a
// failure for one recipient does not stop the rest.
func (s *SESSink) Deliver(ctx context.Context, msg *Message) (*Result, error) {
	if len(msg.Recipients) == 0 {
		return &Result{}, nil
	}

	res := &Result{Results: make([]RecipientResult, 0, len(msg.Recipients))}
	for _, recipient := range msg.Recipients {
		rr := s.sendOne(ctx, msg, recipient)
		res.Results = append(res.Results, rr)
		if rr.Success {
			res.Delivered++
		} else {
			res.Failed++
		}
	}

	s.log.Info("delivery complete",
		"campaign_id", msg.CampaignID,
		"email_number", msg.EmailNumber,
		"delivered", res.Delivered,
		"failed", res.Failed,
	)
	return res, nil
}

func (s *SESSink) sendOne(ctx context.Context, msg *Message, recipient string) RecipientResult {
	input := &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(fmt.Sprintf("%s <%s>", msg.FromName, msg.FromEmail)),
		Destination:      &types.Destination{ToAddresses: []string{recipient}},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{Data: aws.String(msg.Subject), Charset: aws.String("UTF-8")},
				Body: &types.Body{
					Text: &types.Content{Data: aws.String(msg.Body), Charset: aws.String("UTF-8")},
					Html: &types.Content{Data: aws.String(renderHTML(msg.Body)), Charset: aws.String("UTF-8")},
				},
			},
		},
		EmailTags: []types.MessageTag{
			{Name: aws.String("campaign_id"), Value: aws.String(msg.CampaignID)},
			{Name: aws.String("email_number"), Value: aws.String(strconv.Itoa(msg.EmailNumber))},
		},
	}

	out, err := s.client.SendEmail(ctx, input)
	if err != nil {
		s.log.Warn("send failed",
			"campaign_id", msg.CampaignID,
			"recipient", logger.RedactEmail(recipient),
			"error", err.Error(),
		)
		return RecipientResult{Email: recipient, Success: false, Error: err, SentAt: time.Now()}
	}

	messageID := ""
	if out.MessageId != nil {
		messageID = *out.MessageId
	}
	return RecipientResult{Email: recipient, Success: true, MessageID: messageID, SentAt: time.Now()}
}

// renderHTML wraps plain generated text in minimal HTML, one paragraph per
// blank-line-separated block.
func renderHTML(body string) string {
	var b strings.Builder
	b.WriteString("<html><body>")
	for _, para := range strings.Split(body, "\n\n") {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		b.WriteString("<p>")
		b.WriteString(strings.ReplaceAll(html.EscapeString(para), "\n", "<br>"))
		b.WriteString("</p>")
	}
	b.WriteString("</body></html>")
	return b.String()
}
