package client

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
	"go.uber.org/zap"
)

// SESAPI SES 客户端中用到的方法
type SESAPI interface {
	SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

// SESSender 通过 AWS SES 发送纯文本邮件
type SESSender struct {
	api    SESAPI
	from   string
	logger *zap.Logger
}

// NewSESSender 使用默认凭证链创建 SES 发送器
func NewSESSender(ctx context.Context, region, from string, logger *zap.Logger) (*SESSender, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("加载 AWS 配置失败: %w", err)
	}
	return NewSESSenderWithAPI(ses.NewFromConfig(cfg), from, logger), nil
}

// NewSESSenderWithAPI 使用现成的 SES 客户端
func NewSESSenderWithAPI(api SESAPI, from string, logger *zap.Logger) *SESSender {
	return &SESSender{api: api, from: from, logger: logger}
}

// SendEmail 发送邮件
func (s *SESSender) SendEmail(ctx context.Context, to, subject, body string) error {
	out, err := s.api.SendEmail(ctx, &ses.SendEmailInput{
		Source:      aws.String(s.from),
		Destination: &types.Destination{ToAddresses: []string{to}},
		Message: &types.Message{
			Subject: &types.Content{Data: aws.String(subject), Charset: aws.String("UTF-8")},
			Body: &types.Body{
				Text: &types.Content{Data: aws.String(body), Charset: aws.String("UTF-8")},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("SES 发送失败: %w", err)
	}

	s.logger.Info("邮件已发送",
		zap.String("to", to),
		zap.String("messageId", aws.ToString(out.MessageId)))
	return nil
}
