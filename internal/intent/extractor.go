package intent

import "regexp"

var (
	recipientPattern = regexp.MustCompile(`(?i)to\s+([\w.@+-]+)`)
	bodyPattern      = regexp.MustCompile(`(?is)message\s*[:|-]\s*(.+)$`)
	// team/channel 区分大小写
	teamPattern    = regexp.MustCompile(`team\s+([0-9a-fA-F\-]{10,})`)
	channelPattern = regexp.MustCompile(`channel\s+([0-9a-fA-F\-]{10,})`)
)

// EmailParams 邮件参数，空字符串表示未提取到
type EmailParams struct {
	Recipient string
	Body      string
}

// ChatParams 频道消息参数，空字符串表示未提取到
type ChatParams struct {
	TeamID    string
	ChannelID string
	Body      string
}

// ExtractEmail 提取 "to <token>" 收件人和 "message: <text>" 正文
func ExtractEmail(prompt string) EmailParams {
	return EmailParams{
		Recipient: firstGroup(recipientPattern, prompt),
		Body:      firstGroup(bodyPattern, prompt),
	}
}

// ExtractChat 提取 "team <id>"、"channel <id>" 和 "message: <text>"
func ExtractChat(prompt string) ChatParams {
	return ChatParams{
		TeamID:    firstGroup(teamPattern, prompt),
		ChannelID: firstGroup(channelPattern, prompt),
		Body:      firstGroup(bodyPattern, prompt),
	}
}

func firstGroup(re *regexp.Regexp, s string) string {
	m := re.FindStringSubmatch(s)
	if len(m) < 2 {
		return ""
	}
	return m[1]
}
