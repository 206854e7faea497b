package service

import (
	"strings"

	"github.com/opsinsight/opsinsight-go/internal/config"
	"github.com/opsinsight/opsinsight-go/internal/intent"
)

// Guard 派发前的配置校验，配置在进程启动时构造一次后传入
type Guard struct {
	email config.EmailConfig
	teams config.TeamsConfig
}

// NewGuard 创建配置校验器
func NewGuard(email config.EmailConfig, teams config.TeamsConfig) *Guard {
	return &Guard{email: email, teams: teams}
}

type setting struct {
	name  string
	value string
}

func missing(settings ...setting) []string {
	var out []string
	for _, s := range settings {
		if strings.TrimSpace(s.value) == "" {
			out = append(out, s.name)
		}
	}
	return out
}

// RequireEmailConfig 校验邮件发送配置
func (g *Guard) RequireEmailConfig() error {
	switch g.email.Provider {
	case config.EmailProviderSES:
		if m := missing(
			setting{"AWS_REGION", g.email.SES.Region},
			setting{"SES_FROM", g.email.SES.From},
		); len(m) > 0 {
			return configError("SES not configured: missing %s (set AWS_REGION/SES_FROM)", strings.Join(m, ", "))
		}
	case config.EmailProviderSMTP, "":
		if m := missing(
			setting{"SMTP_HOST", g.email.SMTP.Host},
			setting{"SMTP_USER", g.email.SMTP.User},
			setting{"SMTP_PASSWORD", g.email.SMTP.Password},
		); len(m) > 0 {
			return configError("SMTP not configured: missing %s (set SMTP_HOST/SMTP_USER/SMTP_PASSWORD)", strings.Join(m, ", "))
		}
	default:
		return configError("unknown email provider %q (use smtp or ses)", g.email.Provider)
	}
	return nil
}

// RequireRecipient 校验收件人已提取
func (g *Guard) RequireRecipient(p intent.EmailParams) (string, error) {
	if p.Recipient == "" {
		return "", extractionError("Could not extract recipient email from prompt. Use 'send email to <email> message: <text>'.")
	}
	return p.Recipient, nil
}

// RequireChatConfig 校验 Azure AD 应用身份配置
func (g *Guard) RequireChatConfig() error {
	if m := missing(
		setting{"AZURE_TENANT_ID", g.teams.TenantID},
		setting{"AZURE_CLIENT_ID", g.teams.ClientID},
		setting{"AZURE_CLIENT_SECRET", g.teams.ClientSecret},
	); len(m) > 0 {
		return configError("Azure AD app not configured: missing %s (set AZURE_CLIENT_ID/AZURE_CLIENT_SECRET/AZURE_TENANT_ID)", strings.Join(m, ", "))
	}
	return nil
}

// ResolveChatTarget 提示词中的 ID 优先，否则回退到默认 team/channel
func (g *Guard) ResolveChatTarget(p intent.ChatParams) (teamID, channelID string, err error) {
	teamID, channelID = g.teams.DefaultTeamID, g.teams.DefaultChannelID
	if p.TeamID != "" {
		teamID = p.TeamID
	}
	if p.ChannelID != "" {
		channelID = p.ChannelID
	}

	if m := missing(
		setting{"TEAMS_DEFAULT_TEAM_ID", teamID},
		setting{"TEAMS_DEFAULT_CHANNEL_ID", channelID},
	); len(m) > 0 {
		return "", "", configError("Teams target not configured: missing %s. Set TEAMS_DEFAULT_TEAM_ID and TEAMS_DEFAULT_CHANNEL_ID or mention team/channel ids in the prompt.", strings.Join(m, ", "))
	}
	return teamID, channelID, nil
}
