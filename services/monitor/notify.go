package monitor

import (
	"context"
	"fmt"
	"strings"

	"scorewatch-backend/lib/dingtalk"
	"scorewatch-backend/lib/scrapers/jwxt"
)

// Notifier delivers account events to the account's own webhook.
type Notifier interface {
	NotifyNewScores(ctx context.Context, hook dingtalk.Webhook, rows []jwxt.ScoreRow) error
	NotifySessionExpired(ctx context.Context, hook dingtalk.Webhook) error
	NotifyInitReport(ctx context.Context, hook dingtalk.Webhook, rows []jwxt.ScoreRow) error
}

// DingTalkNotifier formats events as DingTalk robot messages.
type DingTalkNotifier struct {
	client *dingtalk.Client
}

func NewDingTalkNotifier() *DingTalkNotifier {
	return &DingTalkNotifier{client: dingtalk.NewClient()}
}

func (n *DingTalkNotifier) NotifyNewScores(
	ctx context.Context,
	hook dingtalk.Webhook,
	rows []jwxt.ScoreRow,
) error {
	var b strings.Builder
	fmt.Fprintf(&b, "# 🎉 新成绩通知\n\n检测到 **%d** 门新成绩！\n\n", len(rows))
	for _, row := range rows {
		b.WriteString("---\n\n")
		fmt.Fprintf(&b, "### 📚 %s\n\n", row.CourseName)
		fmt.Fprintf(&b, "- **成绩**: %s\n", row.Score)
		fmt.Fprintf(&b, "- **绩点**: %s\n", row.GPA)
		fmt.Fprintf(&b, "- **学分**: %s\n", row.Credit)
		fmt.Fprintf(&b, "- **开课学期**: %s\n", row.Term)
		fmt.Fprintf(&b, "- **考核方式**: %s\n", row.AssessMethod)
		fmt.Fprintf(&b, "- **课程性质**: %s\n", row.CourseNature)
		b.WriteString("\n")
	}
	return n.client.SendMarkdown(ctx, hook, "新成绩通知", b.String())
}

func (n *DingTalkNotifier) NotifySessionExpired(ctx context.Context, hook dingtalk.Webhook) error {
	return n.client.SendText(ctx, hook,
		"⚠️ 教务系统会话已失效，自动重新登录也未成功。成绩监控已暂停，请重新注册以恢复。")
}

func (n *DingTalkNotifier) NotifyInitReport(
	ctx context.Context,
	hook dingtalk.Webhook,
	rows []jwxt.ScoreRow,
) error {
	var b strings.Builder
	fmt.Fprintf(&b, "# ✅ 成绩监控已开启\n\n当前共有 **%d** 门成绩，之后出现的新成绩会第一时间推送。\n\n", len(rows))
	for _, row := range rows {
		fmt.Fprintf(&b, "- %s：%s\n", row.CourseName, row.Score)
	}
	return n.client.SendMarkdown(ctx, hook, "成绩监控已开启", b.String())
}
