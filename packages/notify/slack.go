package notify

import (
	"fmt"
	"strings"
	"time"
)

// SlackNotifier sends notifications to Slack via an incoming webhook
type SlackNotifier struct {
	webhookURL string
	client     Poster
	channel    string
	username   string
	iconEmoji  string
}

// SlackOption is a functional option for SlackNotifier
type SlackOption func(*SlackNotifier)

// WithSlackChannel sets the Slack channel
func WithSlackChannel(channel string) SlackOption {
	return func(s *SlackNotifier) {
		s.channel = channel
	}
}

// WithSlackUsername sets the Slack bot username
func WithSlackUsername(username string) SlackOption {
	return func(s *SlackNotifier) {
		s.username = username
	}
}

// WithSlackIconEmoji sets the Slack bot icon emoji
func WithSlackIconEmoji(emoji string) SlackOption {
	return func(s *SlackNotifier) {
		s.iconEmoji = emoji
	}
}

// NewSlackNotifier creates a new Slack notifier
func NewSlackNotifier(webhookURL string, client Poster, opts ...SlackOption) *SlackNotifier {
	s := &SlackNotifier{
		webhookURL: webhookURL,
		client:     client,
		username:   "hitwire",
		iconEmoji:  ":zap:",
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

func (s *SlackNotifier) Name() string {
	return "slack"
}

type slackMessage struct {
	Channel     string            `json:"channel,omitempty"`
	Username    string            `json:"username,omitempty"`
	IconEmoji   string            `json:"icon_emoji,omitempty"`
	Attachments []slackAttachment `json:"attachments"`
}

type slackAttachment struct {
	Color  string       `json:"color"`
	Title  string       `json:"title"`
	Text   string       `json:"text,omitempty"`
	Fields []slackField `json:"fields,omitempty"`
	Footer string       `json:"footer,omitempty"`
	TS     int64        `json:"ts,omitempty"`
}

type slackField struct {
	Title string `json:"title"`
	Value string `json:"value"`
	Short bool   `json:"short"`
}

// Notify sends a notification to Slack
func (s *SlackNotifier) Notify(summary *Summary) error {
	color := "good"
	emoji := ":white_check_mark:"
	if !summary.Passed {
		color = "danger"
		emoji = ":x:"
	}

	fields := make([]slackField, 0, len(summary.Fields)+1)
	for _, f := range summary.Fields {
		fields = append(fields, slackField{Title: f.Title, Value: f.Value, Short: true})
	}
	fields = append(fields, slackField{Title: "Duration", Value: summary.Duration.Round(time.Millisecond).String(), Short: true})

	var text strings.Builder
	fmt.Fprintf(&text, "`%s`\n", summary.Target)
	if len(summary.Failures) > 0 {
		text.WriteString("*Failures:*\n")
		for _, f := range summary.Failures {
			fmt.Fprintf(&text, "• %s\n", f)
		}
	}

	msg := slackMessage{
		Channel:   s.channel,
		Username:  s.username,
		IconEmoji: s.iconEmoji,
		Attachments: []slackAttachment{{
			Color:  color,
			Title:  fmt.Sprintf("%s %s", emoji, summary.Title),
			Text:   text.String(),
			Fields: fields,
			Footer: "hitwire",
			TS:     time.Now().Unix(),
		}},
	}

	return postJSON(s.client, s.webhookURL, msg)
}
