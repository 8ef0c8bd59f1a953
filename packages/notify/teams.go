package notify

import (
	"time"
)

// TeamsNotifier sends notifications to Microsoft Teams via webhook
type TeamsNotifier struct {
	webhookURL string
	client     Poster
}

// NewTeamsNotifier creates a new Teams notifier
func NewTeamsNotifier(webhookURL string, client Poster) *TeamsNotifier {
	return &TeamsNotifier{
		webhookURL: webhookURL,
		client:     client,
	}
}

func (t *TeamsNotifier) Name() string {
	return "teams"
}

// teamsMessage is a message carrying one Adaptive Card
type teamsMessage struct {
	Type        string      `json:"type"`
	Attachments []teamsCard `json:"attachments"`
}

type teamsCard struct {
	ContentType string           `json:"contentType"`
	ContentURL  *string          `json:"contentUrl"`
	Content     teamsCardContent `json:"content"`
}

type teamsCardContent struct {
	Schema  string       `json:"$schema"`
	Type    string       `json:"type"`
	Version string       `json:"version"`
	Body    []teamsBlock `json:"body"`
}

type teamsBlock struct {
	Type   string      `json:"type"`
	Text   string      `json:"text,omitempty"`
	Weight string      `json:"weight,omitempty"`
	Size   string      `json:"size,omitempty"`
	Color  string      `json:"color,omitempty"`
	Wrap   bool        `json:"wrap,omitempty"`
	Facts  []teamsFact `json:"facts,omitempty"`
}

type teamsFact struct {
	Title string `json:"title"`
	Value string `json:"value"`
}

// Notify sends a notification to Teams
func (t *TeamsNotifier) Notify(summary *Summary) error {
	color := "good"
	if !summary.Passed {
		color = "attention"
	}

	facts := make([]teamsFact, 0, len(summary.Fields)+2)
	facts = append(facts, teamsFact{Title: "Target", Value: summary.Target})
	for _, f := range summary.Fields {
		facts = append(facts, teamsFact{Title: f.Title, Value: f.Value})
	}
	facts = append(facts, teamsFact{Title: "Duration", Value: summary.Duration.Round(time.Millisecond).String()})

	body := []teamsBlock{
		{Type: "TextBlock", Text: summary.Title, Weight: "bolder", Size: "medium", Color: color},
		{Type: "FactSet", Facts: facts},
	}
	for _, f := range summary.Failures {
		body = append(body, teamsBlock{Type: "TextBlock", Text: "- " + f, Color: "attention", Wrap: true})
	}

	msg := teamsMessage{
		Type: "message",
		Attachments: []teamsCard{{
			ContentType: "application/vnd.microsoft.card.adaptive",
			Content: teamsCardContent{
				Schema:  "http://adaptivecards.io/schemas/adaptive-card.json",
				Type:    "AdaptiveCard",
				Version: "1.4",
				Body:    body,
			},
		}},
	}

	return postJSON(t.client, t.webhookURL, msg)
}
