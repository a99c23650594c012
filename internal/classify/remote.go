// Package classify – remote strategy.
//
// Remote delegates the start/end/other decision to an OpenAI-compatible chat
// completion endpoint. The rubric is fixed at compile time; the model, base
// URL and timeout come from configuration. Any transport failure, malformed
// response, or label outside the recognized set degrades to an unclassified
// Result – the remote path must never fail a report run.
package classify

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	openai "github.com/sashabaranov/go-openai"
)

// Recognized labels the judge may answer with.
const (
	labelStart = "start"
	labelEnd   = "end"
	labelOther = "other"
)

// rubric is the fixed decision instruction sent as the system prompt.
const rubric = `You classify Japanese workplace chat messages for an attendance sheet.
Answer with exactly one word: start, end, or other.

Rules:
1. Explicit clock-in phrasing (業務開始, 出勤します, 始業します) -> start
2. Explicit clock-out phrasing (業務終了, 退勤します, 終業します) -> end
3. Implicit clock-in: the message lays out a plan for the day just begun
   (今日は〜をやります, 本日のタスクは〜, これから〜に取り掛かります) -> start
4. Implicit clock-out: the message wraps up the day's work
   (本日の作業は以上です, 今日はここまで) -> end
5. Mere departure or return notices (行ってきます, 戻りました, 離席します,
   昼休憩に入ります) are NOT attendance events -> other
6. Anything else, or any message you are unsure about -> other

Reply with the single word only. No punctuation, no explanation.`

// errUnknownLabel marks a syntactically valid reply outside the label set.
var errUnknownLabel = errors.New("classify: unrecognized label")

// chatCompleter is the slice of the OpenAI client the strategy needs; tests
// substitute a fake.
type chatCompleter interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// Remote is the network-backed strategy.
type Remote struct {
	api     chatCompleter
	model   string
	timeout time.Duration
}

// NewRemote builds a Remote strategy against an OpenAI-compatible endpoint.
// baseURL may be empty for the default OpenAI endpoint. A non-positive
// timeout falls back to 15 seconds.
func NewRemote(apiKey, baseURL, model string, timeout time.Duration) *Remote {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	if model == "" {
		model = openai.GPT4oMini
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Remote{
		api:     openai.NewClientWithConfig(cfg),
		model:   model,
		timeout: timeout,
	}
}

// Classify implements Classifier. The call is bounded by the configured
// timeout; on any failure the message lands in the unclassified slot.
func (r *Remote) Classify(ctx context.Context, req Request) Result {
	label, err := r.judge(ctx, req.Body)
	if err != nil {
		log.Warn().Err(err).Msg("remote classification degraded to unclassified")
		return Unclassified(req.TimeLabel)
	}
	switch label {
	case labelStart:
		return ClockIn(req.TimeLabel)
	case labelEnd:
		return ClockOut(req.TimeLabel)
	default:
		return Unclassified(req.TimeLabel)
	}
}

// judge performs the completion call and reduces the reply to a label.
func (r *Remote) judge(ctx context.Context, body string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	resp, err := r.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: r.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: rubric},
			{Role: openai.ChatMessageRoleUser, Content: body},
		},
		Temperature: 0.1, // the judge should be deterministic
		MaxTokens:   5,   // one-word answer
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("classify: empty completion response")
	}

	label := strings.ToLower(strings.TrimSpace(resp.Choices[0].Message.Content))
	label = strings.Trim(label, ".。\"'")
	switch label {
	case labelStart, labelEnd, labelOther:
		return label, nil
	}
	return "", errUnknownLabel
}
