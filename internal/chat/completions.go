package chat

import (
	"context"
	"errors"
	"strings"

	openai "github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/shared"
	"github.com/sirupsen/logrus"

	"github.com/thiagozs/go-gptchat/internal/attach"
	"github.com/thiagozs/go-gptchat/internal/params"
)

type completionsBackend struct {
	client openai.Client
	opts   Options
}

func (b *completionsBackend) Send(ctx context.Context, cfg params.Configuration, log *Log, onDelta func(string)) (Reply, error) {
	p := completionParams(cfg, log)
	b.opts.Logger.WithFields(logrus.Fields{
		"api":      StyleChat,
		"model":    cfg.Model,
		"rule":     cfg.Rule,
		"messages": len(p.Messages),
		"stream":   cfg.Stream,
	}).Debug("Sending chat completion request")

	var reply Reply
	err := withRetries(ctx, b.opts.Attempts, func() error {
		var err error
		if cfg.Stream {
			reply, err = b.stream(ctx, p, onDelta)
		} else {
			reply, err = b.complete(ctx, p)
		}
		if err != nil {
			b.opts.Logger.WithError(err).WithField("model", cfg.Model).Warn("Chat completion attempt failed")
		}
		return err
	})
	return reply, err
}

func (b *completionsBackend) complete(ctx context.Context, p openai.ChatCompletionNewParams) (Reply, error) {
	resp, err := b.client.Chat.Completions.New(ctx, p)
	if err != nil {
		return Reply{}, classify(err)
	}
	if len(resp.Choices) == 0 {
		return Reply{}, errors.New("chat completion returned no choices")
	}
	return Reply{Text: resp.Choices[0].Message.Content}, nil
}

func (b *completionsBackend) stream(ctx context.Context, p openai.ChatCompletionNewParams, onDelta func(string)) (Reply, error) {
	stream := b.client.Chat.Completions.NewStreaming(ctx, p)
	defer stream.Close()

	g := &streamGuard{onDelta: onDelta}
	var built strings.Builder
	for stream.Next() {
		chunk := stream.Current()
		if len(chunk.Choices) == 0 {
			continue
		}
		delta := chunk.Choices[0].Delta.Content
		if delta != "" {
			built.WriteString(delta)
			g.emit(delta)
		}
	}
	if err := stream.Err(); err != nil {
		return Reply{}, g.fail(err)
	}
	return Reply{Text: built.String()}, nil
}

func completionParams(cfg params.Configuration, log *Log) openai.ChatCompletionNewParams {
	p := openai.ChatCompletionNewParams{
		Model:               shared.ChatModel(cfg.Model),
		Messages:            completionMessages(cfg, log),
		MaxCompletionTokens: openai.Int(cfg.MaxOutputTokens),
	}
	if cfg.Temperature != nil {
		p.Temperature = openai.Float(*cfg.Temperature)
	}
	if cfg.Effort != "" {
		p.ReasoningEffort = shared.ReasoningEffort(cfg.Effort)
	}
	return p
}

// completionMessages renders the whole log; chat completions keeps no state
// between requests.
func completionMessages(cfg params.Configuration, log *Log) []openai.ChatCompletionMessageParamUnion {
	var msgs []openai.ChatCompletionMessageParamUnion
	if log.Instructions != "" {
		if cfg.InstructionRole == params.RoleDeveloper {
			msgs = append(msgs, openai.DeveloperMessage(log.Instructions))
		} else {
			msgs = append(msgs, openai.SystemMessage(log.Instructions))
		}
	}
	for _, t := range log.Turns() {
		switch t.Role {
		case RoleUser:
			if !t.Multipart() {
				msgs = append(msgs, openai.UserMessage(t.Text))
				continue
			}
			msgs = append(msgs, openai.UserMessage(completionParts(t)))
		case RoleAssistant:
			msgs = append(msgs, openai.AssistantMessage(t.Text))
		case RoleSystem:
			msgs = append(msgs, openai.SystemMessage(t.Text))
		case RoleDeveloper:
			msgs = append(msgs, openai.DeveloperMessage(t.Text))
		}
	}
	return msgs
}

func completionParts(t Turn) []openai.ChatCompletionContentPartUnionParam {
	parts := []openai.ChatCompletionContentPartUnionParam{openai.TextContentPart(t.Text)}
	for _, b := range t.Attachments {
		switch b.Kind {
		case attach.KindImage:
			parts = append(parts, openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{
				URL: b.DataURL(),
			}))
		case attach.KindFile:
			if b.Remote() {
				// chat completions only takes inline or uploaded files
				parts = append(parts, openai.TextContentPart("\n\n--- Remote file: "+b.URL+" ---"))
				continue
			}
			parts = append(parts, openai.FileContentPart(openai.ChatCompletionContentPartFileFileParam{
				FileData: openai.String(b.DataURL()),
				Filename: openai.String(b.Filename),
			}))
		default:
			parts = append(parts, openai.TextContentPart(b.Text))
		}
	}
	return parts
}
