package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"

	openai "github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/responses"
	"github.com/openai/openai-go/v2/shared"
	"github.com/sirupsen/logrus"

	"github.com/thiagozs/go-gptchat/internal/attach"
	"github.com/thiagozs/go-gptchat/internal/params"
)

type responsesBackend struct {
	client openai.Client
	opts   Options
}

func (b *responsesBackend) Send(ctx context.Context, cfg params.Configuration, log *Log, onDelta func(string)) (Reply, error) {
	p := responseParams(cfg, log)
	b.opts.Logger.WithFields(logrus.Fields{
		"api":          StyleResponses,
		"model":        cfg.Model,
		"rule":         cfg.Rule,
		"items":        len(p.Input.OfInputItemList),
		"continuation": cfg.Continuation,
		"stream":       cfg.Stream,
	}).Debug("Sending responses request")

	var reply Reply
	err := withRetries(ctx, b.opts.Attempts, func() error {
		var err error
		if cfg.Stream {
			reply, err = b.stream(ctx, p, onDelta)
		} else {
			reply, err = b.complete(ctx, p)
		}
		if err != nil {
			b.opts.Logger.WithError(err).WithField("model", cfg.Model).Warn("Responses attempt failed")
		}
		return err
	})
	return reply, err
}

func (b *responsesBackend) complete(ctx context.Context, p responses.ResponseNewParams) (Reply, error) {
	resp, err := b.client.Responses.New(ctx, p)
	if err != nil {
		return Reply{}, classify(err)
	}
	return Reply{Text: resp.OutputText(), ResponseID: resp.ID}, nil
}

func (b *responsesBackend) stream(ctx context.Context, p responses.ResponseNewParams, onDelta func(string)) (Reply, error) {
	stream := b.client.Responses.NewStreaming(ctx, p)
	defer stream.Close()

	g := &streamGuard{onDelta: onDelta}
	var built strings.Builder
	var id string
	for stream.Next() {
		event := stream.Current()
		switch event.Type {
		case "response.output_text.delta":
			delta := event.AsResponseOutputTextDelta().Delta
			built.WriteString(delta)
			g.emit(delta)
		case "response.completed":
			id = event.AsResponseCompleted().Response.ID
		case "response.incomplete":
			// the partial answer is already on screen; keep it like complete() does
			id = event.AsResponseIncomplete().Response.ID
			b.opts.Logger.WithField("response", id).Warn("Response incomplete, keeping partial output")
		case "response.failed":
			return Reply{}, g.fail(errors.New("response ended with failed"))
		case "error":
			e := event.AsError()
			return Reply{}, g.fail(fmt.Errorf("responses stream error %s: %s", e.Code, e.Message))
		}
	}
	if err := stream.Err(); err != nil {
		return Reply{}, g.fail(err)
	}
	if id == "" {
		return Reply{}, g.fail(errors.New("response stream ended without completion"))
	}
	return Reply{Text: built.String(), ResponseID: id}, nil
}

func responseParams(cfg params.Configuration, log *Log) responses.ResponseNewParams {
	p := responses.ResponseNewParams{
		Model:           shared.ResponsesModel(cfg.Model),
		MaxOutputTokens: openai.Int(cfg.MaxOutputTokens),
		Input:           responses.ResponseNewParamsInputUnion{OfInputItemList: responseInput(cfg, log)},
	}
	if cfg.Continuation != "" {
		p.PreviousResponseID = openai.String(cfg.Continuation)
	}
	if cfg.Temperature != nil {
		p.Temperature = openai.Float(*cfg.Temperature)
	}
	if cfg.Effort != "" {
		p.Reasoning = shared.ReasoningParam{Effort: shared.ReasoningEffort(cfg.Effort)}
	}
	return p
}

// responseInput sends the instruction block only on the first request of a
// conversation; later requests point at the stored response instead.
func responseInput(cfg params.Configuration, log *Log) responses.ResponseInputParam {
	var items responses.ResponseInputParam
	if cfg.Continuation == "" && log.Instructions != "" {
		role := responses.EasyInputMessageRoleSystem
		if cfg.InstructionRole == params.RoleDeveloper {
			role = responses.EasyInputMessageRoleDeveloper
		}
		items = append(items, responses.ResponseInputItemParamOfMessage(log.Instructions, role))
	}

	turns := log.Pending()
	if cfg.Continuation == "" {
		turns = log.Turns()
	}
	for _, t := range turns {
		switch t.Role {
		case RoleUser:
			if !t.Multipart() {
				items = append(items, responses.ResponseInputItemParamOfMessage(t.Text, responses.EasyInputMessageRoleUser))
				continue
			}
			items = append(items, responses.ResponseInputItemParamOfMessage(responseParts(t), responses.EasyInputMessageRoleUser))
		case RoleAssistant:
			items = append(items, responses.ResponseInputItemParamOfMessage(t.Text, responses.EasyInputMessageRoleAssistant))
		case RoleSystem:
			items = append(items, responses.ResponseInputItemParamOfMessage(t.Text, responses.EasyInputMessageRoleSystem))
		case RoleDeveloper:
			items = append(items, responses.ResponseInputItemParamOfMessage(t.Text, responses.EasyInputMessageRoleDeveloper))
		}
	}
	return items
}

func responseParts(t Turn) responses.ResponseInputMessageContentListParam {
	parts := responses.ResponseInputMessageContentListParam{inputText(t.Text)}
	for _, b := range t.Attachments {
		switch b.Kind {
		case attach.KindImage:
			parts = append(parts, responses.ResponseInputContentUnionParam{
				OfInputImage: &responses.ResponseInputImageParam{
					Detail:   responses.ResponseInputImageDetailAuto,
					ImageURL: openai.String(b.DataURL()),
				},
			})
		case attach.KindFile:
			var fp responses.ResponseInputFileParam
			if b.Remote() {
				fp.FileURL = openai.String(b.URL)
			} else {
				fp.FileData = openai.String(b.DataURL())
				fp.Filename = openai.String(b.Filename)
			}
			parts = append(parts, responses.ResponseInputContentUnionParam{OfInputFile: &fp})
		default:
			parts = append(parts, inputText(b.Text))
		}
	}
	return parts
}

func inputText(s string) responses.ResponseInputContentUnionParam {
	return responses.ResponseInputContentUnionParam{
		OfInputText: &responses.ResponseInputTextParam{Text: s},
	}
}
