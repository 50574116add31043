package decision

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	"github.com/ppiankov/neurorouter"
)

// BedrockCompleter talks to AWS Bedrock through the Converse API.
type BedrockCompleter struct {
	client    *bedrockruntime.Client
	model     string
	maxTokens int32
}

// NewBedrockCompleter builds a Bedrock client from the default AWS
// credential chain. Region and static credentials override the chain
// when set; leave them empty to use the environment.
func NewBedrockCompleter(ctx context.Context, region, modelID, accessKey, secretKey string) (*BedrockCompleter, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}
	if accessKey != "" && secretKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(accessKey, secretKey, "")))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return &BedrockCompleter{
		client:    bedrockruntime.NewFromConfig(cfg),
		model:     modelID,
		maxTokens: defaultMaxTokens,
	}, nil
}

// Name identifies the completer in logs.
func (b *BedrockCompleter) Name() string { return "bedrock" }

// Complete sends one Converse request.
func (b *BedrockCompleter) Complete(ctx context.Context, system, user string) (string, error) {
	out, err := b.client.Converse(ctx, &bedrockruntime.ConverseInput{
		ModelId: aws.String(b.model),
		System: []types.SystemContentBlock{
			&types.SystemContentBlockMemberText{Value: system},
		},
		Messages: []types.Message{{
			Role: types.ConversationRoleUser,
			Content: []types.ContentBlock{
				&types.ContentBlockMemberText{Value: user},
			},
		}},
		InferenceConfig: &types.InferenceConfiguration{
			MaxTokens:   aws.Int32(b.maxTokens),
			Temperature: aws.Float32(0),
		},
	})
	if err != nil {
		return "", classifyBedrockError(err)
	}

	msg, ok := out.Output.(*types.ConverseOutputMemberMessage)
	if !ok {
		return "", NewFatalError(fmt.Errorf("unexpected converse output type %T", out.Output))
	}

	var content string
	for _, block := range msg.Value.Content {
		if text, ok := block.(*types.ContentBlockMemberText); ok {
			content += text.Value
		}
	}
	if content == "" {
		return "", NewFatalError(fmt.Errorf("response contained no text content"))
	}
	return content, nil
}

func classifyBedrockError(err error) error {
	var throttle *types.ThrottlingException
	if errors.As(err, &throttle) {
		return NewTransientError(fmt.Errorf("%w: %v", neurorouter.ErrRateLimited, err))
	}
	var unavailable *types.ServiceUnavailableException
	if errors.As(err, &unavailable) {
		return NewTransientError(err)
	}
	var timeout *types.ModelTimeoutException
	if errors.As(err, &timeout) {
		return NewTransientError(err)
	}
	return NewFatalError(err)
}
