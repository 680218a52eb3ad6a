package main

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	lambdasvc "github.com/aws/aws-sdk-go-v2/service/lambda"
	lambdatypes "github.com/aws/aws-sdk-go-v2/service/lambda/types"
	"github.com/rs/zerolog/log"
)

// selfInvoker resumes suspended runs by asynchronously re-invoking this
// function with the continuation payload. The fresh invocation gets a full
// deadline and picks the run up from its checkpoints.
type selfInvoker struct {
	client       *lambdasvc.Client
	functionName string
}

func newSelfInvoker(cfg aws.Config, functionName string) *selfInvoker {
	return &selfInvoker{
		client:       lambdasvc.NewFromConfig(cfg),
		functionName: functionName,
	}
}

func (s *selfInvoker) Continue(ctx context.Context, payload []byte) error {
	out, err := s.client.Invoke(ctx, &lambdasvc.InvokeInput{
		FunctionName:   aws.String(s.functionName),
		InvocationType: lambdatypes.InvocationTypeEvent,
		Payload:        payload,
	})
	if err != nil {
		return fmt.Errorf("invoke %s: %w", s.functionName, err)
	}
	// 202 means the async invoke was queued.
	if out.StatusCode != 202 {
		return fmt.Errorf("invoke %s: unexpected status %d", s.functionName, out.StatusCode)
	}

	log.Info().Str("function", s.functionName).Msg("Continuation invocation queued")
	return nil
}
