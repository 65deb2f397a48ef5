package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/fatih/color"
	"github.com/go-json-experiment/json/jsontext"

	"github.com/ShayCichocki/taskorch/internal/api"
	"github.com/ShayCichocki/taskorch/internal/config"
	"github.com/ShayCichocki/taskorch/internal/orchestrator"
	"github.com/ShayCichocki/taskorch/pkg/models"
)

// createRegistry binds a handler to every catalog action. With Anthropic
// credentials the handlers call the model; without them every action
// echoes its input so batches and pipelines can still be exercised.
func createRegistry(cfg *config.Config, w io.Writer) (*orchestrator.Registry, *api.Client, error) {
	client, err := createClient(cfg)
	switch {
	case err == nil:
		registry, err := orchestrator.NewRegistry(client.Bindings(models.Catalog)...)
		if err != nil {
			return nil, nil, err
		}
		printStatus(w, "✓", fmt.Sprintf("Using %s for %d agent routes", client.Model(), registry.Len()), color.FgGreen)
		return registry, client, nil
	case errors.Is(err, config.ErrNoAPIKey):
		registry, err := orchestrator.NewRegistry(echoBindings(models.Catalog)...)
		if err != nil {
			return nil, nil, err
		}
		printStatus(w, "⚠", fmt.Sprintf("No Anthropic API key configured, echoing %d agent routes", registry.Len()), color.FgYellow)
		return registry, nil, nil
	default:
		return nil, nil, err
	}
}

// createClient builds an API client from cfg.
func createClient(cfg *config.Config) (*api.Client, error) {
	clientCfg := api.ClientConfig{
		Model:         anthropic.Model(cfg.Anthropic.Model),
		MaxTokens:     cfg.Anthropic.MaxTokens,
		UseAWSBedrock: cfg.Anthropic.UseBedrock,
		AWSRegion:     cfg.Anthropic.AWSRegion,
		AWSProfile:    cfg.Anthropic.AWSProfile,
	}
	if !cfg.Anthropic.UseBedrock {
		key, source, err := config.ResolveAPIKey(cfg)
		if err != nil {
			return nil, err
		}
		if err := config.ValidateAPIKey(key); err != nil {
			return nil, fmt.Errorf("API key from %s: %w", source, err)
		}
		clientCfg.APIKey = key
	}

	client, err := api.NewClient(clientCfg)
	if err != nil {
		return nil, fmt.Errorf("create API client: %w", err)
	}
	return client, nil
}

// echoResult is what an echo handler returns.
type echoResult struct {
	Agent  models.Agent   `json:"agent"`
	Action models.Action  `json:"action"`
	Input  jsontext.Value `json:"input,omitzero"`
}

func echoBindings(catalog map[models.Agent][]models.Action) []orchestrator.Binding {
	var bindings []orchestrator.Binding
	for _, agent := range models.Agents {
		for _, action := range catalog[agent] {
			bindings = append(bindings, orchestrator.BindFunc(agent, action,
				func(_ context.Context, payload models.Payload) (any, error) {
					return echoResult{Agent: agent, Action: action, Input: payload.Data}, nil
				}))
		}
	}
	return bindings
}
