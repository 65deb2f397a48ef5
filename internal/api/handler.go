package api

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-json-experiment/json"

	"github.com/ShayCichocki/taskorch/internal/orchestrator"
	"github.com/ShayCichocki/taskorch/pkg/models"
)

var agentRoles = map[models.Agent]string{
	models.AgentDevMatch:     "You match freelance developers to project requirements.",
	models.AgentCodeCheck:    "You review code submissions for quality and correctness.",
	models.AgentScheduler:    "You track project timelines, tasks and deadlines.",
	models.AgentFraudWatch:   "You screen developers, code and user activity for fraud.",
	models.AgentComplaintBot: "You classify and resolve customer complaints.",
	models.AgentScoreKeeper:  "You maintain developer reputation scores.",
}

const replyInstructions = `Reply with a single JSON object and nothing else.`

// SystemPrompt returns the system prompt used for agent.
func SystemPrompt(agent models.Agent) string {
	role, ok := agentRoles[agent]
	if !ok {
		role = "You are a platform agent."
	}
	return role + " " + replyInstructions
}

// Prompt renders the user prompt for one action and its payload.
func Prompt(action models.Action, payload models.Payload) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Action: %s\n", action)
	if len(payload.Data) > 0 {
		fmt.Fprintf(&b, "Input:\n%s\n", payload.Data)
	}
	return b.String()
}

// Handler returns an orchestrator handler that asks the model to perform
// action as agent. A JSON object in the reply becomes the task result;
// any other reply is returned as {"text": reply}.
func (c *Client) Handler(agent models.Agent, action models.Action) orchestrator.HandlerFunc {
	system := SystemPrompt(agent)
	return func(ctx context.Context, payload models.Payload) (any, error) {
		reply, err := c.Complete(ctx, system, Prompt(action, payload))
		if err != nil {
			return nil, fmt.Errorf("%s/%s: %w", agent, action, err)
		}
		return ParseReply(reply), nil
	}
}

// Bindings binds a model-backed handler for every action in catalog.
func (c *Client) Bindings(catalog map[models.Agent][]models.Action) []orchestrator.Binding {
	var bindings []orchestrator.Binding
	for _, agent := range models.Agents {
		for _, action := range catalog[agent] {
			bindings = append(bindings, orchestrator.BindFunc(agent, action, c.Handler(agent, action)))
		}
	}
	return bindings
}

// ParseReply extracts the outermost JSON object from reply. Models often
// wrap JSON in prose or code fences, so everything outside the first '{'
// and last '}' is ignored.
func ParseReply(reply string) map[string]any {
	start := strings.Index(reply, "{")
	end := strings.LastIndex(reply, "}")
	if start >= 0 && end > start {
		var out map[string]any
		if err := json.Unmarshal([]byte(reply[start:end+1]), &out); err == nil {
			return out
		}
	}
	return map[string]any{"text": strings.TrimSpace(reply)}
}
