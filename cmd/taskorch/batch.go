package main

import (
	"fmt"
	"os"

	"go.yaml.in/yaml/v3"

	"github.com/ShayCichocki/taskorch/pkg/models"
)

// batchFile is the YAML document accepted by the run command.
//
//	tasks:
//	  - type: development
//	    action: find_developer
//	    priority: high
//	    data:
//	      skills: [go, sql]
type batchFile struct {
	Tasks []batchTask `yaml:"tasks"`
}

type batchTask struct {
	Type     string         `yaml:"type"`
	Action   string         `yaml:"action"`
	Priority string         `yaml:"priority"`
	Data     map[string]any `yaml:"data"`
}

// submission is a validated batch entry ready to submit.
type submission struct {
	taskType models.TaskType
	priority models.Priority
	payload  models.Payload
}

// loadBatch reads and validates a batch file.
func loadBatch(path string) ([]submission, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read batch file: %w", err)
	}
	return parseBatch(raw)
}

func parseBatch(raw []byte) ([]submission, error) {
	var f batchFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse batch file: %w", err)
	}
	if len(f.Tasks) == 0 {
		return nil, fmt.Errorf("batch file has no tasks")
	}

	subs := make([]submission, 0, len(f.Tasks))
	for i, t := range f.Tasks {
		taskType := models.TaskType(t.Type)
		if !taskType.Valid() {
			return nil, fmt.Errorf("task %d: unknown type %q", i+1, t.Type)
		}
		if t.Action == "" {
			return nil, fmt.Errorf("task %d: action is required", i+1)
		}
		priority, err := models.ParsePriority(t.Priority)
		if err != nil {
			return nil, fmt.Errorf("task %d: %w", i+1, err)
		}

		var data any
		if t.Data != nil {
			data = t.Data
		}
		payload, err := models.NewPayload(models.Action(t.Action), data)
		if err != nil {
			return nil, fmt.Errorf("task %d: %w", i+1, err)
		}
		subs = append(subs, submission{taskType: taskType, priority: priority, payload: payload})
	}
	return subs, nil
}
