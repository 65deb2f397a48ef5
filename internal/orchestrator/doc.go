// Package orchestrator queues, dispatches and tracks units of work for
// the platform's agents.
//
// Tasks are submitted with a type, a payload and a priority. A dispatcher
// goroutine admits at most one pending task per tick while fewer than
// MaxConcurrentTasks are processing, routing it to the handler bound for
// its (agent, action) pair. Callers wanting a synchronous result block in
// WaitForCompletion.
//
// Example usage:
//
//	reg, err := orchestrator.NewRegistry(
//		orchestrator.Bind(models.AgentDevMatch, models.ActionFindDeveloper, findDeveloper),
//	)
//	orch, err := orchestrator.New(reg)
//	orch.Start(ctx)
//	defer orch.Stop()
//	id, err := orch.SubmitTask(models.TaskTypeDevelopment, payload, models.PriorityHigh)
//	result, err := orch.WaitForCompletion(ctx, id, 5*time.Second)
package orchestrator
