package models

// Agent identifies the collaborator that serves one task type.
type Agent string

const (
	// AgentDevMatch matches tasks to developers.
	AgentDevMatch Agent = "dev_match"
	// AgentCodeCheck reviews code submissions.
	AgentCodeCheck Agent = "code_check"
	// AgentScheduler tracks timelines and deadlines.
	AgentScheduler Agent = "scheduler"
	// AgentFraudWatch runs fraud heuristics.
	AgentFraudWatch Agent = "fraud_watch"
	// AgentComplaintBot classifies and resolves complaints.
	AgentComplaintBot Agent = "complaint_bot"
	// AgentScoreKeeper maintains reputation scores.
	AgentScoreKeeper Agent = "score_keeper"
)

// Agents lists every known agent in a stable order.
var Agents = []Agent{
	AgentDevMatch,
	AgentCodeCheck,
	AgentScheduler,
	AgentFraudWatch,
	AgentComplaintBot,
	AgentScoreKeeper,
}

// Valid returns true if the agent is a known value.
func (a Agent) Valid() bool {
	switch a {
	case AgentDevMatch, AgentCodeCheck, AgentScheduler,
		AgentFraudWatch, AgentComplaintBot, AgentScoreKeeper:
		return true
	default:
		return false
	}
}

// TaskType returns the task type served by a.
func (a Agent) TaskType() TaskType {
	switch a {
	case AgentDevMatch:
		return TaskTypeDevelopment
	case AgentCodeCheck:
		return TaskTypeReview
	case AgentScheduler:
		return TaskTypeScheduling
	case AgentFraudWatch:
		return TaskTypeFraudCheck
	case AgentComplaintBot:
		return TaskTypeComplaint
	case AgentScoreKeeper:
		return TaskTypeScoreUpdate
	default:
		return ""
	}
}

// Actions used by the built-in workflows.
const (
	ActionFindDeveloper      Action = "find_developer"
	ActionReviewCode         Action = "review_code"
	ActionCreateTask         Action = "create_task"
	ActionUpdateTaskProgress Action = "update_task_progress"
	ActionCheckDeveloper     Action = "check_developer"
	ActionCheckCode          Action = "check_code"
	ActionCheckUserActivity  Action = "check_user_activity"
	ActionProcessComplaint   Action = "process_complaint"
	ActionAddTaskAssignment  Action = "add_task_assignment"
	ActionAddCodeSubmission  Action = "add_code_submission"
	ActionAddComplaintRecord Action = "add_complaint_record"
)

// Catalog maps each agent to the actions the platform knows how to route.
// It describes the platform's routing surface; handlers are still bound
// explicitly when an orchestrator is built.
var Catalog = map[Agent][]Action{
	AgentDevMatch:     {ActionFindDeveloper},
	AgentCodeCheck:    {ActionReviewCode},
	AgentScheduler:    {ActionCreateTask, ActionUpdateTaskProgress},
	AgentFraudWatch:   {ActionCheckDeveloper, ActionCheckCode, ActionCheckUserActivity},
	AgentComplaintBot: {ActionProcessComplaint},
	AgentScoreKeeper:  {ActionAddTaskAssignment, ActionAddCodeSubmission, ActionAddComplaintRecord},
}
