package state

// Step identifies a pipeline step. The same names are accepted as external
// trigger names by the pipeline orchestrator.
type Step string

// Pipeline steps in execution order.
const (
	StepGetUserStories    Step = "get_user_stories"
	StepReviewUserStories Step = "review_user_stories"
	StepGenerateDesignDoc Step = "generate_design_doc"
	StepReviewDesignDoc   Step = "review_design_doc"
	StepGenerateCode      Step = "generate_code"
	StepReviewCode        Step = "review_code"
	StepEnd               Step = "end"
)

var validSteps = map[Step]bool{
	StepGetUserStories:    true,
	StepReviewUserStories: true,
	StepGenerateDesignDoc: true,
	StepReviewDesignDoc:   true,
	StepGenerateCode:      true,
	StepReviewCode:        true,
	StepEnd:               true,
}

// IsValid returns true if the step is one of the known pipeline steps.
func (s Step) IsValid() bool {
	return validSteps[s]
}

// IsReview returns true for the three human checkpoint steps.
func (s Step) IsReview() bool {
	return s == StepReviewUserStories || s == StepReviewDesignDoc || s == StepReviewCode
}

// IsGeneration returns true for steps that call the external generator.
func (s Step) IsGeneration() bool {
	return s == StepGetUserStories || s == StepGenerateDesignDoc || s == StepGenerateCode
}

// StoryStatus is the review status of the user story set.
type StoryStatus string

const (
	StoryPending       StoryStatus = "Pending"
	StoryPendingReview StoryStatus = "Pending Review"
	StoryApproved      StoryStatus = "Approved"
)

// IsValid returns true if the status is a known story status.
func (s StoryStatus) IsValid() bool {
	switch s {
	case StoryPending, StoryPendingReview, StoryApproved:
		return true
	}
	return false
}

// DocStatus is the review status of the design document.
type DocStatus string

const (
	DocPending  DocStatus = "Pending"
	DocApproved DocStatus = "Approved"
	DocFeedback DocStatus = "Feedback"
)

// IsValid returns true if the status is a known design document status.
func (s DocStatus) IsValid() bool {
	switch s {
	case DocPending, DocApproved, DocFeedback:
		return true
	}
	return false
}

// CodeStatus is the review status of the generated code set.
type CodeStatus string

const (
	CodePending      CodeStatus = "Pending"
	CodeApproved     CodeStatus = "Approved"
	CodeNeedsChanges CodeStatus = "Needs Changes"
)

// IsValid returns true if the status is a known code review status.
func (s CodeStatus) IsValid() bool {
	switch s {
	case CodePending, CodeApproved, CodeNeedsChanges:
		return true
	}
	return false
}

// Outcome records how a workflow reached (or has not yet reached) the end step.
//
// A caller renders [OutcomeCompleted] as success and every other terminal
// outcome as an error or an abandoned run.
type Outcome string

const (
	// OutcomeRunning means the workflow has not ended.
	OutcomeRunning Outcome = "running"

	// OutcomeCompleted means the terminal stage was approved, or the code stage
	// is one-shot and produced its output.
	OutcomeCompleted Outcome = "completed"

	// OutcomeFailed means a generator call, a revision, or a prerequisite check failed.
	OutcomeFailed Outcome = "failed"

	// OutcomeStalled means the reviewer gave no input within the attempt bound.
	OutcomeStalled Outcome = "stalled"

	// OutcomeExhausted means the stage used up its revision rounds.
	OutcomeExhausted Outcome = "exhausted"
)

// IsValid returns true if the outcome is a known value.
func (o Outcome) IsValid() bool {
	switch o {
	case OutcomeRunning, OutcomeCompleted, OutcomeFailed, OutcomeStalled, OutcomeExhausted:
		return true
	}
	return false
}
