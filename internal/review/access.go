package review

import (
	"reqflow/internal/router"
	"reqflow/internal/state"
)

// access reads and writes one stage's review fields on a workflow state.
type access struct {
	approved    func(st *state.WorkflowState) bool
	approve     func(st *state.WorkflowState)
	feedback    func(st *state.WorkflowState) string
	setFeedback func(st *state.WorkflowState, feedback string)
	// clearFeedback drops pending feedback without touching the status.
	clearFeedback func(st *state.WorkflowState)
	// record appends feedback to the stage history and snapshots the current
	// output, keeping both lists index-aligned.
	record func(st *state.WorkflowState, feedback string)
}

var stageAccess = map[router.Stage]access{
	router.StageUserStories: {
		approved: func(st *state.WorkflowState) bool { return st.UserStoryStatus == state.StoryApproved },
		approve:  func(st *state.WorkflowState) { st.UserStoryStatus = state.StoryApproved },
		feedback: func(st *state.WorkflowState) string { return st.Feedback },
		setFeedback: func(st *state.WorkflowState, feedback string) {
			st.Feedback = feedback
		},
		clearFeedback: func(st *state.WorkflowState) { st.Feedback = "" },
		record: func(st *state.WorkflowState, feedback string) {
			st.FeedbackHistory = append(st.FeedbackHistory, feedback)
			st.Revisions = append(st.Revisions, state.CloneStories(st.UserStories))
		},
	},
	router.StageDesignDoc: {
		approved: func(st *state.WorkflowState) bool { return st.DesignDoc.ReviewStatus == state.DocApproved },
		approve:  func(st *state.WorkflowState) { st.DesignDoc.ReviewStatus = state.DocApproved },
		feedback: func(st *state.WorkflowState) string { return st.DesignDoc.Feedback },
		setFeedback: func(st *state.WorkflowState, feedback string) {
			st.DesignDoc.Feedback = feedback
			st.DesignDoc.ReviewStatus = state.DocFeedback
		},
		clearFeedback: func(st *state.WorkflowState) { st.DesignDoc.Feedback = "" },
		record: func(st *state.WorkflowState, feedback string) {
			d := &st.DesignDoc
			d.FeedbackHistory = append(d.FeedbackHistory, feedback)
			d.Revisions = append(d.Revisions, state.DesignSnapshot{
				FunctionalDoc: d.FunctionalDoc,
				TechnicalDoc:  d.TechnicalDoc,
			})
		},
	},
	router.StageCode: {
		approved: func(st *state.WorkflowState) bool { return st.CodeGeneration.ReviewStatus == state.CodeApproved },
		approve:  func(st *state.WorkflowState) { st.CodeGeneration.ReviewStatus = state.CodeApproved },
		feedback: func(st *state.WorkflowState) string { return st.CodeGeneration.Feedback },
		setFeedback: func(st *state.WorkflowState, feedback string) {
			st.CodeGeneration.Feedback = feedback
			st.CodeGeneration.ReviewStatus = state.CodeNeedsChanges
		},
		clearFeedback: func(st *state.WorkflowState) { st.CodeGeneration.Feedback = "" },
		record: func(st *state.WorkflowState, feedback string) {
			c := &st.CodeGeneration
			c.FeedbackHistory = append(c.FeedbackHistory, feedback)
			c.Revisions = append(c.Revisions, state.CloneFiles(c.Files))
		},
	},
}
