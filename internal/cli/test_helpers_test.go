package cli

import (
	"bytes"
	"context"
	"testing"

	"go.uber.org/zap"

	"reqflow/internal/config"
	"reqflow/internal/llm"
	"reqflow/internal/pipeline"
	"reqflow/internal/router"
	"reqflow/internal/state"
	"reqflow/internal/store"
)

// Canned generator responses shared by the CLI tests.
const (
	testStories = `{"user_stories":[{"user_story":"As a user, I want to log in","acceptance_criteria":["Valid credentials accepted"]}]}`
	testDesign  = `{"functional_doc":"Login form","technical_doc":"JWT sessions"}`
	testCode    = `{"files":{"main.py":"print('login')","web/app.js":"console.log('login')"}}`
)

// ScriptedReviewer answers review checkpoints from a fixed list and pauses
// when the list runs out.
type ScriptedReviewer struct {
	Inputs []pipeline.Input
	// Stages records the stage of every checkpoint reached.
	Stages []router.Stage
}

// Review returns the next scripted input.
func (r *ScriptedReviewer) Review(_ context.Context, _ *state.WorkflowState, stg router.Stage) (pipeline.Input, error) {
	r.Stages = append(r.Stages, stg)
	if len(r.Inputs) == 0 {
		return pipeline.Input{}, pipeline.ErrPaused
	}
	in := r.Inputs[0]
	r.Inputs = r.Inputs[1:]
	return in, nil
}

// testApp bundles an App wired with test doubles and its captured output.
type testApp struct {
	cfg      *config.Config
	gen      *llm.MockGenerator
	store    *store.FileStore
	reviewer *ScriptedReviewer
	out      *bytes.Buffer
	errOut   *bytes.Buffer
}

// newTestApp builds an App with a mock generator, a file store in a temp
// directory and buffered output.
func newTestApp(t *testing.T, responses ...string) *testApp {
	t.Helper()

	fs, err := store.NewFileStore(t.TempDir(), "json")
	if err != nil {
		t.Fatalf("new file store: %v", err)
	}

	ta := &testApp{
		cfg:      config.DefaultConfig(),
		gen:      &llm.MockGenerator{Responses: responses},
		store:    fs,
		reviewer: &ScriptedReviewer{},
		out:      &bytes.Buffer{},
		errOut:   &bytes.Buffer{},
	}
	return ta
}

// fresh returns a new App sharing the test doubles. Each command run gets
// its own App so flag values never leak between runs.
func (ta *testApp) fresh() *App {
	return &App{
		Config:    ta.cfg,
		Logger:    zap.NewNop(),
		Store:     ta.store,
		Generator: ta.gen,
		Reviewer:  ta.reviewer,
		Out:       ta.out,
		Err:       ta.errOut,
	}
}

// run executes args and returns the result.
func (ta *testApp) run(args ...string) ExecuteResult {
	return Run(context.Background(), ta.fresh(), args)
}

// only returns the single saved workflow.
func (ta *testApp) only(t *testing.T) *state.WorkflowState {
	t.Helper()
	list, err := ta.store.List(context.Background())
	if err != nil {
		t.Fatalf("list workflows: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("expected 1 workflow, got %d", len(list))
	}
	st, err := ta.store.Load(context.Background(), list[0].ID)
	if err != nil {
		t.Fatalf("load workflow: %v", err)
	}
	return st
}
