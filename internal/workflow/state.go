package workflow

import (
	"time"

	"github.com/theeshop/listingbot/internal/product"
	"github.com/theeshop/listingbot/internal/step"
	"github.com/theeshop/listingbot/internal/types"
)

// State is one position of the listing state machine.
type State string

const (
	CategorySearch                State = "CategorySearch"
	CategorySelectFirstSuggestion State = "CategorySelectFirstSuggestion"
	ConfirmCategory               State = "ConfirmCategory"
	AboutWhoMade                  State = "AboutWhoMade"
	AboutWhatIsIt                 State = "AboutWhatIsIt"
	AboutWhenMade                 State = "AboutWhenMade"
	AboutContinue                 State = "AboutContinue"
	TitleFill                     State = "TitleFill"
	PhotoUpload                   State = "PhotoUpload"
	DescriptionFill               State = "DescriptionFill"
	Done                          State = "Done"
)

// States lists every state in the order they are visited.
var States = []State{
	CategorySearch,
	CategorySelectFirstSuggestion,
	ConfirmCategory,
	AboutWhoMade,
	AboutWhatIsIt,
	AboutWhenMade,
	AboutContinue,
	TitleFill,
	PhotoUpload,
	DescriptionFill,
	Done,
}

// Outcome is the terminal result of a run: Done, or aborted with the
// failure of the first step that exhausted its strategies.
type Outcome struct {
	RunID   string
	Account string
	Visited []State
	Skipped []State
	Failure *step.StepFailure
	// Snapshot is the screenshot of the filled form taken on success.
	Snapshot   string
	StartedAt  time.Time
	FinishedAt time.Time
}

func (o Outcome) Done() bool {
	return o.Failure == nil
}

// Err returns the failure or nil.
func (o Outcome) Err() error {
	if o.Failure == nil {
		return nil
	}
	return o.Failure
}

// Record converts o into the persisted form.
func (o Outcome) Record(in product.Input) types.RunRecord {
	r := types.RunRecord{
		RunID:      o.RunID,
		AccountKey: o.Account,
		Category:   in.CategoryQuery,
		Title:      in.Title,
		Status:     types.RunStatusDone,
		Artifact:   o.Snapshot,
		StartedAt:  o.StartedAt,
		FinishedAt: o.FinishedAt,
	}
	for _, s := range o.Visited {
		r.States = append(r.States, string(s))
	}
	if o.Failure != nil {
		r.Status = types.RunStatusAborted
		r.FailedStep = o.Failure.Step
		r.Artifact = o.Failure.Artifact
		r.Error = o.Failure.Error()
	}
	return r
}
