package workflow

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/bankimport/fints-firefly-go/internal/domain"
	"github.com/bankimport/fints-firefly-go/internal/port"
)

// ChallengeState is the position of the resumable statement request.
type ChallengeState string

const (
	ChallengeCreated   ChallengeState = "created"
	ChallengeNeeded    ChallengeState = "needs_challenge"
	ChallengeCompleted ChallengeState = "completed"
)

// ChallengeInput is what one invocation of the resumable step needs.
// ChallengeResponse is required only while resuming.
type ChallengeInput struct {
	Account           domain.BankAccount
	From, To          string // inclusive dates, YYYY-MM-DD
	Format            domain.StatementFormat
	Resuming          bool
	ChallengeResponse string
}

// ChallengeResult is the outcome of one invocation: either a suspended
// challenge or the finished protocol action.
type ChallengeResult struct {
	State     ChallengeState
	Challenge *domain.ChallengePrompt
	Action    port.StatementAction
}

// ChallengeResumableStep wraps one statement request so the workflow
// can suspend on a TAN challenge and resume on a later invocation using
// the persisted dialog. Multi-round challenges re-suspend.
type ChallengeResumableStep struct {
	dialog port.Dialog
	logger *zap.Logger
}

// NewChallengeResumableStep wraps a restored or fresh dialog.
func NewChallengeResumableStep(dialog port.Dialog, logger *zap.Logger) *ChallengeResumableStep {
	return &ChallengeResumableStep{dialog: dialog, logger: logger}
}

// Run performs one turn of the resumable request. Missing required
// inputs are a caller contract violation and fail fast.
func (s *ChallengeResumableStep) Run(ctx context.Context, in ChallengeInput) (*ChallengeResult, error) {
	if err := s.validate(in); err != nil {
		return nil, err
	}

	var (
		action port.StatementAction
		err    error
	)
	if in.Resuming {
		s.logger.Debug("resuming statement request with challenge response")
		action, err = s.dialog.ResumeAction(ctx, in.ChallengeResponse)
	} else {
		req, reqErr := statementRequest(in)
		if reqErr != nil {
			return nil, reqErr
		}
		action, err = s.dialog.RequestStatement(ctx, req)
	}
	if err != nil {
		return nil, err
	}

	if action.NeedsChallenge() {
		s.logger.Info("statement request suspended on TAN challenge")
		return &ChallengeResult{
			State:     ChallengeNeeded,
			Challenge: action.Challenge(),
			Action:    action,
		}, nil
	}

	return &ChallengeResult{State: ChallengeCompleted, Action: action}, nil
}

func (s *ChallengeResumableStep) validate(in ChallengeInput) error {
	if in.Resuming {
		if in.ChallengeResponse == "" {
			return &domain.ErrMissingInput{Field: "challenge_response"}
		}
		return nil
	}
	if in.Account.IBAN == "" && in.Account.AccountNumber == "" {
		return &domain.ErrMissingInput{Field: "bank_account"}
	}
	if in.From == "" {
		return &domain.ErrMissingInput{Field: "date_from"}
	}
	if in.To == "" {
		return &domain.ErrMissingInput{Field: "date_to"}
	}
	return nil
}

func statementRequest(in ChallengeInput) (domain.StatementRequest, error) {
	from, err := parseDate(in.From, "date_from")
	if err != nil {
		return domain.StatementRequest{}, err
	}
	to, err := parseDate(in.To, "date_to")
	if err != nil {
		return domain.StatementRequest{}, err
	}
	return domain.StatementRequest{
		Account: in.Account,
		From:    from,
		To:      to,
		Format:  in.Format,
	}, nil
}

func parseDate(s, field string) (time.Time, error) {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, &domain.ErrValidation{Field: field, Message: "expected YYYY-MM-DD"}
	}
	return t, nil
}
