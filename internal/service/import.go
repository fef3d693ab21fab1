// Package service provides the business logic layer (use cases).
// ImportService drives the resumable statement retrieval workflow and
// the batched submission to the ledger system.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/bankimport/fints-firefly-go/internal/camt"
	"github.com/bankimport/fints-firefly-go/internal/domain"
	"github.com/bankimport/fints-firefly-go/internal/infra/observability"
	"github.com/bankimport/fints-firefly-go/internal/mt940"
	"github.com/bankimport/fints-firefly-go/internal/normalize"
	"github.com/bankimport/fints-firefly-go/internal/port"
	"github.com/bankimport/fints-firefly-go/internal/workflow"
)

var importTracer = otel.Tracer("service/import")

// ImportService orchestrates statement retrieval, normalization and
// ledger submission. It is stateless in-process: every operation takes
// the snapshot of the previous turn and returns the updated one.
type ImportService struct {
	dialer     port.Dialer
	sender     port.LedgerSender
	normalizer *normalize.Normalizer
	metrics    *observability.Metrics
	logger     *zap.Logger

	preferredFormat domain.StatementFormat
	batchSize       int
	maxConcurrency  int
}

// NewImportService creates the import service.
func NewImportService(
	dialer port.Dialer,
	sender port.LedgerSender,
	normalizer *normalize.Normalizer,
	metrics *observability.Metrics,
	logger *zap.Logger,
	preferredFormat domain.StatementFormat,
	batchSize int,
	maxConcurrency int,
) *ImportService {
	if batchSize <= 0 {
		batchSize = 25
	}
	if maxConcurrency <= 0 {
		maxConcurrency = 4
	}
	return &ImportService{
		dialer:          dialer,
		sender:          sender,
		normalizer:      normalizer,
		metrics:         metrics,
		logger:          logger,
		preferredFormat: preferredFormat,
		batchSize:       batchSize,
		maxConcurrency:  maxConcurrency,
	}
}

// ImportInput is what the caller supplies for one workflow turn.
type ImportInput struct {
	// AccountIndex selects from the dialog's account list.
	AccountIndex *int
	// LedgerAccountID is the target account in the ledger system.
	LedgerAccountID string
	// DateFrom and DateTo bound the statement range, inclusive.
	DateFrom, DateTo string
	// ChallengeResponse carries the TAN, only while resuming.
	ChallengeResponse string
}

// ImportOutcome is the result of one workflow turn: either a challenge
// prompt to render, a retry signal for the format fallback, or the
// terminal transaction batch.
type ImportOutcome struct {
	Challenge    *domain.ChallengePrompt `json:"challenge,omitempty"`
	Retry        bool                    `json:"retry,omitempty"`
	Transactions []domain.Transaction    `json:"transactions,omitempty"`
	NextStep     workflow.Step           `json:"next_step"`
	Messages     []string                `json:"messages,omitempty"`
	Processed    int                     `json:"processed,omitempty"`
	Total        int                     `json:"total,omitempty"`
	Done         bool                    `json:"done,omitempty"`
}

// Accounts lists the bank accounts available for import.
func (s *ImportService) Accounts(ctx context.Context) ([]domain.BankAccount, error) {
	ctx, span := importTracer.Start(ctx, "ImportService.Accounts")
	defer span.End()

	dialog, err := s.dialer.Dial(ctx)
	if err != nil {
		return nil, err
	}
	defer dialog.End(ctx)

	return dialog.Accounts(ctx)
}

// GetImportData performs one turn of the statement retrieval step: it
// issues (or resumes) the statement request, suspends on a TAN
// challenge, falls back to the legacy format on an empty document, and
// otherwise leaves the normalized batch in the snapshot.
func (s *ImportService) GetImportData(ctx context.Context, snap *workflow.Snapshot, in ImportInput) (*ImportOutcome, error) {
	ctx, span := importTracer.Start(ctx, "ImportService.GetImportData")
	defer span.End()
	start := time.Now()
	defer func() { s.metrics.RecordOperationDuration("get_import_data", time.Since(start)) }()

	s.mergeStatementParams(snap, &in)

	if in.LedgerAccountID == "" {
		return nil, &domain.ErrMissingInput{Field: "ledger_account"}
	}

	dialog, err := s.restoreDialog(ctx, snap)
	if err != nil {
		return nil, err
	}

	fallback := workflow.RestoreFormatFallback(snap, s.preferredFormat)
	span.SetAttributes(attribute.String("statement.format", string(fallback.Format())))

	account, err := s.selectAccount(ctx, dialog, snap, in)
	if err != nil {
		return nil, err
	}

	step := workflow.NewChallengeResumableStep(dialog, s.logger)
	result, err := step.Run(ctx, workflow.ChallengeInput{
		Account:           account,
		From:              in.DateFrom,
		To:                in.DateTo,
		Format:            fallback.Format(),
		Resuming:          snap.AwaitingChallenge,
		ChallengeResponse: in.ChallengeResponse,
	})
	if err != nil {
		return nil, err
	}

	snap.LedgerAccountID = in.LedgerAccountID

	if result.State == workflow.ChallengeNeeded {
		s.metrics.IncrChallenge()
		snap.AwaitingChallenge = true
		fallback.Apply(snap)
		snap.DialogBlob = dialog.Persist()
		return &ImportOutcome{
			Challenge: result.Challenge,
			NextStep:  workflow.StepGetImportData,
		}, nil
	}
	snap.AwaitingChallenge = false

	transactions, documentBlank := s.normalizeAction(result.Action, fallback.Format())

	if resolution := fallback.Resolve(documentBlank); resolution.Retry {
		s.metrics.IncrFallback()
		s.logger.Info("no statement data in primary format, falling back",
			zap.String("fallback_format", string(resolution.Format)),
			zap.String("date_from", in.DateFrom),
			zap.String("date_to", in.DateTo),
		)
		fallback.Apply(snap)
		snap.DialogBlob = dialog.Persist()
		return &ImportOutcome{Retry: true, NextStep: workflow.StepGetImportData}, nil
	}

	snap.Transactions = transactions
	snap.NumProcessed = 0
	snap.ImportMessages = nil
	fallback.Apply(snap)

	if err := dialog.End(ctx); err != nil {
		s.logger.Warn("failed to close bank dialog", zap.Error(err))
	}
	snap.DialogBlob = dialog.Persist()

	s.metrics.AddNormalized(string(fallback.Format()), len(transactions))
	s.logger.Info("statement normalized",
		zap.String("format", string(fallback.Format())),
		zap.Int("transactions", len(transactions)),
	)

	return &ImportOutcome{
		Transactions: transactions,
		Total:        len(transactions),
		NextStep:     workflow.StepRunImport,
	}, nil
}

// normalizeAction turns the finished protocol action into canonical
// transactions. The bool result reports whether the raw document was
// blank or unparsable, which is the only condition that triggers the
// format fallback.
func (s *ImportService) normalizeAction(action port.StatementAction, format domain.StatementFormat) ([]domain.Transaction, bool) {
	if format == domain.FormatMT940 {
		// The bridge may deliver several flat-file documents; blank and
		// unparsable ones are dropped, never surfaced as errors.
		var statements []mt940.Statement
		usable := false
		for _, raw := range action.BookedMT940() {
			if strings.TrimSpace(raw) == "" {
				continue
			}
			parsed, err := mt940.Parse(raw)
			if err != nil {
				s.metrics.IncrMalformedDocument(string(domain.FormatMT940))
				s.logger.Error("discarding malformed statement document", zap.Error(err))
				continue
			}
			usable = true
			statements = append(statements, parsed...)
		}
		if !usable {
			return nil, true
		}
		return s.normalizer.NormalizeMT940(statements), false
	}

	docs := action.BookedCAMT()
	raw := ""
	if len(docs) > 0 {
		// The protocol library returns one XML document per statement
		// page; we process the first one.
		raw = docs[0]
	}
	if strings.TrimSpace(raw) == "" {
		return nil, true
	}

	doc, err := camt.Parse(raw)
	if err != nil {
		// A partially parsed statement must never surface a crash:
		// treat it like "bank returned no data" and let the fallback
		// controller retry in the smaller format.
		s.metrics.IncrMalformedDocument(string(domain.FormatCAMT))
		s.logger.Error("discarding malformed statement document", zap.Error(err))
		return nil, true
	}

	transactions, err := s.normalizer.NormalizeCAMT(doc)
	if err != nil {
		var unknown *domain.ErrUnknownCurrency
		if errors.As(err, &unknown) {
			// Fatal to the batch, but not grounds for fallback: the
			// document itself was well-formed.
			s.logger.Error("aborting normalization", zap.Error(err))
			return nil, false
		}
		s.metrics.IncrMalformedDocument(string(domain.FormatCAMT))
		s.logger.Error("discarding malformed statement document", zap.Error(err))
		return nil, true
	}
	return transactions, false
}

// RunImport submits the next batch of stored transactions to the
// ledger system and accumulates per-transaction messages. Repeated
// turns continue where the previous one stopped.
func (s *ImportService) RunImport(ctx context.Context, snap *workflow.Snapshot) (*ImportOutcome, error) {
	ctx, span := importTracer.Start(ctx, "ImportService.RunImport")
	defer span.End()
	start := time.Now()
	defer func() { s.metrics.RecordOperationDuration("run_import", time.Since(start)) }()

	if snap.LedgerAccountID == "" {
		return nil, &domain.ErrMissingInput{Field: "ledger_account"}
	}

	total := len(snap.Transactions)
	if total == 0 {
		return &ImportOutcome{
			Messages: []string{"No transactions to import."},
			NextStep: workflow.StepDone,
			Done:     true,
		}, nil
	}

	end := snap.NumProcessed + s.batchSize
	if end > total {
		end = total
	}
	batch := snap.Transactions[snap.NumProcessed:end]

	messages := make([]string, len(batch))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.maxConcurrency)
	for i, tx := range batch {
		i, tx := i, tx
		g.Go(func() error {
			msg, err := s.sender.SendTransaction(gctx, snap.LedgerAccountID, tx)
			if err != nil {
				s.metrics.IncrImported("error")
				s.metrics.IncrExternalError("ledger")
				msg = fmt.Sprintf("Failed to import transaction: %v", err)
			} else {
				s.metrics.IncrImported("success")
			}
			mu.Lock()
			messages[i] = msg
			mu.Unlock()
			return nil
		})
	}
	// Submission errors become import messages, never batch aborts.
	_ = g.Wait()

	snap.NumProcessed = end
	snap.ImportMessages = append(snap.ImportMessages, messages...)

	outcome := &ImportOutcome{
		Messages:  snap.ImportMessages,
		Processed: snap.NumProcessed,
		Total:     total,
		NextStep:  workflow.StepRunImport,
	}
	if snap.NumProcessed >= total {
		outcome.NextStep = workflow.StepDone
		outcome.Done = true
	}

	span.SetAttributes(
		attribute.Int("import.processed", snap.NumProcessed),
		attribute.Int("import.total", total),
	)
	return outcome, nil
}

// mergeStatementParams fills omitted request fields from the snapshot
// and records the supplied ones. A resume turn may carry only the
// challenge response; the echoed parameters let a follow-up re-request
// (the format fallback) run without the client repeating them.
func (s *ImportService) mergeStatementParams(snap *workflow.Snapshot, in *ImportInput) {
	if in.AccountIndex == nil {
		in.AccountIndex = snap.AccountIndex
	} else {
		snap.AccountIndex = in.AccountIndex
	}
	if in.LedgerAccountID == "" {
		in.LedgerAccountID = snap.LedgerAccountID
	}
	if in.DateFrom == "" {
		in.DateFrom = snap.DateFrom
	} else {
		snap.DateFrom = in.DateFrom
	}
	if in.DateTo == "" {
		in.DateTo = snap.DateTo
	} else {
		snap.DateTo = in.DateTo
	}
}

func (s *ImportService) restoreDialog(ctx context.Context, snap *workflow.Snapshot) (port.Dialog, error) {
	if len(snap.DialogBlob) > 0 {
		return s.dialer.Restore(ctx, snap.DialogBlob)
	}
	return s.dialer.Dial(ctx)
}

func (s *ImportService) selectAccount(ctx context.Context, dialog port.Dialog, snap *workflow.Snapshot, in ImportInput) (domain.BankAccount, error) {
	if snap.AwaitingChallenge {
		// The statement request is already inside the suspended dialog;
		// the resume turn carries only the challenge response.
		return domain.BankAccount{}, nil
	}
	if in.AccountIndex == nil {
		return domain.BankAccount{}, &domain.ErrMissingInput{Field: "bank_account"}
	}
	accounts, err := dialog.Accounts(ctx)
	if err != nil {
		return domain.BankAccount{}, err
	}
	idx := *in.AccountIndex
	if idx < 0 || idx >= len(accounts) {
		return domain.BankAccount{}, &domain.ErrValidation{
			Field:   "bank_account",
			Message: fmt.Sprintf("index %d out of range (%d accounts)", idx, len(accounts)),
		}
	}
	return accounts[idx], nil
}
