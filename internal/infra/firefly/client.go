// Package firefly submits normalized transactions to a Firefly III
// instance via its v1 REST API.
package firefly

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/bankimport/fints-firefly-go/internal/domain"
	"github.com/bankimport/fints-firefly-go/internal/infra/resilience"
)

var tracer = otel.Tracer("firefly")

// Client wraps HTTP calls to the Firefly III transactions API. It
// implements port.LedgerSender.
type Client struct {
	httpClient  *http.Client
	baseURL     string
	accessToken string
	cb          *gobreaker.CircuitBreaker
	cfg         resilience.Config
	logger      *zap.Logger
}

// NewClient creates a Firefly III client authenticated with a personal
// access token.
func NewClient(httpClient *http.Client, baseURL, accessToken string, cb *gobreaker.CircuitBreaker, cfg resilience.Config, logger *zap.Logger) *Client {
	return &Client{
		httpClient:  httpClient,
		baseURL:     strings.TrimRight(baseURL, "/"),
		accessToken: accessToken,
		cb:          cb,
		cfg:         cfg,
		logger:      logger,
	}
}

// fireflySplit is one entry of a Firefly transaction group.
type fireflySplit struct {
	Type            string `json:"type"`
	Date            string `json:"date"`
	Amount          string `json:"amount"`
	Description     string `json:"description"`
	CurrencyCode    string `json:"currency_code,omitempty"`
	SourceID        string `json:"source_id,omitempty"`
	SourceName      string `json:"source_name,omitempty"`
	DestinationID   string `json:"destination_id,omitempty"`
	DestinationName string `json:"destination_name,omitempty"`
	SourceIBAN      string `json:"source_iban,omitempty"`
	DestinationIBAN string `json:"destination_iban,omitempty"`
	ExternalID      string `json:"external_id,omitempty"`
	SepaCtID        string `json:"sepa_ct_id,omitempty"`
	Notes           string `json:"notes,omitempty"`
}

type fireflyRequest struct {
	ErrorIfDuplicateHash bool           `json:"error_if_duplicate_hash"`
	ApplyRules           bool           `json:"apply_rules"`
	Transactions         []fireflySplit `json:"transactions"`
}

type fireflyError struct {
	Message string `json:"message"`
}

// SendTransaction stores one transaction against the given asset
// account. Duplicates already known to Firefly are reported as a
// message, not an error: re-running an import must be safe.
func (c *Client) SendTransaction(ctx context.Context, ledgerAccountID string, tx domain.Transaction) (string, error) {
	ctx, span := tracer.Start(ctx, "Firefly.SendTransaction")
	defer span.End()
	span.SetAttributes(
		attribute.String("transaction.direction", string(tx.CreditDebit)),
		attribute.String("transaction.currency", tx.CurrencyCode),
	)

	payload := fireflyRequest{
		ErrorIfDuplicateHash: true,
		ApplyRules:           true,
		Transactions:         []fireflySplit{buildSplit(ledgerAccountID, tx)},
	}

	var message string
	_, err := c.cb.Execute(func() (any, error) {
		return nil, resilience.RetryWithBackoff(ctx, c.cfg, func() error {
			var err error
			message, err = c.post(ctx, payload)
			return err
		})
	})
	if err != nil {
		return "", &domain.ErrExternalService{Service: "firefly", Err: err}
	}
	return message, nil
}

// buildSplit maps the canonical transaction to Firefly's asset-account
// centric model: money in is a deposit into the asset account, money
// out a withdrawal from it, with the counterparty on the far side.
func buildSplit(ledgerAccountID string, tx domain.Transaction) fireflySplit {
	split := fireflySplit{
		Amount:       tx.Amount.String(),
		Description:  description(tx),
		CurrencyCode: tx.CurrencyCode,
		ExternalID:   tx.EndToEndID,
		SepaCtID:     tx.EndToEndID,
		Date:         time.Now().Format("2006-01-02"),
	}
	if tx.ValutaDate != nil {
		split.Date = tx.ValutaDate.Format("2006-01-02")
	}

	counterparty := tx.Name
	if counterparty == "" {
		counterparty = "(unknown)"
	}

	switch tx.CreditDebit {
	case domain.Credit:
		split.Type = "deposit"
		split.DestinationID = ledgerAccountID
		split.SourceName = counterparty
		split.SourceIBAN = tx.AccountNumber
	default:
		split.Type = "withdrawal"
		split.SourceID = ledgerAccountID
		split.DestinationName = counterparty
		split.DestinationIBAN = tx.AccountNumber
	}
	return split
}

// description picks the most meaningful text available for the ledger
// entry.
func description(tx domain.Transaction) string {
	for _, candidate := range []string{tx.MainDescription, tx.Description1, tx.BookingText} {
		if candidate != "" {
			return candidate
		}
	}
	return "(no description)"
}

func (c *Client) post(ctx context.Context, payload fireflyRequest) (string, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	url := c.baseURL + "/api/v1/transactions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+c.accessToken)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("firefly: request failed", zap.Error(err))
		return "", err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		c.logger.Debug("firefly: transaction stored")
		return "Imported transaction.", nil
	}

	var apiErr fireflyError
	_ = json.Unmarshal(respBody, &apiErr)

	if resp.StatusCode == http.StatusUnprocessableEntity && strings.Contains(apiErr.Message, "Duplicate") {
		c.logger.Info("firefly: duplicate transaction skipped")
		return "Skipped duplicate transaction.", nil
	}

	c.logger.Warn("firefly: non-2xx response",
		zap.Int("status", resp.StatusCode),
		zap.String("body", string(respBody)),
	)
	return "", fmt.Errorf("firefly returned status %d: %s", resp.StatusCode, apiErr.Message)
}
