// Package fints talks to the FinTS bridge gateway. The bridge speaks
// the actual FinTS/HBCI wire protocol (message framing, encryption,
// TAN mechanisms) and exposes it as a small JSON API; every call
// carries an opaque dialog state blob so the bridge itself stays
// stateless between requests.
package fints

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/bankimport/fints-firefly-go/internal/domain"
	"github.com/bankimport/fints-firefly-go/internal/infra/resilience"
	"github.com/bankimport/fints-firefly-go/internal/port"
)

var tracer = otel.Tracer("fints")

// Credentials authenticates the banking user against their bank.
type Credentials struct {
	BankURL  string `json:"bank_url"`
	BankCode string `json:"bank_code"`
	Username string `json:"username"`
	PIN      string `json:"pin"`
	// ProductID registers the client software with the bank, required
	// since PSD2.
	ProductID string `json:"product_id,omitempty"`
}

// Client implements port.Dialer against the bridge gateway.
type Client struct {
	httpClient *http.Client
	baseURL    string
	creds      Credentials
	cb         *gobreaker.CircuitBreaker
	cfg        resilience.Config
	logger     *zap.Logger
}

// NewClient creates a bridge gateway client.
func NewClient(httpClient *http.Client, baseURL string, creds Credentials, cb *gobreaker.CircuitBreaker, cfg resilience.Config, logger *zap.Logger) *Client {
	return &Client{
		httpClient: httpClient,
		baseURL:    baseURL,
		creds:      creds,
		cb:         cb,
		cfg:        cfg,
		logger:     logger,
	}
}

// bridgeResponse is the uniform response envelope of the bridge API.
type bridgeResponse struct {
	// State is the updated opaque dialog state, returned by every call.
	State string `json:"state"`

	Accounts []bridgeAccount `json:"accounts,omitempty"`

	NeedsTAN  bool             `json:"needs_tan,omitempty"`
	Challenge *bridgeChallenge `json:"challenge,omitempty"`

	CAMTDocuments  []string `json:"camt_documents,omitempty"`
	MT940Documents []string `json:"mt940_documents,omitempty"`

	Error *bridgeError `json:"error,omitempty"`
}

type bridgeAccount struct {
	IBAN          string `json:"iban"`
	AccountNumber string `json:"account_number"`
	BLZ           string `json:"blz"`
	Owner         string `json:"owner"`
	Currency      string `json:"currency"`
}

type bridgeChallenge struct {
	Instructions string `json:"instructions"`
	MediumName   string `json:"medium_name"`
	Media        []byte `json:"media,omitempty"`
	MediaMime    string `json:"media_mime,omitempty"`
}

type bridgeError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Dial opens a fresh dialog with the bank via the bridge.
func (c *Client) Dial(ctx context.Context) (port.Dialog, error) {
	ctx, span := tracer.Start(ctx, "FinTS.Dial")
	defer span.End()

	var resp *bridgeResponse
	_, err := c.cb.Execute(func() (any, error) {
		return nil, resilience.RetryWithBackoff(ctx, c.cfg, func() error {
			var err error
			resp, err = c.call(ctx, "dialogs", map[string]any{"credentials": c.creds})
			return err
		})
	})
	if err != nil {
		return nil, &domain.ErrExternalService{Service: "fints/dial", Err: err}
	}

	return &dialog{client: c, state: resp.State}, nil
}

// Restore resumes a dialog from a blob written by Dialog.Persist. No
// bank round trip happens here; the bridge validates the state on the
// next call.
func (c *Client) Restore(_ context.Context, blob []byte) (port.Dialog, error) {
	var p persistedDialog
	if err := json.Unmarshal(blob, &p); err != nil {
		return nil, fmt.Errorf("restore dialog: %w", err)
	}
	d := &dialog{client: c, state: p.State}
	if p.Challenge != nil {
		d.pending = &action{
			needsChallenge: true,
			challenge:      p.Challenge,
		}
	}
	return d, nil
}

// call executes one bridge API request and decodes the envelope.
func (c *Client) call(ctx context.Context, path string, payload map[string]any) (*bridgeResponse, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/v1/%s", c.baseURL, path)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		c.logger.Error("fints: failed to create request",
			zap.String("path", path),
			zap.Error(err),
		)
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	httpResp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("fints: request failed",
			zap.String("path", path),
			zap.Error(err),
		)
		return nil, err
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		c.logger.Error("fints: failed to read response body",
			zap.String("path", path),
			zap.Error(err),
		)
		return nil, err
	}

	var resp bridgeResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, fmt.Errorf("fints bridge returned status %d: %s", httpResp.StatusCode, string(respBody))
	}

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		if resp.Error != nil && resp.Error.Code == "tan_rejected" {
			return nil, &domain.ErrChallengeRejected{Reason: resp.Error.Message}
		}
		c.logger.Warn("fints: non-2xx response",
			zap.String("path", path),
			zap.Int("status", httpResp.StatusCode),
			zap.String("body", string(respBody)),
		)
		return nil, fmt.Errorf("fints bridge returned status %d: %s", httpResp.StatusCode, string(respBody))
	}

	c.logger.Debug("fints: request OK",
		zap.String("path", path),
		zap.Int("status", httpResp.StatusCode),
	)
	return &resp, nil
}

// persistedDialog is the on-store form of a dialog.
type persistedDialog struct {
	State     string                  `json:"state"`
	Challenge *domain.ChallengePrompt `json:"challenge,omitempty"`
}

// dialog implements port.Dialog over the bridge. It tracks the opaque
// state blob across calls; the pending action survives Persist/Restore
// so a TAN response can be submitted in a later process lifetime.
type dialog struct {
	client  *Client
	state   string
	pending *action
}

func (d *dialog) Accounts(ctx context.Context) ([]domain.BankAccount, error) {
	ctx, span := tracer.Start(ctx, "FinTS.Accounts")
	defer span.End()

	var resp *bridgeResponse
	_, err := d.client.cb.Execute(func() (any, error) {
		return nil, resilience.RetryWithBackoff(ctx, d.client.cfg, func() error {
			var err error
			resp, err = d.client.call(ctx, "accounts", map[string]any{"state": d.state})
			return err
		})
	})
	if err != nil {
		return nil, &domain.ErrExternalService{Service: "fints/accounts", Err: err}
	}
	d.state = resp.State

	accounts := make([]domain.BankAccount, 0, len(resp.Accounts))
	for _, a := range resp.Accounts {
		accounts = append(accounts, domain.BankAccount{
			IBAN:          a.IBAN,
			AccountNumber: a.AccountNumber,
			BLZ:           a.BLZ,
			Owner:         a.Owner,
			Currency:      a.Currency,
		})
	}
	span.SetAttributes(attribute.Int("fints.accounts", len(accounts)))
	return accounts, nil
}

// RequestStatement submits the statement request. No retry here: a
// repeated request can trigger a second TAN dispatch (SMS, push) at the
// bank, so transport failures surface to the caller instead.
func (d *dialog) RequestStatement(ctx context.Context, req domain.StatementRequest) (port.StatementAction, error) {
	ctx, span := tracer.Start(ctx, "FinTS.RequestStatement")
	defer span.End()
	span.SetAttributes(attribute.String("statement.format", string(req.Format)))

	payload := map[string]any{
		"state":  d.state,
		"iban":   req.Account.IBAN,
		"number": req.Account.AccountNumber,
		"blz":    req.Account.BLZ,
		"from":   req.From.Format("2006-01-02"),
		"to":     req.To.Format("2006-01-02"),
		"format": string(req.Format),
	}

	var resp *bridgeResponse
	_, err := d.client.cb.Execute(func() (any, error) {
		var err error
		resp, err = d.client.call(ctx, "statements", payload)
		return nil, err
	})
	if err != nil {
		return nil, &domain.ErrExternalService{Service: "fints/statements", Err: err}
	}
	return d.finishCall(resp)
}

// ResumeAction submits the TAN for the suspended statement request.
func (d *dialog) ResumeAction(ctx context.Context, challengeResponse string) (port.StatementAction, error) {
	ctx, span := tracer.Start(ctx, "FinTS.ResumeAction")
	defer span.End()

	payload := map[string]any{
		"state": d.state,
		"tan":   challengeResponse,
	}

	var resp *bridgeResponse
	_, err := d.client.cb.Execute(func() (any, error) {
		var err error
		resp, err = d.client.call(ctx, "tan", payload)
		return nil, err
	})
	if err != nil {
		var rejected *domain.ErrChallengeRejected
		if errors.As(err, &rejected) {
			return nil, rejected
		}
		return nil, &domain.ErrExternalService{Service: "fints/tan", Err: err}
	}
	return d.finishCall(resp)
}

// finishCall folds a statement/tan response into the dialog: updates
// the state blob and builds the resulting action.
func (d *dialog) finishCall(resp *bridgeResponse) (port.StatementAction, error) {
	d.state = resp.State

	a := &action{}
	if resp.NeedsTAN {
		a.needsChallenge = true
		if resp.Challenge != nil {
			a.challenge = &domain.ChallengePrompt{
				Instructions: resp.Challenge.Instructions,
				MediumName:   resp.Challenge.MediumName,
				Media:        resp.Challenge.Media,
				MediaMime:    resp.Challenge.MediaMime,
			}
		}
		d.pending = a
		return a, nil
	}
	d.pending = nil

	// Documents stay raw here. Whether a document is blank or even
	// parsable is an import-policy question, not a transport one.
	a.camt = resp.CAMTDocuments
	a.mt940 = resp.MT940Documents
	return a, nil
}

func (d *dialog) Persist() []byte {
	p := persistedDialog{State: d.state}
	if d.pending != nil {
		p.Challenge = d.pending.challenge
	}
	blob, _ := json.Marshal(p)
	return blob
}

func (d *dialog) End(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "FinTS.End")
	defer span.End()

	var resp *bridgeResponse
	_, err := d.client.cb.Execute(func() (any, error) {
		return nil, resilience.RetryWithBackoff(ctx, d.client.cfg, func() error {
			var err error
			resp, err = d.client.call(ctx, "end", map[string]any{"state": d.state})
			return err
		})
	})
	if err != nil {
		return &domain.ErrExternalService{Service: "fints/end", Err: err}
	}
	d.state = resp.State
	return nil
}

// action implements port.StatementAction for one bridge response.
type action struct {
	needsChallenge bool
	challenge      *domain.ChallengePrompt
	camt           []string
	mt940          []string
}

func (a *action) NeedsChallenge() bool               { return a.needsChallenge }
func (a *action) Challenge() *domain.ChallengePrompt { return a.challenge }
func (a *action) BookedCAMT() []string               { return a.camt }
func (a *action) BookedMT940() []string              { return a.mt940 }
