package starkattest

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// SubmitAndWait signs and submits calls as exactly one transaction, then
// blocks until it is included or the wait times out.
//
// The fee fields come from the fee policy (DefaultFeePolicy unless
// WithFeePolicy is given). Nothing is retried: a rejected submission is a
// *SubmissionError, a missed polling window a *TimeoutError. If the
// transaction is included but reverted, the receipt is returned together
// with a *RevertedError.
func (a *Account) SubmitAndWait(ctx context.Context, calls []*Call, opts ...SubmitOption) (*Receipt, error) {
	cfg := newSubmitConfig(opts)

	names := make([]string, len(calls))
	for i, c := range calls {
		names[i] = c.String()
	}
	a.logger.Info("Executing calls", "calls", names)
	a.logger.Info("Fee policy",
		"maxAuthorizedCost", cfg.policy.MaxAuthorizedCost(),
		"maxTotalCost", cfg.policy.MaxTotalCost(),
		"legacyMaxFee", cfg.policy.MaxFee,
		"tip", cfg.policy.Tip,
		"unit", "FRI")

	txHash, err := a.Execute(ctx, calls, opts...)
	if err != nil {
		return nil, err
	}
	a.logger.Info("Transaction submitted", "hash", txHash)

	receipt, err := a.WaitForTransaction(ctx, txHash, opts...)
	if err != nil {
		return nil, err
	}
	a.logger.Info("Transaction receipt", "hash", receipt.TransactionHash, "block", receipt.BlockNumber,
		"execution", receipt.ExecutionStatus, "finality", receipt.FinalityStatus)

	if !receipt.IsSuccess() {
		a.logger.Warn("Transaction reverted", "hash", txHash, "reason", receipt.RevertReason)
		return receipt, &RevertedError{TxHash: txHash, Reason: receipt.RevertReason}
	}
	a.logger.Info("Transaction succeeded", "hash", txHash,
		"fee", receipt.ActualFee.Amount, "unit", receipt.ActualFee.Unit)
	return receipt, nil
}

// WaitForTransaction polls the transaction status until it is accepted on
// L2 (or L1), then returns the receipt. An unknown hash keeps the loop
// polling, since nodes may not know about a transaction right after
// submission.
//
// Polls run on ctx; the wait timeout only bounds the loop. Any poll error
// seen once the timeout has elapsed is reported as a *TimeoutError.
func (a *Account) WaitForTransaction(ctx context.Context, txHash string, opts ...SubmitOption) (*Receipt, error) {
	cfg := newSubmitConfig(opts)
	p := a.provider

	start := time.Now()
	deadline := time.NewTimer(cfg.waitTimeout)
	defer deadline.Stop()

	ticker := time.NewTicker(cfg.pollInterval)
	defer ticker.Stop()

	timedOut := func() error {
		return &TimeoutError{TxHash: txHash, Waited: time.Since(start).Round(time.Millisecond)}
	}

	for {
		status, err := p.TransactionStatus(ctx, txHash)
		switch {
		case err == nil && status.Included():
			return p.TransactionReceipt(ctx, txHash)
		case err == nil && status.FinalityStatus == StatusRejected:
			return nil, &SubmissionError{TxHash: txHash, Err: fmt.Errorf("%w: %s", ErrRejected, rejectionReason(status))}
		case err == nil:
			a.logger.Debug("Waiting for transaction", "hash", txHash, "status", status.FinalityStatus)
		case errors.Is(err, ErrTransactionNotFound):
			a.logger.Debug("Transaction not yet known", "hash", txHash)
		case ctx.Err() != nil:
			return nil, ctx.Err()
		case time.Since(start) >= cfg.waitTimeout:
			return nil, timedOut()
		default:
			return nil, err
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-deadline.C:
			return nil, timedOut()
		case <-ticker.C:
		}
	}
}

func rejectionReason(s *TransactionStatus) string {
	if s.FailureReason != "" {
		return s.FailureReason
	}
	return "no reason given"
}
