package backend

import (
	"context"
	"net/http"

	"github.com/jrsteele09/quiz-admin/payments"
)

const walletAllPath = "/api/wallet/all"

var _ payments.Backend = (*Client)(nil)

type paymentsResp struct {
	envelope
	Data []wirePayment `json:"data"`
}

func (c *Client) ListPayments(ctx context.Context) ([]payments.Payment, error) {
	var out paymentsResp
	if err := c.doJSON(ctx, http.MethodGet, walletAllPath, nil, &out); err != nil {
		return nil, err
	}
	if !out.Success {
		return nil, rejected(http.MethodGet, walletAllPath, out.envelope, "Error fetching wallet data")
	}

	list := make([]payments.Payment, 0, len(out.Data))
	for _, w := range out.Data {
		list = append(list, w.payment())
	}
	return list, nil
}

func (c *Client) SetDue(ctx context.Context, paymentID string, due bool) error {
	path := userPath("/api/wallet-due/%s", paymentID)
	var out envelope
	if err := c.doJSON(ctx, http.MethodPut, path, map[string]bool{"due": due}, &out); err != nil {
		return err
	}
	if !out.Success {
		return rejected(http.MethodPut, path, out, "Failed to update due status")
	}
	return nil
}
