package strike

import (
	"time"

	"github.com/punchamoorthee/lightningpay/internal/domain"
	"github.com/shopspring/decimal"
)

// CreateParams describes a new receive request.
type CreateParams struct {
	Amount         decimal.Decimal
	Currency       string
	Description    string
	TargetCurrency string
	ExpirySeconds  int
}

type money struct {
	Amount   decimal.Decimal `json:"amount"`
	Currency string          `json:"currency"`
}

type createReceiveRequest struct {
	TargetCurrency string       `json:"targetCurrency,omitempty"`
	Bolt11         bolt11Params `json:"bolt11"`
}

type bolt11Params struct {
	Amount          money  `json:"amount"`
	Description     string `json:"description,omitempty"`
	ExpiryInSeconds int    `json:"expiryInSeconds,omitempty"`
}

type receiveRequest struct {
	ReceiveRequestID string        `json:"receiveRequestId"`
	Created          *time.Time    `json:"created"`
	TargetCurrency   string        `json:"targetCurrency"`
	Bolt11           *bolt11Detail `json:"bolt11"`
}

type bolt11Detail struct {
	Invoice         string          `json:"invoice"`
	RequestedAmount money           `json:"requestedAmount"`
	BTCAmount       decimal.Decimal `json:"btcAmount"`
	Description     string          `json:"description"`
	PaymentHash     string          `json:"paymentHash"`
	Expires         time.Time       `json:"expires"`
}

func (r *receiveRequest) toDomain(now time.Time) *domain.PaymentRequest {
	pr := &domain.PaymentRequest{
		ID:        r.ReceiveRequestID,
		CreatedAt: now,
	}
	if r.Created != nil {
		pr.CreatedAt = *r.Created
	}
	if r.Bolt11 != nil {
		pr.Invoice = r.Bolt11.Invoice
		pr.RequestedAmount = domain.Amount{Value: r.Bolt11.RequestedAmount.Amount, Currency: r.Bolt11.RequestedAmount.Currency}
		pr.SettlementAmount = domain.Amount{Value: r.Bolt11.BTCAmount, Currency: "BTC"}
		pr.ExpiresAt = r.Bolt11.Expires
	}
	return pr
}

// receivesPage is the paginated form of the receives listing.
type receivesPage struct {
	Items *[]domain.Receipt `json:"items"`
	Count int               `json:"count"`
}
