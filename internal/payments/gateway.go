package payments

import (
	"context"

	"github.com/dorceinnovative/dorce.ai-sub002/pkg/enums"
)

// InitializeRequest asks the gateway to open a charge for a checkout. The
// reference is ours; the gateway's own identifier stays internal to the
// implementation.
type InitializeRequest struct {
	Reference   string
	AmountCents int64
	Currency    enums.Currency
	UserID      string
	Metadata    map[string]string
}

// Initialization is what the client needs to complete the charge.
type Initialization struct {
	Reference    string `json:"reference"`
	ClientSecret string `json:"client_secret,omitempty"`
	ProviderID   string `json:"provider_id,omitempty"`
}

// Verification reports the gateway's view of a charge.
type Verification struct {
	Reference   string              `json:"reference"`
	Status      enums.PaymentStatus `json:"status"`
	AmountCents int64               `json:"amount_cents"`
}

// Gateway is the external payment collaborator. Checkout initializes a
// charge after its transaction commits; confirmation verifies the charge
// before marking orders paid.
type Gateway interface {
	InitializePayment(ctx context.Context, req InitializeRequest) (*Initialization, error)
	VerifyPayment(ctx context.Context, reference string) (*Verification, error)
}
