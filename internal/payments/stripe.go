package payments

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v84"
	"github.com/stripe/stripe-go/v84/paymentintent"

	"github.com/dorceinnovative/dorce.ai-sub002/pkg/enums"
	pkgerrors "github.com/dorceinnovative/dorce.ai-sub002/pkg/errors"
	"github.com/dorceinnovative/dorce.ai-sub002/pkg/logger"
	pkgredis "github.com/dorceinnovative/dorce.ai-sub002/pkg/redis"
	pkgstripe "github.com/dorceinnovative/dorce.ai-sub002/pkg/stripe"
)

// referenceTTL bounds how long an initialized-but-unconfirmed charge stays
// resolvable. Matches the cart's own lifetime.
const referenceTTL = 24 * time.Hour

type referenceStore interface {
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, error)
	CheckoutReferenceKey(reference string) string
}

// StripeGateway charges through Stripe PaymentIntents. The checkout
// reference maps to the intent ID in redis so verification needs only the
// reference.
type StripeGateway struct {
	refs referenceStore
	logg *logger.Logger
}

// NewStripeGateway builds the Stripe-backed gateway. The pkg-level client
// must be initialized first; stripe-go routes package calls through it.
func NewStripeGateway(client *pkgstripe.Client, refs referenceStore, logg *logger.Logger) (Gateway, error) {
	if client == nil {
		return nil, fmt.Errorf("stripe client required")
	}
	if refs == nil {
		return nil, fmt.Errorf("reference store required")
	}
	return &StripeGateway{refs: refs, logg: logg}, nil
}

// InitializePayment opens a PaymentIntent for the checkout amount.
func (g *StripeGateway) InitializePayment(ctx context.Context, req InitializeRequest) (*Initialization, error) {
	if req.Reference == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment reference required")
	}
	if req.AmountCents <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment amount must be positive")
	}

	metadata := map[string]string{"reference": req.Reference}
	for k, v := range req.Metadata {
		metadata[k] = v
	}
	if req.UserID != "" {
		metadata["user_id"] = req.UserID
	}

	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(req.AmountCents),
		Currency: stripe.String(strings.ToLower(string(req.Currency))),
		Metadata: metadata,
	}
	params.Context = ctx

	intent, err := paymentintent.New(params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "initialize payment")
	}

	key := g.refs.CheckoutReferenceKey(req.Reference)
	if err := g.refs.Set(ctx, key, intent.ID, referenceTTL); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store payment reference")
	}

	if g.logg != nil {
		logCtx := g.logg.WithFields(ctx, map[string]any{
			"reference":    req.Reference,
			"amount_cents": req.AmountCents,
		})
		g.logg.Info(logCtx, "payment intent created")
	}

	return &Initialization{
		Reference:    req.Reference,
		ClientSecret: intent.ClientSecret,
		ProviderID:   intent.ID,
	}, nil
}

// VerifyPayment fetches the intent behind a reference and maps its status.
func (g *StripeGateway) VerifyPayment(ctx context.Context, reference string) (*Verification, error) {
	if reference == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment reference required")
	}

	intentID, err := g.refs.Get(ctx, g.refs.CheckoutReferenceKey(reference))
	if err != nil {
		if errors.Is(err, pkgredis.ErrNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound,
				fmt.Sprintf("unknown payment reference %s", reference))
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "resolve payment reference")
	}

	params := &stripe.PaymentIntentParams{}
	params.Context = ctx
	intent, err := paymentintent.Get(intentID, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "verify payment")
	}

	return &Verification{
		Reference:   reference,
		Status:      mapIntentStatus(intent.Status),
		AmountCents: intent.AmountReceived,
	}, nil
}

func mapIntentStatus(status stripe.PaymentIntentStatus) enums.PaymentStatus {
	switch status {
	case stripe.PaymentIntentStatusSucceeded:
		return enums.PaymentStatusPaid
	case stripe.PaymentIntentStatusCanceled:
		return enums.PaymentStatusFailed
	default:
		return enums.PaymentStatusPending
	}
}
