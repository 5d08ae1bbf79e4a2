package webhooks

import (
	"io"
	"net/http"

	"github.com/kanakkart/storefront-backend/api/responses"
	"github.com/kanakkart/storefront-backend/internal/payments"
	pkgerrors "github.com/kanakkart/storefront-backend/pkg/errors"
	"github.com/kanakkart/storefront-backend/pkg/logger"
)

const signatureHeader = "X-Razorpay-Signature"

// maxWebhookBody caps gateway payloads at 1 MiB.
const maxWebhookBody = 1 << 20

// PaymentWebhook receives Razorpay events. The signature is computed over
// the raw body, so it must be read before any decoding.
func PaymentWebhook(svc payments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payments service unavailable"))
			return
		}

		body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read webhook body"))
			return
		}

		result, err := svc.HandleWebhook(r.Context(), body, r.Header.Get(signatureHeader))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, result)
	}
}
