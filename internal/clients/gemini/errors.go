package gemini

import (
	"context"
	"errors"
	"net/http"
	"os"
	"strings"

	"google.golang.org/genai"

	"github.com/bobmcallan/koru/internal/interfaces"
)

// ClassifyError maps a provider error to a GenerationErrorKind. The raw
// error is logged by the caller; only the kind crosses to the HTTP layer.
func ClassifyError(err error) interfaces.GenerationErrorKind {
	if err == nil {
		return interfaces.GenErrUnknown
	}

	if errors.Is(err, context.DeadlineExceeded) || os.IsTimeout(err) {
		return interfaces.GenErrTimeout
	}

	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		msg := strings.ToLower(apiErr.Message)
		switch apiErr.Code {
		case http.StatusTooManyRequests:
			// RESOURCE_EXHAUSTED covers both burst rate limits and
			// exhausted billing quota, and the per-minute messages also
			// say "quota". Treat 429 as retryable unless the message
			// carries an explicit billing signal.
			if strings.Contains(msg, "billing") || strings.Contains(msg, "plan") {
				return interfaces.GenErrQuotaExhausted
			}
			return interfaces.GenErrRateLimited
		case http.StatusUnauthorized, http.StatusForbidden:
			return interfaces.GenErrBadCredentials
		case http.StatusNotFound:
			return interfaces.GenErrModelNotFound
		case http.StatusGatewayTimeout:
			return interfaces.GenErrTimeout
		}
	}

	return interfaces.GenErrUnknown
}
