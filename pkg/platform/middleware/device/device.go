// Package device authenticates gateway hardware by serial and
// provisioning secret.
package device

import (
	"context"
	"log/slog"
	"net/http"

	dErrors "palisade/pkg/domain-errors"
	"palisade/pkg/platform/httputil"
	"palisade/pkg/requestcontext"
)

const (
	SerialHeader = "X-Device-Serial"
	SecretHeader = "X-Device-Secret"
)

// Verifier checks a device's provisioning secret.
type Verifier interface {
	CheckDeviceSecret(ctx context.Context, serial, secret string) error
}

// RequireDevice authenticates the calling device and puts its serial on
// the context.
func RequireDevice(verifier Verifier, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			serial := r.Header.Get(SerialHeader)
			secret := r.Header.Get(SecretHeader)
			if serial == "" || secret == "" {
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "missing device credentials"))
				return
			}

			if err := verifier.CheckDeviceSecret(ctx, serial, secret); err != nil {
				logger.WarnContext(ctx, "device authentication failed",
					"request_id", requestcontext.RequestID(ctx),
					"serial", serial,
				)
				httputil.WriteError(w, err)
				return
			}

			ctx = requestcontext.WithDeviceSerial(ctx, serial)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
