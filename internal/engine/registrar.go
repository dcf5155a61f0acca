package engine

import (
	"context"

	"github.com/brightpath/pulse/internal/domain"
	"github.com/brightpath/pulse/internal/gateway"
	"github.com/brightpath/pulse/internal/identity"
	"github.com/brightpath/pulse/internal/logger"
)

// VisitorRegistrar resolves a fingerprint to a durable visitor id.
type VisitorRegistrar struct {
	gw   gateway.Gateway
	ids  identity.Store
	disp *dispatcher
	log  logger.Logger
}

// NewVisitorRegistrar creates a registrar.
func NewVisitorRegistrar(gw gateway.Gateway, ids identity.Store, disp *dispatcher, log logger.Logger) *VisitorRegistrar {
	return &VisitorRegistrar{gw: gw, ids: ids, disp: disp, log: log}
}

// EnsureVisitor returns the visitor id for the fingerprint. A cached id is
// returned immediately with a non-blocking last-seen touch; otherwise the
// visitor is upserted synchronously. On backend failure it returns
// ("", false) and the caller must treat telemetry as disabled for this page
// load.
func (r *VisitorRegistrar) EnsureVisitor(ctx context.Context, fingerprint string, device domain.DeviceInfo) (string, bool) {
	if cached, ok := r.ids.Get(identity.KeyVisitorID); ok && cached != "" {
		r.disp.enqueue("touch_visitor", func(ctx context.Context) error {
			return r.gw.TouchVisitor(ctx, cached)
		})
		return cached, true
	}

	id, err := r.gw.EnsureVisitor(ctx, domain.EnsureVisitorRequest{
		Fingerprint: fingerprint,
		Device:      device,
	})
	if err != nil {
		r.log.Debug("Visitor registration failed, telemetry disabled for this page load",
			logger.Error(err),
		)
		return "", false
	}

	r.ids.Set(identity.KeyVisitorID, id)
	return id, true
}
