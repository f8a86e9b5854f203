package detector

import (
	"context"
	"strings"
)

// ValidateCredential reports whether apiKey is usable. A key without the
// configured prefix is rejected without contacting the backend; otherwise the
// backend's model listing must succeed and be array-shaped. Failures are
// logged and reported as false.
func (d *Detector) ValidateCredential(ctx context.Context, apiKey string) bool {
	if !strings.HasPrefix(apiKey, d.cfg.CredentialPrefix) {
		d.logger.Info("credential rejected", "reason", "missing required prefix")
		return false
	}

	p, err := d.factory(apiKey)
	if err != nil {
		d.logger.Warn("credential validation failed", "error", err)
		return false
	}

	models, err := p.ListModels(ctx)
	d.metrics.RecordRemoteCall("list_models", err)
	if err != nil {
		d.logger.Warn("credential validation failed", "error", err)
		return false
	}

	d.logger.Debug("credential validated", "models", len(models))
	return true
}
