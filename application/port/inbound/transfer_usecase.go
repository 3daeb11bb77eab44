package inbound

import (
	"context"

	"github.com/fixora/tollgate/domain/entity"
)

// TransferVerifier runs a transfer request through the policy pipeline.
// Policy outcomes come back as a Decision; the error is reserved for
// failures that leave no audit trace.
type TransferVerifier interface {
	Verify(ctx context.Context, req entity.TransferRequest) (entity.Decision, error)
}
