package service

import (
	"context"
	"fmt"

	"veggiemarket/backend/internal/domain"
	"veggiemarket/backend/internal/erp"
)

var errSyncUnavailable = fmt.Errorf("%w: erp sync is not running", domain.ErrSyncFailure)

func (s *Service) SyncOverview(_ context.Context) domain.SyncOverview {
	if s.sync == nil {
		return domain.SyncOverview{Kinds: map[domain.SyncKind]domain.SyncStatus{}}
	}
	return s.sync.Overview()
}

func (s *Service) TestERPConnection(ctx context.Context) (erp.ConnectionResult, error) {
	if err := requireAdmin(ctx); err != nil {
		return erp.ConnectionResult{}, err
	}
	if s.sync == nil {
		return erp.ConnectionResult{}, errSyncUnavailable
	}
	res := s.sync.TestConnection(ctx)
	s.logAudit(ctx, "erp_test_connection", "erp", "connection", res.Message)
	return res, nil
}

// SyncERP pushes the requested kind to the ERP; an empty kind pushes both
// products and customers.
func (s *Service) SyncERP(ctx context.Context, kind domain.SyncKind) (map[domain.SyncKind]erp.BatchResult, error) {
	if err := requireAdmin(ctx); err != nil {
		return nil, err
	}
	if s.sync == nil {
		return nil, errSyncUnavailable
	}

	var results map[domain.SyncKind]erp.BatchResult
	switch kind {
	case domain.SyncProducts:
		results = map[domain.SyncKind]erp.BatchResult{kind: s.sync.SyncProducts(ctx)}
	case domain.SyncCustomers:
		results = map[domain.SyncKind]erp.BatchResult{kind: s.sync.SyncCustomers(ctx)}
	case "":
		results = s.sync.SyncAll(ctx)
	default:
		return nil, fmt.Errorf("%w: cannot push %q to the erp", domain.ErrInvalidInput, kind)
	}

	for k, res := range results {
		s.logAudit(ctx, "erp_sync", "erp", string(k), fmt.Sprintf("success=%t,synced=%d,errors=%d", res.Success, res.SyncedCount, len(res.Errors)))
	}
	return results, nil
}

func (s *Service) ResyncSale(ctx context.Context, id string) (erp.SaleResult, error) {
	if err := requireAdmin(ctx); err != nil {
		return erp.SaleResult{}, err
	}
	if s.sync == nil {
		return erp.SaleResult{}, errSyncUnavailable
	}
	res, err := s.sync.ResyncSale(ctx, id)
	if err != nil {
		return erp.SaleResult{}, err
	}
	s.logAudit(ctx, "erp_resync_sale", "sale", id, fmt.Sprintf("success=%t,external_id=%s", res.Success, res.ExternalID))
	return res, nil
}
