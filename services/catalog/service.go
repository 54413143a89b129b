package catalog

import (
	"context"
	"time"

	"grovevest-settlement/pkg/db/option"
	"grovevest-settlement/pkg/errutil"
	"grovevest-settlement/pkg/money"
	"grovevest-settlement/pkg/repository"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Service struct {
	db   *gorm.DB
	node *snowflake.Node

	trees repository.Repository[Tree]
}

type ServiceParams struct {
	fx.In
	DB   *gorm.DB
	Node *snowflake.Node
}

func NewService(p ServiceParams) *Service {
	return &Service{
		db:   p.DB,
		node: p.Node,

		trees: repository.ProvideStore[Tree](p.DB),
	}
}

type CreateTreeRequest struct {
	FarmID             string      `json:"farm_id" binding:"required"`
	Name               string      `json:"name" binding:"required"`
	Species            string      `json:"species"`
	MinInvestmentCents money.Cents `json:"min_investment_cents"`
	MaxInvestmentCents money.Cents `json:"max_investment_cents"`
	CapacityCents      money.Cents `json:"capacity_cents"`
}

func (s *Service) Create(ctx context.Context, req CreateTreeRequest) (*Tree, error) {
	if !req.CapacityCents.Positive() {
		return nil, errutil.ValidationFailed("capacity must be positive", nil,
			errutil.WithDetails(errutil.Detail{Field: "capacity_cents", Message: "must be greater than zero"}))
	}
	if !req.MinInvestmentCents.Positive() {
		return nil, errutil.ValidationFailed("minimum investment must be positive", nil,
			errutil.WithDetails(errutil.Detail{Field: "min_investment_cents", Message: "must be greater than zero"}))
	}
	if req.MaxInvestmentCents < req.MinInvestmentCents {
		return nil, errutil.ValidationFailed("maximum investment below minimum", nil,
			errutil.WithDetails(errutil.Detail{Field: "max_investment_cents", Message: "must be >= min_investment_cents"}))
	}

	tree := &Tree{
		ID:                     s.node.Generate().String(),
		FarmID:                 req.FarmID,
		Name:                   req.Name,
		Species:                req.Species,
		Status:                 TreeAvailable,
		MinInvestmentCents:     req.MinInvestmentCents.Int64(),
		MaxInvestmentCents:     req.MaxInvestmentCents.Int64(),
		CapacityCents:          req.CapacityCents.Int64(),
		RemainingCapacityCents: req.CapacityCents.Int64(),
	}

	if err := s.trees.Create(ctx, tree); err != nil {
		zap.L().Error("failed to create tree", zap.Error(err))
		return nil, err
	}

	return tree, nil
}

func (s *Service) Get(ctx context.Context, treeID string) (*Tree, error) {
	tree, err := s.trees.FindOne(ctx, &Tree{ID: treeID})
	if err != nil {
		return nil, err
	}
	if tree == nil {
		return nil, errutil.NotFound("tree not found", nil,
			errutil.WithDetails(errutil.Detail{Field: "tree_id", Message: treeID}))
	}
	return tree, nil
}

// GetTx reads a tree inside the caller's transaction with a row lock so the
// capacity it reports cannot move under the caller before commit.
func (s *Service) GetTx(ctx context.Context, tx *gorm.DB, treeID string) (*Tree, error) {
	tree, err := s.trees.WithTrx(tx).FindOne(ctx, &Tree{ID: treeID}, option.WithLockingUpdate())
	if err != nil {
		return nil, err
	}
	if tree == nil {
		return nil, errutil.NotFound("tree not found", nil,
			errutil.WithDetails(errutil.Detail{Field: "tree_id", Message: treeID}))
	}
	return tree, nil
}

func (s *Service) List(ctx context.Context, status string) ([]*Tree, error) {
	return s.trees.Find(ctx, &Tree{Status: status}, option.WithSortBy(option.QuerySortBy{OrderBy: "DESC"}))
}

// ReserveCapacityTx conditionally decrements remaining capacity. The WHERE
// guard makes the decrement the authoritative capacity check under concurrent
// purchases; zero rows updated means the amount no longer fits.
func (s *Service) ReserveCapacityTx(ctx context.Context, tx *gorm.DB, treeID string, amount money.Cents) error {
	res := tx.WithContext(ctx).Model(&Tree{}).
		Where("id = ? AND status = ? AND remaining_capacity_cents >= ?", treeID, TreeAvailable, amount.Int64()).
		Updates(map[string]interface{}{
			"remaining_capacity_cents": gorm.Expr("remaining_capacity_cents - ?", amount.Int64()),
			"updated_at":               time.Now(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return errutil.UnprocessableEntity("investment exceeds remaining tree capacity", nil,
			errutil.WithDetails(errutil.Detail{Field: "amount_cents", Message: "exceeds remaining capacity"}))
	}

	return tx.WithContext(ctx).Model(&Tree{}).
		Where("id = ? AND status = ? AND remaining_capacity_cents = 0", treeID, TreeAvailable).
		Update("status", TreeSoldOut).Error
}

// ReleaseCapacityTx returns previously reserved capacity, restoring a
// sold_out tree to available. Retired trees keep their status.
func (s *Service) ReleaseCapacityTx(ctx context.Context, tx *gorm.DB, treeID string, amount money.Cents) error {
	res := tx.WithContext(ctx).Model(&Tree{}).
		Where("id = ?", treeID).
		Updates(map[string]interface{}{
			"remaining_capacity_cents": gorm.Expr("remaining_capacity_cents + ?", amount.Int64()),
			"updated_at":               time.Now(),
		})
	if res.Error != nil {
		return res.Error
	}

	return tx.WithContext(ctx).Model(&Tree{}).
		Where("id = ? AND status = ? AND remaining_capacity_cents > 0", treeID, TreeSoldOut).
		Update("status", TreeAvailable).Error
}
