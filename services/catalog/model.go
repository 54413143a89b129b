package catalog

import "time"

const (
	TreeAvailable = "available"
	TreeSoldOut   = "sold_out"
	TreeRetired   = "retired"
)

// Tree is one fruit tree offered for fractional investment. All monetary
// columns are integer cents; RemainingCapacityCents is the single source of
// truth for how much of the tree is still unsold.
type Tree struct {
	ID                     string    `gorm:"column:id" json:"tree_id"`
	FarmID                 string    `gorm:"column:farm_id" json:"farm_id"`
	Name                   string    `gorm:"column:name" json:"name"`
	Species                string    `gorm:"column:species" json:"species"`
	Status                 string    `gorm:"column:status" json:"status"`
	MinInvestmentCents     int64     `gorm:"column:min_investment_cents" json:"min_investment_cents"`
	MaxInvestmentCents     int64     `gorm:"column:max_investment_cents" json:"max_investment_cents"`
	CapacityCents          int64     `gorm:"column:capacity_cents" json:"capacity_cents"`
	RemainingCapacityCents int64     `gorm:"column:remaining_capacity_cents" json:"remaining_capacity_cents"`
	CreatedAt              time.Time `gorm:"column:created_at" json:"created_at"`
	UpdatedAt              time.Time `gorm:"column:updated_at" json:"updated_at"`
}

func (Tree) TableName() string {
	return "trees"
}

func (t *Tree) Investable() bool {
	return t.Status == TreeAvailable
}
