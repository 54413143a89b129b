package audit

import (
	"context"
	"encoding/json"

	"grovevest-settlement/pkg/repository"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Recorder struct {
	node    *snowflake.Node
	entries repository.Repository[Entry]
}

type RecorderParams struct {
	fx.In
	DB   *gorm.DB
	Node *snowflake.Node
}

func NewRecorder(p RecorderParams) *Recorder {
	return &Recorder{
		node:    p.Node,
		entries: repository.ProvideStore[Entry](p.DB),
	}
}

// RecordTx appends an audit entry inside the caller's open transaction so the
// entry commits or rolls back together with the change it describes.
func (r *Recorder) RecordTx(ctx context.Context, tx *gorm.DB, userID, eventType string, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		zap.L().Error("failed to marshal audit payload", zap.String("event_type", eventType), zap.Error(err))
		return err
	}

	return r.entries.WithTrx(tx).Create(ctx, &Entry{
		ID:        r.node.Generate().String(),
		UserID:    userID,
		EventType: eventType,
		Payload:   raw,
	})
}
