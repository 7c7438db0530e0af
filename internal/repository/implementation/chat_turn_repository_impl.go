package implementation

import (
	"context"

	"chat-lens-be/internal/entity"
	"chat-lens-be/internal/mapper"
	"chat-lens-be/internal/model"
	"chat-lens-be/internal/repository/contract"
	"chat-lens-be/internal/repository/scope"
	"chat-lens-be/internal/repository/specification"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ChatTurnRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.TurnMapper
}

func NewChatTurnRepository(db *gorm.DB) contract.ChatTurnRepository {
	return &ChatTurnRepositoryImpl{
		db:     db,
		mapper: mapper.NewTurnMapper(),
	}
}

func (r *ChatTurnRepositoryImpl) applySpecifications(db *gorm.DB, specs ...specification.Specification) *gorm.DB {
	for _, spec := range specs {
		db = spec.Apply(db)
	}
	return db
}

func (r *ChatTurnRepositoryImpl) Create(ctx context.Context, conversationID uuid.UUID, turns ...entity.Turn) error {
	if len(turns) == 0 {
		return nil
	}

	var next int64
	if err := r.db.WithContext(ctx).
		Model(&model.ChatTurn{}).
		Where("conversation_id = ?", conversationID).
		Count(&next).Error; err != nil {
		return err
	}

	models := make([]*model.ChatTurn, 0, len(turns))
	for i := range turns {
		m, err := r.mapper.TurnToModel(conversationID, int(next)+i, &turns[i])
		if err != nil {
			return err
		}
		models = append(models, m)
	}
	return r.db.WithContext(ctx).Create(&models).Error
}

func (r *ChatTurnRepositoryImpl) FindAll(ctx context.Context, specs ...specification.Specification) ([]entity.Turn, error) {
	var models []*model.ChatTurn
	query := r.applySpecifications(r.db.WithContext(ctx).Scopes(scope.OrderByTranscript), specs...)
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}

	turns := make([]entity.Turn, 0, len(models))
	for _, m := range models {
		t, err := r.mapper.TurnToEntity(m)
		if err != nil {
			return nil, err
		}
		turns = append(turns, *t)
	}
	return turns, nil
}

func (r *ChatTurnRepositoryImpl) Count(ctx context.Context, specs ...specification.Specification) (int64, error) {
	var count int64
	query := r.applySpecifications(r.db.WithContext(ctx).Model(&model.ChatTurn{}), specs...)
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}
