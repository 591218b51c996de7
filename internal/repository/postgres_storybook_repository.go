package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"storybook-server/internal/model"
)

const (
	storybookFields = `id::text AS id, user_id, title, original_prompt, child_age, voice_gender,
        story_style_description, selected_learning_tag_ids, rewritten_story_text, status, created_at`

	upsertStorybookQuery = `
        INSERT INTO storybooks (id, user_id, title, original_prompt, child_age, voice_gender,
            story_style_description, selected_learning_tag_ids, rewritten_story_text, status, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
        ON CONFLICT (id) DO UPDATE SET
            title = EXCLUDED.title,
            rewritten_story_text = EXCLUDED.rewritten_story_text,
            status = EXCLUDED.status
    `
	deletePagesQuery = `DELETE FROM storybook_pages WHERE storybook_id = $1`
	insertPageQuery  = `
        INSERT INTO storybook_pages (storybook_id, page_number, text, transformed_dialogue,
            image_url, image_matches_text, voiceover_url, animation_url)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
    `
	getStorybookQuery = `SELECT ` + storybookFields + ` FROM storybooks WHERE id = $1`
	getPagesQuery     = `
        SELECT page_number, text, transformed_dialogue, image_url, image_matches_text, voiceover_url, animation_url
        FROM storybook_pages WHERE storybook_id = $1 ORDER BY page_number
    `
	listByUserQuery = `SELECT ` + storybookFields + ` FROM storybooks
        WHERE user_id = $1 ORDER BY created_at DESC, id LIMIT $2 OFFSET $3`
)

type pgStorybookRepository struct {
	db     DBTX
	logger *zap.Logger
}

// NewPgStorybookRepository создает репозиторий книг поверх PostgreSQL.
func NewPgStorybookRepository(db DBTX, logger *zap.Logger) StorybookRepository {
	return &pgStorybookRepository{db: db, logger: logger.Named("StorybookRepoPg")}
}

// Save пишет книгу и страницы в одной транзакции.
func (r *pgStorybookRepository) Save(ctx context.Context, sb *model.Storybook) error {
	log := r.logger.With(zap.String("storybook_id", sb.ID), zap.String("user_id", sb.UserID))
	id, err := uuid.Parse(sb.ID)
	if err != nil {
		return fmt.Errorf("%w: storybook id %q is not a UUID", model.ErrInvalidInput, sb.ID)
	}
	tags := sb.SelectedLearningTagIDs
	if tags == nil {
		tags = []string{}
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, upsertStorybookQuery, id, sb.UserID, sb.Title, sb.OriginalPrompt, sb.ChildAge,
		string(sb.VoiceGender), sb.StoryStyleDescription, tags, sb.RewrittenStoryText, string(sb.Status), sb.CreatedAt); err != nil {
		log.Error("Failed to upsert storybook", zap.Error(err))
		return fmt.Errorf("failed to upsert storybook: %w", err)
	}
	if _, err := tx.Exec(ctx, deletePagesQuery, id); err != nil {
		return fmt.Errorf("failed to replace storybook pages: %w", err)
	}

	batch := &pgx.Batch{}
	for _, p := range sb.Pages {
		batch.Queue(insertPageQuery, id, p.PageNumber, p.Text, p.TransformedDialogue,
			p.ImageURL, p.ImageMatchesText, p.VoiceoverURL, p.AnimationURL)
	}
	if batch.Len() > 0 {
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			log.Error("Failed to insert storybook pages", zap.Error(err))
			return fmt.Errorf("failed to insert storybook pages: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit storybook: %w", err)
	}
	log.Info("Storybook saved", zap.Int("pages", len(sb.Pages)))
	return nil
}

func (r *pgStorybookRepository) GetByID(ctx context.Context, id string) (*model.Storybook, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, model.ErrNotFound
	}

	var sb model.Storybook
	if err := pgxscan.Get(ctx, r.db, &sb, getStorybookQuery, id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, model.ErrNotFound
		}
		r.logger.Error("Failed to get storybook", zap.String("storybook_id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get storybook %s: %w", id, err)
	}

	sb.Pages = []model.StorybookPage{}
	if err := pgxscan.Select(ctx, r.db, &sb.Pages, getPagesQuery, id); err != nil {
		return nil, fmt.Errorf("failed to get pages of storybook %s: %w", id, err)
	}
	return &sb, nil
}

func (r *pgStorybookRepository) ListByUser(ctx context.Context, userID string, limit, offset int) ([]*model.Storybook, error) {
	books := make([]*model.Storybook, 0)
	if err := pgxscan.Select(ctx, r.db, &books, listByUserQuery, userID, limit, offset); err != nil {
		r.logger.Error("Failed to list storybooks", zap.String("user_id", userID), zap.Error(err))
		return nil, fmt.Errorf("failed to list storybooks: %w", err)
	}
	return books, nil
}
