package repository

import (
	"context"
	"errors"
	"fmt"

	"cloud.google.com/go/firestore"
	firebase "firebase.google.com/go/v4"
	"go.uber.org/zap"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"storybook-server/internal/config"
	"storybook-server/internal/model"
)

// FirestoreStorybookRepository хранит книгу одним документом коллекции,
// страницы лежат массивом внутри документа.
type FirestoreStorybookRepository struct {
	client     *firestore.Client
	collection string
	logger     *zap.Logger
}

func NewFirestoreStorybookRepository(ctx context.Context, cfg config.FirestoreConfig, logger *zap.Logger) (*FirestoreStorybookRepository, error) {
	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: cfg.ProjectID}, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize firebase app: %w", err)
	}
	client, err := app.Firestore(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create firestore client: %w", err)
	}
	logger.Info("Firestore repository initialized",
		zap.String("project_id", cfg.ProjectID),
		zap.String("collection", cfg.Collection))
	return &FirestoreStorybookRepository{
		client:     client,
		collection: cfg.Collection,
		logger:     logger.Named("StorybookRepoFirestore"),
	}, nil
}

func (r *FirestoreStorybookRepository) Save(ctx context.Context, sb *model.Storybook) error {
	if sb.ID == "" {
		return fmt.Errorf("%w: storybook id is empty", model.ErrInvalidInput)
	}
	if _, err := r.client.Collection(r.collection).Doc(sb.ID).Set(ctx, sb); err != nil {
		r.logger.Error("Failed to save storybook", zap.String("storybook_id", sb.ID), zap.Error(err))
		return fmt.Errorf("failed to save storybook: %w", err)
	}
	r.logger.Info("Storybook saved", zap.String("storybook_id", sb.ID), zap.Int("pages", len(sb.Pages)))
	return nil
}

func (r *FirestoreStorybookRepository) GetByID(ctx context.Context, id string) (*model.Storybook, error) {
	if id == "" {
		return nil, model.ErrNotFound
	}
	snap, err := r.client.Collection(r.collection).Doc(id).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, model.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get storybook %s: %w", id, err)
	}
	return decodeStorybook(snap)
}

func (r *FirestoreStorybookRepository) ListByUser(ctx context.Context, userID string, limit, offset int) ([]*model.Storybook, error) {
	iter := r.client.Collection(r.collection).
		Where("userId", "==", userID).
		OrderBy("createdAt", firestore.Desc).
		Offset(offset).
		Limit(limit).
		Select("userId", "title", "originalPrompt", "childAge", "voiceGender",
			"storyStyleDescription", "selectedLearningTagIds", "status", "createdAt").
		Documents(ctx)
	defer iter.Stop()

	books := make([]*model.Storybook, 0)
	for {
		snap, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			r.logger.Error("Failed to list storybooks", zap.String("user_id", userID), zap.Error(err))
			return nil, fmt.Errorf("failed to list storybooks: %w", err)
		}
		sb, err := decodeStorybook(snap)
		if err != nil {
			return nil, err
		}
		books = append(books, sb)
	}
	return books, nil
}

func (r *FirestoreStorybookRepository) Close() error {
	return r.client.Close()
}

func decodeStorybook(snap *firestore.DocumentSnapshot) (*model.Storybook, error) {
	var sb model.Storybook
	if err := snap.DataTo(&sb); err != nil {
		return nil, fmt.Errorf("failed to decode storybook %s: %w", snap.Ref.ID, err)
	}
	sb.ID = snap.Ref.ID
	return &sb, nil
}
