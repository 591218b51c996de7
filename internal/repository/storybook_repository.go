package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"

	"storybook-server/internal/config"
	"storybook-server/internal/database"
	"storybook-server/internal/model"
)

// StorybookRepository хранит готовые книги.
type StorybookRepository interface {
	// Save сохраняет книгу целиком. Повторное сохранение с тем же ID
	// заменяет книгу и ее страницы.
	Save(ctx context.Context, sb *model.Storybook) error
	// GetByID возвращает книгу со страницами или model.ErrNotFound.
	GetByID(ctx context.Context, id string) (*model.Storybook, error)
	// ListByUser возвращает книги пользователя без страниц, новые первыми.
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]*model.Storybook, error)
}

// DBTX - общий интерфейс пула и транзакции pgx.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Open создает репозиторий по настройке REPOSITORY_DRIVER. Возвращаемая
// функция освобождает соединения драйвера.
func Open(ctx context.Context, cfg *config.Config, logger *zap.Logger) (StorybookRepository, func(), error) {
	switch cfg.Database.Driver {
	case config.RepositoryDriverFirestore:
		repo, err := NewFirestoreStorybookRepository(ctx, cfg.Firestore, logger)
		if err != nil {
			return nil, nil, err
		}
		return repo, func() {
			if err := repo.Close(); err != nil {
				logger.Warn("Failed to close Firestore client", zap.Error(err))
			}
		}, nil
	case config.RepositoryDriverPostgres, "":
		pool, err := database.Connect(ctx, cfg.Database, logger)
		if err != nil {
			return nil, nil, err
		}
		if err := database.ApplyMigrations(pool, logger); err != nil {
			pool.Close()
			return nil, nil, err
		}
		return NewPgStorybookRepository(pool, logger), pool.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown repository driver %q", cfg.Database.Driver)
	}
}
