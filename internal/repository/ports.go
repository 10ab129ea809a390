package repository

import "context"

type Storage interface {
	MigrateTable(tbl ...any) error
	Insert(ctx context.Context, record any) error
	SaveToTable(ctx context.Context, records any) error
	SeedTable(ctx context.Context, records any) error
	GetOneBy(ctx context.Context, column string, value any, entity any) error
	GetOneWhere(ctx context.Context, entity any, query string, args ...any) error
	GetAllWhere(ctx context.Context, entity any, query string, args ...any) error
	GetAll(ctx context.Context, entity any) error
	DeleteWhere(ctx context.Context, model any, query string, args ...any) error
	UpdateWhere(ctx context.Context, model any, updates map[string]any, query string, args ...any) error
}
