package lock

import "context"

type Store interface {
	CreateOperationLock(ctx context.Context, userKey, kind string) error
	DeleteOperationLock(ctx context.Context, userKey string) error
}
