package repository_test

import (
	"context"
	"errors"

	"chatpay/internal/db"
	"chatpay/internal/repository"

	"github.com/google/uuid"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

// fakeStorage is a func-field test double for the Storage port. Unset fields
// succeed without touching the destination.
type fakeStorage struct {
	migrateTableFn func(tbl ...any) error
	insertFn       func(ctx context.Context, record any) error
	saveToTableFn  func(ctx context.Context, records any) error
	seedTableFn    func(ctx context.Context, records any) error
	getOneByFn     func(ctx context.Context, column string, value any, entity any) error
	getOneWhereFn  func(ctx context.Context, entity any, query string, args ...any) error
	getAllWhereFn  func(ctx context.Context, entity any, query string, args ...any) error
	getAllFn       func(ctx context.Context, entity any) error
	deleteWhereFn  func(ctx context.Context, model any, query string, args ...any) error
	updateWhereFn  func(ctx context.Context, model any, updates map[string]any, query string, args ...any) error
}

func (f *fakeStorage) MigrateTable(tbl ...any) error {
	if f.migrateTableFn != nil {
		return f.migrateTableFn(tbl...)
	}
	return nil
}

func (f *fakeStorage) Insert(ctx context.Context, record any) error {
	if f.insertFn != nil {
		return f.insertFn(ctx, record)
	}
	return nil
}

func (f *fakeStorage) SaveToTable(ctx context.Context, records any) error {
	if f.saveToTableFn != nil {
		return f.saveToTableFn(ctx, records)
	}
	return nil
}

func (f *fakeStorage) SeedTable(ctx context.Context, records any) error {
	if f.seedTableFn != nil {
		return f.seedTableFn(ctx, records)
	}
	return nil
}

func (f *fakeStorage) GetOneBy(ctx context.Context, column string, value any, entity any) error {
	if f.getOneByFn != nil {
		return f.getOneByFn(ctx, column, value, entity)
	}
	return nil
}

func (f *fakeStorage) GetOneWhere(ctx context.Context, entity any, query string, args ...any) error {
	if f.getOneWhereFn != nil {
		return f.getOneWhereFn(ctx, entity, query, args...)
	}
	return nil
}

func (f *fakeStorage) GetAllWhere(ctx context.Context, entity any, query string, args ...any) error {
	if f.getAllWhereFn != nil {
		return f.getAllWhereFn(ctx, entity, query, args...)
	}
	return nil
}

func (f *fakeStorage) GetAll(ctx context.Context, entity any) error {
	if f.getAllFn != nil {
		return f.getAllFn(ctx, entity)
	}
	return nil
}

func (f *fakeStorage) DeleteWhere(ctx context.Context, model any, query string, args ...any) error {
	if f.deleteWhereFn != nil {
		return f.deleteWhereFn(ctx, model, query, args...)
	}
	return nil
}

func (f *fakeStorage) UpdateWhere(ctx context.Context, model any, updates map[string]any, query string, args ...any) error {
	if f.updateWhereFn != nil {
		return f.updateWhereFn(ctx, model, updates, query, args...)
	}
	return nil
}

var _ = Describe("WalletRepository", func() {
	var (
		repo    *repository.WalletRepository
		storage *fakeStorage
		ctx     context.Context
		fakeErr error
	)

	BeforeEach(func() {
		storage = &fakeStorage{}
		repo = repository.NewWalletRepository(storage)
		ctx = context.Background()
		fakeErr = errors.New("fake error")
	})

	Describe("MigrateAndSeed", func() {
		var err error

		JustBeforeEach(func() {
			err = repo.MigrateAndSeed(ctx)
		})

		When("migration and seeding succeed", func() {
			var (
				migrated []any
				seeded   []any
			)

			BeforeEach(func() {
				migrated = nil
				seeded = nil
				storage.migrateTableFn = func(tbl ...any) error {
					migrated = tbl
					return nil
				}
				storage.seedTableFn = func(ctx context.Context, records any) error {
					seeded = append(seeded, records)
					return nil
				}
			})

			It("should migrate all tables and seed accounts, networks and tokens", func() {
				Expect(err).NotTo(HaveOccurred())

				Expect(migrated).To(HaveLen(7))
				Expect(migrated[0]).To(BeAssignableToTypeOf(&repository.User{}))
				Expect(migrated[1]).To(BeAssignableToTypeOf(&repository.WalletBinding{}))
				Expect(migrated[2]).To(BeAssignableToTypeOf(&repository.OperationLock{}))
				Expect(migrated[3]).To(BeAssignableToTypeOf(&repository.TransactionRecord{}))

				Expect(seeded).To(HaveLen(3))
				Expect(seeded[0]).To(BeAssignableToTypeOf(&[]repository.ServiceAccount{}))
				Expect(seeded[1]).To(BeAssignableToTypeOf(&[]repository.Network{}))
				Expect(seeded[2]).To(BeAssignableToTypeOf(&[]repository.Token{}))
			})
		})

		When("migration fails", func() {
			BeforeEach(func() {
				storage.migrateTableFn = func(tbl ...any) error {
					return errors.New("migration error")
				}
			})

			It("should return an error", func() {
				Expect(err).To(MatchError("migrate table(s): migration error"))
			})
		})

		When("seeding fails", func() {
			BeforeEach(func() {
				storage.seedTableFn = func(ctx context.Context, records any) error {
					return errors.New("seed error")
				}
			})

			It("should return an error", func() {
				Expect(err).To(MatchError("seed service accounts: seed error"))
			})
		})
	})

	Describe("GetUserByPhone", func() {
		var (
			user repository.User
			err  error
		)

		JustBeforeEach(func() {
			user, err = repo.GetUserByPhone(ctx, "15551234567")
		})

		When("the user exists", func() {
			BeforeEach(func() {
				storage.getOneByFn = func(ctx context.Context, column string, value any, entity any) error {
					Expect(column).To(Equal("phone_number"))
					Expect(value).To(Equal("15551234567"))
					*(entity.(*repository.User)) = repository.User{
						ID:          uuid.NewString(),
						PhoneNumber: "15551234567",
					}
					return nil
				}
			})

			It("should return the user", func() {
				Expect(err).NotTo(HaveOccurred())
				Expect(user.PhoneNumber).To(Equal("15551234567"))
			})
		})

		When("the user does not exist", func() {
			BeforeEach(func() {
				storage.getOneByFn = func(ctx context.Context, column string, value any, entity any) error {
					return db.ErrNotFound
				}
			})

			It("should return user not found error", func() {
				Expect(err).To(MatchError(repository.ErrUserNotFound))
			})
		})

		When("a database error occurs", func() {
			BeforeEach(func() {
				storage.getOneByFn = func(ctx context.Context, column string, value any, entity any) error {
					return fakeErr
				}
			})

			It("should return the error", func() {
				Expect(err).To(MatchError(fakeErr))
			})
		})
	})

	Describe("CreateUser", func() {
		When("the phone number is already taken", func() {
			BeforeEach(func() {
				storage.insertFn = func(ctx context.Context, record any) error {
					return db.ErrDuplicate
				}
			})

			It("should pass the duplicate error through", func() {
				err := repo.CreateUser(ctx, repository.User{PhoneNumber: "15551234567"})
				Expect(err).To(MatchError(db.ErrDuplicate))
			})
		})

		When("insert succeeds", func() {
			It("should return no error", func() {
				err := repo.CreateUser(ctx, repository.User{PhoneNumber: "15551234567"})
				Expect(err).NotTo(HaveOccurred())
			})
		})
	})

	Describe("GetUserByWallet", func() {
		var (
			user repository.User
			err  error
		)

		JustBeforeEach(func() {
			user, err = repo.GetUserByWallet(ctx, 137, "0xabc")
		})

		When("the binding and user exist", func() {
			var userID string

			BeforeEach(func() {
				userID = uuid.NewString()
				storage.getOneWhereFn = func(ctx context.Context, entity any, query string, args ...any) error {
					Expect(query).To(Equal("chain_id = ? AND proxy_address = ?"))
					Expect(args).To(Equal([]any{int64(137), "0xabc"}))
					*(entity.(*repository.WalletBinding)) = repository.WalletBinding{
						UserID:  userID,
						ChainID: 137,
					}
					return nil
				}
				storage.getOneByFn = func(ctx context.Context, column string, value any, entity any) error {
					Expect(column).To(Equal("id"))
					Expect(value).To(Equal(userID))
					*(entity.(*repository.User)) = repository.User{ID: userID}
					return nil
				}
			})

			It("should return the bound user", func() {
				Expect(err).NotTo(HaveOccurred())
				Expect(user.ID).To(Equal(userID))
			})
		})

		When("no binding exists", func() {
			BeforeEach(func() {
				storage.getOneWhereFn = func(ctx context.Context, entity any, query string, args ...any) error {
					return db.ErrNotFound
				}
			})

			It("should return user not found error", func() {
				Expect(err).To(MatchError(repository.ErrUserNotFound))
			})
		})
	})

	Describe("SaveWalletBinding", func() {
		When("the binding already exists", func() {
			BeforeEach(func() {
				storage.insertFn = func(ctx context.Context, record any) error {
					return db.ErrDuplicate
				}
			})

			It("should return binding exists error", func() {
				err := repo.SaveWalletBinding(ctx, repository.WalletBinding{})
				Expect(err).To(MatchError(repository.ErrBindingExists))
			})
		})
	})

	Describe("CreateOperationLock", func() {
		var err error

		JustBeforeEach(func() {
			err = repo.CreateOperationLock(ctx, "15551234567", "transfer")
		})

		When("no lock is held", func() {
			var inserted any

			BeforeEach(func() {
				storage.insertFn = func(ctx context.Context, record any) error {
					inserted = record
					return nil
				}
			})

			It("should open the lock", func() {
				Expect(err).NotTo(HaveOccurred())

				lock := inserted.(*repository.OperationLock)
				Expect(lock.UserKey).To(Equal("15551234567"))
				Expect(lock.Kind).To(Equal("transfer"))
				Expect(lock.OpenedAt).NotTo(BeZero())
			})
		})

		When("the lock row already exists", func() {
			BeforeEach(func() {
				storage.insertFn = func(ctx context.Context, record any) error {
					return db.ErrDuplicate
				}
			})

			It("should return lock held error", func() {
				Expect(err).To(MatchError(repository.ErrLockHeld))
			})
		})

		When("a database error occurs", func() {
			BeforeEach(func() {
				storage.insertFn = func(ctx context.Context, record any) error {
					return fakeErr
				}
			})

			It("should return the error", func() {
				Expect(err).To(MatchError(fakeErr))
			})
		})
	})

	Describe("DeleteOperationLock", func() {
		It("should delete by user key", func() {
			var gotQuery string
			var gotArgs []any
			storage.deleteWhereFn = func(ctx context.Context, model any, query string, args ...any) error {
				gotQuery = query
				gotArgs = args
				return nil
			}

			err := repo.DeleteOperationLock(ctx, "15551234567")
			Expect(err).NotTo(HaveOccurred())
			Expect(gotQuery).To(Equal("user_key = ?"))
			Expect(gotArgs).To(Equal([]any{"15551234567"}))
		})
	})

	Describe("SaveTransactionRecords", func() {
		When("there are no records", func() {
			It("should not touch storage", func() {
				storage.saveToTableFn = func(ctx context.Context, records any) error {
					Fail("should not be called")
					return nil
				}

				err := repo.SaveTransactionRecords(ctx, nil)
				Expect(err).NotTo(HaveOccurred())
			})
		})

		When("save fails", func() {
			BeforeEach(func() {
				storage.saveToTableFn = func(ctx context.Context, records any) error {
					return fakeErr
				}
			})

			It("should return the error", func() {
				err := repo.SaveTransactionRecords(ctx, []repository.TransactionRecord{{TxHash: "0x1"}})
				Expect(err).To(MatchError(fakeErr))
			})
		})
	})

	Describe("GetTransactionsByWallet", func() {
		It("should match the wallet on either side", func() {
			storage.getAllWhereFn = func(ctx context.Context, entity any, query string, args ...any) error {
				Expect(query).To(Equal("wallet_from = ? OR wallet_to = ?"))
				Expect(args).To(Equal([]any{"0xabc", "0xabc"}))
				*(entity.(*[]repository.TransactionRecord)) = []repository.TransactionRecord{
					{TxHash: "0x1"},
					{TxHash: "0x2"},
				}
				return nil
			}

			records, err := repo.GetTransactionsByWallet(ctx, "0xabc")
			Expect(err).NotTo(HaveOccurred())
			Expect(records).To(HaveLen(2))
		})
	})

	Describe("UpdateTransactionStatus", func() {
		It("should update the status of the matching record", func() {
			var gotUpdates map[string]any
			var gotQuery string
			var gotArgs []any
			storage.updateWhereFn = func(ctx context.Context, model any, updates map[string]any, query string, args ...any) error {
				gotUpdates = updates
				gotQuery = query
				gotArgs = args
				return nil
			}

			err := repo.UpdateTransactionStatus(ctx, "0x1", "completed")
			Expect(err).NotTo(HaveOccurred())
			Expect(gotUpdates).To(Equal(map[string]any{"status": "completed"}))
			Expect(gotQuery).To(Equal("tx_hash = ?"))
			Expect(gotArgs).To(Equal([]any{"0x1"}))
		})
	})

	Describe("GetServiceAccount", func() {
		When("the account exists", func() {
			BeforeEach(func() {
				storage.getOneByFn = func(ctx context.Context, column string, value any, entity any) error {
					Expect(column).To(Equal("username"))
					*(entity.(*repository.ServiceAccount)) = repository.ServiceAccount{
						Username: "whatsapp-bot",
					}
					return nil
				}
			})

			It("should return the account", func() {
				account, err := repo.GetServiceAccount(ctx, "whatsapp-bot")
				Expect(err).NotTo(HaveOccurred())
				Expect(account.Username).To(Equal("whatsapp-bot"))
			})
		})

		When("the account does not exist", func() {
			BeforeEach(func() {
				storage.getOneByFn = func(ctx context.Context, column string, value any, entity any) error {
					return db.ErrNotFound
				}
			})

			It("should return account not found error", func() {
				_, err := repo.GetServiceAccount(ctx, "ghost")
				Expect(err).To(MatchError(repository.ErrAccountNotFound))
			})
		})
	})
})
