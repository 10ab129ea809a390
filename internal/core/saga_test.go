package core_test

import (
	"context"
	"errors"
	"math/big"
	"time"

	"chatpay/internal/core"
	"chatpay/internal/lock"
	"chatpay/internal/notify"
	"chatpay/internal/registry"
	"chatpay/internal/repository"
	"chatpay/internal/wallet"
	"chatpay/pkg/jwt"

	"github.com/ethereum/go-ethereum/common"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"
)

var (
	factoryAddr = common.HexToAddress("0x2f83eE3eA4fEB545E49bd52E50BD68F33b8cD44b")
	usdcAddr    = common.HexToAddress("0x3c499c542cEF5E3811e1192ce70d8cC03d5c3359")
	wethAddr    = common.HexToAddress("0x7ceB23fD6bC0adD59E62ac25578270cFf1b9f619")
)

const (
	senderPhone    = "15551234567"
	recipientPhone = "15559876543"
)

func polygonRegistry() *fakeRegistryStore {
	return &fakeRegistryStore{
		networks: []repository.Network{
			{
				ChainID:        137,
				Name:           "polygon",
				NativeSymbol:   "POL",
				FactoryAddress: factoryAddr.Hex(),
			},
		},
		tokens: []repository.Token{
			{ChainID: 137, Symbol: "USDC", Address: usdcAddr.Hex(), Decimals: 6},
			{ChainID: 137, Symbol: "WETH", Address: wethAddr.Hex(), Decimals: 18},
		},
	}
}

var _ = Describe("Orchestrator", func() {
	var (
		orch       *core.Orchestrator
		repo       *fakeRepo
		lockStore  *fakeLockStore
		chainSvc   *fakeChainService
		provider   *fakeChainProvider
		notifier   *fakeNotifier
		reg        *registry.Service
		wallets    *wallet.Provisioner
		ctx        context.Context
		senderAddr common.Address
	)

	BeforeEach(func() {
		ctx = context.Background()
		logger := zap.NewNop().Sugar()

		repo = newFakeRepo()
		lockStore = newFakeLockStore()
		chainSvc = newFakeChainService(137)
		provider = &fakeChainProvider{service: chainSvc}
		notifier = &fakeNotifier{}
		wallets = wallet.NewProvisioner()

		reg = registry.NewService(logger, polygonRegistry())
		Expect(reg.Refresh(ctx)).To(Succeed())

		orch = core.NewOrchestrator(
			logger,
			repo,
			lock.NewManager(logger, lockStore),
			provider,
			wallets,
			notifier,
			reg,
			&fakePrices{prices: map[string]float64{usdcAddr.Hex(): 1.0}},
			jwt.NewJWTService([]byte("test-secret")))

		senderAddr = wallets.DeriveProxyAddress(senderPhone, 137, factoryAddr)
	})

	transferMsg := func() core.TransferMessage {
		return core.TransferMessage{
			UserKey:     "+1 (555) 123-4567",
			To:          recipientPhone,
			TokenSymbol: "USDC",
			Amount:      "1.5",
			ChainID:     137,
		}
	}

	Describe("SubmitTransfer", func() {
		It("should reject an unknown network", func() {
			msg := transferMsg()
			msg.ChainID = 999

			_, err := orch.SubmitTransfer(ctx, msg)
			Expect(err).To(MatchError(core.ErrUnknownNetwork))
		})

		It("should reject an unknown token", func() {
			msg := transferMsg()
			msg.TokenSymbol = "DOGE"

			_, err := orch.SubmitTransfer(ctx, msg)
			Expect(err).To(MatchError(core.ErrUnknownToken))
		})

		It("should reject sending to yourself regardless of formatting", func() {
			msg := transferMsg()
			msg.To = "+1 555-123-4567"

			_, err := orch.SubmitTransfer(ctx, msg)
			Expect(err).To(MatchError(core.ErrSelfTransfer))
		})

		It("should reject sending to your own proxy address", func() {
			msg := transferMsg()
			msg.To = senderAddr.Hex()

			_, err := orch.SubmitTransfer(ctx, msg)
			Expect(err).To(MatchError(core.ErrSelfTransfer))
			Expect(chainSvc.transferCount()).To(Equal(0))
		})

		When("another operation is already in flight", func() {
			BeforeEach(func() {
				Expect(lockStore.CreateOperationLock(ctx, senderPhone, "swap")).To(Succeed())
			})

			It("should return a success-shaped in-progress ack and run nothing", func() {
				ack, err := orch.SubmitTransfer(ctx, transferMsg())
				Expect(err).NotTo(HaveOccurred())
				Expect(ack.InProgress).To(BeTrue())
				Expect(ack.Message).To(ContainSubstring("already have an operation in progress"))

				Consistently(chainSvc.transferCount, "200ms").Should(Equal(0))
			})
		})

		When("the sender has enough balance", func() {
			BeforeEach(func() {
				chainSvc.setBalance(usdcAddr, senderAddr, big.NewInt(5_000_000))
			})

			It("should execute, reconcile, record and notify both parties", func() {
				ack, err := orch.SubmitTransfer(ctx, transferMsg())
				Expect(err).NotTo(HaveOccurred())
				Expect(ack.InProgress).To(BeFalse())
				Expect(ack.Message).To(ContainSubstring("Transfer in progress"))

				Eventually(notifier.kinds, 2*time.Second).Should(ContainElements(
					notify.KindTransferSent,
					notify.KindTransferReceived))

				recipientAddr := wallets.DeriveProxyAddress(recipientPhone, 137, factoryAddr)

				sent := notifier.byKind(notify.KindTransferSent)
				Expect(sent).To(HaveLen(1))
				Expect(sent[0].UserKey).To(Equal(senderPhone))
				Expect(sent[0].Data["amount"]).To(Equal("1.5"))
				Expect(sent[0].Data["token"]).To(Equal("USDC"))
				Expect(sent[0].Data["to"]).To(Equal(recipientAddr.Hex()))

				received := notifier.byKind(notify.KindTransferReceived)
				Expect(received).To(HaveLen(1))
				Expect(received[0].UserKey).To(Equal(recipientPhone))

				records := repo.savedRecords()
				Expect(records).To(HaveLen(1))
				Expect(records[0].WalletFrom).To(Equal(senderAddr.Hex()))
				Expect(records[0].WalletTo).To(Equal(recipientAddr.Hex()))
				Expect(records[0].Amount).To(Equal("1.5"))
				Expect(records[0].TokenSymbol).To(Equal("USDC"))
				Expect(records[0].Type).To(Equal("transfer"))
				Expect(records[0].Status).To(Equal("completed"))
				Expect(records[0].ChainID).To(Equal(int64(137)))

				Eventually(func() bool { return lockStore.held(senderPhone) }).Should(BeFalse())
			})

			It("should provision both users lazily", func() {
				_, err := orch.SubmitTransfer(ctx, transferMsg())
				Expect(err).NotTo(HaveOccurred())

				Eventually(notifier.kinds, 2*time.Second).Should(ContainElement(notify.KindTransferSent))

				_, err = repo.GetUserByPhone(ctx, senderPhone)
				Expect(err).NotTo(HaveOccurred())
				_, err = repo.GetUserByPhone(ctx, recipientPhone)
				Expect(err).NotTo(HaveOccurred())
			})

			It("should still notify success when record persistence fails", func() {
				repo.saveRecordsErr = errors.New("database gone")

				_, err := orch.SubmitTransfer(ctx, transferMsg())
				Expect(err).NotTo(HaveOccurred())

				Eventually(notifier.kinds, 2*time.Second).Should(ContainElement(notify.KindTransferSent))
				Expect(repo.savedRecords()).To(BeEmpty())
			})
		})

		When("the sender balance is too low", func() {
			BeforeEach(func() {
				chainSvc.setBalance(usdcAddr, senderAddr, big.NewInt(1_000_000))
			})

			It("should notify and never execute", func() {
				_, err := orch.SubmitTransfer(ctx, transferMsg())
				Expect(err).NotTo(HaveOccurred())

				Eventually(notifier.kinds, 2*time.Second).Should(ContainElement(notify.KindInsufficientBalance))
				Expect(chainSvc.transferCount()).To(Equal(0))
				Eventually(func() bool { return lockStore.held(senderPhone) }).Should(BeFalse())
			})
		})

		When("the chain-side actors are underfunded", func() {
			BeforeEach(func() {
				chainSvc.setBalance(usdcAddr, senderAddr, big.NewInt(5_000_000))
				chainSvc.conditionsErr = errors.New("relayer signer account underfunded")
			})

			It("should notify the chain as unavailable and never execute", func() {
				_, err := orch.SubmitTransfer(ctx, transferMsg())
				Expect(err).NotTo(HaveOccurred())

				Eventually(notifier.kinds, 2*time.Second).Should(ContainElement(notify.KindChainUnavailable))
				Expect(chainSvc.transferCount()).To(Equal(0))
			})
		})

		When("the destination is an unattributable wallet address", func() {
			BeforeEach(func() {
				chainSvc.setBalance(usdcAddr, senderAddr, big.NewInt(5_000_000))
			})

			It("should refuse to move funds", func() {
				msg := transferMsg()
				msg.To = "0x1234567890123456789012345678901234567890"

				_, err := orch.SubmitTransfer(ctx, msg)
				Expect(err).NotTo(HaveOccurred())

				Eventually(notifier.kinds, 2*time.Second).Should(ContainElement(notify.KindChainUnavailable))
				Expect(chainSvc.transferCount()).To(Equal(0))
				Eventually(func() bool { return lockStore.held(senderPhone) }).Should(BeFalse())
			})
		})

		When("the destination address belongs to a registered user", func() {
			var recipientAddr common.Address

			BeforeEach(func() {
				chainSvc.setBalance(usdcAddr, senderAddr, big.NewInt(5_000_000))

				recipientAddr = wallets.DeriveProxyAddress(recipientPhone, 137, factoryAddr)
				Expect(repo.CreateUser(ctx, repository.User{
					ID:          "recipient-id",
					PhoneNumber: recipientPhone,
				})).To(Succeed())
				Expect(repo.SaveWalletBinding(ctx, repository.WalletBinding{
					UserID:       "recipient-id",
					ChainID:      137,
					ProxyAddress: recipientAddr.Hex(),
				})).To(Succeed())
			})

			It("should transfer and notify the owner", func() {
				msg := transferMsg()
				msg.To = recipientAddr.Hex()

				_, err := orch.SubmitTransfer(ctx, msg)
				Expect(err).NotTo(HaveOccurred())

				Eventually(notifier.kinds, 2*time.Second).Should(ContainElement(notify.KindTransferReceived))

				received := notifier.byKind(notify.KindTransferReceived)
				Expect(received[0].UserKey).To(Equal(recipientPhone))
			})
		})

		When("execution fails", func() {
			BeforeEach(func() {
				chainSvc.setBalance(usdcAddr, senderAddr, big.NewInt(5_000_000))
				chainSvc.executeErr = errors.New("transaction reverted on chain")
			})

			It("should notify an internal error and release the lock", func() {
				_, err := orch.SubmitTransfer(ctx, transferMsg())
				Expect(err).NotTo(HaveOccurred())

				Eventually(notifier.kinds, 2*time.Second).Should(ContainElement(notify.KindInternalError))
				Expect(repo.savedRecords()).To(BeEmpty())
				Eventually(func() bool { return lockStore.held(senderPhone) }).Should(BeFalse())
			})
		})
	})

	Describe("SubmitSwap", func() {
		swapMsg := func() core.SwapMessage {
			return core.SwapMessage{
				UserKey:      senderPhone,
				InputSymbol:  "WETH",
				OutputSymbol: "USDC",
				Amount:       "0.25",
				ChainID:      137,
			}
		}

		It("should reject an unknown output token", func() {
			msg := swapMsg()
			msg.OutputSymbol = "DOGE"

			_, err := orch.SubmitSwap(ctx, msg)
			Expect(err).To(MatchError(core.ErrUnknownToken))
		})

		It("should share the exclusion domain with transfers", func() {
			Expect(lockStore.CreateOperationLock(ctx, senderPhone, "transfer")).To(Succeed())

			ack, err := orch.SubmitSwap(ctx, swapMsg())
			Expect(err).NotTo(HaveOccurred())
			Expect(ack.InProgress).To(BeTrue())

			Consistently(chainSvc.swapCount, "200ms").Should(Equal(0))
		})

		When("the proxy holds enough of the input token", func() {
			BeforeEach(func() {
				oneWeth := new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)
				chainSvc.setBalance(wethAddr, senderAddr, oneWeth)
				chainSvc.swapAmountOut = big.NewInt(450_000_000) // 450 USDC
			})

			It("should record both legs from the reconciled diffs", func() {
				ack, err := orch.SubmitSwap(ctx, swapMsg())
				Expect(err).NotTo(HaveOccurred())
				Expect(ack.Message).To(ContainSubstring("Swap in progress"))

				Eventually(notifier.kinds, 2*time.Second).Should(ContainElement(notify.KindSwapCompleted))

				completed := notifier.byKind(notify.KindSwapCompleted)
				Expect(completed).To(HaveLen(1))
				Expect(completed[0].UserKey).To(Equal(senderPhone))
				Expect(completed[0].Data["amount_in"]).To(Equal("0.25"))
				Expect(completed[0].Data["amount_out"]).To(Equal("450"))
				Expect(completed[0].Data["input_token"]).To(Equal("WETH"))
				Expect(completed[0].Data["output_token"]).To(Equal("USDC"))

				records := repo.savedRecords()
				Expect(records).To(HaveLen(2))
				Expect(records[0].TokenSymbol).To(Equal("WETH"))
				Expect(records[0].Amount).To(Equal("0.25"))
				Expect(records[0].WalletFrom).To(Equal(senderAddr.Hex()))
				Expect(records[1].TokenSymbol).To(Equal("USDC"))
				Expect(records[1].Amount).To(Equal("450"))
				Expect(records[1].WalletTo).To(Equal(senderAddr.Hex()))
				Expect(records[0].Type).To(Equal("swap"))
				Expect(records[1].Type).To(Equal("swap"))

				Eventually(func() bool { return lockStore.held(senderPhone) }).Should(BeFalse())
			})
		})

		When("the input token balance is too low", func() {
			It("should notify and never execute", func() {
				_, err := orch.SubmitSwap(ctx, swapMsg())
				Expect(err).NotTo(HaveOccurred())

				Eventually(notifier.kinds, 2*time.Second).Should(ContainElement(notify.KindInsufficientBalance))
				Expect(chainSvc.swapCount()).To(Equal(0))
			})
		})
	})

	Describe("GetWalletTransactions", func() {
		It("should reject a malformed address", func() {
			_, err := orch.GetWalletTransactions(ctx, "not-an-address")
			Expect(err).To(MatchError(core.ErrInvalidAddress))
		})

		It("should query with the checksummed address", func() {
			_, err := orch.GetWalletTransactions(ctx, "0x7ceb23fd6bc0add59e62ac25578270cff1b9f619")
			Expect(err).NotTo(HaveOccurred())
			Expect(repo.queriedWallets).To(ConsistOf(wethAddr.Hex()))
		})
	})
})
