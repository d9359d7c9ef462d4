package services

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"strings"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"dredd-service/internal/cache"
	"dredd-service/internal/config"
	"dredd-service/internal/models"
	"dredd-service/pkg/common"
)

// Gas-fee and rounding drift allowed between the quoted and the on-chain amount.
const amountTolerance = 0.05

// ChainPaymentService handles direct wallet transfers on any configured EVM
// chain (PulseChain and the generic crypto path share this code; only the
// chain registry entry differs). Creation quotes a native amount from the
// USD price; verification is client-driven off a submitted tx hash read back
// over JSON-RPC.
type ChainPaymentService struct {
	DB      *gorm.DB
	Credits *CreditService
	Prices  *PriceService
	Chains  map[string]config.ChainConfig
	Redis   *redis.Client
	Tasks   *asynq.Client

	// rpcFactory is swappable for tests.
	rpcFactory func(url string) *RPCClient
}

func NewChainPaymentService(db *gorm.DB, credits *CreditService, prices *PriceService, chains map[string]config.ChainConfig, rdb *redis.Client, tasks *asynq.Client) *ChainPaymentService {
	return &ChainPaymentService{
		DB:         db,
		Credits:    credits,
		Prices:     prices,
		Chains:     chains,
		Redis:      rdb,
		Tasks:      tasks,
		rpcFactory: NewRPCClient,
	}
}

// CreatePayment converts the USD amount to native wei and stores a pending
// transfer descriptor. There is no fallback destination: a chain without a
// configured admin wallet cannot accept payments.
func (s *ChainPaymentService) CreatePayment(ctx context.Context, userID uint, chain string, payment ValidatedPayment) (interface{}, error) {
	cfg, ok := s.Chains[chain]
	if !ok {
		return nil, fmt.Errorf("unsupported chain: %s", chain)
	}
	if cfg.AdminWallet == "" {
		return nil, fmt.Errorf("No wallet address configured for %s", chain)
	}

	price, err := s.Prices.GetUSDPrice(ctx, chain)
	if err != nil {
		return nil, err
	}

	wei, err := ConvertUSDToWei(payment.Amount, price)
	if err != nil {
		return nil, err
	}

	transactionID := common.GenerateTrxNo()
	metadata, _ := json.Marshal(map[string]interface{}{
		"sender_wallet": strings.ToLower(payment.WalletAddress),
		"token_price":   price,
	})

	trx := models.Transaction{
		TransactionID: transactionID,
		UserID:        userID,
		Amount:        payment.Amount,
		Credits:       payment.Credits,
		PaymentMethod: payment.Method,
		Chain:         chain,
		PayAddress:    cfg.AdminWallet,
		PayAmountWei:  wei.String(),
		Status:        models.StatusPending,
		Metadata:      string(metadata),
	}
	if err := s.DB.Create(&trx).Error; err != nil {
		return nil, fmt.Errorf("failed to store transaction: %w", err)
	}

	nativeAmount := payment.Amount / price

	return common.NewSuccessResponse(map[string]interface{}{
		"transaction_id": transactionID,
		"to_address":     cfg.AdminWallet,
		"amount_wei":     wei.String(),
		"amount_native":  nativeAmount,
		"symbol":         cfg.Symbol,
		"chain":          chain,
		"credits":        payment.Credits,
	}, "Payment created, awaiting transfer"), nil
}

// VerifyPayment reads the submitted hash over JSON-RPC and cross-checks
// recipient, sender and amount before settling. A single RPC read is
// trusted; there is no confirmation-count wait.
func (s *ChainPaymentService) VerifyPayment(ctx context.Context, userID uint, transactionID, txHash string) (interface{}, error) {
	txHash = strings.TrimSpace(txHash)
	if txHash == "" {
		return common.NewErrorResponse("Transaction hash is required", nil, http.StatusBadRequest), nil
	}

	var trx models.Transaction
	if err := s.DB.Where("transaction_id = ? AND user_id = ?", transactionID, userID).First(&trx).Error; err != nil {
		return common.NewErrorResponse("Transaction not found", nil, http.StatusNotFound), nil
	}

	if trx.Status == models.StatusCompleted {
		return common.NewSuccessResponse(nil, "Transaction already verified"), nil
	}
	if trx.Status != models.StatusPending {
		return common.NewErrorResponse("Transaction is no longer verifiable", nil, http.StatusConflict), nil
	}

	cfg, ok := s.Chains[trx.Chain]
	if !ok {
		return common.NewErrorResponse("Unsupported chain", nil, http.StatusBadRequest), nil
	}

	// Serialize concurrent verify attempts per user; the guarded settlement
	// is the real safety net, the lock just avoids burning duplicate RPC reads.
	if s.Redis != nil {
		lock := cache.NewUserPaymentLock(s.Redis, userID, transactionID)
		ok, err := lock.TryLock(ctx)
		if err == nil && !ok {
			return common.NewErrorResponse("Verification already in progress", nil, http.StatusConflict), nil
		}
		if err == nil {
			defer lock.Unlock(ctx)
		}
	}

	// Fast-path rejection of a hash that already settled another
	// transaction. The tx_hash unique index is the real guard: concurrent
	// verifies racing past this check collide inside SettleTransaction.
	var hashCount int64
	s.DB.Model(&models.Transaction{}).
		Where("tx_hash = ?", txHash).
		Count(&hashCount)
	if hashCount > 0 {
		LogCallback(s.DB, trx.Chain, "tx hash reuse attempt: "+txHash, nil, 0, transactionID)
		return common.NewErrorResponse("Transaction hash already used", nil, http.StatusConflict), nil
	}

	rpc := s.rpcFactory(cfg.RPCURL)
	chainTx, err := rpc.GetTransactionByHash(ctx, txHash)
	if err != nil {
		return common.NewErrorResponse("Failed to fetch transaction from chain", nil, http.StatusBadGateway), nil
	}
	if chainTx == nil {
		return common.NewErrorResponse("Transaction not found on chain", nil, http.StatusNotFound), nil
	}

	if !strings.EqualFold(chainTx.To, cfg.AdminWallet) {
		LogCallback(s.DB, trx.Chain, "recipient mismatch for "+txHash, chainTx, 0, transactionID)
		return common.NewErrorResponse("Recipient address mismatch", nil, http.StatusBadRequest), nil
	}

	if sender := s.expectedSender(&trx); sender != "" && !strings.EqualFold(chainTx.From, sender) {
		LogCallback(s.DB, trx.Chain, "sender mismatch for "+txHash, chainTx, 0, transactionID)
		return common.NewErrorResponse("Sender address mismatch", nil, http.StatusBadRequest), nil
	}

	value, err := HexToBig(chainTx.Value)
	if err != nil {
		return common.NewErrorResponse("Invalid transaction value", nil, http.StatusBadRequest), nil
	}
	expected, ok := new(big.Int).SetString(trx.PayAmountWei, 10)
	if !ok {
		return common.NewErrorResponse("Stored amount is corrupt", nil, http.StatusInternalServerError), nil
	}
	if !WithinTolerance(value, expected, amountTolerance) {
		LogCallback(s.DB, trx.Chain, "amount mismatch for "+txHash, chainTx, 0, transactionID)
		return common.NewErrorResponse("Payment amount mismatch", nil, http.StatusBadRequest), nil
	}

	settled, err := SettleTransaction(s.DB, s.Credits, transactionID, txHash)
	if err == ErrAlreadySettled {
		return common.NewSuccessResponse(nil, "Transaction already verified"), nil
	}
	if err == ErrTxHashReused {
		LogCallback(s.DB, trx.Chain, "tx hash reuse attempt: "+txHash, nil, 0, transactionID)
		return common.NewErrorResponse("Transaction hash already used", nil, http.StatusConflict), nil
	}
	if err != nil {
		return common.NewErrorResponse("Failed to settle transaction", nil, http.StatusInternalServerError), nil
	}

	enqueueConfirmationEmail(s.Tasks, settled.UserID, settled.TransactionID, settled.Amount, settled.Credits)
	LogCallback(s.DB, trx.Chain, "verified "+txHash, chainTx, 1, transactionID)

	return common.NewSuccessResponse(map[string]interface{}{
		"transaction_id": transactionID,
		"credits":        settled.Credits,
	}, "Payment verified"), nil
}

func (s *ChainPaymentService) expectedSender(trx *models.Transaction) string {
	if trx.Metadata == "" {
		return ""
	}
	var meta map[string]interface{}
	if err := json.Unmarshal([]byte(trx.Metadata), &meta); err != nil {
		return ""
	}
	sender, _ := meta["sender_wallet"].(string)
	return sender
}
