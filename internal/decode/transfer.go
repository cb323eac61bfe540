package decode

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/holiman/uint256"

	"vaultPoints/internal/ledger"
	"vaultPoints/internal/model"
)

// ErrTokenIDRange reports an NFT id that does not fit in uint64.
var ErrTokenIDRange = errors.New("nft token id out of range")

// TransferDecoder turns vault token and NFT Transfer logs into events.
type TransferDecoder struct {
	token  string
	nft    string
	topic0 string
	erc20  abi.Event
	erc721 abi.Event
}

// NewTransferDecoder builds a decoder for the given token and NFT contracts.
// nft may be empty when only the fungible ledger is tracked.
func NewTransferDecoder(token, nft string) (*TransferDecoder, error) {
	if !common.IsHexAddress(token) {
		return nil, fmt.Errorf("invalid token address: %s", token)
	}
	if nft != "" && !common.IsHexAddress(nft) {
		return nil, fmt.Errorf("invalid nft address: %s", nft)
	}

	erc20, err := ERC20ABI()
	if err != nil {
		return nil, fmt.Errorf("parse erc20 abi: %w", err)
	}
	erc721, err := ERC721ABI()
	if err != nil {
		return nil, fmt.Errorf("parse erc721 abi: %w", err)
	}

	d := &TransferDecoder{
		token:  ledger.NormalizeAddress(token),
		topic0: strings.ToLower(erc20.Events["Transfer"].ID.Hex()),
		erc20:  erc20.Events["Transfer"],
		erc721: erc721.Events["Transfer"],
	}
	if nft != "" {
		d.nft = ledger.NormalizeAddress(nft)
	}
	return d, nil
}

// CanDecode reports whether log is a Transfer emitted by a tracked contract.
func (d *TransferDecoder) CanDecode(log model.LogRecord) bool {
	if strings.ToLower(log.Topic0()) != d.topic0 {
		return false
	}
	addr := ledger.NormalizeAddress(log.Address)
	return addr == d.token || (d.nft != "" && addr == d.nft)
}

// Decode converts a Transfer log into an Event.
func (d *TransferDecoder) Decode(log model.LogRecord) (model.Event, error) {
	if !d.CanDecode(log) {
		return model.Event{}, fmt.Errorf("unsupported log %s from %s", log.Topic0(), log.Address)
	}

	ev := model.Event{
		BlockNumber: log.BlockNumber,
		TxIndex:     log.TxIndex,
		LogIndex:    log.LogIndex,
		TxHash:      log.TxHash,
	}

	if ledger.NormalizeAddress(log.Address) == d.token {
		if len(log.Topics) != 3 {
			return model.Event{}, fmt.Errorf("erc20 transfer: expected 3 topics, got %d", len(log.Topics))
		}
		return d.decodeERC20(log, ev)
	}
	if len(log.Topics) != 4 {
		return model.Event{}, fmt.Errorf("erc721 transfer: expected 4 topics, got %d", len(log.Topics))
	}
	return d.decodeERC721(log, ev)
}

func (d *TransferDecoder) decodeERC20(log model.LogRecord, ev model.Event) (model.Event, error) {
	topics, err := parseIndexedTopics(d.erc20, log.Topics)
	if err != nil {
		return model.Event{}, err
	}
	var indexed struct {
		From common.Address
		To   common.Address
	}
	if err := abi.ParseTopics(&indexed, indexedArguments(d.erc20.Inputs), topics); err != nil {
		return model.Event{}, fmt.Errorf("parse topics: %w", err)
	}

	values, err := unpackNonIndexed(d.erc20, log.Data)
	if err != nil {
		return model.Event{}, err
	}
	if len(values) != 1 {
		return model.Event{}, fmt.Errorf("unexpected transfer values: %d", len(values))
	}
	amount, ok := values[0].(*big.Int)
	if !ok {
		return model.Event{}, fmt.Errorf("transfer value unexpected type %T", values[0])
	}
	value, overflow := uint256.FromBig(amount)
	if overflow {
		return model.Event{}, fmt.Errorf("transfer value overflow: %s", amount)
	}

	ev.Kind = model.EventTransfer
	ev.From = ledger.NormalizeAddress(indexed.From.Hex())
	ev.To = ledger.NormalizeAddress(indexed.To.Hex())
	ev.Value = value
	return ev, nil
}

func (d *TransferDecoder) decodeERC721(log model.LogRecord, ev model.Event) (model.Event, error) {
	topics, err := parseIndexedTopics(d.erc721, log.Topics)
	if err != nil {
		return model.Event{}, err
	}
	var indexed struct {
		From    common.Address
		To      common.Address
		TokenId *big.Int
	}
	if err := abi.ParseTopics(&indexed, indexedArguments(d.erc721.Inputs), topics); err != nil {
		return model.Event{}, fmt.Errorf("parse topics: %w", err)
	}
	if indexed.TokenId == nil || !indexed.TokenId.IsUint64() {
		return model.Event{}, fmt.Errorf("%w: %v", ErrTokenIDRange, indexed.TokenId)
	}

	ev.Kind = model.EventNFTTransfer
	ev.From = ledger.NormalizeAddress(indexed.From.Hex())
	ev.To = ledger.NormalizeAddress(indexed.To.Hex())
	ev.TokenID = indexed.TokenId.Uint64()
	return ev, nil
}

func parseIndexedTopics(event abi.Event, topics []string) ([]common.Hash, error) {
	indexedCount := len(indexedArguments(event.Inputs))
	if len(topics) != indexedCount+1 {
		return nil, fmt.Errorf("expected %d topics, got %d", indexedCount+1, len(topics))
	}
	return parseTopicHashes(topics[1:])
}

func parseTopicHashes(topics []string) ([]common.Hash, error) {
	out := make([]common.Hash, 0, len(topics))
	for _, topic := range topics {
		data, err := hexutil.Decode(topic)
		if err != nil {
			return nil, fmt.Errorf("invalid topic: %w", err)
		}
		if len(data) > 32 {
			return nil, fmt.Errorf("topic length %d", len(data))
		}
		out = append(out, common.BytesToHash(data))
	}
	return out, nil
}

func indexedArguments(args abi.Arguments) abi.Arguments {
	indexed := make(abi.Arguments, 0, len(args))
	for _, arg := range args {
		if arg.Indexed {
			indexed = append(indexed, arg)
		}
	}
	return indexed
}

func unpackNonIndexed(event abi.Event, dataHex string) ([]interface{}, error) {
	data, err := hexutil.Decode(dataHex)
	if err != nil {
		return nil, fmt.Errorf("invalid data: %w", err)
	}
	values, err := event.Inputs.NonIndexed().Unpack(data)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", event.Name, err)
	}
	return values, nil
}
