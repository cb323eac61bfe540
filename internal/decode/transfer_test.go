package decode

import (
	"errors"
	"math"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"vaultPoints/internal/model"
)

var (
	tokenAddr = common.HexToAddress("0x1111111111111111111111111111111111111111")
	nftAddr   = common.HexToAddress("0x9999999999999999999999999999999999999999")
)

func TestTransferDecoderERC20(t *testing.T) {
	erc20, err := ERC20ABI()
	if err != nil {
		t.Fatalf("abi parse: %v", err)
	}

	decoder, err := NewTransferDecoder(tokenAddr.Hex(), nftAddr.Hex())
	if err != nil {
		t.Fatalf("decoder: %v", err)
	}

	from := common.HexToAddress("0x2222222222222222222222222222222222222222")
	to := common.HexToAddress("0xAbCdEf0123456789aBcDeF0123456789ABCDEF01")
	value, _ := new(big.Int).SetString("198777366745194886", 10)

	data, err := erc20.Events["Transfer"].Inputs.NonIndexed().Pack(value)
	if err != nil {
		t.Fatalf("pack transfer: %v", err)
	}

	logRecord := buildLogRecord(tokenAddr, erc20.Events["Transfer"].ID, data, []common.Hash{
		topicFromAddress(from),
		topicFromAddress(to),
	})
	if !decoder.CanDecode(logRecord) {
		t.Fatalf("expected decodable log")
	}

	event, err := decoder.Decode(logRecord)
	if err != nil {
		t.Fatalf("decode transfer: %v", err)
	}

	if event.Kind != model.EventTransfer {
		t.Fatalf("kind mismatch: %s", event.Kind)
	}
	if event.From != "0x2222222222222222222222222222222222222222" {
		t.Fatalf("from mismatch: %s", event.From)
	}
	if event.To != "0xabcdef0123456789abcdef0123456789abcdef01" {
		t.Fatalf("to not canonical: %s", event.To)
	}
	if event.Value.ToBig().Cmp(value) != 0 {
		t.Fatalf("value mismatch: %s", event.Value.Dec())
	}
	if event.BlockNumber != 12345 || event.TxIndex != 4 || event.LogIndex != 1 {
		t.Fatalf("position mismatch: %s", event.Position())
	}
}

func TestTransferDecoderERC721(t *testing.T) {
	erc721, err := ERC721ABI()
	if err != nil {
		t.Fatalf("abi parse: %v", err)
	}

	decoder, err := NewTransferDecoder(tokenAddr.Hex(), nftAddr.Hex())
	if err != nil {
		t.Fatalf("decoder: %v", err)
	}

	owner := common.HexToAddress("0x3333333333333333333333333333333333333333")
	logRecord := buildLogRecord(nftAddr, erc721.Events["Transfer"].ID, nil, []common.Hash{
		topicFromAddress(common.Address{}),
		topicFromAddress(owner),
		common.BigToHash(big.NewInt(42)),
	})

	event, err := decoder.Decode(logRecord)
	if err != nil {
		t.Fatalf("decode nft transfer: %v", err)
	}
	if event.Kind != model.EventNFTTransfer {
		t.Fatalf("kind mismatch: %s", event.Kind)
	}
	if event.From != "0x0000000000000000000000000000000000000000" || event.To != "0x3333333333333333333333333333333333333333" {
		t.Fatalf("address mismatch: %s -> %s", event.From, event.To)
	}
	if event.TokenID != 42 {
		t.Fatalf("token id mismatch: %d", event.TokenID)
	}
	if event.Value != nil {
		t.Fatalf("nft transfer must not carry a value")
	}
}

func TestTransferDecoderRejectsWideTokenID(t *testing.T) {
	erc721, err := ERC721ABI()
	if err != nil {
		t.Fatalf("abi parse: %v", err)
	}
	decoder, err := NewTransferDecoder(tokenAddr.Hex(), nftAddr.Hex())
	if err != nil {
		t.Fatalf("decoder: %v", err)
	}

	maxID := new(big.Int).SetUint64(math.MaxUint64)
	wide := new(big.Int).Add(maxID, big.NewInt(1))
	owner := topicFromAddress(common.HexToAddress("0x3333333333333333333333333333333333333333"))

	event, err := decoder.Decode(buildLogRecord(nftAddr, erc721.Events["Transfer"].ID, nil, []common.Hash{
		topicFromAddress(common.Address{}), owner, common.BigToHash(maxID),
	}))
	if err != nil {
		t.Fatalf("decode max id: %v", err)
	}
	if event.TokenID != math.MaxUint64 {
		t.Fatalf("token id mismatch: %d", event.TokenID)
	}

	_, err = decoder.Decode(buildLogRecord(nftAddr, erc721.Events["Transfer"].ID, nil, []common.Hash{
		topicFromAddress(common.Address{}), owner, common.BigToHash(wide),
	}))
	if !errors.Is(err, ErrTokenIDRange) {
		t.Fatalf("expected ErrTokenIDRange, got %v", err)
	}
}

func TestTransferDecoderRejects(t *testing.T) {
	erc20, err := ERC20ABI()
	if err != nil {
		t.Fatalf("abi parse: %v", err)
	}
	decoder, err := NewTransferDecoder(tokenAddr.Hex(), nftAddr.Hex())
	if err != nil {
		t.Fatalf("decoder: %v", err)
	}

	other := buildLogRecord(common.HexToAddress("0x5555555555555555555555555555555555555555"),
		erc20.Events["Transfer"].ID, nil, nil)
	if decoder.CanDecode(other) {
		t.Fatalf("untracked contract must not decode")
	}

	// an ERC-721 shaped log emitted by the fungible token
	wrongShape := buildLogRecord(tokenAddr, erc20.Events["Transfer"].ID, nil, []common.Hash{
		topicFromAddress(common.Address{}),
		topicFromAddress(common.Address{}),
		common.BigToHash(big.NewInt(1)),
	})
	if _, err := decoder.Decode(wrongShape); err == nil {
		t.Fatalf("expected topic count error")
	}

	if _, err := NewTransferDecoder("not-an-address", ""); err == nil {
		t.Fatalf("expected invalid token error")
	}
}

func TestTransferTopic(t *testing.T) {
	topic, err := TransferTopic()
	if err != nil {
		t.Fatalf("topic: %v", err)
	}
	if topic != "0xddf252ad1be2c89b69c2b068fc378daa952ba7f163c4a11628f55a4df523b3ef" {
		t.Fatalf("unexpected transfer topic: %s", topic)
	}
}

func buildLogRecord(addr common.Address, topic0 common.Hash, data []byte, indexed []common.Hash) model.LogRecord {
	topics := make([]string, 0, len(indexed)+1)
	topics = append(topics, topic0.Hex())
	for _, topic := range indexed {
		topics = append(topics, topic.Hex())
	}

	return model.LogRecord{
		ChainID:     1,
		BlockNumber: 12345,
		BlockHash:   "0xabc",
		TxHash:      "0xdef",
		TxIndex:     4,
		LogIndex:    1,
		Address:     addr.Hex(),
		Topics:      topics,
		Data:        hexutil.Encode(data),
		Timestamp:   1700000000,
	}
}

func topicFromAddress(addr common.Address) common.Hash {
	return common.BytesToHash(addr.Bytes())
}
