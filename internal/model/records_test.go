package model

import (
	"encoding/json"
	"testing"
)

func TestStateRecordJSONKeys(t *testing.T) {
	record := StateRecord{
		StartBlock: 100,
		EndBlock:   200,
		Date:       "2025-11-01",
		DayIndex:   3,
		NFT: NFTStates{
			StartState: map[string][]uint64{},
			EndState:   map[string][]uint64{"0x1111111111111111111111111111111111111111": {1, 7}},
		},
		PilotVault: VaultStates{
			StartState: map[string]UserStateRecord{},
			EndState: map[string]UserStateRecord{
				"0x1111111111111111111111111111111111111111": {Balance: "123456789012345678901234567890"},
			},
		},
	}

	data, err := json.Marshal(record)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	var decoded map[string]interface{}
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}

	for _, key := range []string{"start_block", "end_block", "date", "day_index", "nft", "pilot_vault"} {
		if _, ok := decoded[key]; !ok {
			t.Fatalf("missing key %s", key)
		}
	}

	vault := decoded["pilot_vault"].(map[string]interface{})
	end := vault["end_state"].(map[string]interface{})
	entry := end["0x1111111111111111111111111111111111111111"].(map[string]interface{})
	if _, ok := entry["balance"].(string); !ok {
		t.Fatalf("balance should be string")
	}
}

func TestCompareEvents(t *testing.T) {
	a := Event{BlockNumber: 10, TxIndex: 2, LogIndex: 5}
	cases := []struct {
		b    Event
		want int
	}{
		{Event{BlockNumber: 11}, -1},
		{Event{BlockNumber: 10, TxIndex: 3}, -1},
		{Event{BlockNumber: 10, TxIndex: 2, LogIndex: 6}, -1},
		{Event{BlockNumber: 10, TxIndex: 2, LogIndex: 5}, 0},
		{Event{BlockNumber: 10, TxIndex: 1, LogIndex: 9}, 1},
		{Event{BlockNumber: 9, TxIndex: 9, LogIndex: 9}, 1},
	}
	for _, tc := range cases {
		if got := Compare(a, tc.b); got != tc.want {
			t.Fatalf("compare %s vs %s: got %d want %d", a.Position(), tc.b.Position(), got, tc.want)
		}
	}
}
