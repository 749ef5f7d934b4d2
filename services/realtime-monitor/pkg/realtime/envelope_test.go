package realtime

import (
	"encoding/json"
	"testing"
)

func TestUpdateGuards(t *testing.T) {
	cases := []struct {
		name     string
		payload  string
		market   bool
		analysis bool
	}{
		{"valid", `{"symbol":"BTCUSDT","timeframe":"1h","data":{"c":1}}`, true, true},
		{"with analysis type", `{"symbol":"BTCUSDT","timeframe":"1h","data":[1],"analysisType":"rsi"}`, true, true},
		{"analysis type not string", `{"symbol":"BTCUSDT","timeframe":"1h","data":1,"analysisType":7}`, true, false},
		{"missing timeframe", `{"symbol":"BTCUSDT","data":{}}`, false, false},
		{"numeric timeframe", `{"symbol":"BTCUSDT","timeframe":60,"data":{}}`, false, false},
		{"empty symbol", `{"symbol":"","timeframe":"1h","data":{}}`, false, false},
		{"null data", `{"symbol":"BTCUSDT","timeframe":"1h","data":null}`, false, false},
		{"missing data", `{"symbol":"BTCUSDT","timeframe":"1h"}`, false, false},
		{"array", `[1,2,3]`, false, false},
		{"null", `null`, false, false},
		{"garbage", `{"symbol":`, false, false},
		{"empty", ``, false, false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			raw := json.RawMessage(c.payload)
			if got := IsMarketUpdate(raw); got != c.market {
				t.Errorf("IsMarketUpdate = %v; want %v", got, c.market)
			}
			if got := IsAnalysisUpdate(raw); got != c.analysis {
				t.Errorf("IsAnalysisUpdate = %v; want %v", got, c.analysis)
			}
		})
	}
}

func TestSystemMessageGuard(t *testing.T) {
	cases := []struct {
		payload string
		want    bool
	}{
		{`{"message":"maintenance","level":"warning"}`, true},
		{`{"message":"","level":"info"}`, true},
		{`{"message":"x","level":"debug"}`, false},
		{`{"message":1,"level":"info"}`, false},
		{`{"level":"error"}`, false},
		{`"message"`, false},
	}
	for _, c := range cases {
		if got := IsSystemMessage(json.RawMessage(c.payload)); got != c.want {
			t.Errorf("IsSystemMessage(%s) = %v; want %v", c.payload, got, c.want)
		}
	}

	msg, ok := DecodeSystemMessage(json.RawMessage(`{"message":"maintenance","level":"warning"}`))
	if !ok || msg.Message != "maintenance" || msg.Level != LevelWarning {
		t.Errorf("DecodeSystemMessage = %+v, %v", msg, ok)
	}
}

func TestDecodePong(t *testing.T) {
	p, ok := decodePong(json.RawMessage(`{"clientTime":1700000000123,"serverTime":1700000000150}`))
	if !ok || p.ClientTime != 1700000000123 || p.ServerTime != 1700000000150 {
		t.Errorf("decodePong = %+v, %v", p, ok)
	}
	if _, ok := decodePong(json.RawMessage(`{"serverTime":1}`)); ok {
		t.Error("pong without clientTime must be rejected")
	}
	if _, ok := decodePong(json.RawMessage(`{"clientTime":"soon"}`)); ok {
		t.Error("non-numeric clientTime must be rejected")
	}
}

func TestDecodeAck(t *testing.T) {
	if ch, ok := decodeAck(json.RawMessage(`{"channel":"market:BTCUSDT:1h"}`)); !ok || ch != "market:BTCUSDT:1h" {
		t.Errorf("decodeAck = %q, %v", ch, ok)
	}
	if _, ok := decodeAck(json.RawMessage(`{}`)); ok {
		t.Error("empty ack must be rejected")
	}
}
