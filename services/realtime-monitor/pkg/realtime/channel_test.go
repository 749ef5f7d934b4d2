package realtime

import "testing"

func TestFormatChannel(t *testing.T) {
	cases := []struct {
		typ       SubscriptionType
		symbol    string
		timeframe string
		want      string
	}{
		{TypeMarket, "BTCUSDT", "1h", "market:BTCUSDT:1h"},
		{TypeMarket, "BTCUSDT", "", "market:BTCUSDT"},
		{TypeAnalysis, "ETHUSDT", "4h", "analysis:ETHUSDT:4h"},
	}
	for _, c := range cases {
		if got := FormatChannel(c.typ, c.symbol, c.timeframe); got != c.want {
			t.Errorf("FormatChannel(%q,%q,%q) = %q; want %q", c.typ, c.symbol, c.timeframe, got, c.want)
		}
		// детерминизм
		if FormatChannel(c.typ, c.symbol, c.timeframe) != FormatChannel(c.typ, c.symbol, c.timeframe) {
			t.Errorf("FormatChannel is not deterministic for %q", c.want)
		}
	}
}

func TestParseChannel(t *testing.T) {
	cases := []struct {
		in      string
		typ     SubscriptionType
		symbol  string
		tf      string
		wantErr bool
	}{
		{"market:BTCUSDT:1h", TypeMarket, "BTCUSDT", "1h", false},
		{"analysis:ETHUSDT", TypeAnalysis, "ETHUSDT", "", false},
		{"system", "", "", "", true},
		{"market", "", "", "", true},
		{"orders:BTCUSDT:1h", "", "", "", true},
		{"market::1h", "", "", "", true},
		{"market:BTCUSDT:", "", "", "", true},
		{"market:BTCUSDT:1h:x", "", "", "", true},
	}
	for _, c := range cases {
		t.Run(c.in, func(t *testing.T) {
			typ, sym, tf, err := ParseChannel(c.in)
			if (err != nil) != c.wantErr {
				t.Fatalf("err = %v; wantErr %v", err, c.wantErr)
			}
			if c.wantErr {
				return
			}
			if typ != c.typ || sym != c.symbol || tf != c.tf {
				t.Errorf("got (%q,%q,%q)", typ, sym, tf)
			}
			if FormatChannel(typ, sym, tf) != c.in {
				t.Errorf("round trip mismatch for %q", c.in)
			}
		})
	}
}
