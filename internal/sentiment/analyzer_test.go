package sentiment

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/mkryl/sigflow/pkg/models"
)

func TestAnalyzer_Score(t *testing.T) {
	analyzer := NewAnalyzer()

	tests := []struct {
		name     string
		text     string
		expected string // positive, negative, or neutral
	}{
		{
			name:     "bullish text",
			text:     "Bitcoin rally continues, bulls in control, breakout towards ath!",
			expected: "positive",
		},
		{
			name:     "bearish text",
			text:     "Market crash imminent, panic selling and massive dump expected",
			expected: "negative",
		},
		{
			name:     "neutral text",
			text:     "Bitcoin price remains stable today at current levels",
			expected: "neutral",
		},
		{
			name:     "empty text",
			text:     "",
			expected: "neutral",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			score := analyzer.Score(tt.text)

			var got string
			switch {
			case score > 0.05:
				got = "positive"
			case score < -0.05:
				got = "negative"
			default:
				got = "neutral"
			}

			if got != tt.expected {
				t.Errorf("Score(%q) = %.3f (%s), want %s", tt.text, score, got, tt.expected)
			}
			if score < -1 || score > 1 {
				t.Errorf("score %.3f outside [-1, 1]", score)
			}
		})
	}
}

type fakeHeadlines struct {
	headlines []string
	err       error
	calls     int
}

func (f *fakeHeadlines) RecentHeadlines(ctx context.Context, symbol string, limit int) ([]string, error) {
	f.calls++
	return f.headlines, f.err
}

func TestProvider_Context(t *testing.T) {
	t.Run("bullish headlines give bullish bias", func(t *testing.T) {
		src := &fakeHeadlines{headlines: []string{
			"BTC rally breakout bullish surge",
			"massive pump towards ath",
		}}
		p := NewProvider(src, time.Minute, 10)

		sc := p.Context(context.Background(), "BTCUSDT")
		if sc == nil || sc.Bias != models.SentimentBullish {
			t.Fatalf("expected bullish context, got %+v", sc)
		}
		if sc.Confidence <= 0 || sc.Confidence > 1 {
			t.Errorf("confidence %.2f outside (0, 1]", sc.Confidence)
		}
	})

	t.Run("cache avoids repeated fetches inside ttl", func(t *testing.T) {
		src := &fakeHeadlines{headlines: []string{"bullish rally"}}
		p := NewProvider(src, time.Minute, 10)

		p.Context(context.Background(), "BTCUSDT")
		p.Context(context.Background(), "BTCUSDT")
		if src.calls != 1 {
			t.Errorf("expected 1 fetch, got %d", src.calls)
		}
	})

	t.Run("fetch failure degrades to nil without error", func(t *testing.T) {
		src := &fakeHeadlines{err: fmt.Errorf("feed down")}
		p := NewProvider(src, time.Minute, 10)

		if sc := p.Context(context.Background(), "BTCUSDT"); sc != nil {
			t.Errorf("expected nil context on failure, got %+v", sc)
		}
	})

	t.Run("stale cache served when refresh fails", func(t *testing.T) {
		src := &fakeHeadlines{headlines: []string{"bullish rally"}}
		p := NewProvider(src, time.Minute, 10)

		current := time.Now()
		p.now = func() time.Time { return current }

		first := p.Context(context.Background(), "BTCUSDT")
		if first == nil {
			t.Fatal("expected context")
		}

		src.err = fmt.Errorf("feed down")
		current = current.Add(2 * time.Minute)

		second := p.Context(context.Background(), "BTCUSDT")
		if second == nil || second.Bias != first.Bias {
			t.Errorf("expected stale context to be served, got %+v", second)
		}
	})
}
