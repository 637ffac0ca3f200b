// Command monitor is a terminal client for the gateway's WebSocket bar
// feed: it subscribes to one (symbol, period) pair and renders a rolling
// candlestick chart, the same role the original gRPC TUI client played
// against the exchange adapters.
package main

import (
	"encoding/json"
	"fmt"
	"log"
	"net/url"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/gorilla/websocket"

	"github.com/yitech/barstream/internal/wsapi"
)

func main() {
	addr := getEnv("GATEWAY_ADDR", "localhost:8080")
	symbol := getEnv("SYMBOL", "600000.SH")
	period := getEnv("PERIOD", "1m")
	nKline := 120

	ch := make(chan wsapi.BarEvent, 64)
	go runClient(addr, symbol, period, ch)

	m := newModel(symbol, period, nKline, ch)
	if _, err := tea.NewProgram(m, tea.WithAltScreen()).Run(); err != nil {
		log.Fatalf("tui error: %v", err)
	}
}

// runClient keeps a WebSocket connection alive, resubscribing and
// reconnecting on failure every 3s, mirroring the original client's
// subscribe-then-retry-forever loop.
func runClient(addr, symbol, period string, out chan<- wsapi.BarEvent) {
	u := url.URL{Scheme: "ws", Host: addr, Path: "/ws"}
	for {
		if err := subscribe(u, symbol, period, out); err != nil {
			log.Printf("subscription error: %v — retrying in 3s", err)
		}
		time.Sleep(3 * time.Second)
	}
}

func subscribe(u url.URL, symbol, period string, out chan<- wsapi.BarEvent) error {
	conn, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close()

	sub := wsapi.SubscribeMsg{Op: wsapi.OpSubscribe, Symbol: symbol, Period: period}
	if err := conn.WriteJSON(sub); err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}

	log.Printf("connected — symbol=%s period=%s", symbol, period)

	for {
		var envelope struct {
			Op string `json:"op"`
		}
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("recv: %w", err)
		}
		if err := json.Unmarshal(raw, &envelope); err != nil {
			continue
		}
		if envelope.Op != wsapi.OpBar {
			continue
		}
		var ev wsapi.BarEvent
		if err := json.Unmarshal(raw, &ev); err != nil {
			continue
		}
		out <- ev
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
