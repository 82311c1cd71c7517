package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"

	"github.com/gorilla/websocket"

	"fraud-stream-dashboard/internal/domain/entity"
	"fraud-stream-dashboard/internal/domain/service"
)

func main() {
	url := flag.String("url", "ws://localhost:8000/ws/fraud_detection/", "feed websocket URL")
	count := flag.Int("count", 10, "number of data messages to dump")
	flag.Parse()

	fmt.Println("🔍 Probing fraud feed")
	fmt.Println("=====================")

	conn, resp, err := websocket.DefaultDialer.Dial(*url, nil)
	if err != nil {
		log.Fatal("Failed to dial feed:", err)
	}
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	defer conn.Close()

	received := 0
	for received < *count {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			log.Fatal("Read failed:", err)
		}

		var msg struct {
			Message     string              `json:"message"`
			Predictions *entity.Prediction  `json:"predictions"`
			Transaction *entity.Transaction `json:"transaction"`
		}
		if err := json.Unmarshal(payload, &msg); err != nil {
			fmt.Printf("   ⚠️  undecodable payload: %v\n", err)
			continue
		}

		if msg.Predictions == nil {
			fmt.Printf("   status: %s\n", msg.Message)
			continue
		}

		received++
		id := ""
		amount := 0.0
		if msg.Transaction != nil {
			id = msg.Transaction.TransactionID
			amount = msg.Transaction.AmountValue()
		}
		fmt.Printf("%2d. %-10s amount=%8.2f fraud=%v\n",
			received, id, amount, service.IsFraud(msg.Predictions))
	}
}
