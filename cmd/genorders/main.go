package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"math/rand"
	"net/http"
	"os"
	"time"

	"salespipe/internal/model"
)

func main() {
	var count int
	var outputFile string
	var apiURL string
	flag.IntVar(&count, "count", 100, "number of orders to generate")
	flag.StringVar(&outputFile, "output", "orders.jsonl", "output file (ignored when -api is set)")
	flag.StringVar(&apiURL, "api", "", "producer API base URL; POSTs orders to /order instead of writing a file")
	flag.Parse()

	var err error
	if apiURL != "" {
		err = postOrders(count, apiURL)
	} else {
		err = generateOrders(count, outputFile)
	}
	if err != nil {
		log.Fatalf("generation failed: %v", err)
	}
}

func randomOrder(i int) model.OrderRequest {
	qty := int64(1 + rand.Intn(5))                       // 1-5
	price := float64(100+rand.Intn(9900)) / 100.0        // 1.00-99.99
	orderID := int64(i + 1)
	customerID := int64(1 + rand.Intn(50))
	productID := int64(1 + rand.Intn(10))
	return model.OrderRequest{
		OrderID:    &orderID,
		CustomerID: &customerID,
		ProductID:  &productID,
		Quantity:   &qty,
		UnitPrice:  &price,
	}
}

func generateOrders(count int, outputFile string) error {
	file, err := os.Create(outputFile)
	if err != nil {
		return fmt.Errorf("create file: %w", err)
	}
	defer file.Close()

	rand.Seed(time.Now().UnixNano())

	enc := json.NewEncoder(file)
	for i := 0; i < count; i++ {
		order := randomOrder(i)
		if err := enc.Encode(&order); err != nil {
			return fmt.Errorf("encode order %d: %w", i+1, err)
		}
	}

	log.Printf("generated %d orders to %s", count, outputFile)
	return nil
}

func postOrders(count int, apiURL string) error {
	client := &http.Client{Timeout: 15 * time.Second}
	rand.Seed(time.Now().UnixNano())

	ok := 0
	for i := 0; i < count; i++ {
		order := randomOrder(i)
		body, err := json.Marshal(&order)
		if err != nil {
			return fmt.Errorf("marshal order %d: %w", i+1, err)
		}
		resp, err := client.Post(apiURL+"/order", "application/json", bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("post order %d: %w", i+1, err)
		}
		if resp.StatusCode != http.StatusOK {
			detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			resp.Body.Close()
			return fmt.Errorf("post order %d: status %d: %s", i+1, resp.StatusCode, detail)
		}
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
		ok++
	}

	log.Printf("posted %d orders to %s", ok, apiURL)
	return nil
}
